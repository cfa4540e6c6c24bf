package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PipelineConfig 检索与问答流水线参数
// 从数据目录下的 pipeline.yaml 加载，文件不存在时使用默认值。
// 加载后不可变，所有组件只读取不修改。
type PipelineConfig struct {
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Optimization  OptimizationConfig  `yaml:"optimization"`
	Decomposition DecompositionConfig `yaml:"decomposition"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
}

// ChunkingConfig 分块参数
type ChunkingConfig struct {
	ChunkSize      int `yaml:"chunk_size"`       // 目标 token 数
	ChunkOverlap   int `yaml:"chunk_overlap"`    // 相邻分块重叠 token 数
	MinChunkLength int `yaml:"min_chunk_length"` // 最短分块字符数，短于此的向前合并
}

// RetrievalConfig 混合检索参数
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	RerankTopK     int     `yaml:"rerank_top_k"`

	// 混合检索通道权重，三者之和应为 1
	BM25Weight       float64 `yaml:"bm25_weight"`
	VectorWeight     float64 `yaml:"vector_weight"`
	MultimodalWeight float64 `yaml:"multimodal_weight"`
}

// OptimizationConfig 查询优化参数
type OptimizationConfig struct {
	EnableExpansion          bool    `yaml:"enable_expansion"`           // 同义词/相关词/上下文扩展
	EnableRewrite            bool    `yaml:"enable_rewrite"`             // 规则改写
	EnableLLMDiversification bool    `yaml:"enable_llm_diversification"` // LLM 多样化变体生成
	MaxExpansions            int     `yaml:"max_expansions"`             // 变体数量上限（不含原查询）
	SimilarityThreshold      float64 `yaml:"similarity_threshold"`       // 词重叠率超过该值的变体视为重复
}

// DecompositionConfig 查询分解参数
type DecompositionConfig struct {
	Threshold            float64 `yaml:"threshold"`              // 触发分解的复杂度阈值
	MaxSubQueries        int     `yaml:"max_sub_queries"`        // 子查询上限
	MinQueryLength       int     `yaml:"min_query_length"`       // 触发分解的最短查询长度
	EnableContextPassing bool    `yaml:"enable_context_passing"` // 依赖子查询间传递上下文
	MaxContextLength     int     `yaml:"max_context_length"`     // 传递上下文的字符上限
	ContextOverlap       float64 `yaml:"context_overlap"`        // 截断时至少保留的内容比例
	EnableResultFusion   bool    `yaml:"enable_result_fusion"`   // 子查询结果融合
	SubQueryTimeoutSec   int     `yaml:"sub_query_timeout_sec"`  // 单个子查询的执行超时
}

// SynthesisConfig 答案合成参数
type SynthesisConfig struct {
	MaxLength               int    `yaml:"max_length"`
	Style                   string `yaml:"style"` // comprehensive / concise
	IncludeSourceReferences bool   `yaml:"include_source_references"`
	EnableLogicalFlow       bool   `yaml:"enable_logical_flow"`
}

// DefaultPipelineConfig 默认流水线参数
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Chunking: ChunkingConfig{
			ChunkSize:      500,
			ChunkOverlap:   50,
			MinChunkLength: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:             10,
			ScoreThreshold:   0.7,
			RerankTopK:       5,
			BM25Weight:       0.3,
			VectorWeight:     0.5,
			MultimodalWeight: 0.2,
		},
		Optimization: OptimizationConfig{
			EnableExpansion:          true,
			EnableRewrite:            true,
			EnableLLMDiversification: true,
			MaxExpansions:            3,
			SimilarityThreshold:      0.7,
		},
		Decomposition: DecompositionConfig{
			Threshold:            4.0,
			MaxSubQueries:        5,
			MinQueryLength:       10,
			EnableContextPassing: true,
			MaxContextLength:     1000,
			ContextOverlap:       0.2,
			EnableResultFusion:   true,
			SubQueryTimeoutSec:   30,
		},
		Synthesis: SynthesisConfig{
			MaxLength:               2000,
			Style:                   "comprehensive",
			IncludeSourceReferences: true,
			EnableLogicalFlow:       true,
		},
	}
}

// LoadPipelineConfig 加载流水线参数
// 文件不存在时返回默认值；存在但非法时返回错误。
func LoadPipelineConfig() (*PipelineConfig, error) {
	path := filepath.Join(GetDataDir(), "pipeline.yaml")

	cfg := DefaultPipelineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	return cfg, nil
}

// Validate 校验参数合法性
func (c *PipelineConfig) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.RerankTopK > c.Retrieval.TopK {
		return fmt.Errorf("retrieval.rerank_top_k must not exceed top_k")
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be in [0, 1], got %f", c.Retrieval.ScoreThreshold)
	}
	weightSum := c.Retrieval.BM25Weight + c.Retrieval.VectorWeight + c.Retrieval.MultimodalWeight
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("retrieval channel weights must sum to 1, got %f", weightSum)
	}
	if c.Optimization.MaxExpansions < 0 {
		return fmt.Errorf("optimization.max_expansions must not be negative, got %d", c.Optimization.MaxExpansions)
	}
	if c.Optimization.SimilarityThreshold < 0 || c.Optimization.SimilarityThreshold > 1 {
		return fmt.Errorf("optimization.similarity_threshold must be in [0, 1], got %f", c.Optimization.SimilarityThreshold)
	}
	if c.Decomposition.MaxSubQueries <= 0 {
		return fmt.Errorf("decomposition.max_sub_queries must be positive, got %d", c.Decomposition.MaxSubQueries)
	}
	if c.Decomposition.ContextOverlap < 0 || c.Decomposition.ContextOverlap > 1 {
		return fmt.Errorf("decomposition.context_overlap must be in [0, 1], got %f", c.Decomposition.ContextOverlap)
	}
	if c.Synthesis.MaxLength <= 0 {
		return fmt.Errorf("synthesis.max_length must be positive, got %d", c.Synthesis.MaxLength)
	}
	return nil
}
