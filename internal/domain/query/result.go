package query

import "github.com/knowbase/backend/internal/domain/knowledge"

// RetrievedChunk 检索出的分块及其得分
type RetrievedChunk struct {
	Chunk *knowledge.Chunk `json:"chunk"`
	Score float64          `json:"score"`
	// ChannelScores 各检索通道的原始得分，便于排查
	ChannelScores map[string]float64 `json:"channel_scores,omitempty"`
	// Reference 标记该分块来自依赖上下文而非直接检索，融合时降权
	Reference bool `json:"reference,omitempty"`
}

// SubQueryResult 单个子查询的执行结果
type SubQueryResult struct {
	SubQuery *SubQuery         `json:"sub_query"`
	Chunks   []*RetrievedChunk `json:"chunks"`
	Answer   string            `json:"answer,omitempty"`
	TimedOut bool              `json:"timed_out,omitempty"`
}

// SubQuerySummary 对外返回的子查询摘要
type SubQuerySummary struct {
	Query        string    `json:"query"`
	Intent       QueryType `json:"intent"`
	Priority     int       `json:"priority"`
	ResultsCount int       `json:"results_count"`
}

// ProcessingInfo 处理过程标记
type ProcessingInfo struct {
	DecompositionUsed bool `json:"decomposition_used"`
	SynthesisUsed     bool `json:"synthesis_used"`
}

// ProcessResult process 操作的完整返回
type ProcessResult struct {
	Answer          string             `json:"answer"`
	QueryType       IntentType         `json:"query_type"`
	IntentAnalysis  *Intent            `json:"intent_analysis"`
	SubQueries      []*SubQuerySummary `json:"sub_queries"`
	ExecutionPlan   [][]string         `json:"execution_plan"`
	RetrievedChunks []*RetrievedChunk  `json:"retrieved_chunks"`
	ProcessingInfo  ProcessingInfo     `json:"processing_info"`
	ElapsedMs       int64              `json:"elapsed_ms"`
}
