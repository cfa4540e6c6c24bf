package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/log"
	"github.com/knowbase/backend/internal/infrastructure/vector"
)

// 检索通道名
const (
	ChannelBM25       = "bm25"
	ChannelVector     = "vector"
	ChannelMultimodal = "multimodal"
)

// QueryEmbedder 查询向量化接口
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher 向量检索接口
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]*vector.ScoredChunkRef, error)
}

// HybridRetriever 混合检索器
// 融合关键词（BM25）、语义向量和多模态类型权重三个通道。
type HybridRetriever struct {
	embedder  QueryEmbedder
	vectors   VectorSearcher
	keyword   *BM25Index
	chunkRepo knowledge.ChunkRepository
	cfg       config.RetrievalConfig
	logger    *slog.Logger
}

// NewHybridRetriever 创建混合检索器
func NewHybridRetriever(
	embedder QueryEmbedder,
	vectors VectorSearcher,
	keyword *BM25Index,
	chunkRepo knowledge.ChunkRepository,
	pipelineCfg *config.PipelineConfig,
) *HybridRetriever {
	return &HybridRetriever{
		embedder:  embedder,
		vectors:   vectors,
		keyword:   keyword,
		chunkRepo: chunkRepo,
		cfg:       pipelineCfg.Retrieval,
		logger:    log.NewModuleLogger("retrieval", "hybrid"),
	}
}

// candidate 合并阶段的候选
type candidate struct {
	chunkID     string
	contentType knowledge.ContentType
	vectorScore float64
	bm25Score   float64
	order       int // 首次出现顺序，用于稳定排序
}

// Retrieve 混合检索
// 任一通道失败时降级为零贡献并记录告警；所有通道都失败时
// 返回 query.ErrRetrievalUnavailable。
func (r *HybridRetriever) Retrieve(ctx context.Context, text string) ([]*query.RetrievedChunk, error) {
	topK := r.cfg.TopK
	// 每个通道多取一些候选，给融合留余量
	channelLimit := topK * 2

	candidates := make(map[string]*candidate)
	orderCounter := 0

	track := func(chunkID string, contentType knowledge.ContentType) *candidate {
		c, ok := candidates[chunkID]
		if !ok {
			c = &candidate{
				chunkID:     chunkID,
				contentType: contentType,
				order:       orderCounter,
			}
			orderCounter++
			candidates[chunkID] = c
		}
		return c
	}

	failedChannels := 0

	// 向量通道
	vectorHits, err := r.searchVector(ctx, text, channelLimit)
	if err != nil {
		failedChannels++
		r.logger.Warn("Vector channel failed, degrading", "error", err)
	} else {
		for _, hit := range vectorHits {
			c := track(hit.ChunkID, hit.ContentType)
			// 同一分块多次命中取最大得分
			if hit.Score > c.vectorScore {
				c.vectorScore = hit.Score
			}
		}
	}

	// 关键词通道
	if !r.keyword.Ready() {
		failedChannels++
		r.logger.Warn("Keyword channel unavailable: index not built")
	} else {
		hits := r.keyword.Search(text, channelLimit)
		// BM25 原始得分按最大值归一化到 [0,1]
		maxScore := 0.0
		for _, hit := range hits {
			if hit.Score > maxScore {
				maxScore = hit.Score
			}
		}
		for _, hit := range hits {
			c := track(hit.ChunkID, "")
			normalized := 0.0
			if maxScore > 0 {
				normalized = hit.Score / maxScore
			}
			if normalized > c.bm25Score {
				c.bm25Score = normalized
			}
		}
	}

	// 两个主通道都失败时检索不可用（多模态通道只是权重，依附于候选集）
	if failedChannels >= 2 {
		return nil, query.ErrRetrievalUnavailable
	}

	if len(candidates) == 0 {
		return []*query.RetrievedChunk{}, nil
	}

	results, err := r.mergeCandidates(ctx, candidates)
	if err != nil {
		return nil, err
	}

	if len(results) > topK {
		results = results[:topK]
	}

	r.logger.Debug("Hybrid retrieval finished",
		"query_length", len(text),
		"candidates", len(candidates),
		"results", len(results),
	)

	return results, nil
}

// searchVector 向量通道：低于相似度阈值的命中直接丢弃
func (r *HybridRetriever) searchVector(ctx context.Context, text string, limit int) ([]*vector.ScoredChunkRef, error) {
	queryVector, err := r.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.vectors.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Score >= r.cfg.ScoreThreshold {
			filtered = append(filtered, hit)
		}
	}

	return filtered, nil
}

// mergeCandidates 加权融合并按得分降序排序，平分时保持首次出现顺序
func (r *HybridRetriever) mergeCandidates(ctx context.Context, candidates map[string]*candidate) ([]*query.RetrievedChunk, error) {
	ordered := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].order < ordered[j].order
	})

	results := make([]*query.RetrievedChunk, 0, len(ordered))
	for _, c := range ordered {
		chunk, err := r.chunkRepo.GetByID(ctx, c.chunkID)
		if err != nil {
			// 向量库和元数据库可能短暂不一致，跳过缺失分块
			r.logger.Warn("Chunk missing in metadata store, skipping",
				"chunk_id", c.chunkID,
				"error", err,
			)
			continue
		}

		typeWeight := chunk.ContentType.TypeWeight()
		combined := r.cfg.BM25Weight*c.bm25Score +
			r.cfg.VectorWeight*c.vectorScore +
			r.cfg.MultimodalWeight*typeWeight

		results = append(results, &query.RetrievedChunk{
			Chunk: chunk,
			Score: combined,
			ChannelScores: map[string]float64{
				ChannelBM25:       c.bm25Score,
				ChannelVector:     c.vectorScore,
				ChannelMultimodal: typeWeight,
			},
		})
	}

	// 稳定排序：得分相同时保持首次出现顺序
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}
