package queryproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/knowbase/backend/internal/application/retrieval"
	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// Retriever 混合检索接口
type Retriever interface {
	Retrieve(ctx context.Context, text string) ([]*query.RetrievedChunk, error)
}

// ChunkReranker 检索结果重排接口
type ChunkReranker interface {
	Rerank(queryText string, chunks []*query.RetrievedChunk) []*query.RetrievedChunk
}

// referenceWeight 依赖上下文分块在融合时的降权系数
const referenceWeight = 0.3

// Executor 多步执行器
// 按执行计划逐阶段运行子查询，依赖的前序结果以受限长度的上下文传入后续子查询。
// 单个子查询超时或检索失败只影响自身，整个计划继续推进。
type Executor struct {
	retriever Retriever
	reranker  ChunkReranker
	optimizer *QueryOptimizer
	cfg       config.DecompositionConfig
	logger    *slog.Logger
}

// NewExecutor 创建多步执行器
func NewExecutor(retriever Retriever, reranker ChunkReranker, optimizer *QueryOptimizer, pipelineCfg *config.PipelineConfig) *Executor {
	return &Executor{
		retriever: retriever,
		reranker:  reranker,
		optimizer: optimizer,
		cfg:       pipelineCfg.Decomposition,
		logger:    log.NewModuleLogger("queryproc", "executor"),
	}
}

// Execute 执行分解结果中的全部子查询
// 返回每个子查询的结果、融合去重后的分块列表，以及检索是否完全不可用。
func (e *Executor) Execute(ctx context.Context, dr *query.DecompositionResult) ([]*query.SubQueryResult, []*query.RetrievedChunk, bool) {
	byID := make(map[string]*query.SubQuery, len(dr.SubQueries))
	for _, sq := range dr.SubQueries {
		byID[sq.ID] = sq
	}

	results := make(map[string]*query.SubQueryResult, len(dr.SubQueries))
	var ordered []*query.SubQueryResult
	attempted := 0
	unavailable := 0

	// 分解出的子查询已经过 LLM 细化，查询优化只作用于单查询路径
	optimize := !dr.Decomposed

	for _, stage := range dr.ExecutionPlan {
		for _, id := range stage {
			sq, ok := byID[id]
			if !ok {
				continue
			}

			result, storeDown := e.executeSubQuery(ctx, sq, results, optimize)
			results[id] = result
			ordered = append(ordered, result)

			if !result.TimedOut {
				attempted++
				if storeDown {
					unavailable++
				}
			}
		}
	}

	fused := e.fuseResults(ordered)
	allUnavailable := attempted > 0 && unavailable == attempted
	return ordered, fused, allUnavailable
}

// executeSubQuery 执行单个子查询，第二个返回值表示检索存储是否不可用
func (e *Executor) executeSubQuery(ctx context.Context, sq *query.SubQuery, done map[string]*query.SubQueryResult, optimize bool) (*query.SubQueryResult, bool) {
	result := &query.SubQueryResult{SubQuery: sq}
	storeDown := false

	queryText := sq.Query
	var refChunks []*query.RetrievedChunk
	if e.cfg.EnableContextPassing && len(sq.DependsOn) > 0 {
		contextText, refs := e.buildDependencyContext(sq, done)
		if contextText != "" {
			queryText = fmt.Sprintf("已知信息：%s\n问题：%s", contextText, sq.Query)
			refChunks = refs
		}
	}

	callCtx := ctx
	if e.cfg.SubQueryTimeoutSec > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.SubQueryTimeoutSec)*time.Second)
		defer cancel()
	}

	chunks, err := e.retriever.Retrieve(callCtx, queryText)
	switch {
	case err == nil:
		if optimize && e.optimizer != nil {
			chunks = e.retrieveVariants(callCtx, queryText, chunks)
		}
		result.Chunks = e.reranker.Rerank(sq.Query, chunks)
	case errors.Is(err, context.DeadlineExceeded):
		// 超时降级为空结果，流水线继续
		e.logger.Warn("子查询执行超时", "id", sq.ID, "timeout_sec", e.cfg.SubQueryTimeoutSec)
		result.TimedOut = true
	case errors.Is(err, query.ErrRetrievalUnavailable):
		e.logger.Warn("子查询检索不可用", "id", sq.ID)
		storeDown = true
	default:
		// 单步失败只记录，整个计划继续
		e.logger.Warn("子查询检索失败", "id", sq.ID, "error", err)
	}

	// 依赖上下文的分块以引用身份并入结果，融合时降权
	result.Chunks = append(result.Chunks, refChunks...)
	return result, storeDown
}

// retrieveVariants 为优化出的查询变体补充检索，按分块 ID 去重保留最高分
// 变体检索失败只记录，不影响原查询的结果。
func (e *Executor) retrieveVariants(ctx context.Context, queryText string, chunks []*query.RetrievedChunk) []*query.RetrievedChunk {
	variants := e.optimizer.Optimize(ctx, queryText)

	seen := make(map[string]*query.RetrievedChunk, len(chunks))
	for _, c := range chunks {
		if c.Chunk != nil {
			seen[c.Chunk.ID] = c
		}
	}

	merged := chunks
	for _, variant := range variants[1:] {
		extra, err := e.retriever.Retrieve(ctx, variant)
		if err != nil {
			e.logger.Warn("查询变体检索失败", "variant", variant, "error", err)
			continue
		}
		for _, c := range extra {
			if c.Chunk == nil {
				continue
			}
			existing, ok := seen[c.Chunk.ID]
			if !ok {
				seen[c.Chunk.ID] = c
				merged = append(merged, c)
				continue
			}
			if c.Score > existing.Score {
				existing.Score = c.Score
				existing.ChannelScores = c.ChannelScores
			}
		}
	}
	return merged
}

// buildDependencyContext 把前序依赖的检索结果拼成受限长度的上下文
func (e *Executor) buildDependencyContext(sq *query.SubQuery, done map[string]*query.SubQueryResult) (string, []*query.RetrievedChunk) {
	var depChunks []*query.RetrievedChunk
	for _, dep := range sq.DependsOn {
		depResult, ok := done[dep]
		if !ok {
			continue
		}
		for _, c := range depResult.Chunks {
			if c.Reference {
				continue
			}
			depChunks = append(depChunks, c)
		}
	}
	if len(depChunks) == 0 {
		return "", nil
	}

	sort.SliceStable(depChunks, func(i, j int) bool {
		return depChunks[i].Score > depChunks[j].Score
	})

	contextText := retrieval.BuildContext(depChunks, e.cfg.MaxContextLength, e.cfg.ContextOverlap)

	refs := make([]*query.RetrievedChunk, 0, len(depChunks))
	for _, c := range depChunks {
		refs = append(refs, &query.RetrievedChunk{
			Chunk:     c.Chunk,
			Score:     c.Score,
			Reference: true,
		})
	}
	return contextText, refs
}

// fuseResults 融合所有子查询的分块
// 每个分块得分乘以 0.7+0.3*priority_norm（优先级越靠前权重越高），
// 引用分块再乘降权系数，按分块 ID 去重保留最高分，最后按得分稳定降序。
func (e *Executor) fuseResults(results []*query.SubQueryResult) []*query.RetrievedChunk {
	if len(results) == 0 {
		return nil
	}

	minPriority, maxPriority := results[0].SubQuery.Priority, results[0].SubQuery.Priority
	for _, r := range results {
		if r.SubQuery.Priority < minPriority {
			minPriority = r.SubQuery.Priority
		}
		if r.SubQuery.Priority > maxPriority {
			maxPriority = r.SubQuery.Priority
		}
	}

	best := make(map[string]*query.RetrievedChunk)
	var order []string
	for _, r := range results {
		norm := 1.0
		if maxPriority > minPriority {
			norm = 1.0 - float64(r.SubQuery.Priority-minPriority)/float64(maxPriority-minPriority)
		}
		factor := 0.7 + 0.3*norm

		for _, c := range r.Chunks {
			if c.Chunk == nil {
				continue
			}
			score := c.Score
			if e.cfg.EnableResultFusion {
				score *= factor
			}
			// 引用分块的降权与融合开关无关
			if c.Reference {
				score *= referenceWeight
			}

			existing, ok := best[c.Chunk.ID]
			if !ok {
				best[c.Chunk.ID] = &query.RetrievedChunk{
					Chunk:         c.Chunk,
					Score:         score,
					ChannelScores: c.ChannelScores,
					Reference:     c.Reference,
				}
				order = append(order, c.Chunk.ID)
				continue
			}
			if score > existing.Score {
				existing.Score = score
				existing.ChannelScores = c.ChannelScores
				existing.Reference = c.Reference
			}
		}
	}

	fused := make([]*query.RetrievedChunk, 0, len(order))
	for _, id := range order {
		fused = append(fused, best[id])
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
