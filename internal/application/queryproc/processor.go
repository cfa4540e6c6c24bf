package queryproc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// Processor 查询处理入口
// 串起意图分析、查询分解、多步执行和答案合成四个阶段。
// 所有 LLM 依赖的阶段都有确定性兜底，唯一的"无答案"出口是检索完全不可用。
type Processor struct {
	analyzer    *IntentAnalyzer
	decomposer  *Decomposer
	executor    *Executor
	synthesizer *Synthesizer
	logger      *slog.Logger
}

// NewProcessor 创建查询处理器
func NewProcessor(
	analyzer *IntentAnalyzer,
	decomposer *Decomposer,
	executor *Executor,
	synthesizer *Synthesizer,
) *Processor {
	return &Processor{
		analyzer:    analyzer,
		decomposer:  decomposer,
		executor:    executor,
		synthesizer: synthesizer,
		logger:      log.NewModuleLogger("queryproc", "processor"),
	}
}

// Process 处理一次查询请求
func (p *Processor) Process(ctx context.Context, queryText string) (*query.ProcessResult, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	start := time.Now()
	ctx = log.WithQueryID(ctx, uuid.NewString())
	logger := p.logger.With(log.LogCtxFromContext(ctx)...)
	logger.Info("开始处理查询", "query", queryText)

	intent := p.analyzer.Analyze(ctx, queryText)
	logger.Debug("意图分析完成",
		"intent_type", intent.IntentType,
		"question_type", intent.QuestionType,
		"complexity", intent.ComplexityScore,
		"requires_decomposition", intent.RequiresDecomposition,
		"source", intent.Source)

	decomposition := p.decomposer.Decompose(ctx, queryText, intent)
	if decomposition.Decomposed {
		logger.Info("查询已分解", "sub_queries", len(decomposition.SubQueries))
	}

	results, fused, unavailable := p.executor.Execute(ctx, decomposition)

	var answer string
	synthesisUsed := false
	if unavailable {
		logger.Warn("检索完全不可用，返回无信息回答")
		answer = NoInformationAnswer
	} else {
		answer, synthesisUsed = p.synthesizer.Synthesize(ctx, queryText, fused)
	}

	summaries := make([]*query.SubQuerySummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, &query.SubQuerySummary{
			Query:        r.SubQuery.Query,
			Intent:       r.SubQuery.Intent,
			Priority:     r.SubQuery.Priority,
			ResultsCount: countRetrieved(r.Chunks),
		})
	}

	elapsed := time.Since(start)
	logger.Info("查询处理完成",
		"decomposed", decomposition.Decomposed,
		"synthesis_used", synthesisUsed,
		"chunks", len(fused),
		"elapsed_ms", elapsed.Milliseconds())

	return &query.ProcessResult{
		Answer:          answer,
		QueryType:       intent.IntentType,
		IntentAnalysis:  intent,
		SubQueries:      summaries,
		ExecutionPlan:   decomposition.ExecutionPlan,
		RetrievedChunks: fused,
		ProcessingInfo: query.ProcessingInfo{
			DecompositionUsed: decomposition.Decomposed,
			SynthesisUsed:     synthesisUsed,
		},
		ElapsedMs: elapsed.Milliseconds(),
	}, nil
}

// countRetrieved 统计直接检索（非引用）的分块数
func countRetrieved(chunks []*query.RetrievedChunk) int {
	count := 0
	for _, c := range chunks {
		if !c.Reference {
			count++
		}
	}
	return count
}
