package queryproc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/llm"
)

func newProcessor(completer Completer, retriever Retriever, cfg *config.PipelineConfig) *Processor {
	return NewProcessor(
		NewIntentAnalyzer(completer, cfg),
		NewDecomposer(completer, cfg),
		NewExecutor(retriever, passReranker{}, NewQueryOptimizer(completer, cfg), cfg),
		NewSynthesizer(completer, cfg),
	)
}

// scriptedCompleter 按系统提示词区分意图分析、查询改写、查询分解和答案合成四类调用
func scriptedCompleter(intentJSON, decomposeJSON, synthesisAnswer string) *fakeCompleter {
	return &fakeCompleter{handler: func(_ string, opts *llm.CompleteOptions) (string, error) {
		switch {
		case strings.Contains(opts.SystemPrompt, "意图"):
			return intentJSON, nil
		case strings.Contains(opts.SystemPrompt, "变体"):
			return "", nil
		case strings.Contains(opts.SystemPrompt, "分解"):
			return decomposeJSON, nil
		default:
			return synthesisAnswer, nil
		}
	}}
}

func TestProcessor_SimpleFactualQuery(t *testing.T) {
	// LLM 全程不可用，规则策略兜底
	completer := &fakeCompleter{err: errors.New("connection refused")}
	retriever := &fakeRetriever{handler: func(string) ([]*query.RetrievedChunk, error) {
		return []*query.RetrievedChunk{rchunk("c1", "主人公是张三。", 0.9)}, nil
	}}
	processor := newProcessor(completer, retriever, config.DefaultPipelineConfig())

	result, err := processor.Process(context.Background(), "这个故事的主人公是谁？")
	require.NoError(t, err)

	assert.Equal(t, query.IntentSimple, result.QueryType)
	assert.Equal(t, "rule", result.IntentAnalysis.Source)
	assert.False(t, result.ProcessingInfo.DecompositionUsed)
	assert.False(t, result.ProcessingInfo.SynthesisUsed)
	require.Len(t, result.SubQueries, 1)
	assert.Equal(t, "这个故事的主人公是谁？", result.SubQueries[0].Query)
	assert.Equal(t, 1, result.SubQueries[0].ResultsCount)
	assert.Equal(t, [][]string{{"q1"}}, result.ExecutionPlan)
	// 兜底答案拼接了检索到的内容
	assert.Contains(t, result.Answer, "主人公是张三。")
	require.Len(t, result.RetrievedChunks, 1)
}

func TestProcessor_ComparativeQueryDecomposed(t *testing.T) {
	completer := scriptedCompleter(
		`{"intent_type": "comparative", "complexity_score": 6.0, "key_entities": ["角色", "性格", "动机"], "question_type": "comparative", "reasoning": "查询要求对比多个角色"}`,
		`[
			{"id": "q1", "query": "角色A的性格和动机", "intent": "factual", "priority": 1, "depends_on": []},
			{"id": "q2", "query": "角色B的性格和动机", "intent": "factual", "priority": 1, "depends_on": []},
			{"id": "q3", "query": "对比角色A和角色B", "intent": "comparative", "priority": 2, "depends_on": ["q1", "q2"]}
		]`,
		"角色A果断勇敢，角色B优柔寡断，两人的动机分别是复仇与守护。",
	)
	retriever := &fakeRetriever{handler: func(text string) ([]*query.RetrievedChunk, error) {
		switch {
		case strings.Contains(text, "角色A"):
			return []*query.RetrievedChunk{rchunk("ca", "角色A果断勇敢，为复仇而来。", 0.85)}, nil
		case strings.Contains(text, "角色B"):
			return []*query.RetrievedChunk{rchunk("cb", "角色B优柔寡断，一心守护家园。", 0.8)}, nil
		default:
			return nil, nil
		}
	}}
	processor := newProcessor(completer, retriever, config.DefaultPipelineConfig())

	result, err := processor.Process(context.Background(), "比较故事中不同角色的性格特点和动机")
	require.NoError(t, err)

	assert.Equal(t, query.IntentComparative, result.QueryType)
	assert.True(t, result.ProcessingInfo.DecompositionUsed)
	assert.True(t, result.ProcessingInfo.SynthesisUsed)
	require.Len(t, result.SubQueries, 3)
	assert.LessOrEqual(t, len(result.SubQueries), 5)
	assert.Equal(t, [][]string{{"q1", "q2"}, {"q3"}}, result.ExecutionPlan)
	assert.Contains(t, result.Answer, "复仇")
	assert.NotEmpty(t, result.RetrievedChunks)
}

func TestProcessor_EmptyQueryRejected(t *testing.T) {
	processor := newProcessor(&fakeCompleter{}, &fakeRetriever{}, config.DefaultPipelineConfig())

	_, err := processor.Process(context.Background(), "   ")
	assert.Error(t, err)
}

func TestProcessor_RetrievalUnavailable(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	retriever := &fakeRetriever{handler: func(string) ([]*query.RetrievedChunk, error) {
		return nil, query.ErrRetrievalUnavailable
	}}
	processor := newProcessor(completer, retriever, config.DefaultPipelineConfig())

	result, err := processor.Process(context.Background(), "这个故事的主人公是谁？")
	require.NoError(t, err)

	// 检索完全不可用时明确告知没有信息，而不是编造答案
	assert.Equal(t, NoInformationAnswer, result.Answer)
	assert.False(t, result.ProcessingInfo.SynthesisUsed)
	assert.Empty(t, result.RetrievedChunks)
}

func TestProcessor_NoResultsNoFabrication(t *testing.T) {
	completer := scriptedCompleter(
		`{"intent_type": "simple", "complexity_score": 1.0, "key_entities": [], "question_type": "factual"}`,
		"[]",
		"不应该被调用到的答案",
	)
	retriever := &fakeRetriever{handler: func(string) ([]*query.RetrievedChunk, error) {
		return nil, nil
	}}
	processor := newProcessor(completer, retriever, config.DefaultPipelineConfig())

	result, err := processor.Process(context.Background(), "这个故事的主人公是谁？")
	require.NoError(t, err)

	// 检索可用但没有命中时同样不编造
	assert.Equal(t, NoInformationAnswer, result.Answer)
	assert.False(t, result.ProcessingInfo.SynthesisUsed)
}
