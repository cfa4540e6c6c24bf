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

func TestSynthesizer_EmptyChunksReturnsNoInformation(t *testing.T) {
	synthesizer := NewSynthesizer(&fakeCompleter{}, config.DefaultPipelineConfig())

	answer, used := synthesizer.Synthesize(context.Background(), "主人公是谁", nil)
	assert.Equal(t, NoInformationAnswer, answer)
	assert.False(t, used)
}

func TestSynthesizer_LLMAnswer(t *testing.T) {
	completer := &fakeCompleter{response: "  故事的主人公是张三。  "}
	synthesizer := NewSynthesizer(completer, config.DefaultPipelineConfig())

	chunks := []*query.RetrievedChunk{rchunk("c1", "主人公是张三。", 0.9)}
	answer, used := synthesizer.Synthesize(context.Background(), "主人公是谁", chunks)

	assert.Equal(t, "故事的主人公是张三。", answer)
	assert.True(t, used)
	assert.Equal(t, 1, completer.calls)
}

func TestSynthesizer_TruncatesLongAnswer(t *testing.T) {
	completer := &fakeCompleter{response: strings.Repeat("答案内容很长。", 1000)}
	synthesizer := NewSynthesizer(completer, config.DefaultPipelineConfig())

	chunks := []*query.RetrievedChunk{rchunk("c1", "内容", 0.9)}
	answer, used := synthesizer.Synthesize(context.Background(), "问题", chunks)

	assert.True(t, used)
	assert.LessOrEqual(t, len([]rune(answer)), config.DefaultPipelineConfig().Synthesis.MaxLength)
}

func TestSynthesizer_FallbackConcatenation(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("service unavailable")}
	synthesizer := NewSynthesizer(completer, config.DefaultPipelineConfig())

	chunks := []*query.RetrievedChunk{
		rchunk("c1", "主人公是张三。", 0.9),
		rchunk("c2", "故事发生在上海。", 0.6),
	}
	answer, used := synthesizer.Synthesize(context.Background(), "主人公是谁", chunks)

	assert.False(t, used)
	assert.Contains(t, answer, "主人公是张三。")
	assert.Contains(t, answer, "故事发生在上海。")
	// 默认配置带来源引用
	assert.Contains(t, answer, "docs/test.md")
}

func TestSynthesizer_EmptyLLMAnswerFallsBack(t *testing.T) {
	completer := &fakeCompleter{response: "   "}
	synthesizer := NewSynthesizer(completer, config.DefaultPipelineConfig())

	chunks := []*query.RetrievedChunk{rchunk("c1", "主人公是张三。", 0.9)}
	answer, used := synthesizer.Synthesize(context.Background(), "主人公是谁", chunks)

	assert.False(t, used)
	assert.Contains(t, answer, "主人公是张三。")
}

func TestSynthesizer_ConciseStylePrompt(t *testing.T) {
	var gotSystem string
	completer := &fakeCompleter{handler: func(_ string, opts *llm.CompleteOptions) (string, error) {
		gotSystem = opts.SystemPrompt
		return "张三。", nil
	}}

	cfg := config.DefaultPipelineConfig()
	cfg.Synthesis.Style = "concise"
	synthesizer := NewSynthesizer(completer, cfg)

	chunks := []*query.RetrievedChunk{rchunk("c1", "主人公是张三。", 0.9)}
	_, used := synthesizer.Synthesize(context.Background(), "主人公是谁", chunks)

	require.True(t, used)
	assert.Contains(t, gotSystem, "简短")
}
