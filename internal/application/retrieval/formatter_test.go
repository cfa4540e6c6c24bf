package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/domain/query"
)

func TestSmartTruncate_ShortTextUnchanged(t *testing.T) {
	text := "这段文本很短。"
	assert.Equal(t, text, SmartTruncate(text, 100, 0.2))
}

func TestSmartTruncate_SentenceBoundary(t *testing.T) {
	// 句号落在预算的最后 30% 内，应在句号处截断
	text := strings.Repeat("甲", 90) + "。" + strings.Repeat("乙", 50)
	result := SmartTruncate(text, 100, 0.2)
	assert.Equal(t, 91, len([]rune(result)))
	assert.True(t, strings.HasSuffix(result, "。"))
}

func TestSmartTruncate_SentenceBoundaryTooEarly(t *testing.T) {
	// 句号在预算的前 70%，不应被采用；无空白时退回硬截断
	text := strings.Repeat("甲", 30) + "。" + strings.Repeat("乙", 100)
	result := SmartTruncate(text, 100, 0.2)
	assert.Equal(t, 100, len([]rune(result)))
}

func TestSmartTruncate_WhitespaceFallback(t *testing.T) {
	// 没有句子边界时在空白处截断
	text := strings.Repeat("a", 80) + " " + strings.Repeat("b", 40)
	result := SmartTruncate(text, 100, 0.2)
	assert.Equal(t, strings.Repeat("a", 80), result)
}

func TestSmartTruncate_HardCut(t *testing.T) {
	// 连续无标点无空白的文本只能硬截断
	text := strings.Repeat("x", 200)
	result := SmartTruncate(text, 100, 0.2)
	assert.Equal(t, 100, len([]rune(result)))
}

func TestSmartTruncate_NeverExceedsBudget(t *testing.T) {
	texts := []string{
		strings.Repeat("中文内容测试。", 50),
		strings.Repeat("english words here. ", 30),
		strings.Repeat("混合mixed内容content ", 40),
	}
	for _, text := range texts {
		for _, budget := range []int{10, 50, 100, 500} {
			result := SmartTruncate(text, budget, 0.2)
			assert.LessOrEqual(t, len([]rune(result)), budget)
		}
	}
}

func TestSmartTruncate_ZeroBudget(t *testing.T) {
	assert.Equal(t, "", SmartTruncate("任何内容", 0, 0.2))
}

func TestBuildContext_SourceAttribution(t *testing.T) {
	chunks := []*query.RetrievedChunk{
		{
			Chunk: &knowledge.Chunk{
				ID:          "c1",
				Content:     "主人公是一名侦探。",
				ContentType: knowledge.ContentTypeText,
				Section:     "人物介绍",
				SourcePath:  "docs/story.md",
			},
			Score: 0.9,
		},
		{
			Chunk: &knowledge.Chunk{
				ID:          "c2",
				Content:     "故事发生在上海。",
				ContentType: knowledge.ContentTypeText,
				SourcePath:  "docs/setting.md",
			},
			Score: 0.8,
		},
	}

	ctx := BuildContext(chunks, 1000, 0.2)
	require.NotEmpty(t, ctx)
	assert.Contains(t, ctx, "[片段 1 | 来源: docs/story.md / 人物介绍]")
	assert.Contains(t, ctx, "[片段 2 | 来源: docs/setting.md]")
	assert.Contains(t, ctx, "主人公是一名侦探。")
	assert.Contains(t, ctx, "故事发生在上海。")
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil, 1000, 0.2))
}

func TestBuildContext_RespectsBudget(t *testing.T) {
	var chunks []*query.RetrievedChunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, &query.RetrievedChunk{
			Chunk: &knowledge.Chunk{
				ID:         "c",
				Content:    strings.Repeat("内容很长。", 30),
				SourcePath: "docs/long.md",
			},
			Score: 0.5,
		})
	}

	ctx := BuildContext(chunks, 200, 0.2)
	assert.LessOrEqual(t, len([]rune(ctx)), 200)
}
