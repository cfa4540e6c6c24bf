package ingest

import (
	"strings"
	"testing"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	chunker, err := NewChunker(config.DefaultPipelineConfig())
	require.NoError(t, err)
	return chunker
}

func textSection(title string, paras ...string) knowledge.Section {
	sec := knowledge.Section{Title: title, Level: 2}
	for _, p := range paras {
		sec.Blocks = append(sec.Blocks, knowledge.Block{
			ContentType: knowledge.ContentTypeText,
			Content:     p,
		})
	}
	return sec
}

func TestChunkDocument_Basic(t *testing.T) {
	chunker := newTestChunker(t)

	doc := &knowledge.ParsedDocument{
		Path:  "/kb/story.md",
		Title: "故事",
		Sections: []knowledge.Section{
			textSection("第一章", strings.Repeat("主人公在旅途中遇到了许多出人意料的事情。", 5)),
		},
	}

	chunks := chunker.ChunkDocument(doc, "d1")
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, "d1", chunk.DocumentID)
		assert.Equal(t, i, chunk.Seq)
		assert.Equal(t, "第一章", chunk.Section)
		assert.Equal(t, "/kb/story.md", chunk.SourcePath)
		assert.NotEmpty(t, chunk.ID)
		assert.Positive(t, chunk.TokenCount)
	}
}

func TestChunkDocument_NeverExceedsBudget(t *testing.T) {
	chunker := newTestChunker(t)
	budget := config.DefaultPipelineConfig().Chunking.ChunkSize

	// 一个远超预算的长段落
	longPara := strings.Repeat("这是一个很长的句子，讲述了一段曲折的旅程。", 200)
	doc := &knowledge.ParsedDocument{
		Path:     "/kb/long.md",
		Sections: []knowledge.Section{textSection("长章节", longPara)},
	}

	chunks := chunker.ChunkDocument(doc, "d1")
	require.Greater(t, len(chunks), 1, "超长段落应被切分为多块")

	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, budget,
			"分块 token 数不能超过预算")
	}
}

func TestChunkDocument_TableStandalone(t *testing.T) {
	chunker := newTestChunker(t)

	doc := &knowledge.ParsedDocument{
		Path: "/kb/data.md",
		Sections: []knowledge.Section{
			{
				Title: "数据",
				Blocks: []knowledge.Block{
					{ContentType: knowledge.ContentTypeText, Content: strings.Repeat("前置说明文字，用来铺垫后面的表格。", 3)},
					{ContentType: knowledge.ContentTypeTable, Content: "| 角色 | 动机 |\n|---|---|\n| 旅人 | 寻找家园 |"},
					{ContentType: knowledge.ContentTypeImage, Content: "![地图](map.png)"},
				},
			},
		},
	}

	chunks := chunker.ChunkDocument(doc, "d1")
	require.Len(t, chunks, 3)
	assert.Equal(t, knowledge.ContentTypeText, chunks[0].ContentType)
	assert.Equal(t, knowledge.ContentTypeTable, chunks[1].ContentType)
	assert.Equal(t, knowledge.ContentTypeImage, chunks[2].ContentType)
}

func TestChunkDocument_ShortChunksMerged(t *testing.T) {
	chunker := newTestChunker(t)

	doc := &knowledge.ParsedDocument{
		Path: "/kb/short.md",
		Sections: []knowledge.Section{
			textSection("章节",
				strings.Repeat("这是一段足够长的正文内容，描述了完整的情节发展经过。", 3),
			),
		},
	}
	// 人为构造一个短块跟在长块后面：直接走 mergeShortChunks
	chunks := chunker.ChunkDocument(doc, "d1")
	base := len(chunks)

	doc.Sections[0].Blocks = append(doc.Sections[0].Blocks, knowledge.Block{
		ContentType: knowledge.ContentTypeText,
		Content:     "短。",
	})
	merged := chunker.ChunkDocument(doc, "d1")

	assert.Equal(t, base, len(merged), "过短的文本块应向前合并而不是独立成块")
	last := merged[len(merged)-1]
	assert.Contains(t, last.Content, "短。")
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"中文句号", "第一句。第二句。第三句。", 3},
		{"混合标点", "真的吗？当然！就是这样。", 3},
		{"英文句子", "First sentence. Second one. ", 2},
		{"小数不切分", "价格是 3.14 元。", 1},
		{"无标点", "没有结尾标点的内容", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, splitSentences(tt.input), tt.expected)
		})
	}
}
