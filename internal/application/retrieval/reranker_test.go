package retrieval

import (
	"testing"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retrieved(id, content string, ct knowledge.ContentType, score float64) *query.RetrievedChunk {
	return &query.RetrievedChunk{
		Chunk: typedChunk(id, content, ct),
		Score: score,
	}
}

func TestReranker_KeywordDensityBoost(t *testing.T) {
	reranker := NewReranker(config.DefaultPipelineConfig())

	// c2 检索得分略低，但关键词覆盖率高
	chunks := []*query.RetrievedChunk{
		retrieved("c1", "无关的描述内容，没有提到查询词。", knowledge.ContentTypeText, 0.90),
		retrieved("c2", "主人公的性格坚毅，主人公的动机是寻找家园。", knowledge.ContentTypeText, 0.88),
	}

	results := reranker.Rerank("主人公的性格", chunks)
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].Chunk.ID, "关键词覆盖率高的分块应被提前")
}

func TestReranker_TopKLimit(t *testing.T) {
	reranker := NewReranker(config.DefaultPipelineConfig())

	var chunks []*query.RetrievedChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, retrieved(
			string(rune('a'+i)), "内容。", knowledge.ContentTypeText, float64(10-i)/10,
		))
	}

	results := reranker.Rerank("内容", chunks)
	assert.Len(t, results, 5, "重排序后应只保留 rerank_top_k 条")
}

func TestReranker_ContentTypeFactor(t *testing.T) {
	reranker := NewReranker(config.DefaultPipelineConfig())

	// 检索得分和位置相当接近时，类型偏好因子应让文本压过图片
	chunks := []*query.RetrievedChunk{
		retrieved("img", "角色动机对比。", knowledge.ContentTypeImage, 0.8),
		retrieved("txt", "角色动机对比。", knowledge.ContentTypeText, 0.82),
		retrieved("pad", "无关内容。", knowledge.ContentTypeText, 0.3),
	}

	results := reranker.Rerank("动机", chunks)
	require.NotEmpty(t, results)
	assert.Equal(t, "txt", results[0].Chunk.ID)
}

func TestReranker_EqualScoreTypeTiebreak(t *testing.T) {
	reranker := NewReranker(config.DefaultPipelineConfig())

	// 构造综合得分完全相等的图片和文本：
	// 图片 0.4*1.0 + 0.2*0.8 + 0.1*1.0 = 0.66
	// 文本 0.4*(0.885/0.9) + 0.2*1.0 + 0.1*(2/3) = 0.66
	// 查询词与内容无重叠，关键词因子恒为零
	chunks := []*query.RetrievedChunk{
		retrieved("img", "插图展示了地图。", knowledge.ContentTypeImage, 0.9),
		retrieved("txt", "这一段讲了航线。", knowledge.ContentTypeText, 0.885),
		retrieved("pad", "另一段补充说明。", knowledge.ContentTypeText, 0.3),
	}

	results := reranker.Rerank("动机", chunks)
	require.Len(t, results, 3)
	// 并列时文本优先，即使图片在输入里排得更靠前
	assert.Equal(t, "txt", results[0].Chunk.ID)
	assert.Equal(t, "img", results[1].Chunk.ID)
}

func TestContentTypeRank(t *testing.T) {
	// 偏好顺序：text > table > image
	assert.Less(t, contentTypeRank(knowledge.ContentTypeText), contentTypeRank(knowledge.ContentTypeTable))
	assert.Less(t, contentTypeRank(knowledge.ContentTypeTable), contentTypeRank(knowledge.ContentTypeImage))
}

func TestReranker_Empty(t *testing.T) {
	reranker := NewReranker(config.DefaultPipelineConfig())
	assert.Empty(t, reranker.Rerank("查询", nil))
}

func TestKeywordDensity(t *testing.T) {
	terms := Tokenize("主人公的性格")
	full := keywordDensity(terms, "主人公的性格非常坚毅。")
	none := keywordDensity(terms, "完全无关。")
	partial := keywordDensity(terms, "主人公出场了。")

	assert.InDelta(t, 1.0, full, 0.001)
	assert.Zero(t, none)
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}
