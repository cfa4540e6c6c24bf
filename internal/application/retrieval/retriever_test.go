package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 测试用向量化桩
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeVectorSearcher 测试用向量检索桩
type fakeVectorSearcher struct {
	hits []*vector.ScoredChunkRef
	err  error
}

func (f *fakeVectorSearcher) Search(ctx context.Context, v []float32, limit int) ([]*vector.ScoredChunkRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// fakeChunkRepo 测试用分块仓储桩
type fakeChunkRepo struct {
	chunks map[string]*knowledge.Chunk
}

func newFakeChunkRepo(chunks ...*knowledge.Chunk) *fakeChunkRepo {
	m := make(map[string]*knowledge.Chunk)
	for _, c := range chunks {
		m[c.ID] = c
	}
	return &fakeChunkRepo{chunks: m}
}

func (f *fakeChunkRepo) SaveBatch(ctx context.Context, chunks []*knowledge.Chunk) error { return nil }

func (f *fakeChunkRepo) GetByID(ctx context.Context, id string) (*knowledge.Chunk, error) {
	if c, ok := f.chunks[id]; ok {
		return c, nil
	}
	return nil, knowledge.ErrChunkNotFound
}

func (f *fakeChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]*knowledge.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkRepo) ListAll(ctx context.Context) ([]*knowledge.Chunk, error) {
	var all []*knowledge.Chunk
	for _, c := range f.chunks {
		all = append(all, c)
	}
	return all, nil
}

func (f *fakeChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error { return nil }
func (f *fakeChunkRepo) Count(ctx context.Context) (int, error)                        { return len(f.chunks), nil }

func typedChunk(id, content string, ct knowledge.ContentType) *knowledge.Chunk {
	return &knowledge.Chunk{
		ID:          id,
		DocumentID:  "d1",
		ContentType: ct,
		Content:     content,
		SourcePath:  "/kb/story.md",
	}
}

func newTestRetriever(embedder QueryEmbedder, searcher VectorSearcher, repo knowledge.ChunkRepository, chunks []*knowledge.Chunk) *HybridRetriever {
	idx := NewBM25Index(nil)
	idx.Rebuild(chunks)
	return NewHybridRetriever(embedder, searcher, idx, repo, config.DefaultPipelineConfig())
}

func TestHybridRetriever_WeightedMerge(t *testing.T) {
	c1 := typedChunk("c1", "主人公是一位年轻的旅人。", knowledge.ContentTypeText)
	c2 := typedChunk("c2", "| 角色 | 动机 |", knowledge.ContentTypeTable)
	repo := newFakeChunkRepo(c1, c2)

	searcher := &fakeVectorSearcher{hits: []*vector.ScoredChunkRef{
		{ChunkID: "c1", ContentType: knowledge.ContentTypeText, Score: 0.9},
		{ChunkID: "c2", ContentType: knowledge.ContentTypeTable, Score: 0.8},
	}}

	r := newTestRetriever(&fakeEmbedder{}, searcher, repo, []*knowledge.Chunk{c1, c2})

	results, err := r.Retrieve(context.Background(), "主人公是谁")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// c1 同时命中向量和关键词通道，且类型权重更高，应排第一
	assert.Equal(t, "c1", results[0].Chunk.ID)

	// c1: bm25 归一化后为 1.0，综合 = 0.3*1.0 + 0.5*0.9 + 0.2*1.0 = 0.95
	assert.InDelta(t, 0.95, results[0].Score, 0.001, "综合得分应为三通道加权和")

	// c2: 无关键词命中，综合 = 0.5*0.8 + 0.2*0.9 = 0.58
	assert.InDelta(t, 0.58, results[1].Score, 0.001)

	assert.InDelta(t, 0.9, results[0].ChannelScores[ChannelVector], 0.001)
	assert.InDelta(t, 1.0, results[0].ChannelScores[ChannelBM25], 0.001)
}

func TestHybridRetriever_VectorThreshold(t *testing.T) {
	c1 := typedChunk("c1", "无关键词匹配的内容块。", knowledge.ContentTypeText)
	repo := newFakeChunkRepo(c1)

	// 向量得分低于 0.7 阈值，应被过滤
	searcher := &fakeVectorSearcher{hits: []*vector.ScoredChunkRef{
		{ChunkID: "c1", ContentType: knowledge.ContentTypeText, Score: 0.5},
	}}

	r := newTestRetriever(&fakeEmbedder{}, searcher, repo, []*knowledge.Chunk{c1})

	results, err := r.Retrieve(context.Background(), "quantum theory")
	require.NoError(t, err)
	assert.Empty(t, results, "低于阈值的向量命中且无关键词命中时应无结果")
}

func TestHybridRetriever_VectorChannelDegrades(t *testing.T) {
	c1 := typedChunk("c1", "主人公是一位年轻的旅人。", knowledge.ContentTypeText)
	repo := newFakeChunkRepo(c1)

	// 向量通道失败，关键词通道仍然可用
	searcher := &fakeVectorSearcher{err: errors.New("qdrant down")}

	r := newTestRetriever(&fakeEmbedder{}, searcher, repo, []*knowledge.Chunk{c1})

	results, err := r.Retrieve(context.Background(), "主人公")
	require.NoError(t, err, "单通道失败应降级而不是报错")
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Zero(t, results[0].ChannelScores[ChannelVector])
}

func TestHybridRetriever_AllChannelsFailed(t *testing.T) {
	repo := newFakeChunkRepo()
	searcher := &fakeVectorSearcher{err: errors.New("qdrant down")}

	// 关键词索引未构建 + 向量失败 = 检索不可用
	idx := NewBM25Index(nil)
	r := NewHybridRetriever(&fakeEmbedder{}, searcher, idx, repo, config.DefaultPipelineConfig())

	_, err := r.Retrieve(context.Background(), "任何查询")
	assert.ErrorIs(t, err, query.ErrRetrievalUnavailable)
}

func TestHybridRetriever_StableTieBreak(t *testing.T) {
	// 两个分块得分完全相同，应保持首次出现顺序
	c1 := typedChunk("c1", "相同内容的分块。", knowledge.ContentTypeText)
	c2 := typedChunk("c2", "相同内容的分块。", knowledge.ContentTypeText)
	repo := newFakeChunkRepo(c1, c2)

	searcher := &fakeVectorSearcher{hits: []*vector.ScoredChunkRef{
		{ChunkID: "c1", ContentType: knowledge.ContentTypeText, Score: 0.8},
		{ChunkID: "c2", ContentType: knowledge.ContentTypeText, Score: 0.8},
	}}

	idx := NewBM25Index(nil)
	idx.Rebuild(nil)
	idx.Rebuild([]*knowledge.Chunk{})
	r := NewHybridRetriever(&fakeEmbedder{}, searcher, idx, repo, config.DefaultPipelineConfig())

	results, err := r.Retrieve(context.Background(), "quantum")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].Chunk.ID, "平分时保持原始顺序")
	assert.Equal(t, "c2", results[1].Chunk.ID)
}

func TestHybridRetriever_MissingChunkSkipped(t *testing.T) {
	c1 := typedChunk("c1", "存在的分块。", knowledge.ContentTypeText)
	repo := newFakeChunkRepo(c1)

	searcher := &fakeVectorSearcher{hits: []*vector.ScoredChunkRef{
		{ChunkID: "c1", ContentType: knowledge.ContentTypeText, Score: 0.9},
		{ChunkID: "ghost", ContentType: knowledge.ContentTypeText, Score: 0.95},
	}}

	r := newTestRetriever(&fakeEmbedder{}, searcher, repo, []*knowledge.Chunk{c1})

	results, err := r.Retrieve(context.Background(), "分块")
	require.NoError(t, err)
	require.Len(t, results, 1, "元数据缺失的分块应被跳过")
	assert.Equal(t, "c1", results[0].Chunk.ID)
}
