package retrieval

import (
	"log/slog"
	"math"
	"sort"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/domain/query"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// 重排序各因子权重
const (
	rerankSemanticWeight    = 0.4
	rerankKeywordWeight     = 0.3
	rerankContentTypeWeight = 0.2
	rerankPositionWeight    = 0.1

	// 得分差小于 epsilon 视为并列，按内容类型偏好决定先后
	rerankEpsilon = 1e-6
)

// Reranker 检索结果重排序器
// 综合语义得分、关键词密度、内容类型偏好和原始位置四个因子。
type Reranker struct {
	cfg    config.RetrievalConfig
	logger *slog.Logger
}

// NewReranker 创建重排序器
func NewReranker(pipelineCfg *config.PipelineConfig) *Reranker {
	return &Reranker{
		cfg:    pipelineCfg.Retrieval,
		logger: log.NewModuleLogger("retrieval", "reranker"),
	}
}

// Rerank 对检索结果重排序并截取前 rerank_top_k 条
// 输入顺序视为检索排名，用于位置因子；并列时偏好 text > table > image。
func (r *Reranker) Rerank(queryText string, chunks []*query.RetrievedChunk) []*query.RetrievedChunk {
	if len(chunks) == 0 {
		return chunks
	}

	queryTerms := Tokenize(queryText)

	type scored struct {
		chunk *query.RetrievedChunk
		score float64
		order int
	}

	maxRetrieval := 0.0
	for _, c := range chunks {
		if c.Score > maxRetrieval {
			maxRetrieval = c.Score
		}
	}

	items := make([]*scored, len(chunks))
	for i, c := range chunks {
		semantic := 0.0
		if maxRetrieval > 0 {
			semantic = c.Score / maxRetrieval
		}

		keyword := keywordDensity(queryTerms, c.Chunk.Content)
		typePref := c.Chunk.ContentType.TypeWeight()
		position := 1.0 - float64(i)/float64(len(chunks))

		items[i] = &scored{
			chunk: c,
			order: i,
			score: rerankSemanticWeight*semantic +
				rerankKeywordWeight*keyword +
				rerankContentTypeWeight*typePref +
				rerankPositionWeight*position,
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	// 排序后对近并列的相邻结果按内容类型偏好调整先后，
	// 比较只发生在邻居之间，避免 epsilon 并列破坏排序的传递性
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			if math.Abs(items[j-1].score-items[j].score) >= rerankEpsilon {
				break
			}
			if contentTypeRank(items[j].chunk.Chunk.ContentType) >= contentTypeRank(items[j-1].chunk.Chunk.ContentType) {
				break
			}
			items[j-1], items[j] = items[j], items[j-1]
		}
	}

	limit := r.cfg.RerankTopK
	if limit > len(items) {
		limit = len(items)
	}

	result := make([]*query.RetrievedChunk, limit)
	for i := 0; i < limit; i++ {
		result[i] = items[i].chunk
	}

	return result
}

// keywordDensity 查询词在内容中的覆盖率
func keywordDensity(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	contentTerms := Tokenize(content)
	termSet := make(map[string]struct{}, len(contentTerms))
	for _, term := range contentTerms {
		termSet[term] = struct{}{}
	}

	matched := 0
	for _, term := range queryTerms {
		if _, ok := termSet[term]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(queryTerms))
}

// contentTypeRank 内容类型偏好顺序，值越小越靠前
func contentTypeRank(t knowledge.ContentType) int {
	switch t {
	case knowledge.ContentTypeText, knowledge.ContentTypeCode:
		return 0
	case knowledge.ContentTypeTable:
		return 1
	case knowledge.ContentTypeImage:
		return 2
	default:
		return 3
	}
}
