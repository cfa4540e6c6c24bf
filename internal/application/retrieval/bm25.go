package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// BM25 参数
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// KeywordHit 关键词检索命中
type KeywordHit struct {
	ChunkID string
	Score   float64
}

// BM25Index 内存关键词索引
// 从分块仓储全量重建，索引和检索共用同一套分词。
type BM25Index struct {
	chunkRepo knowledge.ChunkRepository
	logger    *slog.Logger

	mu        sync.RWMutex
	docFreq   map[string]int            // 词 -> 含该词的分块数
	termFreq  map[string]map[string]int // 分块 ID -> 词 -> 词频
	docLength map[string]int            // 分块 ID -> 词数
	docOrder  []string                  // 分块 ID 的稳定顺序
	avgLength float64
	built     bool
}

// NewBM25Index 创建关键词索引
func NewBM25Index(chunkRepo knowledge.ChunkRepository) *BM25Index {
	return &BM25Index{
		chunkRepo: chunkRepo,
		logger:    log.NewModuleLogger("retrieval", "bm25"),
	}
}

// RebuildFromStore 从分块仓储全量重建索引
func (idx *BM25Index) RebuildFromStore(ctx context.Context) error {
	chunks, err := idx.chunkRepo.ListAll(ctx)
	if err != nil {
		return err
	}

	idx.Rebuild(chunks)
	return nil
}

// Rebuild 用给定分块重建索引
func (idx *BM25Index) Rebuild(chunks []*knowledge.Chunk) {
	docFreq := make(map[string]int)
	termFreq := make(map[string]map[string]int)
	docLength := make(map[string]int)
	docOrder := make([]string, 0, len(chunks))

	totalLength := 0
	for _, chunk := range chunks {
		terms := Tokenize(chunk.Content)
		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}

		termFreq[chunk.ID] = tf
		docLength[chunk.ID] = len(terms)
		docOrder = append(docOrder, chunk.ID)
		totalLength += len(terms)

		for term := range tf {
			docFreq[term]++
		}
	}

	avgLength := 0.0
	if len(chunks) > 0 {
		avgLength = float64(totalLength) / float64(len(chunks))
	}

	idx.mu.Lock()
	idx.docFreq = docFreq
	idx.termFreq = termFreq
	idx.docLength = docLength
	idx.docOrder = docOrder
	idx.avgLength = avgLength
	idx.built = true
	idx.mu.Unlock()

	idx.logger.Info("Keyword index rebuilt",
		"chunks", len(chunks),
		"terms", len(docFreq),
	)
}

// Ready 索引是否已构建
func (idx *BM25Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.built
}

// Search 关键词检索，返回按得分降序的命中，得分相同时保持索引顺序
func (idx *BM25Index) Search(query string, limit int) []*KeywordHit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.built || len(idx.docOrder) == 0 {
		return nil
	}

	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	totalDocs := float64(len(idx.docOrder))

	var hits []*KeywordHit
	for _, chunkID := range idx.docOrder {
		tf := idx.termFreq[chunkID]
		length := float64(idx.docLength[chunkID])

		score := 0.0
		for _, term := range queryTerms {
			freq, ok := tf[term]
			if !ok {
				continue
			}

			df := float64(idx.docFreq[term])
			// BM25 的 IDF，+1 保证非负
			idf := math.Log((totalDocs-df+0.5)/(df+0.5) + 1)

			numerator := float64(freq) * (bm25K1 + 1)
			denominator := float64(freq) + bm25K1*(1-bm25B+bm25B*length/idx.avgLength)
			score += idf * numerator / denominator
		}

		if score > 0 {
			hits = append(hits, &KeywordHit{ChunkID: chunkID, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	return hits
}

// Tokenize 分词：拉丁词小写切分，CJK 连续串按二元组切分（单字串保留单字）
func Tokenize(text string) []string {
	var tokens []string
	var latin strings.Builder
	var cjkRun []rune

	flushLatin := func() {
		if latin.Len() > 0 {
			tokens = append(tokens, strings.ToLower(latin.String()))
			latin.Reset()
		}
	}

	flushCJK := func() {
		if len(cjkRun) == 1 {
			tokens = append(tokens, string(cjkRun))
		} else {
			for i := 0; i+1 < len(cjkRun); i++ {
				tokens = append(tokens, string(cjkRun[i:i+2]))
			}
		}
		cjkRun = nil
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			cjkRun = append(cjkRun, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if len(cjkRun) > 0 {
				flushCJK()
			}
			latin.WriteRune(r)
		default:
			flushLatin()
			if len(cjkRun) > 0 {
				flushCJK()
			}
		}
	}
	flushLatin()
	if len(cjkRun) > 0 {
		flushCJK()
	}

	return tokens
}
