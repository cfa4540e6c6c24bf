package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/log"
	"github.com/knowbase/backend/internal/infrastructure/markdown"
)

// Embedder 文本向量化接口
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	GetVectorDimension(ctx context.Context) (int, error)
}

// VectorIndex 向量索引接口
type VectorIndex interface {
	EnsureCollection(ctx context.Context, vectorSize uint64) error
	UpsertChunks(ctx context.Context, chunks []*knowledge.Chunk, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, documentID string) error
	DropCollection(ctx context.Context) error
}

// KeywordIndexRebuilder 关键词索引重建接口，索引更新后回调
type KeywordIndexRebuilder interface {
	RebuildFromStore(ctx context.Context) error
}

// Stats 一次目录索引的统计
type Stats struct {
	Scanned   int `json:"scanned"`   // 扫描的 Markdown 文件数
	Indexed   int `json:"indexed"`   // 实际重建索引的文件数
	Unchanged int `json:"unchanged"` // 内容未变化而跳过的文件数
	Failed    int `json:"failed"`    // 解析或索引失败的文件数
	Chunks    int `json:"chunks"`    // 新写入的分块数
}

// Service 知识库索引服务
// 解析 Markdown 目录、分块、向量化并写入存储。
type Service struct {
	parser    *markdown.Parser
	chunker   *Chunker
	embedder  Embedder
	vectors   VectorIndex
	docRepo   knowledge.DocumentRepository
	chunkRepo knowledge.ChunkRepository
	keyword   KeywordIndexRebuilder
	cfg       *config.KnowledgeConfig
	logger    *slog.Logger

	// 同一时刻只允许一次索引流程
	mu sync.Mutex

	collectionReady bool
}

// NewService 创建索引服务
func NewService(
	parser *markdown.Parser,
	chunker *Chunker,
	embedder Embedder,
	vectors VectorIndex,
	docRepo knowledge.DocumentRepository,
	chunkRepo knowledge.ChunkRepository,
	keyword KeywordIndexRebuilder,
	cfg *config.KnowledgeConfig,
) *Service {
	return &Service{
		parser:    parser,
		chunker:   chunker,
		embedder:  embedder,
		vectors:   vectors,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		keyword:   keyword,
		cfg:       cfg,
		logger:    log.NewModuleLogger("ingest", "service"),
	}
}

// KnowledgeDir 当前生效的知识库目录
func (s *Service) KnowledgeDir() string {
	if s.cfg != nil && s.cfg.Dir != "" {
		return s.cfg.Dir
	}
	return filepath.Join(config.GetDataDir(), "knowledge")
}

// IngestFolder 索引整个知识库目录
// 单个文件失败只记录日志并继续，整个目录的索引不会因此中断。
func (s *Service) IngestFolder(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.KnowledgeDir()
	stats := &Stats{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("Failed to access path, skipping", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			// 跳过隐藏目录
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		stats.Scanned++

		indexed, chunkCount, ferr := s.ingestFileLocked(ctx, path)
		switch {
		case ferr != nil:
			stats.Failed++
			s.logger.Warn("Failed to index file, skipping",
				"path", path,
				"error", ferr,
			)
		case indexed:
			stats.Indexed++
			stats.Chunks += chunkCount
		default:
			stats.Unchanged++
		}

		return ctx.Err()
	})
	if err != nil {
		return stats, fmt.Errorf("failed to walk knowledge dir: %w", err)
	}

	if stats.Indexed > 0 {
		s.rebuildKeywordIndex(ctx)
	}

	s.logger.Info("Folder ingestion finished",
		"dir", dir,
		"scanned", stats.Scanned,
		"indexed", stats.Indexed,
		"unchanged", stats.Unchanged,
		"failed", stats.Failed,
		"chunks", stats.Chunks,
	)

	return stats, nil
}

// IngestFile 索引单个文件（目录监听的增量入口）
func (s *Service) IngestFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexed, _, err := s.ingestFileLocked(ctx, path)
	if err != nil {
		return err
	}
	if indexed {
		s.rebuildKeywordIndex(ctx)
	}
	return nil
}

// ingestFileLocked 索引单个文件，调用方持锁
// 返回是否实际重建了索引以及新分块数。
func (s *Service) ingestFileLocked(ctx context.Context, path string) (bool, int, error) {
	doc, err := s.parser.ParseFile(path)
	if err != nil {
		return false, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// 内容未变化则跳过
	existing, err := s.docRepo.GetByPath(ctx, path)
	if err != nil {
		return false, 0, fmt.Errorf("failed to look up document: %w", err)
	}
	if existing != nil && existing.ContentHash == doc.Hash {
		return false, 0, nil
	}

	documentID := uuid.NewString()
	if existing != nil {
		documentID = existing.ID
	}

	chunks := s.chunker.ChunkDocument(doc, documentID)
	if len(chunks) == 0 {
		s.logger.Debug("Document produced no chunks", "path", path)
		return false, 0, nil
	}

	// 向量化
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return false, 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return false, 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(chunks))
	}

	if err := s.ensureCollection(ctx, vectors); err != nil {
		return false, 0, err
	}

	// 旧数据先删除再写入
	if existing != nil {
		if err := s.vectors.DeleteByDocument(ctx, documentID); err != nil {
			s.logger.Warn("Failed to delete old vectors", "document_id", documentID, "error", err)
		}
		if err := s.chunkRepo.DeleteByDocument(ctx, documentID); err != nil {
			return false, 0, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	if err := s.vectors.UpsertChunks(ctx, chunks, vectors); err != nil {
		return false, 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	if err := s.chunkRepo.SaveBatch(ctx, chunks); err != nil {
		return false, 0, fmt.Errorf("failed to save chunks: %w", err)
	}

	if err := s.docRepo.Save(ctx, &knowledge.Document{
		ID:          documentID,
		Path:        path,
		Title:       doc.Title,
		ContentHash: doc.Hash,
		ChunkCount:  len(chunks),
		IndexedAt:   time.Now(),
	}); err != nil {
		return false, 0, fmt.Errorf("failed to save document: %w", err)
	}

	return true, len(chunks), nil
}

// RemoveFile 移除文件对应的索引数据
func (s *Service) RemoveFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docRepo.GetByPath(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to look up document: %w", err)
	}
	if doc == nil {
		return nil
	}

	if err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		s.logger.Warn("Failed to delete vectors", "document_id", doc.ID, "error", err)
	}
	if err := s.chunkRepo.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.rebuildKeywordIndex(ctx)

	s.logger.Info("Removed document from index", "path", path)
	return nil
}

// ClearAll 清空全部索引数据
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vectors.DropCollection(ctx); err != nil {
		s.logger.Warn("Failed to drop vector collection", "error", err)
	}
	s.collectionReady = false

	docs, err := s.docRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	for _, doc := range docs {
		if err := s.chunkRepo.DeleteByDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if err := s.docRepo.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
	}

	s.rebuildKeywordIndex(ctx)

	s.logger.Info("Cleared all indexed data")
	return nil
}

// ensureCollection 按首批向量的维度确保集合存在
func (s *Service) ensureCollection(ctx context.Context, vectors [][]float32) error {
	if s.collectionReady {
		return nil
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("cannot determine vector dimension")
	}

	if err := s.vectors.EnsureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	s.collectionReady = true
	return nil
}

// rebuildKeywordIndex 重建关键词索引，失败只降级不报错
func (s *Service) rebuildKeywordIndex(ctx context.Context) {
	if s.keyword == nil {
		return
	}
	if err := s.keyword.RebuildFromStore(ctx); err != nil {
		s.logger.Warn("Failed to rebuild keyword index", "error", err)
	}
}
