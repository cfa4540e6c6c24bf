package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/knowbase/backend/internal/domain/knowledge"
)

// 确保 ChunkRepositoryImpl 实现了 knowledge.ChunkRepository 接口
var _ knowledge.ChunkRepository = (*ChunkRepositoryImpl)(nil)

// ChunkRepositoryImpl 知识分块仓储实现
type ChunkRepositoryImpl struct {
	db *sql.DB
}

// NewChunkRepository 创建分块仓储实例
func NewChunkRepository(db *sql.DB) knowledge.ChunkRepository {
	return &ChunkRepositoryImpl{db: db}
}

// SaveBatch 批量保存分块（事务）
func (r *ChunkRepositoryImpl) SaveBatch(ctx context.Context, chunks []*knowledge.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (
			id, document_id, seq, section, content_type,
			content, token_count, source_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(
			ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.Seq,
			chunk.Section,
			string(chunk.ContentType),
			chunk.Content,
			chunk.TokenCount,
			chunk.SourcePath,
			chunk.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// GetByID 按 ID 查询单个分块
func (r *ChunkRepositoryImpl) GetByID(ctx context.Context, id string) (*knowledge.Chunk, error) {
	query := `
		SELECT id, document_id, seq, section, content_type,
		       content, token_count, source_path, created_at
		FROM chunks WHERE id = ?`

	chunk, err := r.scanChunk(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, knowledge.ErrChunkNotFound
		}
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return chunk, nil
}

// ListByDocument 列出文档的全部分块，按 seq 升序
func (r *ChunkRepositoryImpl) ListByDocument(ctx context.Context, documentID string) ([]*knowledge.Chunk, error) {
	query := `
		SELECT id, document_id, seq, section, content_type,
		       content, token_count, source_path, created_at
		FROM chunks WHERE document_id = ? ORDER BY seq`

	return r.queryChunks(ctx, query, documentID)
}

// ListAll 列出全部分块，用于重建关键词索引
func (r *ChunkRepositoryImpl) ListAll(ctx context.Context) ([]*knowledge.Chunk, error) {
	query := `
		SELECT id, document_id, seq, section, content_type,
		       content, token_count, source_path, created_at
		FROM chunks ORDER BY document_id, seq`

	return r.queryChunks(ctx, query)
}

// DeleteByDocument 删除文档的全部分块
func (r *ChunkRepositoryImpl) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Count 分块总数
func (r *ChunkRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// queryChunks 执行查询并扫描全部分块
func (r *ChunkRepositoryImpl) queryChunks(ctx context.Context, query string, args ...any) ([]*knowledge.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*knowledge.Chunk
	for rows.Next() {
		chunk, err := r.scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// scanChunk 从查询结果扫描分块
func (r *ChunkRepositoryImpl) scanChunk(s scanner) (*knowledge.Chunk, error) {
	var chunk knowledge.Chunk
	var section sql.NullString
	var contentType string
	var createdAt int64

	if err := s.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.Seq,
		&section,
		&contentType,
		&chunk.Content,
		&chunk.TokenCount,
		&chunk.SourcePath,
		&createdAt,
	); err != nil {
		return nil, err
	}

	chunk.Section = section.String
	chunk.ContentType = knowledge.ContentType(contentType)
	chunk.CreatedAt = time.UnixMilli(createdAt)

	return &chunk, nil
}
