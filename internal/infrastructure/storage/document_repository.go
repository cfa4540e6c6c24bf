package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/knowbase/backend/internal/domain/knowledge"
)

// 确保 DocumentRepositoryImpl 实现了 knowledge.DocumentRepository 接口
var _ knowledge.DocumentRepository = (*DocumentRepositoryImpl)(nil)

// DocumentRepositoryImpl 文档元数据仓储实现
type DocumentRepositoryImpl struct {
	db *sql.DB
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository(db *sql.DB) knowledge.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

// Save 保存或更新文档元数据
func (r *DocumentRepositoryImpl) Save(ctx context.Context, doc *knowledge.Document) error {
	query := `
		INSERT OR REPLACE INTO documents (
			id, path, title, content_hash, chunk_count, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.Path,
		doc.Title,
		doc.ContentHash,
		doc.ChunkCount,
		doc.IndexedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

// GetByPath 按源文件路径查询，不存在时返回 nil
func (r *DocumentRepositoryImpl) GetByPath(ctx context.Context, path string) (*knowledge.Document, error) {
	query := `
		SELECT id, path, title, content_hash, chunk_count, indexed_at
		FROM documents WHERE path = ?`

	doc, err := r.scanDocument(r.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query document by path: %w", err)
	}

	return doc, nil
}

// List 列出全部文档
func (r *DocumentRepositoryImpl) List(ctx context.Context) ([]*knowledge.Document, error) {
	query := `
		SELECT id, path, title, content_hash, chunk_count, indexed_at
		FROM documents ORDER BY path`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*knowledge.Document
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Delete 删除文档元数据
func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Count 文档总数
func (r *DocumentRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// scanner 兼容 sql.Row 和 sql.Rows 的扫描接口
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument 从查询结果扫描文档
func (r *DocumentRepositoryImpl) scanDocument(s scanner) (*knowledge.Document, error) {
	var doc knowledge.Document
	var indexedAt int64

	if err := s.Scan(
		&doc.ID,
		&doc.Path,
		&doc.Title,
		&doc.ContentHash,
		&doc.ChunkCount,
		&indexedAt,
	); err != nil {
		return nil, err
	}

	doc.IndexedAt = time.UnixMilli(indexedAt)
	return &doc, nil
}
