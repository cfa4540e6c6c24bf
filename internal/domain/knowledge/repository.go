package knowledge

import "context"

// DocumentRepository 文档元数据仓储接口
type DocumentRepository interface {
	// Save 保存或更新文档元数据
	Save(ctx context.Context, doc *Document) error

	// GetByPath 按源文件路径查询，不存在时返回 nil
	GetByPath(ctx context.Context, path string) (*Document, error)

	// List 列出全部文档
	List(ctx context.Context) ([]*Document, error)

	// Delete 删除文档元数据
	Delete(ctx context.Context, id string) error

	// Count 文档总数
	Count(ctx context.Context) (int, error)
}

// ChunkRepository 分块仓储接口
type ChunkRepository interface {
	// SaveBatch 批量保存分块（事务）
	SaveBatch(ctx context.Context, chunks []*Chunk) error

	// GetByID 按 ID 查询单个分块
	GetByID(ctx context.Context, id string) (*Chunk, error)

	// ListByDocument 列出文档的全部分块，按 seq 升序
	ListByDocument(ctx context.Context, documentID string) ([]*Chunk, error)

	// ListAll 列出全部分块，用于重建关键词索引
	ListAll(ctx context.Context) ([]*Chunk, error)

	// DeleteByDocument 删除文档的全部分块
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count 分块总数
	Count(ctx context.Context) (int, error)
}
