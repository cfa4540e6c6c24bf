package knowledge

import "errors"

var (
	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New("document not found")

	// ErrChunkNotFound 分块不存在
	ErrChunkNotFound = errors.New("chunk not found")
)
