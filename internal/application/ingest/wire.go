package ingest

import "github.com/google/wire"

// ProviderSet 索引应用层 ProviderSet
var ProviderSet = wire.NewSet(
	NewChunker,
	NewService,
	NewFileEventHandler,
)
