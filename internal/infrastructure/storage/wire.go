package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,              // 提供数据库连接并初始化表结构
	NewDocumentRepository,  // 文档元数据仓储
	NewChunkRepository,     // 知识分块仓储
)
