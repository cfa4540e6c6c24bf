//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"github.com/knowbase/backend/internal/application"
	"github.com/knowbase/backend/internal/application/ingest"
	"github.com/knowbase/backend/internal/application/queryproc"
	"github.com/knowbase/backend/internal/application/retrieval"
	"github.com/knowbase/backend/internal/infrastructure"
	"github.com/knowbase/backend/internal/infrastructure/embedding"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/vector"
	"github.com/knowbase/backend/internal/interfaces"
)

// InitializeAll 初始化所有服务（HTTP + MCP）
func InitializeAll() (*App, error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		// 接口绑定：应用层端口 -> 基础设施实现
		wire.Bind(new(ingest.Embedder), new(*embedding.Client)),
		wire.Bind(new(ingest.VectorIndex), new(*vector.Store)),
		wire.Bind(new(ingest.KeywordIndexRebuilder), new(*retrieval.BM25Index)),
		wire.Bind(new(retrieval.QueryEmbedder), new(*embedding.Client)),
		wire.Bind(new(retrieval.VectorSearcher), new(*vector.Store)),
		wire.Bind(new(queryproc.Completer), new(*llm.Client)),
		wire.Bind(new(queryproc.Retriever), new(*retrieval.HybridRetriever)),
		wire.Bind(new(queryproc.ChunkReranker), new(*retrieval.Reranker)),
		NewApp, // 组合所有服务的应用结构
	)
	return nil, nil
}
