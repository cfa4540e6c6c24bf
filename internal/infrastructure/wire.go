package infrastructure

import (
	"github.com/google/wire"

	"github.com/knowbase/backend/internal/infrastructure/config"
	"github.com/knowbase/backend/internal/infrastructure/embedding"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/markdown"
	"github.com/knowbase/backend/internal/infrastructure/rag"
	"github.com/knowbase/backend/internal/infrastructure/storage"
	"github.com/knowbase/backend/internal/infrastructure/vector"
	"github.com/knowbase/backend/internal/infrastructure/watcher"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	rag.ProviderSet,
	storage.ProviderSet,
	markdown.NewParser,
	embedding.NewClientFromConfig,
	llm.NewClientFromConfig,
	vector.NewStoreFromConfig,
	watcher.ProvideEventBus,
	watcher.ProvideFileWatcher,
)
