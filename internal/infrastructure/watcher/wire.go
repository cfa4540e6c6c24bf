package watcher

import (
	"github.com/knowbase/backend/internal/domain/events"
	"github.com/knowbase/backend/internal/infrastructure/config"
)

// ProvideEventBus 提供事件总线实例
func ProvideEventBus() events.EventBus {
	return NewEventBus()
}

// ProvideFileWatcher 提供知识库文件监听器实例
func ProvideFileWatcher(knowledgeCfg *config.KnowledgeConfig, eventBus events.EventBus) (*FileWatcher, error) {
	return NewFileWatcher(DefaultWatchConfig(knowledgeCfg.Dir), eventBus)
}
