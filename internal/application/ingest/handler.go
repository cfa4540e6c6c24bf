package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knowbase/backend/internal/domain/events"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// FileEventHandler 把知识库文件事件转成索引操作
type FileEventHandler struct {
	service *Service
	logger  *slog.Logger
}

var _ events.Handler = (*FileEventHandler)(nil)

// NewFileEventHandler 创建文件事件处理器
func NewFileEventHandler(service *Service) *FileEventHandler {
	return &FileEventHandler{
		service: service,
		logger:  log.NewModuleLogger("ingest", "file_handler"),
	}
}

// Subscribe 订阅知识库文件事件，返回取消订阅函数
func (h *FileEventHandler) Subscribe(bus events.EventBus) func() {
	return bus.SubscribeMultiple(
		[]events.EventType{
			events.KnowledgeFileCreated,
			events.KnowledgeFileModified,
			events.KnowledgeFileDeleted,
		},
		h,
	)
}

// HandleEvent 实现 events.Handler
func (h *FileEventHandler) HandleEvent(event events.Event) error {
	fileEvent, ok := event.(*events.KnowledgeFileEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %s", event.Type())
	}

	ctx := context.Background()
	switch fileEvent.EventType {
	case events.KnowledgeFileCreated, events.KnowledgeFileModified:
		if err := h.service.IngestFile(ctx, fileEvent.FilePath); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", fileEvent.FilePath, err)
		}
	case events.KnowledgeFileDeleted:
		if err := h.service.RemoveFile(ctx, fileEvent.FilePath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", fileEvent.FilePath, err)
		}
	}
	return nil
}
