package wire

import (
	"context"
	"database/sql"

	"log/slog"

	"github.com/knowbase/backend/internal/application/ingest"
	"github.com/knowbase/backend/internal/application/retrieval"
	"github.com/knowbase/backend/internal/domain/events"
	"github.com/knowbase/backend/internal/infrastructure/config"
	applog "github.com/knowbase/backend/internal/infrastructure/log"
	"github.com/knowbase/backend/internal/infrastructure/watcher"
	"github.com/knowbase/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer    *interfaces.HTTPServer
	MCPServer     *interfaces.MCPServer
	ingestService *ingest.Service
	fileHandler   *ingest.FileEventHandler
	keywordIndex  *retrieval.BM25Index
	cfg           *config.Config
	db            *sql.DB
	logger        *slog.Logger

	// 文件监听相关
	eventBus    events.EventBus
	fileWatcher *watcher.FileWatcher

	unsubscribe func()
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	mcpServer *interfaces.MCPServer,
	ingestService *ingest.Service,
	fileHandler *ingest.FileEventHandler,
	keywordIndex *retrieval.BM25Index,
	cfg *config.Config,
	eventBus events.EventBus,
	fileWatcher *watcher.FileWatcher,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:    httpServer,
		MCPServer:     mcpServer,
		ingestService: ingestService,
		fileHandler:   fileHandler,
		keywordIndex:  keywordIndex,
		cfg:           cfg,
		eventBus:      eventBus,
		fileWatcher:   fileWatcher,
		db:            db,
		logger:        applog.NewModuleLogger("app", "main"),
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting knowbase backend application")

	// 从已持久化的分块重建关键词索引
	if err := a.keywordIndex.RebuildFromStore(context.Background()); err != nil {
		a.logger.Warn("Failed to rebuild keyword index from store", "error", err)
	}

	// 注册文件事件订阅者并启动知识库目录监听
	a.unsubscribe = a.fileHandler.Subscribe(a.eventBus)
	if a.cfg.Knowledge.Watch {
		if err := a.fileWatcher.Start(); err != nil {
			a.logger.Error("Failed to start file watcher", "error", err)
		} else {
			a.logger.Info("File watcher started successfully")
		}
	}

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("HTTP server exited", "error", err)
		}
	}()

	a.logger.Info("Knowbase backend application started successfully")

	// MCP 服务器通过 HTTP Handler 提供服务，不需要单独启动
	// 已在 HTTP 服务器中注册 /mcp/sse 端点

	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping knowbase backend application")

	// 停止文件监听器
	if a.cfg.Knowledge.Watch && a.fileWatcher != nil {
		a.fileWatcher.Stop()
		a.logger.Info("File watcher stopped")
	}

	// 取消事件订阅并关闭事件总线
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.eventBus != nil {
		a.eventBus.Close()
		a.logger.Info("Event bus closed")
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server", "error", err)
		return err
	}

	// 关闭数据库连接
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection", "error", err)
			return err
		}
	}

	a.logger.Info("Knowbase backend application stopped")
	return nil
}
