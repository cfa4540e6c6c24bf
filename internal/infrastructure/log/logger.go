package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/knowbase/backend/internal/infrastructure/log/handler"
)

var (
	defaultLogger *slog.Logger
	initOnce      sync.Mutex
)

// Init 按配置初始化全局日志，并设为 slog 默认 logger
// cfg 为 nil 时从环境变量读取配置。
func Init(cfg *Config) {
	if cfg == nil {
		cfg = NewConfigFromEnv()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = handler.NewConsoleHandler(os.Stdout, opts)
	}

	logger := slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", "knowbase-backend"),
	}))

	initOnce.Lock()
	defaultLogger = logger
	initOnce.Unlock()

	slog.SetDefault(logger)
}

// GetLogger 获取全局 logger，未初始化时按环境变量初始化
func GetLogger() *slog.Logger {
	initOnce.Lock()
	initialized := defaultLogger != nil
	initOnce.Unlock()

	if !initialized {
		Init(nil)
	}
	return defaultLogger
}

// NewModuleLogger 创建带 module/component 标签的 logger
func NewModuleLogger(module, component string) *slog.Logger {
	return GetLogger().With(
		slog.String("module", module),
		slog.String("component", component),
	)
}

// parseLevel 解析日志级别，未知值回退到 info
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
