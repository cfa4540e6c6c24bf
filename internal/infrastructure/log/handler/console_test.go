package handler

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestConsoleHandler_ModulePrefix(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, nil)

	err := h.Handle(context.Background(), record(slog.LevelInfo, "索引重建完成",
		slog.String("module", "retrieval"),
		slog.String("component", "bm25"),
		slog.Int("chunks", 42),
	))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[retrieval/bm25]")
	assert.Contains(t, out, "索引重建完成")
	// module/component 折叠进前缀，不再单独输出
	assert.NotContains(t, out, "module=")
	assert.Contains(t, out, "chunks=42")
}

func TestConsoleHandler_WithAttrsCarried(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, nil).WithAttrs([]slog.Attr{
		slog.String("service", "knowbase-backend"),
	})

	err := h.Handle(context.Background(), record(slog.LevelWarn, "检索降级"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "service=knowbase-backend")
}

func TestConsoleHandler_LevelGate(t *testing.T) {
	level := slog.LevelWarn
	h := NewConsoleHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: level})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestConsoleHandler_LevelColor(t *testing.T) {
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, nil)

	require.NoError(t, h.Handle(context.Background(), record(slog.LevelError, "出错了")))
	assert.Contains(t, buf.String(), colorRed+"ERROR"+colorReset)
}
