package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowbase/backend/internal/domain/events"
	"github.com/knowbase/backend/internal/infrastructure/config"
)

func setupWatcherTest(t *testing.T) (string, events.EventBus) {
	t.Helper()

	dataDir := t.TempDir()
	t.Setenv("KNOWBASE_DATA_DIR", dataDir)
	config.ResetDataDir()

	knowledgeDir := t.TempDir()
	return knowledgeDir, NewEventBus()
}

// collectEvents 订阅所有知识库文件事件并收集
func collectEvents(bus events.EventBus) (func() []*events.KnowledgeFileEvent, func()) {
	var mu sync.Mutex
	var collected []*events.KnowledgeFileEvent

	unsub := bus.SubscribeMultiple(
		[]events.EventType{
			events.KnowledgeFileCreated,
			events.KnowledgeFileModified,
			events.KnowledgeFileDeleted,
		},
		events.HandlerFunc(func(event events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			collected = append(collected, event.(*events.KnowledgeFileEvent))
			return nil
		}),
	)

	get := func() []*events.KnowledgeFileEvent {
		mu.Lock()
		defer mu.Unlock()
		out := make([]*events.KnowledgeFileEvent, len(collected))
		copy(out, collected)
		return out
	}
	return get, unsub
}

func TestFileWatcher_FullScanOnFirstStart(t *testing.T) {
	knowledgeDir, bus := setupWatcherTest(t)
	defer bus.Close()

	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "a.md"), []byte("# A"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "b.md"), []byte("# B"), 0644))
	// 非 Markdown 文件不应产生事件
	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "c.txt"), []byte("c"), 0644))

	getEvents, unsub := collectEvents(bus)
	defer unsub()

	cfg := DefaultWatchConfig(knowledgeDir)
	cfg.DebounceDelay = 50 * time.Millisecond
	fw, err := NewFileWatcher(cfg, bus)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	assert.Eventually(t, func() bool {
		return len(getEvents()) == 2
	}, 2*time.Second, 20*time.Millisecond, "full scan should emit one event per markdown file")

	for _, e := range getEvents() {
		assert.Equal(t, events.KnowledgeFileCreated, e.EventType)
	}
}

func TestFileWatcher_DetectsNewMarkdownFile(t *testing.T) {
	knowledgeDir, bus := setupWatcherTest(t)
	defer bus.Close()

	getEvents, unsub := collectEvents(bus)
	defer unsub()

	cfg := DefaultWatchConfig(knowledgeDir)
	cfg.DebounceDelay = 50 * time.Millisecond
	fw, err := NewFileWatcher(cfg, bus)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	// 等监听器就绪后写入新文件
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "new.md"), []byte("# New"), 0644))

	assert.Eventually(t, func() bool {
		for _, e := range getEvents() {
			if filepath.Base(e.FilePath) == "new.md" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_SkipsFullScanWhenRecent(t *testing.T) {
	knowledgeDir, bus := setupWatcherTest(t)
	defer bus.Close()

	require.NoError(t, os.WriteFile(filepath.Join(knowledgeDir, "a.md"), []byte("# A"), 0644))

	// 预写入最近的扫描时间
	metadata := NewScanMetadata()
	metadata.SetLastScanTime(time.Now())

	getEvents, unsub := collectEvents(bus)
	defer unsub()

	cfg := DefaultWatchConfig(knowledgeDir)
	fw, err := NewFileWatcher(cfg, bus)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, getEvents(), "recent scan should suppress the startup full scan")
}

func TestIsMarkdownFile(t *testing.T) {
	assert.True(t, isMarkdownFile("docs/readme.md"))
	assert.True(t, isMarkdownFile("DOCS/README.MD"))
	assert.False(t, isMarkdownFile("docs/readme.txt"))
	assert.False(t, isMarkdownFile("docs/readme"))
}
