package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/knowbase/backend/internal/domain/events"
	"github.com/knowbase/backend/internal/infrastructure/log"
)

// WatchConfig FileWatcher 配置
type WatchConfig struct {
	// KnowledgeDir 知识库 Markdown 目录
	KnowledgeDir string
	// DebounceDelay 防抖延迟
	DebounceDelay time.Duration
	// FullScanThreshold 全量扫描阈值（距上次扫描超过此时间则执行全量扫描）
	FullScanThreshold time.Duration
}

// DefaultWatchConfig 返回默认配置
func DefaultWatchConfig(knowledgeDir string) WatchConfig {
	return WatchConfig{
		KnowledgeDir:      knowledgeDir,
		DebounceDelay:     500 * time.Millisecond,
		FullScanThreshold: 24 * time.Hour,
	}
}

// FileWatcher 知识库文件监听器
// 监听知识库目录下的 .md 文件变更，防抖后发布领域事件。
type FileWatcher struct {
	config   WatchConfig
	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// 控制
	stopCh chan struct{}
	wg     sync.WaitGroup

	// 扫描元数据
	metadata *ScanMetadata
}

// NewFileWatcher 创建文件监听器
func NewFileWatcher(config WatchConfig, eventBus events.EventBus) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		config:         config,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "file_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
		metadata:       NewScanMetadata(),
	}, nil
}

// Start 启动文件监听
func (fw *FileWatcher) Start() error {
	fw.logger.Info("Starting file watcher", "knowledge_dir", fw.config.KnowledgeDir)

	// 检查是否需要全量扫描
	if fw.needsFullScan() {
		fw.logger.Info("Performing full scan on startup")
		fw.performFullScan()
	}

	// 添加监听目录
	if err := fw.addDirRecursive(fw.config.KnowledgeDir); err != nil {
		fw.logger.Warn("Failed to add knowledge directory to watch", "error", err)
	}

	// 启动事件处理循环
	fw.wg.Add(1)
	go fw.watchLoop()

	return nil
}

// Stop 停止文件监听
func (fw *FileWatcher) Stop() {
	fw.logger.Info("Stopping file watcher")

	close(fw.stopCh)
	fw.watcher.Close()
	fw.wg.Wait()

	// 取消所有防抖定时器
	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceMu.Unlock()

	fw.logger.Info("File watcher stopped")
}

// needsFullScan 判断是否需要全量扫描
func (fw *FileWatcher) needsFullScan() bool {
	lastScan := fw.metadata.GetLastScanTime()

	// 从未扫描过
	if lastScan.IsZero() {
		fw.logger.Info("No previous scan found, full scan required")
		return true
	}

	// 距上次扫描超过阈值
	elapsed := time.Since(lastScan)
	if elapsed > fw.config.FullScanThreshold {
		fw.logger.Info("Last scan too old, full scan required",
			"last_scan", lastScan,
			"elapsed", elapsed,
			"threshold", fw.config.FullScanThreshold,
		)
		return true
	}

	fw.logger.Info("Recent scan found, skipping full scan",
		"last_scan", lastScan,
		"elapsed", elapsed,
	)
	return false
}

// performFullScan 遍历知识库目录，为每个 Markdown 文件发布创建事件
func (fw *FileWatcher) performFullScan() {
	startTime := time.Now()
	count := 0

	err := filepath.Walk(fw.config.KnowledgeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 忽略无法访问的路径
		}
		if info.IsDir() {
			if isHiddenDir(info.Name()) && path != fw.config.KnowledgeDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !isMarkdownFile(path) {
			return nil
		}

		fw.eventBus.Publish(&events.KnowledgeFileEvent{
			EventType: events.KnowledgeFileCreated,
			FilePath:  path,
			ModTime:   info.ModTime(),
			FileSize:  info.Size(),
			EventTime: time.Now(),
		})
		count++
		return nil
	})
	if err != nil {
		fw.logger.Error("Full scan failed", "error", err)
		return
	}

	fw.metadata.SetLastScanTime(time.Now())
	fw.logger.Info("Full scan completed",
		"files", count,
		"duration", time.Since(startTime),
	)
}

// addDirRecursive 递归添加目录监听，跳过隐藏目录
func (fw *FileWatcher) addDirRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 忽略无法访问的目录
		}
		if !info.IsDir() {
			return nil
		}
		if isHiddenDir(info.Name()) && path != dir {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Debug("Failed to add directory to watch", "path", path, "error", err)
		} else {
			fw.logger.Debug("Added directory to watch", "path", path)
		}
		return nil
	})
}

// watchLoop 事件监听循环
func (fw *FileWatcher) watchLoop() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件
func (fw *FileWatcher) handleFsEvent(event fsnotify.Event) {
	if isMarkdownFile(event.Name) {
		fw.debounceFileEvent(event)
		return
	}

	// 新创建的子目录需要加入监听
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() && !isHiddenDir(info.Name()) {
			if err := fw.watcher.Add(event.Name); err != nil {
				fw.logger.Debug("Failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}
}

// debounceFileEvent 防抖后发布文件事件
// 编辑器保存往往触发一连串 Write 事件，只保留最后一次。
func (fw *FileWatcher) debounceFileEvent(fsEvent fsnotify.Event) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[fsEvent.Name]; exists {
		timer.Stop()
	}

	fw.debounceTimers[fsEvent.Name] = time.AfterFunc(fw.config.DebounceDelay, func() {
		fw.emitFileEvent(fsEvent)

		fw.debounceMu.Lock()
		delete(fw.debounceTimers, fsEvent.Name)
		fw.debounceMu.Unlock()
	})
}

// emitFileEvent 发送知识库文件事件
func (fw *FileWatcher) emitFileEvent(fsEvent fsnotify.Event) {
	var eventType events.EventType
	switch {
	case fsEvent.Has(fsnotify.Create):
		eventType = events.KnowledgeFileCreated
	case fsEvent.Has(fsnotify.Write):
		eventType = events.KnowledgeFileModified
	case fsEvent.Has(fsnotify.Remove) || fsEvent.Has(fsnotify.Rename):
		eventType = events.KnowledgeFileDeleted
	default:
		return
	}

	var modTime time.Time
	var fileSize int64
	if fileInfo, err := os.Stat(fsEvent.Name); err == nil {
		modTime = fileInfo.ModTime()
		fileSize = fileInfo.Size()
	} else if eventType != events.KnowledgeFileDeleted {
		// 文件已经不在了，按删除处理
		eventType = events.KnowledgeFileDeleted
	}

	fw.eventBus.Publish(&events.KnowledgeFileEvent{
		EventType: eventType,
		FilePath:  fsEvent.Name,
		ModTime:   modTime,
		FileSize:  fileSize,
		EventTime: time.Now(),
	})

	fw.logger.Debug("Knowledge file event emitted",
		"type", eventType,
		"path", fsEvent.Name,
	)
}

// isMarkdownFile 判断是否为 Markdown 文件
func isMarkdownFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}

// isHiddenDir 判断是否为隐藏目录
func isHiddenDir(name string) bool {
	return strings.HasPrefix(name, ".")
}
