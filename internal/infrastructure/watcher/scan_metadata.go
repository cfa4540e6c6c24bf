package watcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/knowbase/backend/internal/infrastructure/config"
)

// ScanMetadata 记录知识库目录的上次全量扫描时间
// 启动时据此判断是否需要重新全量扫描，持久化为数据目录下的 JSON 文件。
type ScanMetadata struct {
	mu       sync.Mutex
	lastScan time.Time
	path     string
}

// NewScanMetadata 创建扫描元数据管理器并加载已有记录
func NewScanMetadata() *ScanMetadata {
	sm := &ScanMetadata{
		path: filepath.Join(config.GetDataDir(), "scan_metadata.json"),
	}

	if data, err := os.ReadFile(sm.path); err == nil {
		var stored struct {
			LastScanTime time.Time `json:"last_scan_time"`
		}
		if json.Unmarshal(data, &stored) == nil {
			sm.lastScan = stored.LastScanTime
		}
	}
	return sm
}

// GetLastScanTime 获取上次扫描时间，从未扫描时为零值
func (sm *ScanMetadata) GetLastScanTime() time.Time {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.lastScan
}

// SetLastScanTime 更新上次扫描时间并持久化
// 持久化失败只影响下次启动的扫描判断，不向调用方报错。
func (sm *ScanMetadata) SetLastScanTime(t time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.lastScan = t

	data, err := json.Marshal(struct {
		LastScanTime time.Time `json:"last_scan_time"`
	}{LastScanTime: t})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(sm.path), 0755); err != nil {
		return
	}
	_ = os.WriteFile(sm.path, data, 0644)
}
