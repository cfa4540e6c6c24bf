package vector

import (
	"fmt"

	"github.com/knowbase/backend/internal/infrastructure/rag"
)

// NewStoreFromConfig 从持久化配置创建向量存储（wire 使用）
func NewStoreFromConfig(cm *rag.ConfigManager) (*Store, error) {
	cfg, err := cm.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read rag config: %w", err)
	}

	return NewStore(cfg.Qdrant.Host, cfg.Qdrant.Port)
}
