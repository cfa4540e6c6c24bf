package embedding

import (
	"fmt"

	"github.com/knowbase/backend/internal/infrastructure/rag"
)

// NewClientFromConfig 从持久化配置创建 Embedding 客户端（wire 使用）
func NewClientFromConfig(cm *rag.ConfigManager) (*Client, error) {
	cfg, err := cm.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to read rag config: %w", err)
	}

	return NewClient(cfg.EmbeddingAPI.URL, cfg.EmbeddingAPI.APIKey, cfg.EmbeddingAPI.Model), nil
}
