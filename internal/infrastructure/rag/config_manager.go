package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/knowbase/backend/internal/infrastructure/config"
)

// ConfigManager 模型服务配置管理器
// 持久化 Embedding / LLM / Qdrant 的连接信息，API Key 加密存储。
type ConfigManager struct {
	configPath string
	encryptKey *EncryptionKey
}

// NewConfigManager 创建配置管理器
func NewConfigManager() (*ConfigManager, error) {
	configPath := filepath.Join(config.GetDataDir(), "rag_config.json")

	// 创建加密密钥管理器
	encryptKey, err := NewEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption key: %w", err)
	}

	return &ConfigManager{
		configPath: configPath,
		encryptKey: encryptKey,
	}, nil
}

// APIEndpoint OpenAI 兼容接口配置
type APIEndpoint struct {
	URL    string `json:"url"`     // API URL
	APIKey string `json:"api_key"` // API Key（加密存储）
	Model  string `json:"model"`   // 模型名称
}

// RAGConfig 模型服务配置结构
type RAGConfig struct {
	// Embedding API 配置
	EmbeddingAPI APIEndpoint `json:"embedding_api"`

	// LLM API 配置（意图分析、查询分解、答案合成）
	LLMAPI APIEndpoint `json:"llm_api"`

	// Qdrant 配置
	Qdrant struct {
		Host string `json:"host"` // gRPC 主机，默认 localhost
		Port int    `json:"port"` // gRPC 端口，默认 6334
	} `json:"qdrant"`

	// 元数据
	LastFullIndex int64 `json:"last_full_index"` // 最后全量索引时间
	TotalChunks   int   `json:"total_chunks"`    // 已索引分块数
}

// ReadConfig 读取配置
func (c *ConfigManager) ReadConfig() (*RAGConfig, error) {
	// 如果文件不存在，返回默认配置
	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		return c.getDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg RAGConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// 解密 API Key，解密失败时保持原值（可能是未加密的旧数据）
	if c.encryptKey != nil {
		if cfg.EmbeddingAPI.APIKey != "" {
			if decrypted, err := c.encryptKey.Decrypt(cfg.EmbeddingAPI.APIKey); err == nil {
				cfg.EmbeddingAPI.APIKey = decrypted
			}
		}
		if cfg.LLMAPI.APIKey != "" {
			if decrypted, err := c.encryptKey.Decrypt(cfg.LLMAPI.APIKey); err == nil {
				cfg.LLMAPI.APIKey = decrypted
			}
		}
	}

	return &cfg, nil
}

// WriteConfig 写入配置
func (c *ConfigManager) WriteConfig(cfg *RAGConfig) error {
	// 创建配置副本以避免修改原始配置
	cfgCopy := *cfg

	// 加密 API Key，加密失败时保持原值
	if c.encryptKey != nil {
		if cfgCopy.EmbeddingAPI.APIKey != "" {
			if encrypted, err := c.encryptKey.Encrypt(cfgCopy.EmbeddingAPI.APIKey); err == nil {
				cfgCopy.EmbeddingAPI.APIKey = encrypted
			}
		}
		if cfgCopy.LLMAPI.APIKey != "" {
			if encrypted, err := c.encryptKey.Encrypt(cfgCopy.LLMAPI.APIKey); err == nil {
				cfgCopy.LLMAPI.APIKey = encrypted
			}
		}
	}

	// 确保目录存在
	dir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfgCopy, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getDefaultConfig 获取默认配置
func (c *ConfigManager) getDefaultConfig() *RAGConfig {
	cfg := &RAGConfig{}
	cfg.Qdrant.Host = "localhost"
	cfg.Qdrant.Port = 6334
	return cfg
}
