package rag

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigManager_ReadWrite(t *testing.T) {
	tmpDir := t.TempDir()

	// 使用临时路径，不加密（encryptKey 为 nil 时明文存储）
	manager := &ConfigManager{
		configPath: filepath.Join(tmpDir, "rag_config.json"),
	}

	cfg := manager.getDefaultConfig()
	cfg.EmbeddingAPI.URL = "https://api.example.com/v1"
	cfg.EmbeddingAPI.APIKey = "test-key"
	cfg.EmbeddingAPI.Model = "text-embedding-3-small"
	cfg.LLMAPI.URL = "https://api.example.com/v1"
	cfg.LLMAPI.Model = "gpt-4o-mini"

	require.NoError(t, manager.WriteConfig(cfg))

	readCfg, err := manager.ReadConfig()
	require.NoError(t, err)

	assert.Equal(t, cfg.EmbeddingAPI.URL, readCfg.EmbeddingAPI.URL)
	assert.Equal(t, cfg.EmbeddingAPI.APIKey, readCfg.EmbeddingAPI.APIKey)
	assert.Equal(t, cfg.LLMAPI.Model, readCfg.LLMAPI.Model)
}

func TestConfigManager_ReadNonExistent(t *testing.T) {
	tmpDir := t.TempDir()

	manager := &ConfigManager{
		configPath: filepath.Join(tmpDir, "non_existent.json"),
	}

	// 读取不存在的配置应该返回默认配置
	cfg, err := manager.ReadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Empty(t, cfg.EmbeddingAPI.URL)
}
