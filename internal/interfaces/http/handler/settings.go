package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/knowbase/backend/internal/infrastructure/embedding"
	"github.com/knowbase/backend/internal/infrastructure/llm"
	"github.com/knowbase/backend/internal/infrastructure/log"
	"github.com/knowbase/backend/internal/infrastructure/rag"
	"github.com/knowbase/backend/internal/interfaces/http/response"
)

// SettingsHandler 服务配置处理器
type SettingsHandler struct {
	configManager *rag.ConfigManager
	logger        *slog.Logger
}

// NewSettingsHandler 创建服务配置处理器
func NewSettingsHandler(configManager *rag.ConfigManager) *SettingsHandler {
	return &SettingsHandler{
		configManager: configManager,
		logger:        log.NewModuleLogger("http", "settings_handler"),
	}
}

// GetConfig 获取配置
// GET /api/v1/config
func (h *SettingsHandler) GetConfig(c *gin.Context) {
	cfg, err := h.configManager.ReadConfig()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50005, "failed to read config", err.Error())
		return
	}

	// API Key 不返回
	response.Success(c, gin.H{
		"embedding_api": gin.H{
			"url":   cfg.EmbeddingAPI.URL,
			"model": cfg.EmbeddingAPI.Model,
		},
		"llm_api": gin.H{
			"url":   cfg.LLMAPI.URL,
			"model": cfg.LLMAPI.Model,
		},
		"qdrant": gin.H{
			"host": cfg.Qdrant.Host,
			"port": cfg.Qdrant.Port,
		},
	})
}

// UpdateConfigRequest 更新配置请求
type UpdateConfigRequest struct {
	EmbeddingAPI struct {
		URL    string `json:"url"`
		APIKey string `json:"api_key"`
		Model  string `json:"model"`
	} `json:"embedding_api"`
	LLMAPI struct {
		URL    string `json:"url"`
		APIKey string `json:"api_key"`
		Model  string `json:"model"`
	} `json:"llm_api"`
	Qdrant struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"qdrant"`
}

// UpdateConfig 更新配置
// POST /api/v1/config
func (h *SettingsHandler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	cfg, err := h.configManager.ReadConfig()
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50005, "failed to read config", err.Error())
		return
	}

	cfg.EmbeddingAPI.URL = req.EmbeddingAPI.URL
	cfg.EmbeddingAPI.Model = req.EmbeddingAPI.Model
	if req.EmbeddingAPI.APIKey != "" {
		cfg.EmbeddingAPI.APIKey = req.EmbeddingAPI.APIKey
	}

	cfg.LLMAPI.URL = req.LLMAPI.URL
	cfg.LLMAPI.Model = req.LLMAPI.Model
	if req.LLMAPI.APIKey != "" {
		cfg.LLMAPI.APIKey = req.LLMAPI.APIKey
	}

	if req.Qdrant.Host != "" {
		cfg.Qdrant.Host = req.Qdrant.Host
	}
	if req.Qdrant.Port > 0 {
		cfg.Qdrant.Port = req.Qdrant.Port
	}

	if err := h.configManager.WriteConfig(cfg); err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50005, "failed to write config", err.Error())
		return
	}

	h.logger.Info("Config updated")
	response.Success(c, gin.H{"message": "config updated"})
}

// TestEndpointRequest 连通性测试请求
type TestEndpointRequest struct {
	URL    string `json:"url" binding:"required"`
	APIKey string `json:"api_key"`
	Model  string `json:"model" binding:"required"`
}

// TestEmbedding 测试向量化服务连通性
// POST /api/v1/config/test
func (h *SettingsHandler) TestEmbedding(c *gin.Context) {
	var req TestEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 40001, "url and model are required")
		return
	}

	client := embedding.NewClient(req.URL, req.APIKey, req.Model)
	if err := client.TestConnection(c.Request.Context()); err != nil {
		h.logger.Warn("Embedding connection test failed", "url", req.URL, "error", err)
		response.ErrorWithDetail(c, http.StatusBadRequest, 40002, "connection test failed", err.Error())
		return
	}

	response.Success(c, gin.H{"message": "connection test successful"})
}

// TestLLM 测试对话模型连通性
// POST /api/v1/config/llm/test
func (h *SettingsHandler) TestLLM(c *gin.Context) {
	var req TestEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 40001, "url and model are required")
		return
	}

	client := llm.NewClient(req.URL, req.APIKey, req.Model)
	if err := client.TestConnection(c.Request.Context()); err != nil {
		h.logger.Warn("LLM connection test failed", "url", req.URL, "error", err)
		response.ErrorWithDetail(c, http.StatusBadRequest, 40002, "connection test failed", err.Error())
		return
	}

	response.Success(c, gin.H{"message": "connection test successful"})
}
