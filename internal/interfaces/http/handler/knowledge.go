package handler

import (
	"net/http"
	"strconv"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/knowbase/backend/internal/application/ingest"
	"github.com/knowbase/backend/internal/domain/knowledge"
	"github.com/knowbase/backend/internal/infrastructure/log"
	"github.com/knowbase/backend/internal/infrastructure/rag"
	"github.com/knowbase/backend/internal/interfaces/http/response"
)

// KnowledgeHandler 知识库管理处理器
type KnowledgeHandler struct {
	ingestService *ingest.Service
	docRepo       knowledge.DocumentRepository
	chunkRepo     knowledge.ChunkRepository
	configManager *rag.ConfigManager
	logger        *slog.Logger
}

// NewKnowledgeHandler 创建知识库管理处理器
func NewKnowledgeHandler(
	ingestService *ingest.Service,
	docRepo knowledge.DocumentRepository,
	chunkRepo knowledge.ChunkRepository,
	configManager *rag.ConfigManager,
) *KnowledgeHandler {
	return &KnowledgeHandler{
		ingestService: ingestService,
		docRepo:       docRepo,
		chunkRepo:     chunkRepo,
		configManager: configManager,
		logger:        log.NewModuleLogger("http", "knowledge_handler"),
	}
}

// IngestRequest 索引请求
type IngestRequest struct {
	// Path 单个文件路径，为空时索引整个知识库目录
	Path string `json:"path,omitempty"`
}

// Ingest 触发知识库索引
// POST /api/v1/ingest
func (h *KnowledgeHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	if req.Path != "" {
		if err := h.ingestService.IngestFile(c.Request.Context(), req.Path); err != nil {
			h.logger.Error("Failed to ingest file", "path", req.Path, "error", err)
			response.ErrorWithDetail(c, http.StatusInternalServerError, 50002, "ingest failed", err.Error())
			return
		}
		response.Success(c, gin.H{"message": "file ingested", "path": req.Path})
		return
	}

	stats, err := h.ingestService.IngestFolder(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to ingest knowledge folder", "error", err)
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50002, "ingest failed", err.Error())
		return
	}
	response.Success(c, stats)
}

// Stats 获取知识库统计信息
// GET /api/v1/stats
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	docCount, err := h.docRepo.Count(ctx)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50003, "failed to count documents", err.Error())
		return
	}
	chunkCount, err := h.chunkRepo.Count(ctx)
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50003, "failed to count chunks", err.Error())
		return
	}

	stats := gin.H{
		"documents":     docCount,
		"chunks":        chunkCount,
		"knowledge_dir": h.ingestService.KnowledgeDir(),
	}
	if cfg, err := h.configManager.ReadConfig(); err == nil {
		stats["last_full_index"] = cfg.LastFullIndex
	}

	response.Success(c, stats)
}

// ListDocuments 分页列出已索引文档
// GET /api/v1/documents
func (h *KnowledgeHandler) ListDocuments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	docs, err := h.docRepo.List(c.Request.Context())
	if err != nil {
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50003, "failed to list documents", err.Error())
		return
	}

	total := len(docs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	response.SuccessWithPage(c, docs[start:end], page, pageSize, total)
}

// ClearData 清空全部索引数据
// DELETE /api/v1/data
func (h *KnowledgeHandler) ClearData(c *gin.Context) {
	if err := h.ingestService.ClearAll(c.Request.Context()); err != nil {
		h.logger.Error("Failed to clear knowledge data", "error", err)
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50004, "clear failed", err.Error())
		return
	}
	response.Success(c, gin.H{"message": "all data cleared"})
}
