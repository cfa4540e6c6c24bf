package handler

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/knowbase/backend/internal/application/queryproc"
	"github.com/knowbase/backend/internal/infrastructure/log"
	"github.com/knowbase/backend/internal/interfaces/http/response"
)

// QueryHandler 查询处理器
type QueryHandler struct {
	processor *queryproc.Processor
	logger    *slog.Logger
}

// NewQueryHandler 创建查询处理器
func NewQueryHandler(processor *queryproc.Processor) *QueryHandler {
	return &QueryHandler{
		processor: processor,
		logger:    log.NewModuleLogger("http", "query_handler"),
	}
}

// QueryRequest 查询请求
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query 处理问答请求
// POST /api/v1/query
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, 40001, "query is required")
		return
	}

	result, err := h.processor.Process(c.Request.Context(), req.Query)
	if err != nil {
		h.logger.Error("Query processing failed", "error", err)
		response.ErrorWithDetail(c, http.StatusInternalServerError, 50001, "query processing failed", err.Error())
		return
	}

	response.Success(c, result)
}
