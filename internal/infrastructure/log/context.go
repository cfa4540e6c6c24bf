package log

import (
	"context"
	"log/slog"
)

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID = "request_id"

	// QueryContextID 一次查询处理的 ID
	QueryContextID = "query_id"

	// DocumentContextID 文档 ID
	DocumentContextID = "document_id"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithQueryID 在上下文中添加查询 ID
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, QueryContextID, queryID)
}

// WithDocumentID 在上下文中添加文档 ID
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, DocumentContextID, documentID)
}

// LogCtxFromContext 从上下文中提取日志字段
// 返回值可直接展开传给 slog.Logger.With。
func LogCtxFromContext(ctx context.Context) []any {
	var attrs []any

	if requestID := ctx.Value(RequestContextID); requestID != nil {
		attrs = append(attrs, slog.String("request_id", requestID.(string)))
	}
	if queryID := ctx.Value(QueryContextID); queryID != nil {
		attrs = append(attrs, slog.String("query_id", queryID.(string)))
	}
	if documentID := ctx.Value(DocumentContextID); documentID != nil {
		attrs = append(attrs, slog.String("document_id", documentID.(string)))
	}

	return attrs
}
