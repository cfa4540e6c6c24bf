package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/knowbase/backend/internal/domain/query"
)

// AskKnowledgeBaseInput 知识库问答工具输入
type AskKnowledgeBaseInput struct {
	Question string `json:"question" jsonschema:"Natural language question to answer from the knowledge base (required)"`
}

// AskKnowledgeBaseOutput 知识库问答工具输出
type AskKnowledgeBaseOutput struct {
	Answer     string       `json:"answer" jsonschema:"Synthesized answer text"`
	QueryType  string       `json:"query_type" jsonschema:"Detected intent type (simple/comparative/multi_aspect/complex)"`
	SubQueries []string     `json:"sub_queries,omitempty" jsonschema:"Sub-queries the question was decomposed into"`
	Sources    []*SourceRef `json:"sources,omitempty" jsonschema:"Source documents the answer is grounded on"`
}

// SourceRef 答案引用的来源
type SourceRef struct {
	Path    string  `json:"path" jsonschema:"Source markdown file path"`
	Section string  `json:"section,omitempty" jsonschema:"Section heading inside the document"`
	Score   float64 `json:"score" jsonschema:"Relevance score"`
}

// askKnowledgeBaseTool 知识库问答工具实现
func (s *MCPServer) askKnowledgeBaseTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AskKnowledgeBaseInput,
) (*mcp.CallToolResult, AskKnowledgeBaseOutput, error) {
	var output AskKnowledgeBaseOutput

	if input.Question == "" {
		return nil, output, fmt.Errorf("question is required")
	}

	result, err := s.processor.Process(ctx, input.Question)
	if err != nil {
		return nil, output, fmt.Errorf("query processing failed: %w", err)
	}

	output.Answer = result.Answer
	output.QueryType = string(result.QueryType)
	for _, sq := range result.SubQueries {
		output.SubQueries = append(output.SubQueries, sq.Query)
	}
	for _, c := range result.RetrievedChunks {
		output.Sources = append(output.Sources, &SourceRef{
			Path:    c.Chunk.SourcePath,
			Section: c.Chunk.Section,
			Score:   c.Score,
		})
	}

	// 返回 nil，SDK 会自动序列化 output
	return nil, output, nil
}

// SearchDocumentsInput 文档检索工具输入
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema:"Search query in natural language (required)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of chunks to return, defaults to 5, max 10"`
}

// SearchDocumentsOutput 文档检索工具输出
type SearchDocumentsOutput struct {
	Chunks     []*ChunkResult `json:"chunks" jsonschema:"Matching content chunks ordered by relevance"`
	TotalCount int            `json:"total_count" jsonschema:"Number of chunks returned"`
}

// ChunkResult 检索到的分块（面向 AI 的精简视图）
type ChunkResult struct {
	Content     string  `json:"content" jsonschema:"Chunk content text"`
	ContentType string  `json:"content_type" jsonschema:"Chunk content type: text/table/image/code"`
	Path        string  `json:"path" jsonschema:"Source markdown file path"`
	Section     string  `json:"section,omitempty" jsonschema:"Section heading inside the document"`
	Score       float64 `json:"score" jsonschema:"Relevance score"`
}

// searchDocumentsTool 文档检索工具实现
func (s *MCPServer) searchDocumentsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	output := SearchDocumentsOutput{
		Chunks: []*ChunkResult{},
	}

	if input.Query == "" {
		return nil, output, fmt.Errorf("query is required")
	}

	// 默认 5 个，最多 10 个，避免上下文过载
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}
	if limit > 10 {
		limit = 10
	}

	chunks, err := s.retriever.Retrieve(ctx, input.Query)
	if err != nil {
		if errors.Is(err, query.ErrRetrievalUnavailable) {
			return nil, output, fmt.Errorf("knowledge base is empty or not indexed yet")
		}
		return nil, output, fmt.Errorf("search failed: %w", err)
	}

	ranked := s.reranker.Rerank(input.Query, chunks)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	for _, c := range ranked {
		output.Chunks = append(output.Chunks, &ChunkResult{
			Content:     c.Chunk.Content,
			ContentType: string(c.Chunk.ContentType),
			Path:        c.Chunk.SourcePath,
			Section:     c.Chunk.Section,
			Score:       c.Score,
		})
	}
	output.TotalCount = len(output.Chunks)

	return nil, output, nil
}
