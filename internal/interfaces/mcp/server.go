package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/knowbase/backend/internal/application/queryproc"
	"github.com/knowbase/backend/internal/application/retrieval"
)

// MCPServer MCP 服务器
// 把知识库问答和检索能力暴露为 MCP 工具，通过 HTTP/SSE 集成到主服务。
type MCPServer struct {
	server    *mcp.Server
	handler   http.Handler
	processor *queryproc.Processor
	retriever *retrieval.HybridRetriever
	reranker  *retrieval.Reranker
}

// NewServer 创建 MCP 服务器
func NewServer(
	processor *queryproc.Processor,
	retriever *retrieval.HybridRetriever,
	reranker *retrieval.Reranker,
) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "knowbase-daemon",
			Version: "0.1.0",
		},
		nil, // 使用默认能力
	)

	mcpServer := &MCPServer{
		server:    server,
		processor: processor,
		retriever: retriever,
		reranker:  reranker,
	}

	// 注册工具：ask_knowledge_base
	mcp.AddTool(server, &mcp.Tool{
		Name: "ask_knowledge_base",
		Description: `Ask a question against the local Markdown knowledge base and get a synthesized answer.

Use this tool when you need factual information, comparisons, or analysis grounded in the user's indexed documents.
Complex questions are automatically decomposed into sub-queries and executed step by step.

Parameters:
- question (string, required): Natural language question, Chinese or English.

Returns: answer text, detected query type, sub-queries used, and source attributions.`,
	}, mcpServer.askKnowledgeBaseTool)

	// 注册工具：search_documents
	mcp.AddTool(server, &mcp.Tool{
		Name: "search_documents",
		Description: `Search the local Markdown knowledge base and return the most relevant content chunks without answer synthesis.

Use this tool when you want raw source material rather than a composed answer.

Parameters:
- query (string, required): Search query in natural language.
- limit (int, optional): Maximum number of chunks to return (1-10, default: 5).

Returns: list of matching chunks with content, source path, section, and relevance score.`,
	}, mcpServer.searchDocumentsTool)

	// 创建 SSE Handler
	handler := mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			// 每个请求返回同一个服务器实例
			return server
		},
		nil, // SSEOptions，使用默认值
	)

	mcpServer.handler = handler
	return mcpServer
}

// GetHandler 获取 HTTP Handler（用于集成到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}
