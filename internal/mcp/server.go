package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/generation"
)

// ErrMissingService is returned by NewServer when no service is configured.
var ErrMissingService = errors.New("mcp: service is required")

// Service is what the tools need from service.Service.
type Service interface {
	Documents() []domain.Document
	Chat(ctx context.Context, documentID, message string) (*generation.Answer, error)
	History(documentID string) []conversation.Message
	ClearHistory(documentID string) error
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	svc    Service
	logger *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	Service Service
	Version string
	Logger  *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Service == nil {
		return nil, ErrMissingService
	}
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "docchat",
		Version: version,
	}

	s := &Server{
		server: mcp.NewServer(impl, nil),
		svc:    cfg.Service,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the uploaded documents that can be asked about.",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_document",
		Description: "Ask a question about one document. The exchange is added to the document's conversation.",
	}, s.handleAskDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_history",
		Description: "Get the conversation recorded for a document.",
	}, s.handleGetHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Clear the conversation recorded for a document.",
	}, s.handleClearHistory)
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
