// Package api exposes the document chat service over HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/feedback"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/service"
)

// Service is the subset of service.Service the handlers call.
type Service interface {
	Upload(ctx context.Context, name string, r io.Reader, onStep func(ingest.Step)) (*ingest.Result, error)
	Documents() []domain.Document
	Document(id string) (domain.Document, error)
	Delete(ctx context.Context, documentID string) error
	Debug(ctx context.Context, documentID string) (*service.DebugInfo, error)
	Chat(ctx context.Context, documentID, message string) (*generation.Answer, error)
	Stream(ctx context.Context, documentID, message string, yield func(chunk string) error) (*generation.Answer, error)
	History(documentID string) []conversation.Message
	ClearHistory(documentID string) error
	SubmitFeedback(sub feedback.Submission) (feedback.Entry, error)
	UploadPath(name string) (string, bool)
}

// Options carries the handlers mounted next to the JSON API. Nil handlers are skipped.
type Options struct {
	Health  http.Handler
	MCP     http.Handler
	Landing http.Handler
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(svc Service, cfg config.ServerConfig, logger *slog.Logger, opts Options) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware(cfg.CORSOrigins))

	h := &handlers{svc: svc, maxUploadBytes: cfg.MaxUploadBytes, logger: logger}

	if opts.Landing != nil {
		r.GET("/", gin.WrapH(opts.Landing))
	}
	if opts.Health != nil {
		r.GET("/health", gin.WrapH(opts.Health))
	}
	if opts.MCP != nil {
		r.Any("/mcp", gin.WrapH(opts.MCP))
	}
	r.GET("/uploads/*filepath", h.serveUpload)

	api := r.Group("/api")
	{
		api.GET("/test", h.test)
		api.POST("/upload", h.upload)
		api.GET("/documents", h.listDocuments)
		api.GET("/documents/:id", h.getDocument)
		api.DELETE("/documents/:id", h.deleteDocument)
		api.GET("/debug/:id", h.debug)
		api.POST("/feedback", h.submitFeedback)

		chat := api.Group("/chat", NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
		chat.POST("", h.chat)
		chat.POST("/stream", h.stream)
		chat.GET("/history/:id", h.history)
		chat.DELETE("/history/:id", h.clearHistory)
	}

	return r
}
