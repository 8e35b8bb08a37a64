// Package app builds the service graph shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bull/docchat/internal/chunker"
	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/embedding"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/llm"
	"github.com/bull/docchat/internal/metadata"
	"github.com/bull/docchat/internal/ocr"
	"github.com/bull/docchat/internal/service"
	"github.com/bull/docchat/internal/vectorindex"
)

// App holds the wired service and the vector index behind it.
type App struct {
	Service *service.Service
	Index   *vectorindex.Index
	closers []io.Closer
}

// Close releases store connections.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build connects to the configured vector store and model endpoints and
// restores the documents already in the store.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}

	var backend vectorindex.Backend
	switch cfg.Qdrant.Store {
	case "memory":
		backend = vectorindex.NewMemoryBackend()
	default:
		qb, err := vectorindex.NewQdrantBackend(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		a.closers = append(a.closers, qb)
		backend = qb
	}

	var embedder vectorindex.Embedder
	switch cfg.Embedding.Provider {
	case "hashing":
		embedder = embedding.NewHashingEmbedder(cfg.Embedding.Dimension)
	default:
		client, err := embedding.NewClient(embedding.ClientConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Timeout: cfg.LLM.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		embedder = embedding.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	}
	a.Index = vectorindex.New(backend, embedder, logger)

	completer, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}

	var summarizer ingest.Summarizer
	if cfg.Ingest.MetadataSummary {
		summarizer = metadata.NewGenerator(completer.OpenAI(), completer.Model(), 0, logger)
	}

	var extractor ocr.Extractor = ocr.Noop{}
	if cfg.Ingest.OCR {
		extractor = ocr.Detect(logger)
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		a.Close()
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	a.Service = service.New(service.Options{
		Index:      a.Index,
		StoreType:  cfg.Qdrant.Store,
		Completer:  completer,
		Extractor:  extractor,
		Summarizer: summarizer,
		Chunker:    chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		UploadDir:  cfg.Server.UploadDir,
		Logger:     logger,
	})

	if _, err := a.Service.Reload(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
