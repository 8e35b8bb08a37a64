// Package service is the single entry point used by the HTTP API, the MCP
// tools and the CLI.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bull/docchat/internal/chunker"
	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/feedback"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/intent"
	"github.com/bull/docchat/internal/ocr"
	"github.com/bull/docchat/internal/registry"
	"github.com/bull/docchat/internal/retrieval"
)

// Index is everything the service needs from the vector index.
type Index interface {
	ingest.Index
	retrieval.Searcher
	Documents(ctx context.Context) ([]domain.Document, error)
	Count(ctx context.Context, documentID string) (uint64, error)
	Health(ctx context.Context) error
}

// Options holds the collaborators of a Service.
type Options struct {
	Index      Index
	StoreType  string // reported by Debug
	Completer  generation.Completer
	Extractor  ocr.Extractor
	Summarizer ingest.Summarizer // optional
	Chunker    *chunker.Chunker
	UploadDir  string
	Logger     *slog.Logger
}

// Service is the single entry point used by the HTTP API, the MCP server and the CLI.
type Service struct {
	index        Index
	storeType    string
	registry     *registry.Registry
	histories    *conversation.Store
	pipeline     *ingest.Pipeline
	orchestrator *generation.Orchestrator
	feedback     *feedback.Store
	uploadDir    string
	logger       *slog.Logger
}

// New wires the ingestion, retrieval and generation components together.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chunks := opts.Chunker
	if chunks == nil {
		chunks = chunker.New(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
	}

	reg := registry.New()
	histories := conversation.NewStore()
	engine := retrieval.NewEngine(opts.Index, reg, logger)

	return &Service{
		index:        opts.Index,
		storeType:    opts.StoreType,
		registry:     reg,
		histories:    histories,
		pipeline:     ingest.NewPipeline(opts.UploadDir, chunks, opts.Extractor, opts.Summarizer, opts.Index, reg, histories, logger),
		orchestrator: generation.NewOrchestrator(intent.Classifier{}, engine, opts.Completer, histories, logger),
		feedback:     feedback.NewStore(logger),
		uploadDir:    opts.UploadDir,
		logger:       logger,
	}
}

// Reload registers every document found in the vector store, each with an
// empty history. It returns the number of documents restored.
func (s *Service) Reload(ctx context.Context) (int, error) {
	docs, err := s.index.Documents(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload documents: %w", err)
	}
	for _, doc := range docs {
		if doc.ServerFilename == "" {
			doc.ServerFilename = s.archivedName(doc.ID)
		}
		s.registry.Put(doc)
		if !s.histories.Has(doc.ID) {
			s.histories.Create(doc.ID)
		}
	}
	s.logger.Info("Loaded existing documents", "count", len(docs))
	return len(docs), nil
}

// Upload ingests a file. onStep may be nil.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, onStep func(ingest.Step)) (*ingest.Result, error) {
	return s.pipeline.Ingest(ctx, name, r, onStep)
}

// Documents lists active documents, oldest first.
func (s *Service) Documents() []domain.Document {
	return s.registry.List()
}

// Document returns an active document or domain.ErrNotFound.
func (s *Service) Document(id string) (domain.Document, error) {
	doc, ok := s.registry.Get(id)
	if !ok {
		return domain.Document{}, domain.NotFound(id)
	}
	return doc, nil
}

func validateChat(documentID, message string) error {
	if strings.TrimSpace(message) == "" {
		return domain.Invalid("message", "No message provided")
	}
	if strings.TrimSpace(documentID) == "" {
		return domain.Invalid("documentId", "No document provided")
	}
	return nil
}

// Chat answers a question about a document and records the exchange.
func (s *Service) Chat(ctx context.Context, documentID, message string) (*generation.Answer, error) {
	if err := validateChat(documentID, message); err != nil {
		return nil, err
	}
	return s.orchestrator.Answer(ctx, documentID, message)
}

// Stream is Chat with incremental output; see generation.Orchestrator.Stream.
func (s *Service) Stream(ctx context.Context, documentID, message string, yield func(chunk string) error) (*generation.Answer, error) {
	if err := validateChat(documentID, message); err != nil {
		return nil, err
	}
	return s.orchestrator.Stream(ctx, documentID, message, yield)
}

// History returns the rendered conversation, empty for unknown documents.
func (s *Service) History(documentID string) []conversation.Message {
	return s.histories.Messages(documentID)
}

// ClearHistory empties a conversation. Unknown ids are domain.ErrNotFound.
func (s *Service) ClearHistory(documentID string) error {
	if !s.histories.Clear(documentID) {
		return domain.NotFound(documentID)
	}
	return nil
}

// Delete drops the collection first so a store failure leaves the document intact.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	unlock := s.registry.Lock(documentID)
	defer unlock()

	if _, ok := s.registry.Get(documentID); !ok {
		return domain.NotFound(documentID)
	}
	if err := s.index.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	s.registry.Remove(documentID)
	s.histories.Delete(documentID)
	s.removeArchived(documentID)

	s.logger.Info("Deleted document", "document_id", documentID)
	return nil
}

func (s *Service) archivedFiles(documentID string) []string {
	if s.uploadDir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil
	}
	var matches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), documentID+"_") {
			matches = append(matches, filepath.Join(s.uploadDir, e.Name()))
		}
	}
	return matches
}

func (s *Service) archivedName(documentID string) string {
	if files := s.archivedFiles(documentID); len(files) > 0 {
		return filepath.Base(files[0])
	}
	return ""
}

func (s *Service) removeArchived(documentID string) {
	for _, path := range s.archivedFiles(documentID) {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("Could not remove archived upload", "path", path, "error", err)
		}
	}
}

// DebugInfo describes the retrieval state of one document.
type DebugInfo struct {
	DocumentID      string           `json:"document_id"`
	RetrieverType   string           `json:"retriever_type"`
	TestResults     int              `json:"test_results"`
	UnitCount       uint64           `json:"unit_count"`
	HasVectorstore  bool             `json:"has_vectorstore"`
	VectorstoreType string           `json:"vectorstore_type"`
	Feedback        []feedback.Entry `json:"feedback"`
}

// Debug runs a test query against a document's collection and lists the
// feedback received for it.
func (s *Service) Debug(ctx context.Context, documentID string) (*DebugInfo, error) {
	if _, ok := s.registry.Get(documentID); !ok {
		return nil, domain.NotFound(documentID)
	}
	units, err := s.index.Query(ctx, documentID, "test", retrieval.DefaultTopK)
	if err != nil {
		return nil, fmt.Errorf("probe query: %w", err)
	}
	count, err := s.index.Count(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("count units: %w", err)
	}
	return &DebugInfo{
		DocumentID:      documentID,
		RetrieverType:   "similarity",
		TestResults:     len(units),
		UnitCount:       count,
		HasVectorstore:  true,
		VectorstoreType: s.storeType,
		Feedback:        s.feedback.List(documentID),
	}, nil
}

// SubmitFeedback validates and records a rating.
func (s *Service) SubmitFeedback(sub feedback.Submission) (feedback.Entry, error) {
	return s.feedback.Submit(sub)
}

// Health reports whether the vector store is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.index.Health(ctx)
}

// UploadPath resolves an archived file name inside the upload dir. ok is
// false for names that would escape it.
func (s *Service) UploadPath(name string) (path string, ok bool) {
	if name == "" || s.uploadDir == "" {
		return "", false
	}
	root, err := filepath.Abs(s.uploadDir)
	if err != nil {
		return "", false
	}
	path = filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}
