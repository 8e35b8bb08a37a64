// Package ingest turns an uploaded file into a queryable document.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/docchat/internal/chunker"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/loader"
	"github.com/bull/docchat/internal/metadata"
	"github.com/bull/docchat/internal/ocr"
)

// Step names a pipeline stage, reported to the optional progress callback.
type Step string

const (
	StepArchive   Step = "archive"
	StepLoad      Step = "load"
	StepChunk     Step = "chunk"
	StepOCR       Step = "ocr"
	StepSummarize Step = "summarize"
	StepIndex     Step = "index"
)

// Steps lists every stage in order.
var Steps = []Step{StepArchive, StepLoad, StepChunk, StepOCR, StepSummarize, StepIndex}

// Index is the part of the vector index ingestion writes to.
type Index interface {
	Create(ctx context.Context, documentID string) error
	Add(ctx context.Context, doc domain.Document, units []domain.TextUnit) error
	Delete(ctx context.Context, documentID string) error
}

// Summarizer produces optional document metadata.
type Summarizer interface {
	Generate(ctx context.Context, name string, units []domain.TextUnit) (*metadata.DocumentMetadata, error)
}

// Registry records documents once they are queryable.
type Registry interface {
	Put(doc domain.Document)
	Lock(id string) (unlock func())
}

// Histories starts the conversation of a new document.
type Histories interface {
	Create(documentID string)
}

// Result contains statistics about one ingestion.
type Result struct {
	Document   domain.Document
	TextUnits  int
	ImageUnits int
	Pages      int
	Duration   time.Duration
}

// Pipeline orchestrates archive, load, chunk, OCR, summary and indexing.
type Pipeline struct {
	uploadDir  string
	chunker    *chunker.Chunker
	extractor  ocr.Extractor
	summarizer Summarizer
	index      Index
	registry   Registry
	histories  Histories
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline creates a pipeline. extractor may be ocr.Noop{} and summarizer may be nil.
func NewPipeline(
	uploadDir string,
	chunker *chunker.Chunker,
	extractor ocr.Extractor,
	summarizer Summarizer,
	index Index,
	registry Registry,
	histories Histories,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = ocr.Noop{}
	}
	return &Pipeline{
		uploadDir:  uploadDir,
		chunker:    chunker,
		extractor:  extractor,
		summarizer: summarizer,
		index:      index,
		registry:   registry,
		histories:  histories,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest archives the upload under a fresh document id and indexes it.
// onStep may be nil. Nothing is registered unless every step succeeds; the
// archived file is kept even when a later step fails.
func (p *Pipeline) Ingest(ctx context.Context, name string, r io.Reader, onStep func(Step)) (*Result, error) {
	start := p.now()
	report := func(s Step) {
		if onStep != nil {
			onStep(s)
		}
	}

	kind, err := loader.Detect(name)
	if err != nil {
		return nil, err
	}

	doc := domain.Document{
		ID:           uuid.New().String(),
		OriginalName: filepath.Base(name),
		CreatedAt:    start.UTC(),
	}
	doc.ServerFilename = doc.ID + "_" + SanitizeFilename(doc.OriginalName)
	logger := p.logger.With("document_id", doc.ID, "filename", doc.OriginalName)

	// 1. Archive
	path, err := p.archive(doc.ServerFilename, r)
	if err != nil {
		return nil, fmt.Errorf("archive upload: %w", err)
	}
	report(StepArchive)

	// 2. Load pages
	pages, err := loader.ForKind(kind).Load(ctx, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded document", "pages", len(pages))
	report(StepLoad)

	// 3. Chunk
	units, err := p.chunker.Split(doc.OriginalName, pages)
	if err != nil {
		return nil, &domain.ProcessingError{Name: doc.OriginalName, Reason: err.Error()}
	}
	textUnits := len(units)
	logger.Debug("Chunked document", "units", textUnits)
	report(StepChunk)

	// 4. Image text, best-effort
	if kind == loader.KindPDF {
		images, err := p.extractor.Extract(ctx, path, doc.OriginalName)
		if err != nil {
			logger.Warn("Image OCR failed, continuing without it", "extractor", p.extractor.Name(), "error", err)
		}
		units = append(units, images...)
	}
	report(StepOCR)

	if len(units) == 0 {
		return nil, &domain.ProcessingError{Name: doc.OriginalName, Reason: "no text could be extracted"}
	}

	// 5. Summary, best-effort
	if p.summarizer != nil {
		meta, err := p.summarizer.Generate(ctx, doc.OriginalName, units)
		if err != nil {
			logger.Warn("Metadata generation failed, using empty", "error", err)
		} else {
			doc.Summary = meta.Summary
		}
	}
	report(StepSummarize)

	// 6. Index and register
	if err := p.register(ctx, doc, units); err != nil {
		return nil, err
	}
	report(StepIndex)

	result := &Result{
		Document:   doc,
		TextUnits:  textUnits,
		ImageUnits: len(units) - textUnits,
		Pages:      len(pages),
		Duration:   p.now().Sub(start),
	}
	logger.Info("Indexed document",
		"pages", result.Pages,
		"text_units", result.TextUnits,
		"image_units", result.ImageUnits,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) register(ctx context.Context, doc domain.Document, units []domain.TextUnit) error {
	unlock := p.registry.Lock(doc.ID)
	defer unlock()

	if err := p.index.Create(ctx, doc.ID); err != nil {
		return err
	}
	if err := p.index.Add(ctx, doc, units); err != nil {
		if dropErr := p.index.Delete(context.WithoutCancel(ctx), doc.ID); dropErr != nil {
			p.logger.Warn("Could not drop partial collection", "document_id", doc.ID, "error", dropErr)
		}
		return err
	}

	p.registry.Put(doc)
	p.histories.Create(doc.ID)
	return nil
}

func (p *Pipeline) archive(serverName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.uploadDir, serverName)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces name to a safe single path element.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}
