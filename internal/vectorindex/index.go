// Package vectorindex keeps one similarity-searchable collection per document.
package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/docchat/internal/domain"
)

const collectionPrefix = "doc_"

// CollectionName derives the collection for a document id.
func CollectionName(documentID string) string {
	return collectionPrefix + documentID
}

// DocumentID reverses CollectionName. ok is false for foreign collections.
func DocumentID(collection string) (id string, ok bool) {
	id, ok = strings.CutPrefix(collection, collectionPrefix)
	return id, ok && id != ""
}

// Stamp is the document identity copied into every point so the registry
// can be rebuilt from the store alone.
type Stamp struct {
	DocumentName string
	CreatedAt    time.Time
}

// Point is one embedded text unit.
type Point struct {
	ID     string
	Vector []float32
	Unit   domain.TextUnit
	Stamp  Stamp
	Score  float32 // set on search results
}

// Backend is a vector store addressed by collection name.
type Backend interface {
	Health(ctx context.Context) error
	CreateCollection(ctx context.Context, name string, dimension int) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Point, error)
	// Sample returns any one point of the collection, or nil when it is empty.
	Sample(ctx context.Context, collection string) (*Point, error)
	Count(ctx context.Context, collection string) (uint64, error)
}

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Index binds an embedder to a backend and speaks in documents and text units.
type Index struct {
	backend  Backend
	embedder Embedder
	logger   *slog.Logger
}

// New creates an Index. A nil logger uses slog.Default().
func New(backend Backend, embedder Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{backend: backend, embedder: embedder, logger: logger}
}

// Create makes the empty collection for a document.
func (x *Index) Create(ctx context.Context, documentID string) error {
	if err := x.backend.CreateCollection(ctx, CollectionName(documentID), x.embedder.Dimension()); err != nil {
		return fmt.Errorf("create collection for %s: %w", documentID, err)
	}
	return nil
}

// Add embeds units and stores them in the document's collection.
func (x *Index) Add(ctx context.Context, doc domain.Document, units []domain.TextUnit) error {
	if len(units) == 0 {
		return nil
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Content
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d units: %w", len(units), err)
	}
	if len(vectors) != len(units) {
		return fmt.Errorf("embedder returned %d vectors for %d units", len(vectors), len(units))
	}

	stamp := Stamp{DocumentName: doc.OriginalName, CreatedAt: doc.CreatedAt}
	points := make([]Point, len(units))
	for i, u := range units {
		points[i] = Point{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Unit:   u,
			Stamp:  stamp,
		}
	}

	if err := x.backend.Upsert(ctx, CollectionName(doc.ID), points); err != nil {
		return fmt.Errorf("store units for %s: %w", doc.ID, err)
	}
	x.logger.Debug("Stored units", "document_id", doc.ID, "units", len(points))
	return nil
}

// Query returns up to k units ranked by similarity to text.
func (x *Index) Query(ctx context.Context, documentID, text string, k int) ([]domain.TextUnit, error) {
	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	points, err := x.backend.Search(ctx, CollectionName(documentID), vectors[0], k)
	if err != nil {
		return nil, err
	}

	units := make([]domain.TextUnit, len(points))
	for i, p := range points {
		units[i] = p.Unit
	}
	return units, nil
}

// Delete drops the document's collection.
func (x *Index) Delete(ctx context.Context, documentID string) error {
	if err := x.backend.DeleteCollection(ctx, CollectionName(documentID)); err != nil {
		return fmt.Errorf("delete collection for %s: %w", documentID, err)
	}
	return nil
}

// Count reports how many units a document's collection holds.
func (x *Index) Count(ctx context.Context, documentID string) (uint64, error) {
	return x.backend.Count(ctx, CollectionName(documentID))
}

// Documents rebuilds document records from the persisted collections.
func (x *Index) Documents(ctx context.Context) ([]domain.Document, error) {
	names, err := x.backend.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	var docs []domain.Document
	for _, name := range names {
		id, ok := DocumentID(name)
		if !ok {
			continue
		}
		doc := domain.Document{ID: id, OriginalName: id}

		sample, err := x.backend.Sample(ctx, name)
		if err != nil {
			x.logger.Warn("Could not read collection stamp", "collection", name, "error", err)
		} else if sample != nil {
			if sample.Stamp.DocumentName != "" {
				doc.OriginalName = sample.Stamp.DocumentName
			}
			doc.CreatedAt = sample.Stamp.CreatedAt
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Health reports whether the backend is reachable.
func (x *Index) Health(ctx context.Context) error {
	return x.backend.Health(ctx)
}
