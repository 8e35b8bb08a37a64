// Package retrieval turns a query into the ranked units used as answer context.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/intent"
)

const (
	DefaultTopK      = 5
	DefaultBroadK    = 10
	GenericProbe     = "document content"
	stagePrimary     = "primary"
	stageStructural  = "structural"
	stageFallback    = "fallback_query"
	stageFallbackAll = "fallback_generic"
)

// StructuralProbes are searched in addition to the query for structure questions.
var StructuralProbes = []string{
	"table of contents",
	"chapter",
	"section",
	"part",
	"introduction",
	"conclusion",
}

// Searcher runs a similarity query against one document's index.
type Searcher interface {
	Query(ctx context.Context, documentID, text string, k int) ([]domain.TextUnit, error)
}

// Lookup reports whether a document is active.
type Lookup interface {
	Get(id string) (domain.Document, bool)
}

// Engine retrieves units with a fallback cascade: when the first pass finds
// nothing it retries with the query, then with a generic probe at a larger k.
// An empty result is not an error.
type Engine struct {
	searcher Searcher
	docs     Lookup
	logger   *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(searcher Searcher, docs Lookup, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{searcher: searcher, docs: docs, logger: logger}
}

// Retrieve returns deduplicated units in citation order. It fails only for an
// unknown document, before any search is issued.
func (e *Engine) Retrieve(ctx context.Context, documentID, query string, cl intent.Classification) ([]domain.TextUnit, error) {
	if _, ok := e.docs.Get(documentID); !ok {
		return nil, domain.NotFound(documentID)
	}

	units := e.search(ctx, stagePrimary, documentID, query, DefaultTopK)
	if cl.Kind == intent.StructuralCount {
		for _, probe := range StructuralProbes {
			units = append(units, e.search(ctx, stageStructural, documentID, probe, DefaultTopK)...)
		}
		units = Dedup(units)
	}
	if len(units) > 0 {
		return units, nil
	}

	e.logger.Info("Primary retrieval empty, falling back", "document_id", documentID)
	if units = e.search(ctx, stageFallback, documentID, query, DefaultTopK); len(units) > 0 {
		return units, nil
	}
	if units = e.search(ctx, stageFallbackAll, documentID, GenericProbe, DefaultBroadK); len(units) > 0 {
		return units, nil
	}

	e.logger.Warn("Retrieval found no context", "document_id", documentID)
	return []domain.TextUnit{}, nil
}

// search logs failures and treats them as empty results.
func (e *Engine) search(ctx context.Context, stage, documentID, text string, k int) []domain.TextUnit {
	units, err := e.searcher.Query(ctx, documentID, text, k)
	if err != nil {
		e.logger.Warn("Search failed", "stage", stage, "document_id", documentID, "error", err)
		return nil
	}
	e.logger.Debug("Search done", "stage", stage, "document_id", documentID, "results", len(units))
	return units
}

// Dedup drops units whose content repeats an earlier unit, keeping first-seen order.
func Dedup(units []domain.TextUnit) []domain.TextUnit {
	seen := make(map[string]struct{}, len(units))
	out := make([]domain.TextUnit, 0, len(units))
	for _, u := range units {
		if _, dup := seen[u.Content]; dup {
			continue
		}
		seen[u.Content] = struct{}{}
		out = append(out, u)
	}
	return out
}
