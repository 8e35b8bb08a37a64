// Package generation builds prompts, calls the completion service and
// records finished answers in the conversation history.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/intent"
	"github.com/bull/docchat/internal/llm"
)

// SourcesMarker separates streamed answer text from the trailing metadata.
const SourcesMarker = "\n[[SOURCES]]"

// Completer produces answer text, blocking or as a stream of deltas.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Stream(ctx context.Context, req llm.Request, yield func(delta string) error) (string, error)
}

// Retriever selects the units used as answer context.
type Retriever interface {
	Retrieve(ctx context.Context, documentID, query string, cl intent.Classification) ([]domain.TextUnit, error)
}

// History holds the per-document conversation the orchestrator reads and extends.
type History interface {
	Get(documentID string) []conversation.Turn
	Append(documentID string, turns ...conversation.Turn) bool
}

// Answer is a finished, formatted response.
type Answer struct {
	Text           string
	Sources        []domain.SourceRef
	Classification intent.Classification
}

// Metadata is the JSON object that follows SourcesMarker.
type Metadata struct {
	Sources []domain.SourceRef `json:"sources"`
	intent.Flags
}

// Metadata returns the sources and intent flags sent after a streamed answer.
func (a *Answer) Metadata() Metadata {
	sources := a.Sources
	if sources == nil {
		sources = []domain.SourceRef{}
	}
	return Metadata{Sources: sources, Flags: a.Classification.Flags()}
}

// Orchestrator answers questions about one document at a time.
type Orchestrator struct {
	classifier intent.Classifier
	retriever  Retriever
	completer  Completer
	history    History
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil logger uses slog.Default().
func NewOrchestrator(classifier intent.Classifier, retriever Retriever, completer Completer, history History, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		classifier: classifier,
		retriever:  retriever,
		completer:  completer,
		history:    history,
		logger:     logger,
	}
}

type prepared struct {
	cl      intent.Classification
	sources []domain.SourceRef
	request llm.Request
}

// prepare classifies and retrieves once so prompt context and citations agree.
func (o *Orchestrator) prepare(ctx context.Context, documentID, query string) (*prepared, error) {
	cl := o.classifier.Classify(query)
	units, err := o.retriever.Retrieve(ctx, documentID, query, cl)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Generating answer",
		"document_id", documentID, "intent", cl.Kind, "context_units", len(units))

	return &prepared{
		cl:      cl,
		sources: domain.SourcesFrom(units),
		request: BuildRequest(cl, units, o.history.Get(documentID), query),
	}, nil
}

// Answer runs a blocking completion and commits the turn.
func (o *Orchestrator) Answer(ctx context.Context, documentID, query string) (*Answer, error) {
	p, err := o.prepare(ctx, documentID, query)
	if err != nil {
		return nil, err
	}

	text, err := o.completer.Complete(ctx, p.request)
	if err != nil {
		return nil, err
	}
	return o.commit(documentID, query, text, p), nil
}

// Stream yields answer deltas as they arrive. Only a stream that runs to
// completion is committed; on cancellation or a yield error nothing is
// recorded. An upstream failure is reported in-band before it is returned.
func (o *Orchestrator) Stream(ctx context.Context, documentID, query string, yield func(chunk string) error) (*Answer, error) {
	p, err := o.prepare(ctx, documentID, query)
	if err != nil {
		return nil, err
	}

	text, err := o.completer.Stream(ctx, p.request, yield)
	if err != nil {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			_ = yield(fmt.Sprintf("\n[Stream error: %s]", genErr.Error()))
		}
		o.logger.Warn("Stream ended without commit", "document_id", documentID, "error", err)
		return nil, err
	}

	answer := o.commit(documentID, query, text, p)

	meta, err := json.Marshal(answer.Metadata())
	if err != nil {
		return answer, fmt.Errorf("encode sources: %w", err)
	}
	if err := yield(SourcesMarker + string(meta)); err != nil {
		return answer, err
	}
	return answer, nil
}

func (o *Orchestrator) commit(documentID, query, text string, p *prepared) *Answer {
	answer := &Answer{
		Text:           Format(text),
		Sources:        p.sources,
		Classification: p.cl,
	}
	ok := o.history.Append(documentID,
		&conversation.UserTurn{Content: query},
		&conversation.AssistantTurn{
			Content:        answer.Text,
			Sources:        answer.Sources,
			Classification: answer.Classification,
		},
	)
	if !ok {
		// deleted while the answer was being generated
		o.logger.Warn("Conversation gone, answer not recorded", "document_id", documentID)
	}
	return answer
}
