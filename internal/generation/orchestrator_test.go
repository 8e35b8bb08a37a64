package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/intent"
	"github.com/bull/docchat/internal/llm"
)

type fakeRetriever struct {
	units []domain.TextUnit
	known map[string]bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, id, _ string, _ intent.Classification) ([]domain.TextUnit, error) {
	if !f.known[id] {
		return nil, domain.NotFound(id)
	}
	return f.units, nil
}

type fakeCompleter struct {
	deltas   []string
	err      error // returned after all deltas
	requests []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeCompleter) Stream(ctx context.Context, req llm.Request, yield func(string) error) (string, error) {
	f.requests = append(f.requests, req)
	var b strings.Builder
	for _, d := range f.deltas {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := yield(d); err != nil {
			return "", err
		}
		b.WriteString(d)
	}
	if f.err != nil {
		return "", f.err
	}
	return b.String(), nil
}

func setup(deltas ...string) (*Orchestrator, *fakeCompleter, *conversation.Store) {
	store := conversation.NewStore()
	store.Create("doc")
	retriever := &fakeRetriever{
		units: []domain.TextUnit{
			{Content: "Chapter 1: Basics", Page: 1, Source: "book.pdf"},
			{Content: "[Image OCR on page 2]\nfigure", Page: 2, Source: "book.pdf", Origin: domain.OriginImageOCR},
		},
		known: map[string]bool{"doc": true},
	}
	completer := &fakeCompleter{deltas: deltas}
	return NewOrchestrator(intent.Classifier{}, retriever, completer, store, nil), completer, store
}

func TestAnswer_CommitsOnce(t *testing.T) {
	o, completer, store := setup("**Two** chapters.")

	answer, err := o.Answer(context.Background(), "doc", "how many chapters are there?")
	require.NoError(t, err)
	assert.Equal(t, "<p><strong>Two</strong> chapters.</p>", answer.Text)
	assert.Equal(t, intent.StructuralCount, answer.Classification.Kind)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, 1, answer.Sources[0].Index)

	turns := store.Get("doc")
	require.Len(t, turns, 2)
	assert.Equal(t, "how many chapters are there?", turns[0].(*conversation.UserTurn).Content)
	assistant := turns[1].(*conversation.AssistantTurn)
	assert.Equal(t, answer.Text, assistant.Content)
	assert.Equal(t, answer.Sources, assistant.Sources)

	require.Len(t, completer.requests, 1)
	assert.Equal(t, DefaultMaxTokens, completer.requests[0].MaxTokens)
}

func TestAnswer_UnknownDocument(t *testing.T) {
	o, completer, store := setup("x")
	_, err := o.Answer(context.Background(), "other", "hi")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, completer.requests)
	assert.Empty(t, store.Get("doc"))
}

func TestAnswer_GenerationErrorCommitsNothing(t *testing.T) {
	o, completer, store := setup()
	completer.err = &domain.GenerationError{StatusCode: 500, Body: "boom"}

	_, err := o.Answer(context.Background(), "doc", "hi")
	var genErr *domain.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 500, genErr.StatusCode)
	assert.Empty(t, store.Get("doc"))
}

func TestStream_Success(t *testing.T) {
	o, _, store := setup("Sum", "mary of ", "*section 3*")

	var chunks []string
	answer, err := o.Stream(context.Background(), "doc", "summarize and give your opinion on section 3", func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"Sum", "mary of ", "*section 3*"}, chunks[:3])

	last := chunks[3]
	require.True(t, strings.HasPrefix(last, SourcesMarker))
	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(last, SourcesMarker)), &meta))
	assert.Equal(t, true, meta["is_summarization"])
	assert.Equal(t, float64(3), meta["section_number"])
	assert.Equal(t, false, meta["is_opinion"])
	assert.Len(t, meta["sources"], 2)

	assert.Equal(t, "<p>Summary of <em>section 3</em></p>", answer.Text)
	turns := store.Get("doc")
	require.Len(t, turns, 2)
	assert.Equal(t, answer.Text, turns[1].(*conversation.AssistantTurn).Content)
}

func TestStream_CancelledCommitsNothing(t *testing.T) {
	o, _, store := setup("a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())

	var chunks []string
	_, err := o.Stream(ctx, "doc", "hi", func(c string) error {
		chunks = append(chunks, c)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, chunks, "no marker after cancellation")
	assert.Empty(t, store.Get("doc"))
}

func TestStream_YieldErrorCommitsNothing(t *testing.T) {
	o, _, store := setup("a", "b")
	gone := errors.New("broken pipe")

	_, err := o.Stream(context.Background(), "doc", "hi", func(string) error { return gone })
	assert.ErrorIs(t, err, gone)
	assert.Empty(t, store.Get("doc"))
}

func TestStream_UpstreamErrorInBand(t *testing.T) {
	o, completer, store := setup("partial ")
	completer.err = &domain.GenerationError{StatusCode: 502, Body: "bad gateway"}

	var chunks []string
	_, err := o.Stream(context.Background(), "doc", "hi", func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	var genErr *domain.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, []string{"partial ", "\n[Stream error: API call failed: 502 - bad gateway]"}, chunks)
	assert.Empty(t, store.Get("doc"))
}

func TestStream_HistoryReplayed(t *testing.T) {
	o, completer, store := setup("ok")
	store.Append("doc", &conversation.UserTurn{Content: "first"}, &conversation.AssistantTurn{Content: "<p>one</p>"})

	_, err := o.Stream(context.Background(), "doc", "summarize it", func(string) error { return nil })
	require.NoError(t, err)

	req := completer.requests[0]
	require.Len(t, req.Messages, 4)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "[Source 1]\nChapter 1: Basics\n\n[Source 2]")
	assert.Contains(t, req.Messages[0].Content, "Context from document:\n")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "first"}, req.Messages[1])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "<p>one</p>"}, req.Messages[2])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "summarize it"}, req.Messages[3])
	assert.Equal(t, SummarizationMaxTokens, req.MaxTokens)
	assert.InDelta(t, Temperature, req.Temperature, 1e-9)

	assert.Len(t, store.Get("doc"), 4)
}

func TestSystemPrompt(t *testing.T) {
	n := 4
	assert.Contains(t, SystemPrompt(intent.Classification{Kind: intent.Summarization, SectionNumber: &n}, "ctx"),
		"Context from document (Section 4):\nctx")
	assert.Contains(t, SystemPrompt(intent.Classification{Kind: intent.StructuralCount}, "ctx"), "analyzes document structure")
	assert.Contains(t, SystemPrompt(intent.Classification{Kind: intent.Opinion}, "ctx"), "thoughtful opinion")
	assert.True(t, strings.HasPrefix(SystemPrompt(intent.Classification{Kind: intent.Plain}, "ctx"),
		"You are an intelligent assistant that provides comprehensive answers"))
	assert.Equal(t, "", BuildContext(nil))
}
