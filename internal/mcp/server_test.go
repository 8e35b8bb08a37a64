package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/conversation"
	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/intent"
)

type fakeService struct {
	docs      []domain.Document
	answer    *generation.Answer
	chatErr   error
	messages  []conversation.Message
	clearErr  error
	healthErr error
	asked     []string
}

func (f *fakeService) Documents() []domain.Document { return f.docs }

func (f *fakeService) Chat(_ context.Context, id, msg string) (*generation.Answer, error) {
	f.asked = append(f.asked, id+":"+msg)
	return f.answer, f.chatErr
}

func (f *fakeService) History(string) []conversation.Message { return f.messages }
func (f *fakeService) ClearHistory(string) error { return f.clearErr }
func (f *fakeService) Health(context.Context) error { return f.healthErr }

func TestNewServer(t *testing.T) {
	t.Run("nil service returns error", func(t *testing.T) {
		server, err := NewServer(&Config{})
		assert.ErrorIs(t, err, ErrMissingService)
		assert.Nil(t, server)
	})

	t.Run("valid config creates server", func(t *testing.T) {
		server, err := NewServer(&Config{Service: &fakeService{}})
		require.NoError(t, err)
		assert.NotNil(t, server.MCPServer())
		assert.NotNil(t, NewHTTPHandler(server, nil))
	})
}

func TestHandleListDocuments(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &fakeService{docs: []domain.Document{
		{ID: "a", OriginalName: "a.pdf", Summary: "About A", CreatedAt: created},
		{ID: "b", OriginalName: "b.md", CreatedAt: created},
	}}
	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	_, out, err := server.handleListDocuments(context.Background(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, DocumentInfo{ID: "a", Filename: "a.pdf", Summary: "About A", Created: created}, out.Documents[0])
}

func TestHandleAskDocument(t *testing.T) {
	section := 4
	svc := &fakeService{answer: &generation.Answer{
		Text: "<p>Section four covers pricing.</p>",
		Sources: []domain.SourceRef{
			{Index: 1, Content: "pricing", Page: 7, Source: "a.pdf"},
			{Index: 2, Content: "ocr text"},
		},
		Classification: intent.Classification{Kind: intent.Summarization, SectionNumber: &section},
	}}
	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	_, out, err := server.handleAskDocument(context.Background(), nil,
		AskDocumentInput{DocumentID: "a", Question: "summarize section 4"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a:summarize section 4"}, svc.asked)
	assert.Equal(t, "<p>Section four covers pricing.</p>", out.Answer)
	assert.True(t, out.IsSummarization)
	require.NotNil(t, out.SectionNumber)
	assert.Equal(t, 4, *out.SectionNumber)
	assert.Equal(t, []Source{
		{Index: 1, Content: "pricing", Page: "7", Source: "a.pdf"},
		{Index: 2, Content: "ocr text", Page: "Unknown", Source: "Unknown"},
	}, out.Sources)
}

func TestHandleAskDocument_Error(t *testing.T) {
	svc := &fakeService{chatErr: domain.NotFound("missing")}
	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	_, _, err = server.handleAskDocument(context.Background(), nil, AskDocumentInput{DocumentID: "missing", Question: "hi"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestHandleHistory(t *testing.T) {
	svc := &fakeService{messages: []conversation.Message{
		{ID: "msg_history_0_a", Role: "user", Content: "q"},
		{ID: "msg_history_1_a", Role: "assistant", Content: "<p>a</p>", AssistantMeta: &conversation.AssistantMeta{
			Sources: []domain.SourceRef{{Index: 1, Content: "c", Page: 1, Source: "a.pdf"}},
		}},
	}}
	server, err := NewServer(&Config{Service: svc})
	require.NoError(t, err)

	_, out, err := server.handleGetHistory(context.Background(), nil, DocumentInput{DocumentID: "a"})
	require.NoError(t, err)
	require.Len(t, out.Messages, 2)
	assert.Empty(t, out.Messages[0].Sources)
	assert.Equal(t, "1", out.Messages[1].Sources[0].Page)

	_, cleared, err := server.handleClearHistory(context.Background(), nil, DocumentInput{DocumentID: "a"})
	require.NoError(t, err)
	assert.True(t, cleared.Cleared)

	svc.clearErr = domain.NotFound("a")
	_, _, err = server.handleClearHistory(context.Background(), nil, DocumentInput{DocumentID: "a"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"unhealthy", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{healthErr: tt.err, docs: []domain.Document{{ID: "a"}}}
			w := httptest.NewRecorder()
			NewHealthHandler(svc)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			assert.Equal(t, 1, resp.Documents)
		})
	}
}

func TestLandingHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewLandingHandler()(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ask_document")

	w = httptest.NewRecorder()
	NewLandingHandler()(w, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
