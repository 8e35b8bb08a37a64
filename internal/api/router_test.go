package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/config"
	"github.com/bull/docchat/internal/embedding"
	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/llm"
	"github.com/bull/docchat/internal/service"
	"github.com/bull/docchat/internal/vectorindex"
)

const handbook = "# Introduction\n\nThis handbook explains the onboarding process for new staff.\n\n" +
	"# Benefits\n\nEmployees receive health insurance and twenty days of paid leave.\n"

type stubCompleter struct{ answer string }

func (s stubCompleter) Complete(context.Context, llm.Request) (string, error) { return s.answer, nil }

func (s stubCompleter) Stream(_ context.Context, _ llm.Request, yield func(string) error) (string, error) {
	for _, w := range strings.SplitAfter(s.answer, " ") {
		if err := yield(w); err != nil {
			return "", err
		}
	}
	return s.answer, nil
}

type testServer struct {
	router    *gin.Engine
	uploadDir string
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *testServer {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	svc := service.New(service.Options{
		Index:     vectorindex.New(vectorindex.NewMemoryBackend(), embedding.NewHashingEmbedder(128), nil),
		StoreType: "memory",
		Completer: stubCompleter{answer: "Staff get **twenty** days of leave."},
		UploadDir: dir,
	})
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 1000
		cfg.RateLimitBurst = 1000
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 1 << 20
	}
	return &testServer{router: NewRouter(svc, cfg, nil, Options{}), uploadDir: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) uploadHandbook(t *testing.T) map[string]any {
	t.Helper()
	w := s.upload(t, "handbook.md", handbook)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAPITest(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	w := s.do(t, http.MethodGet, "/api/test", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","message":"API is working"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDEchoed(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(RequestIDHeader))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Origin", "http://client.test")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpload(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	body := s.uploadHandbook(t)

	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "handbook.md", body["filename"])
	assert.Equal(t, body["id"].(string)+"_handbook.md", body["server_filename"])
	assert.Equal(t, "File uploaded and processed successfully", body["message"])

	w := s.do(t, http.MethodGet, "/api/documents/"+body["id"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/documents", nil)
	assert.Len(t, decode(t, w)["documents"], 1)
}

func TestUpload_Rejections(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", decode(t, w)["message"])

	w = s.upload(t, "notes.txt", "plain text")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid file type", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/documents", nil)
	assert.Empty(t, decode(t, w)["documents"])
}

func TestChat(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	id := s.uploadHandbook(t)["id"].(string)

	w := s.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "how much leave do staff get?", DocumentID: id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "<p>Staff get <strong>twenty</strong> days of leave.</p>", body["response"])
	assert.NotEmpty(t, body["sources"])
	assert.Equal(t, false, body["is_summarization"])
	assert.Nil(t, body["section_number"])
	assert.Equal(t, false, body["is_chapter_count"])
	assert.Equal(t, false, body["is_opinion"])
}

func TestChat_Errors(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	w := s.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hi", DocumentID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error_code"])

	w = s.do(t, http.MethodPost, "/api/chat", chatRequest{DocumentID: "missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No message provided", decode(t, w)["message"])

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	id := s.uploadHandbook(t)["id"].(string)

	w := s.do(t, http.MethodPost, "/api/chat/stream", chatRequest{Message: "summarize section 2", DocumentID: id})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))

	text, meta, found := strings.Cut(w.Body.String(), generation.SourcesMarker)
	require.True(t, found)
	assert.Equal(t, "Staff get **twenty** days of leave.", text)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(meta), &m))
	assert.Equal(t, true, m["is_summarization"])
	assert.Equal(t, float64(2), m["section_number"])

	w = s.do(t, http.MethodGet, "/api/chat/history/"+id, nil)
	messages := decode(t, w)["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "msg_history_1_"+id, messages[1].(map[string]any)["messageId"])
}

func TestStream_UnknownDocument(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	w := s.do(t, http.MethodPost, "/api/chat/stream", chatRequest{Message: "hi", DocumentID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	id := s.uploadHandbook(t)["id"].(string)

	w := s.do(t, http.MethodGet, "/api/chat/history/unknown", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	s.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hello", DocumentID: id})
	w = s.do(t, http.MethodDelete, "/api/chat/history/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chat history cleared", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/chat/history/"+id, nil)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/api/chat/history/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	body := s.uploadHandbook(t)
	id := body["id"].(string)

	w := s.do(t, http.MethodDelete, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Document deleted successfully", decode(t, w)["message"])

	w = s.do(t, http.MethodDelete, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/uploads/"+body["server_filename"].(string), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebug(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	id := s.uploadHandbook(t)["id"].(string)

	w := s.do(t, http.MethodGet, "/api/debug/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, id, body["document_id"])
	assert.Equal(t, "similarity", body["retriever_type"])
	assert.Equal(t, true, body["has_vectorstore"])
	assert.Equal(t, "memory", body["vectorstore_type"])
	assert.Equal(t, []any{}, body["feedback"])

	w = s.do(t, http.MethodPost, "/api/feedback", map[string]any{"documentId": id, "messageId": "m1", "rating": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/debug/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode(t, w)["feedback"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "m1", entries[0].(map[string]any)["message_id"])

	w = s.do(t, http.MethodGet, "/api/debug/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedback(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})

	w := s.do(t, http.MethodPost, "/api/feedback", map[string]any{"documentId": "d", "messageId": "m", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Rating must be between 1 and 5", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/feedback", map[string]any{"documentId": "d"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/feedback", map[string]any{"documentId": "d", "messageId": "m", "rating": 4, "comment": "clear"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Feedback submitted successfully", body["message"])
	assert.NotEmpty(t, body["feedback_id"])
}

func TestServeUpload(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{})
	require.NoError(t, os.WriteFile(filepath.Join(s.uploadDir, "x_notes.md"), []byte("# Notes"), 0o644))

	w := s.do(t, http.MethodGet, "/uploads/x_notes.md", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# Notes", w.Body.String())

	w = s.do(t, http.MethodGet, "/uploads/missing.md", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not found", decode(t, w)["message"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1})

	w := s.do(t, http.MethodGet, "/api/chat/history/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = s.do(t, http.MethodGet, "/api/chat/history/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limit_exceeded", decode(t, w)["error_code"])
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// other endpoints are not limited
	w = s.do(t, http.MethodGet, "/api/test", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
