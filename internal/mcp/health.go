package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bull/docchat/internal/domain"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore string `json:"vector_store"`
	Documents   int    `json:"documents"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker is implemented by service.Service.
type HealthChecker interface {
	Health(ctx context.Context) error
	Documents() []domain.Document
}

// NewHealthHandler serves /health. It answers 503 when the vector store
// cannot be reached within three seconds.
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		code := http.StatusOK
		resp := HealthResponse{
			Status:      "healthy",
			VectorStore: "connected",
			Documents:   len(checker.Documents()),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		if err := checker.Health(ctx); err != nil {
			code = http.StatusServiceUnavailable
			resp.Status, resp.VectorStore = "unhealthy", "disconnected"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(resp)
	}
}
