// Package feedback records user ratings of answers for the life of the process.
package feedback

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/docchat/internal/domain"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Submission is a rating for one assistant message. Rating is nil when absent.
type Submission struct {
	DocumentID string `json:"documentId"`
	MessageID  string `json:"messageId"`
	Rating     *int   `json:"rating"`
	Comment    string `json:"comment"`
}

// Entry is a stored submission.
type Entry struct {
	ID         string    `json:"feedback_id"`
	DocumentID string    `json:"document_id"`
	MessageID  string    `json:"message_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	ReceivedAt time.Time `json:"received_at"`
}

// Store keeps feedback in memory for the life of the process.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	logger  *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Validate checks required fields and the rating range.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.DocumentID) == "" || strings.TrimSpace(s.MessageID) == "" || s.Rating == nil {
		return domain.Invalid("", "Missing required fields")
	}
	if *s.Rating < MinRating || *s.Rating > MaxRating {
		return domain.Invalid("rating", "Rating must be between 1 and 5")
	}
	return nil
}

// Submit stores a valid submission and returns its entry.
func (s *Store) Submit(sub Submission) (Entry, error) {
	if err := sub.Validate(); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:         uuid.New().String(),
		DocumentID: sub.DocumentID,
		MessageID:  sub.MessageID,
		Rating:     *sub.Rating,
		Comment:    sub.Comment,
		ReceivedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.logger.Info("Feedback received",
		"feedback_id", entry.ID,
		"document_id", entry.DocumentID,
		"message_id", entry.MessageID,
		"rating", entry.Rating,
	)
	return entry, nil
}

// List returns entries for a document, or all entries when documentID is empty.
func (s *Store) List(documentID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if documentID == "" || e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out
}
