package feedback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/domain"
)

func rating(n int) *int { return &n }

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		sub     Submission
		message string
	}{
		{"missing document", Submission{MessageID: "m", Rating: rating(3)}, "Missing required fields"},
		{"missing message", Submission{DocumentID: "d", Rating: rating(3)}, "Missing required fields"},
		{"missing rating", Submission{DocumentID: "d", MessageID: "m"}, "Missing required fields"},
		{"too low", Submission{DocumentID: "d", MessageID: "m", Rating: rating(0)}, "Rating must be between 1 and 5"},
		{"too high", Submission{DocumentID: "d", MessageID: "m", Rating: rating(6)}, "Rating must be between 1 and 5"},
	}

	s := NewStore(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(tt.sub)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.message, vErr.Message)
		})
	}
	assert.Empty(t, s.List(""), "rejected feedback is not stored")
}

func TestSubmit_Bounds(t *testing.T) {
	s := NewStore(nil)
	for _, r := range []int{MinRating, MaxRating} {
		entry, err := s.Submit(Submission{DocumentID: "d", MessageID: "m", Rating: rating(r), Comment: "ok"})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, r, entry.Rating)
	}
	_, err := s.Submit(Submission{DocumentID: "other", MessageID: "m", Rating: rating(4)})
	require.NoError(t, err)

	assert.Len(t, s.List("d"), 2)
	assert.Len(t, s.List(""), 3)
}
