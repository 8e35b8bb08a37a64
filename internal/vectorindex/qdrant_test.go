//go:build integration

package vectorindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/domain"
)

// setupTestBackend connects to a local Qdrant. Skips test if Qdrant is not running.
func setupTestBackend(t *testing.T) *QdrantBackend {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	backend, err := NewQdrantBackend(ctx, "localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func testCollection(t *testing.T, backend *QdrantBackend, dim int) string {
	name := CollectionName("test-" + uuid.New().String())
	require.NoError(t, backend.CreateCollection(context.Background(), name, dim))
	t.Cleanup(func() { _ = backend.DeleteCollection(context.Background(), name) })
	return name
}

func TestQdrant_PointRoundTrip(t *testing.T) {
	backend := setupTestBackend(t)
	ctx := context.Background()
	name := testCollection(t, backend, 4)

	created := time.Now().UTC().Truncate(time.Second)
	points := []Point{
		{
			ID:     uuid.New().String(),
			Vector: []float32{1, 0, 0, 0},
			Unit:   domain.TextUnit{Content: "alpha", Page: 2, Source: "a.pdf", Origin: domain.OriginText, SequenceHint: 800},
			Stamp:  Stamp{DocumentName: "a.pdf", CreatedAt: created},
		},
		{
			ID:     uuid.New().String(),
			Vector: []float32{0, 1, 0, 0},
			Unit:   domain.TextUnit{Content: "[Image OCR on page 3]\nbeta", Page: 3, Source: "a.pdf", Origin: domain.OriginImageOCR, ImageIndex: 1},
			Stamp:  Stamp{DocumentName: "a.pdf", CreatedAt: created},
		},
	}
	require.NoError(t, backend.Upsert(ctx, name, points))

	results, err := backend.Search(ctx, name, []float32{1, 0.1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, points[0].Unit, results[0].Unit)
	assert.Equal(t, points[0].ID, results[0].ID)
	assert.Equal(t, "a.pdf", results[0].Stamp.DocumentName)
	assert.WithinDuration(t, created, results[0].Stamp.CreatedAt, time.Second)
	assert.Equal(t, domain.OriginImageOCR, results[1].Unit.Origin)

	count, err := backend.Count(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	sample, err := backend.Sample(ctx, name)
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, "a.pdf", sample.Stamp.DocumentName)
}

func TestQdrant_ListAndDelete(t *testing.T) {
	backend := setupTestBackend(t)
	ctx := context.Background()
	name := testCollection(t, backend, 4)

	names, err := backend.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, name)

	err = backend.CreateCollection(ctx, name, 4)
	assert.True(t, errors.Is(err, ErrCollectionExists))

	require.NoError(t, backend.DeleteCollection(ctx, name))
	_, err = backend.Search(ctx, name, []float32{1, 0, 0, 0}, 1)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))
}

func TestQdrant_Health(t *testing.T) {
	backend := setupTestBackend(t)
	assert.NoError(t, backend.Health(context.Background()))
}
