package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryBackend keeps collections in process memory and searches them by
// brute-force cosine similarity. Nothing survives a restart.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	points    []Point
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryBackend) Health(context.Context) error { return nil }

func (m *MemoryBackend) CreateCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	m.collections[name] = &memoryCollection{dimension: dimension}
	return nil
}

func (m *MemoryBackend) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *MemoryBackend) ListCollections(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for i, p := range points {
		if len(p.Vector) != c.dimension {
			return fmt.Errorf("%w: point %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(p.Vector), c.dimension)
		}
	}
	c.points = append(c.points, points...)
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, collection string, vector []float32, limit int) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), c.dimension)
	}

	scored := make([]Point, len(c.points))
	for i, p := range c.points {
		scored[i] = p
		scored[i].Score = cosine(p.Vector, vector)
	}
	// stable so equal scores keep insertion order
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if limit > 0 && limit < len(scored) {
		scored = scored[:limit]
	}
	return scored, nil
}

func (m *MemoryBackend) Sample(_ context.Context, collection string) (*Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if len(c.points) == 0 {
		return nil, nil
	}
	p := c.points[0]
	return &p, nil
}

func (m *MemoryBackend) Count(_ context.Context, collection string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return uint64(len(c.points)), nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
