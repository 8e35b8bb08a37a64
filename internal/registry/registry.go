// Package registry tracks the documents active in this process.
package registry

import (
	"sort"
	"sync"

	"github.com/bull/docchat/internal/domain"
)

// Registry maps document ids to documents and hands out per-id locks.
// Reads and writes of the map are safe for concurrent use; the per-id lock
// serializes multi-step operations like ingestion and delete.
type Registry struct {
	mu    sync.RWMutex
	docs  map[string]domain.Document
	locks keyedMutex
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		docs:  make(map[string]domain.Document),
		locks: keyedMutex{entries: make(map[string]*lockEntry)},
	}
}

// Put adds or replaces doc.
func (r *Registry) Put(doc domain.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

// Get returns the document with id, if registered.
func (r *Registry) Get(id string) (domain.Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	return doc, ok
}

// Remove reports whether id was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.docs[id]
	delete(r.docs, id)
	return ok
}

// List returns all documents, oldest first.
func (r *Registry) List() []domain.Document {
	r.mu.RLock()
	docs := make([]domain.Document, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Lock acquires the lock for id and returns its release function.
func (r *Registry) Lock(id string) (unlock func()) {
	return r.locks.lock(id)
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex keeps one mutex per key while anyone holds or waits for it.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
