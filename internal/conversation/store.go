// Package conversation keeps the per-document chat history.
package conversation

import (
	"fmt"
	"sync"

	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/intent"
)

// Turn is one entry of a conversation: a *UserTurn or an *AssistantTurn.
type Turn interface {
	turn()
}

// UserTurn is a question as the user asked it.
type UserTurn struct {
	Content string
}

// AssistantTurn is a formatted answer with its citations and intent.
type AssistantTurn struct {
	Content        string
	Sources        []domain.SourceRef
	Classification intent.Classification
}

func (*UserTurn) turn()      {}
func (*AssistantTurn) turn() {}

// Message is the external view of a turn.
type Message struct {
	ID      string `json:"messageId"`
	Role    string `json:"role"`
	Content string `json:"content"`
	*AssistantMeta
}

// AssistantMeta is present on assistant messages only.
type AssistantMeta struct {
	Sources []domain.SourceRef `json:"sources"`
	intent.Flags
}

// Store holds one ordered history per document id. Turns are never mutated
// after Append; a history is only extended or reset.
type Store struct {
	mu        sync.RWMutex
	histories map[string][]Turn
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{histories: make(map[string][]Turn)}
}

// Create starts an empty history for id, resetting any existing one.
func (s *Store) Create(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[id] = []Turn{}
}

// Get returns a copy of the history, or nil when id is unknown.
func (s *Store) Get(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns, ok := s.histories[id]
	if !ok {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds all turns at once. It reports false when id is unknown.
func (s *Store) Append(id string, turns ...Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.histories[id]
	if !ok {
		return false
	}
	s.histories[id] = append(history, turns...)
	return true
}

// Clear empties the history. It reports false when id is unknown.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.histories[id]; !ok {
		return false
	}
	s.histories[id] = []Turn{}
	return true
}

// Delete forgets the history of id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, id)
}

// Has reports whether id has a history.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.histories[id]
	return ok
}

// Messages renders the history of id for clients. Unknown ids yield an empty list.
func (s *Store) Messages(id string) []Message {
	turns := s.Get(id)
	messages := make([]Message, 0, len(turns))
	for i, t := range turns {
		msg := Message{ID: fmt.Sprintf("msg_history_%d_%s", i, id)}
		switch t := t.(type) {
		case *UserTurn:
			msg.Role = "user"
			msg.Content = t.Content
		case *AssistantTurn:
			sources := t.Sources
			if sources == nil {
				sources = []domain.SourceRef{}
			}
			msg.Role = "assistant"
			msg.Content = t.Content
			msg.AssistantMeta = &AssistantMeta{Sources: sources, Flags: t.Classification.Flags()}
		}
		messages = append(messages, msg)
	}
	return messages
}
