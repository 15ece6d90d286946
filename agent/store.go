package agent

import "sync"

// Store holds conversation histories keyed by an opaque conversation id.
// The serving layer owns the store; the loop only ever sees snapshots.
type Store interface {
	// Get returns a copy of the conversation's turns. Mutating the returned
	// slice must not affect the stored history.
	Get(conversationID string) []Turn

	// Append adds turns to the conversation, creating it if needed.
	Append(conversationID string, turns ...Turn)
}

// MemoryStore is an in-process Store. Histories do not survive restarts.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string][]Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]Turn),
	}
}

func (s *MemoryStore) Get(conversationID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.conversations[conversationID]
	snapshot := make([]Turn, len(turns))
	copy(snapshot, turns)
	return snapshot
}

func (s *MemoryStore) Append(conversationID string, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conversationID] = append(s.conversations[conversationID], turns...)
}
