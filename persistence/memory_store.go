package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/relabs-ai/agentchain/types"
)

// MemoryHistoryStore is an in-memory implementation of HistoryStore.
// Suitable for tests and single-process deployments.
type MemoryHistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]types.HistoryEntry
}

// NewMemoryHistoryStore creates a new in-memory history store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		sessions: make(map[string][]types.HistoryEntry),
	}
}

// Append persists a single entry.
func (s *MemoryHistoryStore) Append(_ context.Context, entry types.HistoryEntry) error {
	if entry.SessionID == "" {
		return ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[entry.SessionID] = append(s.sessions[entry.SessionID], entry)
	return nil
}

// List returns all entries for a session in commit order.
func (s *MemoryHistoryStore) List(_ context.Context, sessionID string) ([]types.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sessions[sessionID]
	out := make([]types.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Ping implements HistoryStore.
func (s *MemoryHistoryStore) Ping(context.Context) error { return nil }

// Close implements HistoryStore.
func (s *MemoryHistoryStore) Close() error { return nil }
