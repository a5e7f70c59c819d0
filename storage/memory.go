// In-memory conversation storage.

package storage

import (
	"context"
	"sync"

	"github.com/mkondo/datalyst/model"
)

// MemoryStorage implements ConversationStorage in memory.
// Useful for tests and ephemeral sessions; safe for concurrent use.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string][]model.Turn
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string][]model.Turn)}
}

// Save replaces the stored history for a session.
func (m *MemoryStorage) Save(_ context.Context, sessionID string, history []model.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]model.Turn, len(history))
	copy(copied, history)
	m.sessions[sessionID] = copied
	return nil
}

// Load loads the history for a session.
func (m *MemoryStorage) Load(_ context.Context, sessionID string) ([]model.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.sessions[sessionID]
	history := make([]model.Turn, len(stored))
	copy(history, stored)
	return history, nil
}

// Delete removes a session.
func (m *MemoryStorage) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// ListSessions lists all session IDs.
func (m *MemoryStorage) ListSessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

// Exists checks if a session exists.
func (m *MemoryStorage) Exists(_ context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok, nil
}

// Verify MemoryStorage implements ConversationStorage
var _ ConversationStorage = (*MemoryStorage)(nil)
