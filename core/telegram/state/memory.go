package state

import "sync"

type memoryManager[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]T
}

// NewMemoryManager constructs an in-memory Manager. Records are lost on restart.
func NewMemoryManager[T any]() Manager[T] {
	return &memoryManager[T]{
		sessions: make(map[int64]T),
	}
}

// Get returns the record for a chat and whether one exists.
func (m *memoryManager[T]) Get(chatID int64) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[chatID]
	return rec, ok
}

// Set overwrites the record for a chat.
func (m *memoryManager[T]) Set(chatID int64, record T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = record
}

// Clear drops the record, returning the chat to idle.
func (m *memoryManager[T]) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

// InProgress reports whether the chat has a parked conversation.
func (m *memoryManager[T]) InProgress(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[chatID]
	return ok
}

// Len returns the number of parked conversations.
func (m *memoryManager[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
