package session

import (
	"context"
	"errors"
	"sync"
)

var ErrStoreClosed = errors.New("session: store closed")

// State is the mutable, JSON-serializable payload of a session.
type State map[string]any

// Clone returns a shallow copy of s. A nil State clones to an empty one.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Store is the durable session backend.
type Store interface {
	ReadSession(ctx context.Context, token string) (State, bool, error)
	SaveSession(ctx context.Context, token string, state State) error
	DeleteSession(ctx context.Context, token string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]State
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]State)}
}

func (m *MemoryStore) ReadSession(_ context.Context, token string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrStoreClosed
	}
	state, ok := m.items[token]
	if !ok {
		return nil, false, nil
	}
	return state.Clone(), true, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, token string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.items[token] = state.Clone()
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.items, token)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
