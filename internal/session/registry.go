package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps tokens to live sessions. It is safe for concurrent use;
// racing writers for the same token resolve last-writer-wins.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Session

	store    Store
	logger   zerolog.Logger
	retry    BackoffConfig
	inflight sync.WaitGroup
	closed   bool
}

type Option func(*Registry)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithBackoff(cfg BackoffConfig) Option {
	return func(r *Registry) { r.retry = cfg }
}

// NewRegistry creates an empty registry over store. A nil store keeps
// sessions in memory only.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		items:  make(map[string]*Session),
		store:  store,
		logger: zerolog.Nop(),
		retry:  DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// New builds a session bound to this registry's store without registering it.
func (r *Registry) New(token string, state State) *Session {
	return &Session{Token: token, state: state.Clone(), reg: r}
}

// Add registers s under its token, replacing any previous entry.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.Token] = s
}

func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[token]
	return s, ok
}

// Remove evicts s only if it is still the entry for its token, so a
// channel never evicts a session another channel has since bound.
func (r *Registry) Remove(s *Session) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.items[s.Token]; !ok || cur != s {
		return false
	}
	delete(r.items, s.Token)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Load reads durable state for token from the store.
func (r *Registry) Load(ctx context.Context, token string) (State, bool, error) {
	if r.store == nil {
		return nil, false, nil
	}
	return r.store.ReadSession(ctx, token)
}

// Forget finalizes s and removes its durable copy. Saves queued before the
// call are dropped, and one already writing finishes before the delete.
func (r *Registry) Forget(ctx context.Context, s *Session) error {
	unlock := s.finalize()
	defer unlock()
	if r.store == nil {
		return nil
	}
	return r.store.DeleteSession(ctx, s.Token)
}

// track reserves a slot for one background save. It fails once the
// registry is closed.
func (r *Registry) track() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	r.inflight.Add(1)
	return true
}

// Flush waits for every scheduled save to finish.
func (r *Registry) Flush() {
	r.inflight.Wait()
}

// Close stops new saves, flushes pending ones and drops all live sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.Flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]*Session)
}
