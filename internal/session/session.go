package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// AccountKey is the state key whose string value identifies the account
// bound to a session.
const AccountKey = "accountId"

const saveTimeout = 10 * time.Second

// Session is one token-addressed state bag. State is only written through
// SetState, which schedules a save of the full state.
type Session struct {
	Token string

	mu        sync.RWMutex
	state     State
	seq       uint64
	finalized bool

	saveMu  sync.Mutex
	savedAt uint64

	reg *Registry
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Get returns one state value.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state[key]
	return v, ok
}

// AccountID returns the account bound to the session, if any.
func (s *Session) AccountID() (string, bool) {
	v, ok := s.Get(AccountKey)
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case fmt.Stringer:
		return id.String(), true
	default:
		return fmt.Sprint(id), true
	}
}

// SetState applies mutate to the state and persists the result
// asynchronously. Save failures are logged and never surfaced.
func (s *Session) SetState(mutate func(State)) {
	s.mu.Lock()
	if s.state == nil {
		s.state = State{}
	}
	mutate(s.state)
	s.seq++
	seq := s.seq
	snapshot := s.state.Clone()
	finalized := s.finalized
	s.mu.Unlock()

	if !finalized {
		s.persist(seq, snapshot)
	}
}

// Save schedules a save of the current state without changing it.
func (s *Session) Save() {
	s.SetState(func(State) {})
}

// Set is SetState for a single key.
func (s *Session) Set(key string, value any) {
	s.SetState(func(st State) { st[key] = value })
}

// Finalized reports whether the session was signed out. A finalized
// session keeps its in-memory state but is never saved again.
func (s *Session) Finalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finalized
}

// finalize stops further saves and waits for the one in progress. The
// caller holds the save lock until it calls unlock.
func (s *Session) finalize() (unlock func()) {
	s.mu.Lock()
	s.finalized = true
	s.mu.Unlock()

	s.saveMu.Lock()
	return s.saveMu.Unlock
}

func (s *Session) persist(seq uint64, snapshot State) {
	if s.reg == nil || s.reg.store == nil || !s.reg.track() {
		return
	}
	go func() {
		defer s.reg.inflight.Done()
		s.saveMu.Lock()
		defer s.saveMu.Unlock()
		// a newer snapshot already landed, or the session was signed out
		if seq < s.savedAt || s.Finalized() {
			return
		}
		if err := s.reg.save(s.Token, snapshot); err != nil {
			s.reg.logger.Error().
				Err(err).
				Str("token", redact(s.Token)).
				Msg("session save failed")
			return
		}
		s.savedAt = seq
	}()
}

func (r *Registry) save(token string, state State) error {
	var rng *rand.Rand
	if r.retry.Jitter {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	attempts := r.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err = r.store.SaveSession(ctx, token, state)
		cancel()
		if err == nil || errors.Is(err, ErrStoreClosed) {
			return err
		}
		if attempt < attempts {
			time.Sleep(NextBackoffDelay(r.retry, attempt, rng))
		}
	}
	return err
}

func redact(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "***"
}
