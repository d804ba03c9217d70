package streams

import (
	"context"
	"sync"
)

// Table maps inbound stream ids to their Readables for one channel.
type Table struct {
	mu    sync.RWMutex
	items map[int64]*Readable
}

func NewTable() *Table {
	return &Table{items: make(map[int64]*Readable)}
}

// Add registers r under its id.
func (t *Table) Add(r *Readable) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[r.ID]; ok {
		return ErrStreamExists
	}
	t.items[r.ID] = r
	return nil
}

func (t *Table) Get(id int64) (*Readable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.items[id]
	return r, ok
}

func (t *Table) Remove(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, id)
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// TerminateAll aborts and evicts every registered stream.
func (t *Table) TerminateAll(ctx context.Context) {
	t.mu.Lock()
	items := t.items
	t.items = make(map[int64]*Readable)
	t.mu.Unlock()
	for _, r := range items {
		_ = r.Terminate(ctx)
	}
}
