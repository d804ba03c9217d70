package streams

import (
	"context"
	"io"
	"sync"
)

// Readable is an inbound stream. Push never blocks on readers; chunks queue
// until Read drains them, in arrival order.
type Readable struct {
	ID   int64
	name string
	size int64

	mu       sync.Mutex
	cond     *sync.Cond
	queue    [][]byte
	received int64
	err      error
}

func NewReadable(id int64, name string, size int64) *Readable {
	r := &Readable{ID: id, name: name, size: size}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *Readable) Name() string { return r.name }
func (r *Readable) Size() int64  { return r.size }

// Received returns the number of payload bytes pushed so far.
func (r *Readable) Received() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received
}

// Push queues one chunk.
func (r *Readable) Push(_ context.Context, chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return ErrClosed
	}
	// a declared size of 0 admits only empty chunks
	if r.received+int64(len(chunk)) > r.size {
		return ErrSizeExceeded
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	r.queue = append(r.queue, buf)
	r.received += int64(len(chunk))
	r.cond.Broadcast()
	return nil
}

// Close finishes the stream; readers drain the queue then see io.EOF.
func (r *Readable) Close(_ context.Context) error {
	return r.finish(io.EOF)
}

// Terminate aborts the stream; readers see ErrTerminated once the queue is
// dropped.
func (r *Readable) Terminate(_ context.Context) error {
	r.mu.Lock()
	r.queue = nil
	r.mu.Unlock()
	return r.finish(ErrTerminated)
}

func (r *Readable) finish(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return ErrClosed
	}
	r.err = err
	r.cond.Broadcast()
	return nil
}

func (r *Readable) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.queue) == 0 && r.err == nil {
		r.cond.Wait()
	}
	if len(r.queue) == 0 {
		return 0, r.err
	}
	n := copy(p, r.queue[0])
	if n == len(r.queue[0]) {
		r.queue = r.queue[1:]
	} else {
		r.queue[0] = r.queue[0][n:]
	}
	return n, nil
}

// ReadAll drains the stream until it ends.
func (r *Readable) ReadAll() ([]byte, error) {
	return io.ReadAll(r)
}
