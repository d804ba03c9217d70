package streams

import (
	"context"
	"sync"

	"github.com/danmuck/chanrpc/internal/protocol"
	"github.com/danmuck/chanrpc/internal/protocol/chunk"
)

// DefaultMaxChunkSize bounds one binary chunk payload.
const DefaultMaxChunkSize = 64 * 1024

// Sender is the transport side a Writable emits through.
type Sender interface {
	SendPacket(ctx context.Context, p protocol.Packet) error
	SendBinary(ctx context.Context, data []byte) error
}

// Writable is an outbound stream. Creating it announces the stream to the
// peer; Write frames bytes into chunks; Close or Terminate finishes it.
type Writable struct {
	ID   int64
	name string
	size int64

	sender   Sender
	maxChunk int

	mu      sync.Mutex
	written int64
	done    bool
}

// OpenWritable announces stream id to the peer and returns its writer.
func OpenWritable(ctx context.Context, sender Sender, id int64, name string, size int64, maxChunk int) (*Writable, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunkSize
	}
	if err := sender.SendPacket(ctx, protocol.StreamInit(id, name, size)); err != nil {
		return nil, err
	}
	return &Writable{ID: id, name: name, size: size, sender: sender, maxChunk: maxChunk}, nil
}

func (w *Writable) Name() string { return w.name }
func (w *Writable) Size() int64  { return w.size }

func (w *Writable) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return 0, ErrClosed
	}
	if w.written+int64(len(p)) > w.size {
		return 0, ErrSizeExceeded
	}
	sent := 0
	for sent < len(p) {
		end := sent + w.maxChunk
		if end > len(p) {
			end = len(p)
		}
		if err := w.sender.SendBinary(context.Background(), chunk.Encode(w.ID, p[sent:end])); err != nil {
			return sent, err
		}
		w.written += int64(end - sent)
		sent = end
	}
	return sent, nil
}

// Close sends the end status.
func (w *Writable) Close() error {
	return w.finish(protocol.StatusEnd)
}

// Terminate sends the terminate status.
func (w *Writable) Terminate() error {
	return w.finish(protocol.StatusTerminate)
}

func (w *Writable) finish(status string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return ErrClosed
	}
	w.done = true
	return w.sender.SendPacket(context.Background(), protocol.StreamStatus(w.ID, status))
}
