package streams

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/danmuck/chanrpc/internal/protocol"
	"github.com/danmuck/chanrpc/internal/protocol/chunk"
	"github.com/danmuck/chanrpc/internal/testutil/testlog"
)

func TestReadableOrderAndEOF(t *testing.T) {
	testlog.Start(t)

	ctx := context.Background()
	r := NewReadable(1, "f", 10)
	if err := r.Push(ctx, []byte("abc")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := r.Push(ctx, []byte("def")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if string(data) != "abcdef" {
		t.Fatalf("unexpected data: %q", data)
	}
	if err := r.Push(ctx, []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestReadableSizeExceeded(t *testing.T) {
	testlog.Start(t)

	r := NewReadable(1, "f", 4)
	if err := r.Push(context.Background(), []byte("12345")); !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
}

func TestReadableZeroSizeIsAHardLimit(t *testing.T) {
	testlog.Start(t)

	ctx := context.Background()
	r := NewReadable(1, "empty", 0)
	if err := r.Push(ctx, nil); err != nil {
		t.Fatalf("empty chunk must fit a zero-size stream: %v", err)
	}
	if err := r.Push(ctx, []byte("x")); !errors.Is(err, ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
	if got := r.Received(); got != 0 {
		t.Fatalf("rejected chunk must not count, received %d", got)
	}
}

func TestReadableTerminateUnblocksReader(t *testing.T) {
	testlog.Start(t)

	r := NewReadable(2, "f", 100)
	errCh := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(r)
		errCh <- err
	}()
	if err := r.Terminate(context.Background()); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected ErrTerminated, got %v", err)
	}
}

func TestTableLifecycle(t *testing.T) {
	testlog.Start(t)

	tbl := NewTable()
	if err := tbl.Add(NewReadable(1, "f", 1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tbl.Add(NewReadable(1, "f", 1000)); !errors.Is(err, ErrStreamExists) {
		t.Fatalf("expected ErrStreamExists, got %v", err)
	}
	if _, ok := tbl.Get(1); !ok {
		t.Fatalf("expected stream 1")
	}
	tbl.Remove(1)
	if _, ok := tbl.Get(1); ok {
		t.Fatalf("expected stream 1 removed")
	}

	r := NewReadable(3, "g", 10)
	_ = tbl.Add(r)
	tbl.TerminateAll(context.Background())
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table")
	}
	if _, err := r.Read(make([]byte, 1)); !errors.Is(err, ErrTerminated) {
		t.Fatalf("expected terminated reader, got %v", err)
	}
}

type recordingSender struct {
	mu      sync.Mutex
	packets []protocol.Packet
	chunks  [][]byte
}

func (s *recordingSender) SendPacket(_ context.Context, p protocol.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, p)
	return nil
}

func (s *recordingSender) SendBinary(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, data)
	return nil
}

func TestWritableFramesChunks(t *testing.T) {
	testlog.Start(t)

	sender := &recordingSender{}
	w, err := OpenWritable(context.Background(), sender, -1, "report.csv", 10, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n, err := w.Write([]byte("0123456789")); err != nil || n != 10 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(sender.packets) != 2 {
		t.Fatalf("expected init and end packets, got %d", len(sender.packets))
	}
	if !sender.packets[0].IsStreamInit() || sender.packets[0].ID != -1 {
		t.Fatalf("unexpected init packet: %+v", sender.packets[0])
	}
	if sender.packets[1].Status != protocol.StatusEnd {
		t.Fatalf("unexpected end packet: %+v", sender.packets[1])
	}
	if len(sender.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(sender.chunks))
	}
	id, payload, err := chunk.Decode(sender.chunks[2])
	if err != nil || id != -1 || string(payload) != "89" {
		t.Fatalf("unexpected last chunk: id=%d payload=%q err=%v", id, payload, err)
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpenWritableValidation(t *testing.T) {
	testlog.Start(t)

	sender := &recordingSender{}
	if _, err := OpenWritable(context.Background(), sender, -1, "", 10, 0); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := OpenWritable(context.Background(), sender, -1, "f", 0, 0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	if len(sender.packets) != 0 {
		t.Fatalf("invalid streams must not be announced")
	}
}
