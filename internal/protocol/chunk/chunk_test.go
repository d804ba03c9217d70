package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/chanrpc/internal/testutil/testlog"
)

func TestChunkRoundTrip(t *testing.T) {
	testlog.Start(t)

	for _, id := range []int64{1, 42, -1, -1024} {
		payload := []byte("chunk payload")
		frame := Encode(id, payload)
		gotID, gotPayload, err := Decode(frame)
		if err != nil {
			t.Fatalf("decode id=%d: %v", id, err)
		}
		if gotID != id {
			t.Fatalf("id mismatch: want=%d got=%d", id, gotID)
		}
		if !bytes.Equal(gotPayload, payload) {
			t.Fatalf("payload mismatch: %q", gotPayload)
		}
	}
}

func TestChunkEmptyPayload(t *testing.T) {
	testlog.Start(t)

	id, payload, err := Decode(Encode(7, nil))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != 7 || len(payload) != 0 {
		t.Fatalf("unexpected decode: id=%d payload=%q", id, payload)
	}
}

func TestChunkMalformed(t *testing.T) {
	testlog.Start(t)

	if _, _, err := Decode(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
	if _, _, err := Decode([]byte{5, '1', '2'}); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	if _, _, err := Decode([]byte{2, 'x', 'y', 0xff}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, _, err := Decode([]byte{0, 1, 2}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID for zero length, got %v", err)
	}
}
