package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/chanrpc/internal/session"
	"github.com/danmuck/chanrpc/internal/testutil/testlog"
)

func echo(_ context.Context, _ *Context, args json.RawMessage) (any, error) {
	return args, nil
}

func TestRegistryLookupVersions(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	v1 := NewMethod(echo, WithAccess(AccessPublic))
	v2 := NewMethod(echo)
	if err := reg.Register("auth", 1, "signIn", v1); err != nil {
		t.Fatalf("register v1: %v", err)
	}
	if err := reg.Register("auth", 2, "signIn", v2); err != nil {
		t.Fatalf("register v2: %v", err)
	}

	one := 1
	p, ok := reg.Lookup("auth", &one, "signIn")
	if !ok || p != Procedure(v1) {
		t.Fatalf("expected v1 procedure")
	}
	p, ok = reg.Lookup("auth", nil, "signIn")
	if !ok || p != Procedure(v2) {
		t.Fatalf("expected latest version to resolve")
	}
	if _, ok := reg.Lookup("auth", &one, "signOut"); ok {
		t.Fatalf("unexpected method hit")
	}
	if _, ok := reg.Lookup("files", nil, "list"); ok {
		t.Fatalf("unexpected interface hit")
	}

	infos := reg.Interfaces()
	if len(infos) != 2 || infos[0].Version != 1 || infos[1].Methods[0] != "signIn" {
		t.Fatalf("unexpected interfaces: %+v", infos)
	}
}

func TestRegistryRejectsDuplicatesAndReservedNames(t *testing.T) {
	testlog.Start(t)

	reg := NewRegistry()
	m := NewMethod(echo)
	if err := reg.Register("auth", 1, "signIn", m); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("auth", 1, "signIn", m); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := reg.Register("a.b", 1, "x", m); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
	if err := reg.Register("auth", 1, "", m); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestGateConcurrencyAndRelease(t *testing.T) {
	testlog.Start(t)

	g := NewGate(GateConfig{Concurrency: 1})
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := g.Acquire(context.Background()); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	release()
	release()
	if g.InFlight() != 0 {
		t.Fatalf("double release must not free extra slots: %d", g.InFlight())
	}
	release2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestGateQueueWaitsForSlot(t *testing.T) {
	testlog.Start(t)

	g := NewGate(GateConfig{Concurrency: 1, QueueTimeout: time.Second})
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()
	release2, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("queued acquire: %v", err)
	}
	release2()
}

func TestGateRateLimit(t *testing.T) {
	testlog.Start(t)

	g := NewGate(GateConfig{Rate: 1, Burst: 2})
	for i := 0; i < 2; i++ {
		release, err := g.Acquire(context.Background())
		if err != nil {
			t.Fatalf("request %d should pass: %v", i, err)
		}
		release()
	}
	if _, err := g.Acquire(context.Background()); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected rate limit rejection, got %v", err)
	}
}

func TestNilGateAdmitsEverything(t *testing.T) {
	testlog.Start(t)

	var g *Gate
	release, err := g.Acquire(context.Background())
	if err != nil {
		t.Fatalf("nil gate: %v", err)
	}
	release()
}

func TestMethodTimeout(t *testing.T) {
	testlog.Start(t)

	slow := NewMethod(func(ctx context.Context, _ *Context, _ json.RawMessage) (any, error) {
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, WithTimeout(20*time.Millisecond))

	_, err := slow.Invoke(context.Background(), NewContext(nil, nil), json.RawMessage(`{}`))
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestMethodPanicRecovered(t *testing.T) {
	testlog.Start(t)

	m := NewMethod(func(context.Context, *Context, json.RawMessage) (any, error) {
		panic("boom")
	})
	if _, err := m.Invoke(context.Background(), NewContext(nil, nil), nil); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestContextAccountID(t *testing.T) {
	testlog.Start(t)

	reg := session.NewRegistry(nil)
	sess := reg.New("tok", session.State{"accountId": "acct.9"})
	a := NewContext(nil, sess)
	b := NewContext(nil, sess)
	if a.AccountID != "acct.9" {
		t.Fatalf("unexpected account: %q", a.AccountID)
	}
	if a.CorrelationID == b.CorrelationID {
		t.Fatalf("correlation ids must be fresh per call")
	}
	if NewContext(nil, nil).AccountID != "" {
		t.Fatalf("no session means no account")
	}
}

func TestIsTimeout(t *testing.T) {
	testlog.Start(t)

	if !IsTimeout(context.DeadlineExceeded) {
		t.Fatalf("deadline must count as timeout")
	}
	if IsTimeout(errors.New("nope")) || IsTimeout(nil) {
		t.Fatalf("plain errors are not timeouts")
	}
	e := NewError("Not found", 404).WithHTTPCode(404)
	if e.HTTPCode != 404 || e.Error() != "Not found (code 404)" {
		t.Fatalf("unexpected error value: %+v %q", e, e.Error())
	}
}
