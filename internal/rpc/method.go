package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Access is the visibility level of a procedure.
type Access string

const (
	AccessPublic Access = "public"
	AccessLogged Access = "logged"
)

// Procedure is one invokable method as the channel sees it.
type Procedure interface {
	Access() Access
	// Enter admits one invocation; the returned release must always run.
	Enter(ctx context.Context) (release func(), err error)
	Invoke(ctx context.Context, c *Context, args json.RawMessage) (any, error)
}

// Handler is the body of a Method. Returning an error value as the result
// (instead of as err) reports a domain error.
type Handler func(ctx context.Context, c *Context, args json.RawMessage) (any, error)

// Method is the default Procedure.
type Method struct {
	access  Access
	timeout time.Duration
	gate    *Gate
	handler Handler
}

type MethodOption func(*Method)

func WithAccess(a Access) MethodOption {
	return func(m *Method) { m.access = a }
}

// WithTimeout bounds one invocation; expiry fails the call with ErrTimeout.
func WithTimeout(d time.Duration) MethodOption {
	return func(m *Method) { m.timeout = d }
}

func WithGate(g *Gate) MethodOption {
	return func(m *Method) { m.gate = g }
}

// NewMethod builds a procedure. Methods are logged-only unless WithAccess
// says otherwise.
func NewMethod(h Handler, opts ...MethodOption) *Method {
	m := &Method{access: AccessLogged, handler: h}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Method) Access() Access {
	return m.access
}

func (m *Method) Enter(ctx context.Context) (func(), error) {
	return m.gate.Acquire(ctx)
}

type outcome struct {
	result any
	err    error
}

// Invoke runs the handler, recovering panics into errors. With a timeout
// the handler runs under a deadline and an overdue result is discarded.
func (m *Method) Invoke(ctx context.Context, c *Context, args json.RawMessage) (any, error) {
	if m.handler == nil {
		return nil, ErrInvalidMethod
	}
	if m.timeout <= 0 {
		return m.call(ctx, c, args)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	done := make(chan outcome, 1)
	go func() {
		result, err := m.call(ctx, c, args)
		done <- outcome{result: result, err: err}
	}()
	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func (m *Method) call(ctx context.Context, c *Context, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("rpc: procedure panic: %v", r)
		}
	}()
	return m.handler(ctx, c, args)
}
