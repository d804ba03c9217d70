package rpc

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrCapacity      = errors.New("rpc: admission capacity exhausted")
	ErrTimeout       = errors.New("rpc: request timeout")
	ErrDuplicate     = errors.New("rpc: method already registered")
	ErrInvalidMethod = errors.New("rpc: invalid method declaration")
)

// Error is a domain error carrying protocol and transport codes. A zero
// HTTPCode means the code was not set by the procedure.
type Error struct {
	Message  string
	Code     int
	HTTPCode int
}

func NewError(message string, code int) *Error {
	return &Error{Message: message, Code: code}
}

// WithHTTPCode returns a copy of e with an explicit transport code.
func (e *Error) WithHTTPCode(code int) *Error {
	out := *e
	out.HTTPCode = code
	return &out
}

func (e *Error) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// IsTimeout reports whether err signals an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
