package rpc

import (
	"context"
	cryrand "crypto/rand"

	cristalbase64 "github.com/cristalhq/base64"
	"github.com/danmuck/chanrpc/internal/session"
	"github.com/danmuck/chanrpc/internal/streams"
)

// Client is the facade a procedure uses to reach its channel.
type Client interface {
	RemoteAddr() string
	Session() *session.Session
	InitializeSession(token string, state session.State) bool
	StartSession(ctx context.Context, token string, state session.State) bool
	RestoreSession(token string) bool
	FinalizeSession(ctx context.Context, token string) bool
	Emit(ctx context.Context, name string, args any) error
	CreateStream(ctx context.Context, name string, size int64) (*streams.Writable, error)
	GetStream(id int64) (*streams.Readable, bool)
	OnClose(fn func())
}

// Context is built fresh for every call and owned by that invocation.
type Context struct {
	Client        Client
	CorrelationID string
	State         map[string]any
	Session       *session.Session
	AccountID     string
}

func NewContext(client Client, sess *session.Session) *Context {
	c := &Context{
		Client:        client,
		CorrelationID: NewCorrelationID(),
		State:         make(map[string]any),
		Session:       sess,
	}
	if sess != nil {
		if id, ok := sess.AccountID(); ok {
			c.AccountID = id
		}
	}
	return c
}

func NewCorrelationID() string {
	var random [21]byte
	cryrand.Read(random[:])
	return cristalbase64.URLEncoding.EncodeToString(random[:])
}
