package channel

import (
	"context"

	"github.com/danmuck/chanrpc/internal/protocol"
	"github.com/danmuck/chanrpc/internal/rpc"
	"github.com/danmuck/chanrpc/internal/session"
	"github.com/danmuck/chanrpc/internal/streams"
	gojson "github.com/goccy/go-json"
)

// Client is the business-logic handle for one channel.
type Client struct {
	ch *Channel
}

var _ rpc.Client = (*Client)(nil)

func (cl *Client) RemoteAddr() string {
	return cl.ch.transport.RemoteAddr()
}

func (cl *Client) Session() *session.Session {
	return cl.ch.Session()
}

// InitializeSession replaces the channel's session with a new one for token.
func (cl *Client) InitializeSession(token string, state session.State) bool {
	return cl.ch.initializeSession(token, state)
}

// StartSession initializes a session and persists its initial state. On
// connectionless transports the token also goes out as a cookie.
func (cl *Client) StartSession(_ context.Context, token string, state session.State) bool {
	if !cl.ch.initializeSession(token, state) {
		return false
	}
	if s := cl.ch.Session(); s != nil {
		s.Save()
	}
	if !cl.ch.transport.Persistent() {
		cl.ch.transport.SetCookie(cl.ch.cookie, token)
	}
	return true
}

// RestoreSession binds the live session registered for token.
func (cl *Client) RestoreSession(token string) bool {
	return cl.ch.restoreSession(token)
}

// FinalizeSession unbinds and evicts the channel's current session and
// drops its durable copy. Saves still queued for it never land.
func (cl *Client) FinalizeSession(ctx context.Context, token string) bool {
	s, ok := cl.ch.finalizeSession(token)
	if !ok {
		return false
	}
	if err := cl.ch.sessions.Forget(ctx, s); err != nil {
		cl.ch.logger.Warn().Err(err).Msg("channel: session delete failed")
	}
	return true
}

// Emit sends an event named "iface/name" with the next server event id. A
// bare name is sent on DefaultEventInterface.
func (cl *Client) Emit(ctx context.Context, name string, args any) error {
	if !cl.ch.transport.Persistent() {
		return ErrNotPersistent
	}
	route, err := protocol.ParseRoute(name, false)
	if err != nil {
		route = protocol.Route{Iface: DefaultEventInterface, Member: name}
	}
	if route.Iface == "" || route.Member == "" {
		return ErrInvalidEvent
	}
	raw, err := gojson.Marshal(args)
	if err != nil {
		return err
	}
	id := cl.ch.nextEventID()
	return cl.ch.SendPacket(ctx, protocol.Event(id, route.Iface, route.Member, raw))
}

// CreateStream opens an outbound stream with the next server stream id.
func (cl *Client) CreateStream(ctx context.Context, name string, size int64) (*streams.Writable, error) {
	if !cl.ch.transport.Persistent() {
		return nil, ErrNotPersistent
	}
	if name == "" {
		return nil, streams.ErrInvalidName
	}
	if size <= 0 {
		return nil, streams.ErrInvalidSize
	}
	id := cl.ch.nextStreamID()
	return streams.OpenWritable(ctx, cl.ch, id, name, size, cl.ch.maxChunk)
}

// GetStream returns an inbound stream opened by the peer.
func (cl *Client) GetStream(id int64) (*streams.Readable, bool) {
	return cl.ch.streams.Get(id)
}

// OnClose registers fn to run once when the channel closes. Registering on
// a closed channel runs fn immediately.
func (cl *Client) OnClose(fn func()) {
	c := cl.ch
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}
