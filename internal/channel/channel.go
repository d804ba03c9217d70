package channel

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/chanrpc/internal/protocol"
	"github.com/danmuck/chanrpc/internal/protocol/chunk"
	"github.com/danmuck/chanrpc/internal/rpc"
	"github.com/danmuck/chanrpc/internal/session"
	"github.com/danmuck/chanrpc/internal/streams"
	gojson "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	DefaultCookieName = "token"

	// DefaultEventInterface carries events emitted without an interface.
	DefaultEventInterface = "client"
)

// Options wires a Channel to its shared collaborators.
type Options struct {
	Methods      *rpc.Registry
	Sessions     *session.Registry
	Logger       zerolog.Logger
	Metrics      Recorder
	CookieName   string
	MaxChunkSize int
}

type packetHandler func(ctx context.Context, p protocol.Packet)

// Channel coordinates one connection (or one request, for connectionless
// transports). Packets are dispatched one at a time; calls run concurrently
// and answer in completion order, matched by call id.
type Channel struct {
	transport Transport
	methods   *rpc.Registry
	sessions  *session.Registry
	logger    zerolog.Logger
	metrics   Recorder
	cookie    string
	maxChunk  int

	client   *Client
	streams  *streams.Table
	handlers map[protocol.Kind]packetHandler

	dispatchMu sync.Mutex
	calls      sync.WaitGroup

	mu       sync.Mutex
	sess     *session.Session
	eventID  int64
	streamID int64
	closed   bool
	onClose  []func()
}

// New creates the channel for an accepted connection.
func New(t Transport, opts Options) *Channel {
	if opts.Methods == nil {
		opts.Methods = rpc.NewRegistry()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry(nil)
	}
	if opts.Metrics == nil {
		opts.Metrics = nopRecorder{}
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = streams.DefaultMaxChunkSize
	}
	c := &Channel{
		transport: t,
		methods:   opts.Methods,
		sessions:  opts.Sessions,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		cookie:    opts.CookieName,
		maxChunk:  opts.MaxChunkSize,
		streams:   streams.NewTable(),
	}
	c.client = &Client{ch: c}
	c.handlers = map[protocol.Kind]packetHandler{
		protocol.KindCall:   c.handleCall,
		protocol.KindStream: c.handleStream,
	}
	c.metrics.ChannelOpened()
	return c
}

func (c *Channel) Client() *Client {
	return c.client
}

func (c *Channel) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// HandleText dispatches one text frame.
func (c *Channel) HandleText(ctx context.Context, data []byte) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if string(bytes.TrimSpace(data)) == protocol.KeepAlive {
		_ = c.send(ctx, Frame{Text: []byte(protocol.KeepAlive), Status: 200})
		return
	}
	obj, err := protocol.Unmarshal(data)
	if err != nil {
		c.fail(ctx, 0, err, failure{code: 500, pass: true})
		return
	}
	p, err := protocol.Decode(obj)
	if err != nil {
		c.fail(ctx, 0, fmt.Errorf("%w: %v", errPacketStructure, err), failure{code: 400, pass: true})
		return
	}
	handler, ok := c.handlers[p.Kind]
	if !ok {
		c.logger.Debug().Str("kind", string(p.Kind)).Int64("id", p.ID).Msg("channel: packet kind ignored")
		return
	}
	handler(ctx, p)
}

// HandleBinary dispatches one binary stream chunk.
func (c *Channel) HandleBinary(ctx context.Context, data []byte) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	id, payload, err := chunk.Decode(data)
	if err != nil {
		c.fail(ctx, 0, err, failure{code: 400, pass: true})
		return
	}
	r, ok := c.streams.Get(id)
	if !ok {
		c.fail(ctx, id, errStreamMissing, failure{code: 400, pass: true})
		return
	}
	if err := r.Push(ctx, payload); err != nil {
		c.fail(ctx, id, err, failure{code: 400, pass: true})
	}
}

func (c *Channel) handleCall(ctx context.Context, p protocol.Packet) {
	c.calls.Add(1)
	go func() {
		defer c.calls.Done()
		c.invoke(context.WithoutCancel(ctx), p)
	}()
}

// invoke runs one call through resume, validation, resolution, access and
// admission, then answers with a callback or an error packet.
func (c *Channel) invoke(ctx context.Context, p protocol.Packet) {
	c.resumeCookieSession(ctx)

	if p.ID == 0 || p.Route.Iface == "" || p.Route.Member == "" || isNull(p.Args) {
		c.fail(ctx, p.ID, errPacketStructure, failure{code: 400, pass: true})
		return
	}
	iface, method := p.Route.Iface, p.Route.Member

	proc, ok := c.methods.Lookup(iface, p.Route.Version, method)
	if !ok {
		c.fail(ctx, p.ID, nil, failure{code: 404})
		return
	}
	sess := c.Session()
	if sess == nil && proc.Access() != rpc.AccessPublic {
		c.fail(ctx, p.ID, nil, failure{code: 403})
		return
	}
	release, err := proc.Enter(ctx)
	if err != nil {
		c.fail(ctx, p.ID, err, failure{code: 503})
		return
	}

	start := time.Now()
	result, err := c.run(ctx, proc, release, rpc.NewContext(c.client, sess), p.Args)
	elapsed := time.Since(start)

	if err != nil {
		code := 500
		if rpc.IsTimeout(err) {
			code = 408
		} else if own := errorCode(err); own != 0 {
			code = own
		}
		c.metrics.ObserveCall(iface, method, code, elapsed)
		c.fail(ctx, p.ID, err, failure{code: code})
		return
	}
	if domainErr, ok := asError(result); ok {
		code := errorCode(domainErr)
		if code == 0 {
			code = 500
		}
		httpCode := 200
		if own := errorHTTPCode(domainErr); own != 0 {
			httpCode = own
		}
		c.metrics.ObserveCall(iface, method, code, elapsed)
		c.fail(ctx, p.ID, domainErr, failure{code: code, httpCode: httpCode})
		return
	}

	raw, err := gojson.Marshal(result)
	if err != nil {
		c.metrics.ObserveCall(iface, method, 500, elapsed)
		c.fail(ctx, p.ID, fmt.Errorf("channel: marshal result: %w", err), failure{code: 500})
		return
	}
	c.metrics.ObserveCall(iface, method, 200, elapsed)
	if err := c.SendPacket(ctx, protocol.Callback(p.ID, raw)); err != nil {
		c.logger.Debug().Err(err).Int64("call", p.ID).Msg("channel: callback dropped")
		return
	}
	c.logger.Info().Msgf("%s\t%s/%s", c.transport.RemoteAddr(), iface, method)
}

// run invokes proc and releases its admission slot on every exit path.
func (c *Channel) run(ctx context.Context, proc rpc.Procedure, release func(), rc *rpc.Context, args []byte) (result any, err error) {
	defer release()
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("channel: procedure panic: %v", r)
		}
	}()
	return proc.Invoke(ctx, rc, args)
}

func (c *Channel) handleStream(ctx context.Context, p protocol.Packet) {
	r, exists := c.streams.Get(p.ID)
	switch {
	case p.IsStreamInit():
		if exists {
			c.fail(ctx, p.ID, errStreamExists, failure{code: 400, pass: true})
			return
		}
		if p.ID <= 0 {
			c.fail(ctx, p.ID, errStreamStructure, failure{code: 400, pass: true})
			return
		}
		if err := c.streams.Add(streams.NewReadable(p.ID, p.Name, *p.Size)); err != nil {
			c.fail(ctx, p.ID, errStreamExists, failure{code: 400, pass: true})
		}
	case !exists:
		c.fail(ctx, p.ID, errStreamMissing, failure{code: 400, pass: true})
	case p.Status == protocol.StatusEnd:
		if err := r.Close(ctx); err != nil {
			c.logger.Debug().Err(err).Int64("stream", p.ID).Msg("channel: stream close")
		}
		c.streams.Remove(p.ID)
	case p.Status == protocol.StatusTerminate:
		if err := r.Terminate(ctx); err != nil {
			c.logger.Debug().Err(err).Int64("stream", p.ID).Msg("channel: stream terminate")
		}
		c.streams.Remove(p.ID)
	default:
		c.fail(ctx, p.ID, errStreamStructure, failure{code: 400, pass: true})
	}
}

// resumeCookieSession binds the session named by the request cookie when
// the channel has none: a live registry entry first, then the store.
func (c *Channel) resumeCookieSession(ctx context.Context) {
	if c.Session() != nil {
		return
	}
	token, ok := c.transport.Cookie(c.cookie)
	if !ok || token == "" {
		return
	}
	if c.restoreSession(token) {
		return
	}
	state, ok, err := c.sessions.Load(ctx, token)
	if err != nil {
		c.logger.Warn().Err(err).Msg("channel: session load failed")
		return
	}
	if ok {
		c.initializeSession(token, state)
	}
}

// initializeSession binds a fresh session for token. A closed channel
// refuses, since nothing would ever evict the new entry.
func (c *Channel) initializeSession(token string, state session.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.sess != nil {
		c.sessions.Remove(c.sess)
	}
	s := c.sessions.New(token, state)
	c.sess = s
	c.sessions.Add(s)
	return true
}

// finalizeSession evicts the channel's current session, which is not
// necessarily the one token names.
func (c *Channel) finalizeSession(token string) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions.Get(token); !ok || c.sess == nil {
		return nil, false
	}
	s := c.sess
	c.sessions.Remove(s)
	c.sess = nil
	return s, true
}

func (c *Channel) restoreSession(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	s, ok := c.sessions.Get(token)
	if !ok {
		return false
	}
	c.sess = s
	return true
}

func (c *Channel) nextEventID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventID--
	return c.eventID
}

func (c *Channel) nextStreamID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamID--
	return c.streamID
}

// SendPacket encodes p and sends it as a text frame.
func (c *Channel) SendPacket(ctx context.Context, p protocol.Packet) error {
	data, err := protocol.Marshal(p)
	if err != nil {
		return err
	}
	status := 200
	if p.Kind == protocol.KindError {
		status = p.Code
	}
	return c.send(ctx, Frame{Text: data, Status: status})
}

// SendBinary sends one framed stream chunk.
func (c *Channel) SendBinary(ctx context.Context, data []byte) error {
	return c.send(ctx, Frame{Binary: data, Status: 200})
}

func (c *Channel) send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.transport.Send(ctx, f)
}

// Wait blocks until every in-flight call has answered.
func (c *Channel) Wait() {
	c.calls.Wait()
}

// Close tears the channel down: the bound session leaves the registry,
// inbound streams are terminated, and close observers run. In-flight calls
// keep running; their answers are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	s := c.sess
	c.sess = nil
	observers := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	if s != nil {
		c.sessions.Remove(s)
	}
	c.streams.TerminateAll(context.Background())
	for _, fn := range observers {
		fn()
	}
	c.metrics.ChannelClosed()
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
