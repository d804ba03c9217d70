package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/chanrpc/internal/channel"
	"github.com/danmuck/chanrpc/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	maxTextSize = 1 << 20
	// chunk ids are at most 20 digits plus the length byte
	chunkOverhead = 21
)

var errConnClosed = errors.New("transport: connection closed")

// wsTransport is the persistent Transport. gorilla connections allow one
// concurrent writer, so every write holds mu.
type wsTransport struct {
	conn   *websocket.Conn
	req    *http.Request
	remote string
	mu     sync.Mutex
	closed bool
}

func newWSTransport(conn *websocket.Conn, req *http.Request, remote string) *wsTransport {
	return &wsTransport{conn: conn, req: req, remote: remote}
}

func (t *wsTransport) Send(_ context.Context, f channel.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errConnClosed
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if f.Binary != nil {
		return t.conn.WriteMessage(websocket.BinaryMessage, f.Binary)
	}
	return t.conn.WriteMessage(websocket.TextMessage, f.Text)
}

func (t *wsTransport) ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errConnClosed
	}
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (t *wsTransport) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	_ = t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string { return t.remote }
func (t *wsTransport) Persistent() bool   { return true }
func (t *wsTransport) Method() string     { return t.req.Method }
func (t *wsTransport) URL() string        { return t.req.URL.RequestURI() }

// Cookie reads the cookies sent with the upgrade request.
func (t *wsTransport) Cookie(name string) (string, bool) {
	c, err := t.req.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// SetCookie is a no-op: the upgrade response has already been written.
func (t *wsTransport) SetCookie(string, string) {}

func (s *Server) serveWS(c *gin.Context) {
	observability.TagTransport(c, "ws")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.opts.Logger.Debug().Err(err).Str("remote", c.ClientIP()).Msg("transport: upgrade failed")
		return
	}
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	t := newWSTransport(conn, c.Request, c.ClientIP())
	ch := channel.New(t, s.channelOptions())
	s.readLoop(c.Request.Context(), t, ch)
}

// readLoop dispatches frames until the connection fails or the peer stops
// answering pings, then tears the channel down.
func (s *Server) readLoop(ctx context.Context, t *wsTransport, ch *channel.Channel) {
	conn := t.conn
	limit := int64(s.opts.MaxChunkSize + chunkOverhead)
	if limit < maxTextSize {
		limit = maxTextSize
	}
	conn.SetReadLimit(limit)
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	done := make(chan struct{})
	go s.pingLoop(t, done)
	defer func() {
		close(done)
		ch.Close()
		t.close()
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.opts.Logger.Debug().Err(err).Str("remote", t.remote).Msg("transport: connection lost")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		switch typ {
		case websocket.TextMessage:
			ch.HandleText(ctx, data)
		case websocket.BinaryMessage:
			ch.HandleBinary(ctx, data)
		}
	}
}

func (s *Server) pingLoop(t *wsTransport, done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.ping(); err != nil {
				return
			}
		}
	}
}
