package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/danmuck/chanrpc/internal/channel"
	"github.com/danmuck/chanrpc/internal/observability"
	"github.com/gin-gonic/gin"
)

var errResponseWritten = errors.New("transport: response already written")

// httpTransport carries one request. Only the first frame becomes the
// response; cookies set before it are attached to it.
type httpTransport struct {
	req    *http.Request
	remote string
	first  chan channel.Frame

	mu      sync.Mutex
	sent    bool
	cookies []*http.Cookie
}

func newHTTPTransport(req *http.Request, remote string) *httpTransport {
	return &httpTransport{req: req, remote: remote, first: make(chan channel.Frame, 1)}
}

func (t *httpTransport) Send(_ context.Context, f channel.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sent {
		return errResponseWritten
	}
	t.sent = true
	t.first <- f
	return nil
}

func (t *httpTransport) RemoteAddr() string { return t.remote }
func (t *httpTransport) Persistent() bool   { return false }
func (t *httpTransport) Method() string     { return t.req.Method }
func (t *httpTransport) URL() string        { return t.req.URL.RequestURI() }

func (t *httpTransport) Cookie(name string) (string, bool) {
	c, err := t.req.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (t *httpTransport) SetCookie(name, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cookies = append(t.cookies, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (t *httpTransport) pendingCookies() []*http.Cookie {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*http.Cookie(nil), t.cookies...)
}

func (s *Server) serveAPI(c *gin.Context) {
	observability.TagTransport(c, "api")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTextSize+1))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if len(body) > maxTextSize {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}

	t := newHTTPTransport(c.Request, c.ClientIP())
	ch := channel.New(t, s.channelOptions())
	defer ch.Close()

	ctx := c.Request.Context()
	ch.HandleText(ctx, body)

	idle := make(chan struct{})
	go func() {
		ch.Wait()
		close(idle)
	}()

	var frame channel.Frame
	select {
	case frame = <-t.first:
	case <-idle:
		select {
		case frame = <-t.first:
		default:
			c.Status(http.StatusNoContent)
			return
		}
	case <-ctx.Done():
		return
	}

	for _, cookie := range t.pendingCookies() {
		http.SetCookie(c.Writer, cookie)
	}
	status := frame.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, "application/json; charset=utf-8", frame.Text)
}
