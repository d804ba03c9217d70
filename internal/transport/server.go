package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/chanrpc/internal/channel"
	"github.com/danmuck/chanrpc/internal/observability"
	"github.com/danmuck/chanrpc/internal/rpc"
	"github.com/danmuck/chanrpc/internal/session"
	"github.com/danmuck/chanrpc/internal/streams"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	Addr         string
	CorsOrigins  []string
	CookieName   string
	MaxChunkSize int
	ReadTimeout  time.Duration
	PingInterval time.Duration
	Methods      *rpc.Registry
	Sessions     *session.Registry
	Logger       zerolog.Logger
}

type Server struct {
	opts     Options
	router   *gin.Engine
	upgrader websocket.Upgrader
	started  time.Time

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(opts Options) *Server {
	if opts.Methods == nil {
		opts.Methods = rpc.NewRegistry()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry(nil)
	}
	if opts.CookieName == "" {
		opts.CookieName = channel.DefaultCookieName
	}
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = streams.DefaultMaxChunkSize
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.ReadTimeout {
		opts.PingInterval = opts.ReadTimeout * 9 / 10
	}

	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(opts.Logger))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     normalizeOrigins(opts.CorsOrigins),
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		opts:    opts,
		router:  r,
		started: time.Now(),
		conns:   make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info().Str("addr", s.opts.Addr).Msg("transport: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close drops every websocket connection, waits for their channels to
// finish, and flushes the session registry.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.opts.Sessions.Close()
}

func (s *Server) channelOptions() channel.Options {
	return channel.Options{
		Methods:      s.opts.Methods,
		Sessions:     s.opts.Sessions,
		Logger:       s.opts.Logger,
		Metrics:      observability.Recorder{},
		CookieName:   s.opts.CookieName,
		MaxChunkSize: s.opts.MaxChunkSize,
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range normalizeOrigins(s.opts.CorsOrigins) {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
