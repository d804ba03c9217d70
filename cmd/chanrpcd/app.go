package main

import (
	"fmt"
	"io"

	"github.com/danmuck/chanrpc/internal/auth"
	"github.com/danmuck/chanrpc/internal/config"
	"github.com/danmuck/chanrpc/internal/logging"
	"github.com/danmuck/chanrpc/internal/rpc"
	"github.com/danmuck/chanrpc/internal/session"
	"github.com/danmuck/chanrpc/internal/transport"
	"github.com/rs/zerolog"
)

type app struct {
	server   *transport.Server
	sessions *session.Registry
	store    session.Store
}

func newApp(cfg config.Config, logger zerolog.Logger) (*app, error) {
	store, err := newStore(cfg.Session)
	if err != nil {
		return nil, err
	}
	methods := rpc.NewRegistry()
	if err := registerProcedures(methods, cfg.Gate, newValidator(cfg.AuthSecret)); err != nil {
		closeStore(store)
		return nil, err
	}
	sessions := session.NewRegistry(store, session.WithLogger(logging.Component("session")))

	server := transport.New(transport.Options{
		Addr:         cfg.Addr,
		CorsOrigins:  cfg.CorsOrigins,
		CookieName:   cfg.CookieName,
		MaxChunkSize: cfg.MaxChunkSize,
		ReadTimeout:  cfg.ReadTimeout,
		PingInterval: cfg.PingInterval,
		Methods:      methods,
		Sessions:     sessions,
		Logger:       logger,
	})
	return &app{server: server, sessions: sessions, store: store}, nil
}

func (a *app) close() {
	a.server.Close()
	closeStore(a.store)
}

func closeStore(store session.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

func newValidator(secret string) auth.Validator {
	if secret == "" {
		return auth.AllowAny{}
	}
	return auth.SharedSecret{Secret: secret}
}

func newStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case config.SessionStoreMemory, "":
		return session.NewMemoryStore(), nil
	case config.SessionStoreEtcd:
		store, err := session.NewEtcdStore(cfg.Etcd())
		if err != nil {
			return nil, fmt.Errorf("open etcd session store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store: %q", cfg.Store)
	}
}
