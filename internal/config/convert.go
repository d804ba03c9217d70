package config

import (
	"github.com/danmuck/chanrpc/internal/rpc"
	"github.com/danmuck/chanrpc/internal/session"
)

func (g GateConfig) RPC() rpc.GateConfig {
	return rpc.GateConfig{
		Concurrency:  g.Concurrency,
		QueueTimeout: g.QueueTimeout,
		Rate:         g.Rate,
		Burst:        g.Burst,
	}
}

func (s SessionConfig) Etcd() session.EtcdConfig {
	return session.EtcdConfig{
		Endpoints: s.EtcdEndpoints,
		Prefix:    s.Prefix,
		TTL:       s.TTL,
	}
}
