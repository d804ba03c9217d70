package session

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdConfig configures the etcd-backed store.
type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	TTL         time.Duration
	DialTimeout time.Duration
}

// EtcdStore persists sessions as JSON values under <prefix>/sessions/<token>.
// With a TTL every save attaches a fresh lease, so idle sessions expire.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	ttl    time.Duration
}

func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("session: etcd store needs at least one endpoint")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dial,
	})
	if err != nil {
		return nil, fmt.Errorf("session: etcd connect: %w", err)
	}
	return &EtcdStore{client: c, prefix: normalizePrefix(cfg.Prefix), ttl: cfg.TTL}, nil
}

func (s *EtcdStore) ReadSession(ctx context.Context, token string) (State, bool, error) {
	resp, err := s.client.Get(ctx, s.key(token))
	if err != nil {
		return nil, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	var state State
	if err := gojson.Unmarshal(resp.Kvs[0].Value, &state); err != nil {
		return nil, false, fmt.Errorf("session: decode %s: %w", token, err)
	}
	if state == nil {
		state = State{}
	}
	return state, true, nil
}

func (s *EtcdStore) SaveSession(ctx context.Context, token string, state State) error {
	val, err := gojson.Marshal(state)
	if err != nil {
		return err
	}
	if s.ttl <= 0 {
		_, err = s.client.Put(ctx, s.key(token), string(val))
		return err
	}
	seconds := int64(s.ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	lease, err := s.client.Grant(ctx, seconds)
	if err != nil {
		return err
	}
	_, err = s.client.Put(ctx, s.key(token), string(val), clientv3.WithLease(lease.ID))
	return err
}

func (s *EtcdStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.client.Delete(ctx, s.key(token))
	return err
}

func (s *EtcdStore) Close() error {
	return s.client.Close()
}

func (s *EtcdStore) key(token string) string {
	return path.Join(s.prefix, "sessions", token)
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "chanrpc"
	}
	return "/" + strings.Trim(prefix, "/")
}
