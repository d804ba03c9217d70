package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreEtcd   = "etcd"
)

// Config is the resolved server configuration.
type Config struct {
	Addr         string
	CorsOrigins  []string
	CookieName   string
	MaxChunkSize int
	ReadTimeout  time.Duration
	PingInterval time.Duration

	// AuthSecret, when set, is the shared secret auth.signIn requires.
	AuthSecret string

	Session SessionConfig
	Gate    GateConfig
}

type SessionConfig struct {
	Store         string
	Prefix        string
	TTL           time.Duration
	EtcdEndpoints []string
}

// GateConfig is the admission policy applied to every registered procedure.
type GateConfig struct {
	Concurrency  int
	QueueTimeout time.Duration
	Rate         float64
	Burst        int
}

func Default() Config {
	return Config{
		Addr:         ":8080",
		CorsOrigins:  []string{"http://localhost:3000"},
		CookieName:   "token",
		MaxChunkSize: 64 * 1024,
		ReadTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Session: SessionConfig{
			Store:  SessionStoreMemory,
			Prefix: "/chanrpc",
			TTL:    24 * time.Hour,
		},
		Gate: GateConfig{
			Concurrency:  64,
			QueueTimeout: 2 * time.Second,
		},
	}
}

// fileConfig mirrors the on-disk layout; durations are strings.
type fileConfig struct {
	Addr         string      `toml:"addr"`
	CorsOrigins  []string    `toml:"cors_origins"`
	CookieName   string      `toml:"cookie_name"`
	MaxChunkSize int         `toml:"max_chunk_size"`
	ReadTimeout  string      `toml:"read_timeout"`
	PingInterval string      `toml:"ping_interval"`
	AuthSecret   string      `toml:"auth_secret" comment:"empty accepts any account on sign in"`
	Session      fileSession `toml:"session"`
	Gate         fileGate    `toml:"gate"`
}

type fileSession struct {
	Store         string   `toml:"store" comment:"memory or etcd"`
	Prefix        string   `toml:"prefix"`
	TTL           string   `toml:"ttl"`
	EtcdEndpoints []string `toml:"etcd_endpoints"`
}

type fileGate struct {
	Concurrency  int     `toml:"concurrency" comment:"0 disables the in-flight cap"`
	QueueTimeout string  `toml:"queue_timeout"`
	Rate         float64 `toml:"rate" comment:"calls per second; 0 disables rate limiting"`
	Burst        int     `toml:"burst"`
}

// Load reads path over Default. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("cookie_name") {
		cfg.CookieName = strings.TrimSpace(raw.CookieName)
	}
	if meta.IsDefined("auth_secret") {
		cfg.AuthSecret = raw.AuthSecret
	}
	if meta.IsDefined("max_chunk_size") {
		cfg.MaxChunkSize = raw.MaxChunkSize
	}
	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"read_timeout"}, raw.ReadTimeout, &cfg.ReadTimeout},
		{[]string{"ping_interval"}, raw.PingInterval, &cfg.PingInterval},
		{[]string{"session", "ttl"}, raw.Session.TTL, &cfg.Session.TTL},
		{[]string{"gate", "queue_timeout"}, raw.Gate.QueueTimeout, &cfg.Gate.QueueTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("session", "store") {
		cfg.Session.Store = strings.ToLower(strings.TrimSpace(raw.Session.Store))
	}
	if meta.IsDefined("session", "prefix") {
		cfg.Session.Prefix = strings.TrimSpace(raw.Session.Prefix)
	}
	if meta.IsDefined("session", "etcd_endpoints") {
		cfg.Session.EtcdEndpoints = normalizeList(raw.Session.EtcdEndpoints)
	}
	if meta.IsDefined("gate", "concurrency") {
		cfg.Gate.Concurrency = raw.Gate.Concurrency
	}
	if meta.IsDefined("gate", "rate") {
		cfg.Gate.Rate = raw.Gate.Rate
	}
	if meta.IsDefined("gate", "burst") {
		cfg.Gate.Burst = raw.Gate.Burst
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("config missing addr")
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		return fmt.Errorf("config missing cookie_name")
	}
	if cfg.MaxChunkSize <= 0 {
		return fmt.Errorf("max_chunk_size must be positive")
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.ReadTimeout {
		return fmt.Errorf("ping_interval must be positive and shorter than read_timeout")
	}
	switch cfg.Session.Store {
	case SessionStoreMemory:
	case SessionStoreEtcd:
		if len(cfg.Session.EtcdEndpoints) == 0 {
			return fmt.Errorf("session store etcd requires etcd_endpoints")
		}
	default:
		return fmt.Errorf("unknown session store: %q", cfg.Session.Store)
	}
	if cfg.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	if cfg.Gate.Concurrency < 0 || cfg.Gate.Rate < 0 || cfg.Gate.Burst < 0 || cfg.Gate.QueueTimeout < 0 {
		return fmt.Errorf("gate settings must not be negative")
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
