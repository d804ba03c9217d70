package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/chanrpc/internal/testutil/testlog"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)

	cfg, err := Load(filepath.Join("testdata", "chanrpc.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if !reflect.DeepEqual(cfg.CorsOrigins, []string{"https://app.example.com"}) {
		t.Fatalf("unexpected cors origins: %+v", cfg.CorsOrigins)
	}
	if cfg.CookieName != "token" || cfg.MaxChunkSize != 64*1024 {
		t.Fatalf("unset keys must keep defaults: %+v", cfg)
	}
	if cfg.ReadTimeout != 30*time.Second || cfg.PingInterval != 10*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.ReadTimeout, cfg.PingInterval)
	}
	if cfg.Session.Store != SessionStoreEtcd || cfg.Session.TTL != time.Hour || cfg.Session.Prefix != "/chanrpc" {
		t.Fatalf("unexpected session config: %+v", cfg.Session)
	}
	if len(cfg.Session.EtcdEndpoints) != 2 {
		t.Fatalf("unexpected etcd endpoints: %+v", cfg.Session.EtcdEndpoints)
	}
	if cfg.Gate.Concurrency != 8 || cfg.Gate.Rate != 50.5 || cfg.Gate.Burst != 10 {
		t.Fatalf("unexpected gate config: %+v", cfg.Gate)
	}
	if cfg.Gate.QueueTimeout != 2*time.Second {
		t.Fatalf("queue timeout must keep its default: %v", cfg.Gate.QueueTimeout)
	}

	etcd := cfg.Session.Etcd()
	if etcd.TTL != time.Hour || etcd.Prefix != "/chanrpc" || len(etcd.Endpoints) != 2 {
		t.Fatalf("unexpected etcd conversion: %+v", etcd)
	}
	if gate := cfg.Gate.RPC(); gate.Concurrency != 8 || gate.Burst != 10 {
		t.Fatalf("unexpected gate conversion: %+v", gate)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"unknown key":    "addr = \":1\"\nlisten = \":2\"\n",
		"bad duration":   "read_timeout = \"soon\"\n",
		"ping too long":  "read_timeout = \"5s\"\nping_interval = \"10s\"\n",
		"unknown store":  "[session]\nstore = \"redis\"\n",
		"etcd no hosts":  "[session]\nstore = \"etcd\"\n",
		"negative gate":  "[gate]\nconcurrency = -1\n",
		"empty cookie":   "cookie_name = \"  \"\n",
		"zero chunk max": "max_chunk_size = 0\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".toml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTemplateLoadsBackToDefaults(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	want := Default()
	want.Session.EtcdEndpoints = []string{"127.0.0.1:2379"}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("template drifted from defaults:\n got %+v\nwant %+v", cfg, want)
	}
}
