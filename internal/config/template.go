package config

import (
	"fmt"
	"os"

	gotoml "github.com/pelletier/go-toml/v2"
)

// Template renders Default as a commented TOML file.
func Template() (string, error) {
	cfg := Default()
	raw := fileConfig{
		Addr:         cfg.Addr,
		CorsOrigins:  cfg.CorsOrigins,
		CookieName:   cfg.CookieName,
		MaxChunkSize: cfg.MaxChunkSize,
		ReadTimeout:  cfg.ReadTimeout.String(),
		PingInterval: cfg.PingInterval.String(),
		AuthSecret:   cfg.AuthSecret,
		Session: fileSession{
			Store:         cfg.Session.Store,
			Prefix:        cfg.Session.Prefix,
			TTL:           cfg.Session.TTL.String(),
			EtcdEndpoints: []string{"127.0.0.1:2379"},
		},
		Gate: fileGate{
			Concurrency:  cfg.Gate.Concurrency,
			QueueTimeout: cfg.Gate.QueueTimeout.String(),
			Rate:         cfg.Gate.Rate,
			Burst:        cfg.Gate.Burst,
		},
	}
	data, err := gotoml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
