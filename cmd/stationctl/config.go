package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/quartzlab/stationctl/internal/config"
)

type fileConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Timeout      string `toml:"timeout"`
	TimeoutMS    int64  `toml:"timeout_ms"`
	RaiseOnError bool   `toml:"raise_on_error"`
}

// loadClientConfig overlays the keys present in path onto the defaults.
// Absent keys keep their default values; timeout accepts either a duration
// string or milliseconds.
func loadClientConfig(path string) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("host") {
		host := strings.TrimSpace(raw.Host)
		if host != "" {
			cfg.Host = host
		}
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return config.ClientConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.TimeoutMS = d.Milliseconds()
	}

	if meta.IsDefined("timeout_ms") {
		cfg.TimeoutMS = raw.TimeoutMS
	}

	if meta.IsDefined("raise_on_error") {
		cfg.RaiseOnError = raw.RaiseOnError
	}

	return cfg, nil
}
