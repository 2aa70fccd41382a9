package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ClientConfig is the stationctl tool configuration.
type ClientConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	TimeoutMS    int64  `toml:"timeout_ms"`
	RaiseOnError bool   `toml:"raise_on_error"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:         "localhost",
		Port:         5555,
		TimeoutMS:    5000,
		RaiseOnError: true,
	}
}

// StationConfig is the stationd daemon configuration.
type StationConfig struct {
	Name            string `toml:"name"`
	ListenAddr      string `toml:"listen_addr"`
	MonitorAddr     string `toml:"monitor_addr"`
	IdleTimeoutMS   int64  `toml:"idle_timeout_ms"`
	MaxPayloadBytes uint64 `toml:"max_payload_bytes"`
	// ParamStorePath persists the built-in parameter store across runs.
	// Empty disables persistence.
	ParamStorePath string   `toml:"param_store_path"`
	CorsOrigins    []string `toml:"cors_origins"`
}

func DefaultStationConfig() StationConfig {
	return StationConfig{
		Name:            "station.local",
		ListenAddr:      "127.0.0.1:5555",
		MonitorAddr:     "127.0.0.1:8555",
		IdleTimeoutMS:   300_000,
		MaxPayloadBytes: 8 * 1024 * 1024,
		CorsOrigins:     []string{"http://localhost:3000"},
	}
}

// LoadClientConfig reads path over the defaults: absent keys keep their
// default values.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func LoadStationConfig(path string) (StationConfig, error) {
	cfg := DefaultStationConfig()
	if err := loadToml(path, &cfg); err != nil {
		return StationConfig{}, err
	}
	if err := ValidateStationConfig(cfg); err != nil {
		return StationConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("client config missing host")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("client config port %d out of range", cfg.Port)
	}
	if cfg.TimeoutMS <= 0 {
		return fmt.Errorf("client config timeout_ms must be positive")
	}
	return nil
}

func ValidateStationConfig(cfg StationConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("station config missing name")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("station config missing listen_addr")
	}
	if strings.TrimSpace(cfg.MonitorAddr) == "" {
		return fmt.Errorf("station config missing monitor_addr")
	}
	if cfg.IdleTimeoutMS < 0 {
		return fmt.Errorf("station config idle_timeout_ms must not be negative")
	}
	if cfg.MaxPayloadBytes == 0 {
		return fmt.Errorf("station config max_payload_bytes must be positive")
	}
	return nil
}
