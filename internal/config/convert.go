package config

import (
	"time"

	"github.com/quartzlab/stationctl/internal/client"
	"github.com/quartzlab/stationctl/internal/protocol/frame"
	"github.com/quartzlab/stationctl/internal/station"
	"github.com/quartzlab/stationctl/internal/transport"
)

// ClientSessionConfig maps a file config onto a session config.
func ClientSessionConfig(cfg ClientConfig) client.Config {
	out := client.DefaultConfig()
	out.Addr = transport.NewAddress(cfg.Host, cfg.Port)
	out.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	out.RaiseOnError = cfg.RaiseOnError
	return out
}

func StationServerConfig(cfg StationConfig) station.Config {
	out := station.DefaultConfig()
	out.Name = cfg.Name
	out.ListenAddr = cfg.ListenAddr
	out.IdleTimeout = time.Duration(cfg.IdleTimeoutMS) * time.Millisecond
	out.Limits = frame.Limits{MaxPayloadBytes: cfg.MaxPayloadBytes}
	return out
}

func StationMonitorConfig(cfg StationConfig) station.MonitorConfig {
	out := station.DefaultMonitorConfig()
	out.ListenAddr = cfg.MonitorAddr
	out.CorsOrigins = cfg.CorsOrigins
	return out
}
