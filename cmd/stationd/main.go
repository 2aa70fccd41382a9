package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quartzlab/stationctl/internal/config"
	"github.com/quartzlab/stationctl/internal/logging"
	"github.com/quartzlab/stationctl/internal/station"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "stationd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "station config file (TOML)")
	name := flag.String("name", "", "station name override")
	listen := flag.String("listen", "", "request listen address override")
	monitor := flag.String("monitor", "", "monitor listen address override")
	paramStore := flag.String("param-store", "", "parameter store persistence path override")
	heartbeat := flag.Duration("heartbeat", time.Minute, "status heartbeat interval; 0 disables")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			cfg.Name = *name
		case "listen":
			cfg.ListenAddr = *listen
		case "monitor":
			cfg.MonitorAddr = *monitor
		case "param-store":
			cfg.ParamStorePath = *paramStore
		}
	})
	if err := config.ValidateStationConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	if err := d.start(); err != nil {
		return err
	}
	return d.serve(ctx, *heartbeat)
}

func resolveConfig(path string) (config.StationConfig, error) {
	if path == "" {
		return config.DefaultStationConfig(), nil
	}
	return config.LoadStationConfig(path)
}

// daemon owns the station server, its monitor sidecar and the persisted
// parameter store.
type daemon struct {
	cfg     config.StationConfig
	server  *station.Server
	monitor *station.Monitor
	store   *station.ParameterStore
}

func newDaemon(cfg config.StationConfig) (*daemon, error) {
	store := station.NewParameterStore(station.DefaultParameterStoreName)
	if cfg.ParamStorePath != "" {
		if _, err := os.Stat(cfg.ParamStorePath); err == nil {
			if err := store.LoadFrom(cfg.ParamStorePath); err != nil {
				return nil, err
			}
			logging.Infof("stationd parameter store restored path=%s params=%d",
				cfg.ParamStorePath, len(store.Params()))
		}
	}

	registry := station.NewRegistry()
	if err := registry.Register(store); err != nil {
		return nil, err
	}

	dispatcher := station.NewDispatcher(cfg.Name, registry)
	server := station.NewServer(config.StationServerConfig(cfg), dispatcher)
	monitor := station.NewMonitor(config.StationMonitorConfig(cfg), server)
	return &daemon{cfg: cfg, server: server, monitor: monitor, store: store}, nil
}

func (d *daemon) start() error {
	if err := d.server.Start(); err != nil {
		return err
	}
	if err := d.monitor.Start(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = d.server.Shutdown(ctx)
		return err
	}
	return nil
}

// serve blocks until ctx is cancelled, logging a heartbeat while it waits.
func (d *daemon) serve(ctx context.Context, heartbeat time.Duration) error {
	var tick <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logging.Infof("stationd shutdown")
			return d.shutdown()
		case <-tick:
			logging.Infof("stationd heartbeat station=%q addr=%s conns=%d instruments=%d",
				d.server.Name(), d.server.Addr(), d.server.ActiveConns(),
				d.server.Dispatcher().Registry().Len())
		}
	}
}

func (d *daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	monErr := d.monitor.Shutdown(ctx)
	srvErr := d.server.Shutdown(ctx)

	var storeErr error
	if d.cfg.ParamStorePath != "" {
		storeErr = d.store.SaveTo(d.cfg.ParamStorePath)
		if storeErr == nil {
			logging.Infof("stationd parameter store saved path=%s params=%d",
				d.cfg.ParamStorePath, len(d.store.Params()))
		}
	}

	for _, err := range []error{srvErr, monErr, storeErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
