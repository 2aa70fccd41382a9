package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/quartzlab/stationctl/internal/client"
	"github.com/quartzlab/stationctl/internal/config"
	"github.com/quartzlab/stationctl/internal/station"
	"github.com/quartzlab/stationctl/internal/testutil/testlog"
	"github.com/quartzlab/stationctl/internal/transport"
)

func testDaemonConfig(t *testing.T) config.StationConfig {
	t.Helper()
	cfg := config.DefaultStationConfig()
	cfg.Name = "station.test"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.MonitorAddr = "127.0.0.1:0"
	return cfg
}

func sessionAddr(t *testing.T, hostPort string) transport.Address {
	t.Helper()
	host, portRaw, err := net.SplitHostPort(hostPort)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return transport.NewAddress(host, port)
}

func TestResolveConfig(t *testing.T) {
	cfg, err := resolveConfig("")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if cfg.Name != "station.local" {
		t.Fatalf("unexpected default name: %q", cfg.Name)
	}

	path := filepath.Join(t.TempDir(), "station.toml")
	if err := os.WriteFile(path, []byte(`name = "station.rack2"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = resolveConfig(path)
	if err != nil {
		t.Fatalf("resolve file: %v", err)
	}
	if cfg.Name != "station.rack2" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}

	if _, err := resolveConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestDaemonServesAndPersistsParams(t *testing.T) {
	testlog.Start(t)

	storePath := filepath.Join(t.TempDir(), "params.json")
	cfg := testDaemonConfig(t)
	cfg.ParamStorePath = storePath

	d, err := newDaemon(cfg)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.start(); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	if d.monitor.Addr() == "" {
		t.Fatalf("monitor not bound")
	}

	ccfg := client.DefaultConfig()
	ccfg.Addr = sessionAddr(t, d.server.Addr())
	ccfg.Timeout = 2 * time.Second
	err = client.WithSession(ccfg, func(s *client.Session) error {
		if err := s.SetParams(station.DefaultParameterStoreName, map[string]any{"lab.temp": 21.5}); err != nil {
			return err
		}
		reply, err := s.Ask("ping")
		if err != nil {
			return err
		}
		if reply != "pong" {
			t.Errorf("unexpected reply: %v", reply)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	if err := d.shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if d.server.Running() {
		t.Fatalf("server still running after shutdown")
	}

	restored := station.NewParameterStore("check")
	if err := restored.LoadFrom(storePath); err != nil {
		t.Fatalf("load persisted store: %v", err)
	}
	if restored.Params()["lab.temp"] != 21.5 {
		t.Fatalf("unexpected persisted params: %+v", restored.Params())
	}

	// A fresh daemon over the same path boots with the persisted values.
	d2, err := newDaemon(cfg)
	if err != nil {
		t.Fatalf("new daemon over persisted store: %v", err)
	}
	if d2.store.Params()["lab.temp"] != 21.5 {
		t.Fatalf("store not restored: %+v", d2.store.Params())
	}
}

func TestDaemonServeStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)

	d, err := newDaemon(testDaemonConfig(t))
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.start(); err != nil {
		t.Fatalf("start daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx, 10*time.Millisecond) }()

	// Let a heartbeat or two fire before stopping.
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop")
	}
	if d.server.Running() {
		t.Fatalf("server still running after serve returned")
	}
}
