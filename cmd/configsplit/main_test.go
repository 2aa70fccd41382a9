package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/quartzlab/stationctl/internal/config"
	"github.com/quartzlab/stationctl/internal/stationcfg"
	"github.com/quartzlab/stationctl/internal/testutil/testlog"
)

const sampleDoc = `instruments:
  flux_source:
    type: stationctl.simulated.Source
    address: tcp://127.0.0.1:7001
    initialize: false
    gui:
      type: Generic
      kwargs:
        rows: 4
  parameter_store:
    type: stationctl.params.ParameterStore
settings:
  default_timeout_ms: 5000
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestRunWritesAllViews(t *testing.T) {
	testlog.Start(t)

	input := writeSample(t)
	dir := t.TempDir()
	serverOut := filepath.Join(dir, "server.yaml")
	guiOut := filepath.Join(dir, "gui.yaml")
	fullOut := filepath.Join(dir, "full.yaml")

	var buf bytes.Buffer
	err := run([]string{
		"-input", input,
		"-server-out", serverOut,
		"-gui-out", guiOut,
		"-full-out", fullOut,
	}, &buf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "split 2 instruments") {
		t.Fatalf("unexpected output: %q", buf.String())
	}

	var server map[string]map[string]any
	decodeYAMLFile(t, serverOut, &server)
	if server["flux_source"]["initialize"] != false {
		t.Fatalf("unexpected server view: %+v", server)
	}
	if server["parameter_store"]["initialize"] != true {
		t.Fatalf("unexpected server view: %+v", server)
	}

	var gui map[string]stationcfg.GUIDescriptor
	decodeYAMLFile(t, guiOut, &gui)
	if gui["flux_source"].Type != stationcfg.DefaultGUIType {
		t.Fatalf("unexpected gui view: %+v", gui)
	}
	if gui["flux_source"].Kwargs["rows"] != 4 {
		t.Fatalf("kwargs not carried: %+v", gui["flux_source"].Kwargs)
	}

	var full map[string]map[string]any
	decodeYAMLFile(t, fullOut, &full)
	if full["flux_source"]["initialize"] != false {
		t.Fatalf("unexpected full view: %+v", full)
	}
	if _, ok := full["flux_source"]["gui"]; !ok {
		t.Fatalf("gui missing from full view: %+v", full["flux_source"])
	}
}

func TestRunKeepStationPrintsResidualPath(t *testing.T) {
	testlog.Start(t)

	input := writeSample(t)
	var buf bytes.Buffer
	if err := run([]string{"-input", input, "-keep-station"}, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "station residual at ") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
	residual := strings.TrimPrefix(last, "station residual at ")
	data, err := os.ReadFile(residual)
	if err != nil {
		t.Fatalf("read residual: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(residual) })
	if strings.Contains(string(data), "initialize") {
		t.Fatalf("residual still carries extracted fields: %s", data)
	}
	if !strings.Contains(string(data), "default_timeout_ms: 5000") {
		t.Fatalf("residual lost unrelated content: %s", data)
	}
}

func TestRunTemplateMode(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "client.toml")
	var buf bytes.Buffer
	if err := run([]string{"-template", "client", "-output", path}, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := config.LoadClientConfig(path); err != nil {
		t.Fatalf("template does not load: %v", err)
	}

	if err := run([]string{"-template", "client", "-output", path}, &buf); err == nil {
		t.Fatalf("expected overwrite guard")
	}
	if err := run([]string{"-template", "client", "-output", path, "-force"}, &buf); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	if err := run([]string{"-template", "client"}, &buf); err == nil {
		t.Fatalf("expected missing -output error")
	}
	if err := run([]string{"-template", "relay", "-output", filepath.Join(t.TempDir(), "x.toml")}, &buf); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	testlog.Start(t)

	var buf bytes.Buffer
	if err := run(nil, &buf); err == nil {
		t.Fatalf("expected missing -input error")
	}
	if err := run([]string{"-input", filepath.Join(t.TempDir(), "missing.yaml")}, &buf); err == nil {
		t.Fatalf("expected read error")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("settings: {}\n"), 0o644); err != nil {
		t.Fatalf("write bad doc: %v", err)
	}
	if err := run([]string{"-input", bad}, &buf); err == nil {
		t.Fatalf("expected split error")
	}
}

func decodeYAMLFile(t *testing.T, path string, out any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}
