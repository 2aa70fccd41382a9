package stationcfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

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

func splitSample(t *testing.T, doc string) *SplitResult {
	t.Helper()
	opts := DefaultOptions()
	opts.TempDir = t.TempDir()
	res, err := Split([]byte(doc), opts)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	t.Cleanup(func() { _ = res.Cleanup() })
	return res
}

func TestSplitDerivesThreeViews(t *testing.T) {
	testlog.Start(t)
	res := splitSample(t, sampleDoc)

	if got := res.ServerConfig["flux_source"]["initialize"]; got != false {
		t.Fatalf("explicit initialize not extracted: %v", got)
	}
	if got := res.ServerConfig["parameter_store"]["initialize"]; got != true {
		t.Fatalf("default initialize not substituted: %v", got)
	}

	gui := res.GUIConfig["flux_source"]
	if gui.Type != DefaultGUIType {
		t.Fatalf("generic alias not normalized: %q", gui.Type)
	}
	if gui.Kwargs["rows"] != 4 {
		t.Fatalf("kwargs not carried: %v", gui.Kwargs)
	}

	full := res.FullConfig["flux_source"]
	if full["type"] != "stationctl.simulated.Source" || full["address"] != "tcp://127.0.0.1:7001" {
		t.Fatalf("residual fields missing from full view: %v", full)
	}
	if full["initialize"] != false {
		t.Fatalf("server field missing from full view: %v", full)
	}
	if desc, ok := full["gui"].(GUIDescriptor); !ok || desc.Type != DefaultGUIType {
		t.Fatalf("gui missing from full view: %#v", full["gui"])
	}
}

func TestSplitDefaultsWhenGUIAbsent(t *testing.T) {
	testlog.Start(t)
	res := splitSample(t, sampleDoc)

	gui := res.GUIConfig["parameter_store"]
	if gui.Type != DefaultGUIType {
		t.Fatalf("default gui type mismatch: %q", gui.Type)
	}
	if len(gui.Kwargs) != 0 {
		t.Fatalf("default kwargs must be empty: %v", gui.Kwargs)
	}

	// The default descriptor must not be shared between instruments.
	gui.Kwargs["poisoned"] = true
	if len(res.GUIConfig["flux_source"].Kwargs) != 1 {
		t.Fatalf("default kwargs aliased across instruments")
	}
}

func TestSplitNormalizesGenericAliasAnyCasing(t *testing.T) {
	testlog.Start(t)
	for _, alias := range []string{"generic", "Generic", "GENERIC", "gEnErIc"} {
		doc := fmt.Sprintf("instruments:\n  psu:\n    gui:\n      type: %s\n", alias)
		res := splitSample(t, doc)
		if got := res.GUIConfig["psu"].Type; got != DefaultGUIType {
			t.Fatalf("alias %q not normalized: %q", alias, got)
		}
	}
}

func TestSplitKeepsExplicitGUIType(t *testing.T) {
	testlog.Start(t)
	doc := "instruments:\n  psu:\n    gui:\n      type: lab.widgets.PSUPanel\n      compact: true\n"
	res := splitSample(t, doc)

	gui := res.GUIConfig["psu"]
	if gui.Type != "lab.widgets.PSUPanel" {
		t.Fatalf("explicit type rewritten: %q", gui.Type)
	}
	if gui.Kwargs["compact"] != true {
		t.Fatalf("extra gui fields must pass through as kwargs: %v", gui.Kwargs)
	}
}

func TestSplitNullFieldsFail(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		doc   string
		field string
	}{
		{"instruments:\n  psu:\n    initialize: null\n", "initialize"},
		{"instruments:\n  psu:\n    gui: null\n", "gui"},
		{"instruments:\n  psu:\n    gui:\n      type: null\n", "gui.type"},
		{"instruments:\n  psu:\n    gui:\n      kwargs: null\n", "gui.kwargs"},
	}
	for _, tc := range cases {
		_, err := Split([]byte(tc.doc), DefaultOptions())
		var nfe *NullFieldError
		if !errors.As(err, &nfe) {
			t.Fatalf("field %s: expected NullFieldError, got %v", tc.field, err)
		}
		if nfe.Instrument != "psu" || nfe.Field != tc.field {
			t.Fatalf("null field mismatch: %+v", nfe)
		}
	}
}

func TestSplitResidualOmitsExtractedFields(t *testing.T) {
	testlog.Start(t)
	res := splitSample(t, sampleDoc)

	b, err := os.ReadFile(res.StationPath)
	if err != nil {
		t.Fatalf("read residual: %v", err)
	}
	residual := string(b)

	for _, gone := range []string{"initialize", "gui", "rows"} {
		if strings.Contains(residual, gone) {
			t.Fatalf("extracted field %q leaked into residual:\n%s", gone, residual)
		}
	}
	for _, kept := range []string{"instruments", "flux_source", "address: tcp://127.0.0.1:7001", "settings", "default_timeout_ms"} {
		if !strings.Contains(residual, kept) {
			t.Fatalf("residual lost untouched content %q:\n%s", kept, residual)
		}
	}

	if err := res.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(res.StationPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("residual file still present after cleanup: %v", err)
	}
}

func TestSplitCustomServerFields(t *testing.T) {
	testlog.Start(t)
	opts := DefaultOptions()
	opts.ServerFields = []ServerField{{Name: "autoconnect", Default: "never"}}
	opts.TempDir = t.TempDir()

	doc := "instruments:\n  psu:\n    autoconnect: always\n  awg: {}\n"
	res, err := Split([]byte(doc), opts)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	defer res.Cleanup()

	if res.ServerConfig["psu"]["autoconnect"] != "always" {
		t.Fatalf("explicit value lost: %v", res.ServerConfig["psu"])
	}
	if res.ServerConfig["awg"]["autoconnect"] != "never" {
		t.Fatalf("default value lost: %v", res.ServerConfig["awg"])
	}
}

func TestSplitRejectsBadDocuments(t *testing.T) {
	testlog.Start(t)
	bad := []string{
		"",
		"settings: {}\n",
		"instruments: null\n",
		"instruments: [a, b]\n",
		"instruments:\n  psu: 5\n",
	}
	for _, doc := range bad {
		if _, err := Split([]byte(doc), DefaultOptions()); !errors.Is(err, ErrBadDocument) {
			t.Fatalf("doc %q: expected ErrBadDocument, got %v", doc, err)
		}
	}
}

func TestSplitFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "station.yaml")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	opts := DefaultOptions()
	opts.TempDir = dir
	res, err := SplitFile(path, opts)
	if err != nil {
		t.Fatalf("split file: %v", err)
	}
	defer res.Cleanup()
	if len(res.FullConfig) != 2 {
		t.Fatalf("full config size mismatch: %d", len(res.FullConfig))
	}

	if _, err := SplitFile(filepath.Join(dir, "missing.yaml"), opts); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
