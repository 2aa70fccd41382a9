package station

import (
	"errors"
	"reflect"
	"testing"

	"github.com/quartzlab/stationctl/internal/testutil/testlog"
)

func TestRegistryRegisterResolveDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	ps := NewParameterStore("parameter_store")

	if err := r.Register(ps); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(ps); !errors.Is(err, ErrInstrumentExists) {
		t.Fatalf("expected ErrInstrumentExists, got %v", err)
	}
	got, ok := r.Resolve("parameter_store")
	if !ok || got.Name() != "parameter_store" {
		t.Fatalf("resolve failed: ok=%v", ok)
	}
	if _, ok := r.Resolve("missing"); ok {
		t.Fatalf("expected missing instrument to return ok=false")
	}
}

func TestRegistryNamesSortedAndList(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, name := range []string{"psu-2", "awg", "psu-1"} {
		src, err := NewSource(name, nil)
		if err != nil {
			t.Fatalf("new source %q: %v", name, err)
		}
		if err := r.Register(src); err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}

	want := []string{"awg", "psu-1", "psu-2"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names mismatch: got %v want %v", got, want)
	}
	list := r.List()
	if len(list) != 3 || list["awg"] != KindSource {
		t.Fatalf("list mismatch: %v", list)
	}
	if r.Len() != 3 {
		t.Fatalf("len mismatch: %d", r.Len())
	}
}

func TestRegistryRejectsNilInstrument(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if err := r.Register(nil); !errors.Is(err, ErrInstrumentNil) {
		t.Fatalf("expected ErrInstrumentNil, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	testlog.Start(t)
	valid := []string{"psu", "psu.chan-1", "q0_readout", "awg2"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Fatalf("expected %q valid, got %v", name, err)
		}
	}
	invalid := []string{"", "Psu", "psu..2", ".psu", "psu.", "ps u", "psu._x"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected %q invalid, got %v", name, err)
		}
	}
}
