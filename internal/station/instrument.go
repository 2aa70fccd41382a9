package station

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrInstrumentExists  = errors.New("station: instrument already exists")
	ErrInstrumentUnknown = errors.New("station: unknown instrument")
	ErrInstrumentNil     = errors.New("station: instrument is nil")
	ErrInvalidName       = errors.New("station: invalid instrument name")
	ErrUnknownKind       = errors.New("station: unknown instrument kind")
	ErrUnknownMethod     = errors.New("station: unknown method")
)

// Instrument is the execution boundary station dispatch talks to.
type Instrument interface {
	Name() string
	Kind() string
	Call(method string, args []any) (any, error)
	// Params returns a copy of the current parameter values keyed by
	// dotted name.
	Params() map[string]any
	SetParam(name string, value any) error
}

// Factory builds one instrument kind from creation params.
type Factory func(name string, params map[string]any) (Instrument, error)

// Registry stores instruments by name. Safe for concurrent use: dispatch
// runs on per-connection goroutines.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Instrument
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Instrument)}
}

// ValidateName checks the instrument name format: lowercase, digits, and
// non-repeated ./-/_ separators away from the edges.
func ValidateName(name string) error {
	if !isValidName(strings.TrimSpace(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (r *Registry) Register(inst Instrument) error {
	if inst == nil {
		return ErrInstrumentNil
	}
	name := inst.Name()
	if err := ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %q", ErrInstrumentExists, name)
	}
	r.items[name] = inst
	return nil
}

func (r *Registry) Resolve(name string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.items[name]
	return inst, ok
}

// Names returns instrument names in deterministic order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns name -> kind for every registered instrument.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.items))
	for name, inst := range r.items {
		out[name] = inst.Kind()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(name)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
