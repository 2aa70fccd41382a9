package station

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const KindParameterStore = "parameter_store"

// DefaultParameterStoreName is the instrument name the station registers its
// built-in store under.
const DefaultParameterStoreName = "parameter_store"

var (
	ErrParamExists  = errors.New("station: parameter already exists")
	ErrParamUnknown = errors.New("station: unknown parameter")
	ErrParamName    = errors.New("station: invalid parameter name")
)

// ParameterStore is a virtual instrument that manages a flat collection of
// arbitrary parameters. Names are dotted paths ("qubit.pi_pulse.len"); the
// store keeps them flat and leaves grouping to the naming convention.
type ParameterStore struct {
	name string

	mu     sync.RWMutex
	values map[string]any
}

func NewParameterStore(name string) *ParameterStore {
	return &ParameterStore{
		name:   name,
		values: make(map[string]any),
	}
}

// NewParameterStoreFromParams seeds the store with initial values; it is the
// create_instrument factory for KindParameterStore.
func NewParameterStoreFromParams(name string, params map[string]any) (Instrument, error) {
	ps := NewParameterStore(name)
	for pname, value := range params {
		if err := ps.SetParam(pname, value); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func (p *ParameterStore) Name() string { return p.name }
func (p *ParameterStore) Kind() string { return KindParameterStore }

func (p *ParameterStore) Params() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// SetParam upserts: the store exists for on-the-fly parameter bookkeeping,
// so setting an unknown name creates it.
func (p *ParameterStore) SetParam(name string, value any) error {
	if err := validateParamName(name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
	return nil
}

func (p *ParameterStore) Call(method string, args []any) (any, error) {
	switch method {
	case "add":
		name, err := paramNameArg(args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("station: add needs a value for %q", name)
		}
		return nil, p.add(name, args[1])
	case "remove":
		name, err := paramNameArg(args)
		if err != nil {
			return nil, err
		}
		return nil, p.remove(name)
	case "get":
		name, err := paramNameArg(args)
		if err != nil {
			return nil, err
		}
		return p.get(name)
	case "set":
		name, err := paramNameArg(args)
		if err != nil {
			return nil, err
		}
		if len(args) < 2 {
			return nil, fmt.Errorf("station: set needs a value for %q", name)
		}
		return nil, p.SetParam(name, args[1])
	case "has":
		name, err := paramNameArg(args)
		if err != nil {
			return nil, err
		}
		p.mu.RLock()
		_, ok := p.values[name]
		p.mu.RUnlock()
		return ok, nil
	case "list":
		return p.list(), nil
	default:
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownMethod, method, p.name)
	}
}

func (p *ParameterStore) add(name string, value any) error {
	if err := validateParamName(name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.values[name]; ok {
		return fmt.Errorf("%w: %q", ErrParamExists, name)
	}
	p.values[name] = value
	return nil
}

func (p *ParameterStore) remove(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.values[name]; !ok {
		return fmt.Errorf("%w: %q", ErrParamUnknown, name)
	}
	delete(p.values, name)
	return nil
}

func (p *ParameterStore) get(name string) (any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParamUnknown, name)
	}
	return value, nil
}

func (p *ParameterStore) list() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveTo persists the current values as JSON.
func (p *ParameterStore) SaveTo(path string) error {
	p.mu.RLock()
	b, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return errors.Wrapf(err, "encode parameter store %q", p.name)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return errors.Wrapf(err, "write parameter store file %s", path)
	}
	return nil
}

// LoadFrom replaces the current values with the file contents.
func (p *ParameterStore) LoadFrom(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read parameter store file %s", path)
	}
	values := make(map[string]any)
	if err := json.Unmarshal(b, &values); err != nil {
		return errors.Wrapf(err, "parse parameter store file %s", path)
	}
	for name := range values {
		if err := validateParamName(name); err != nil {
			return errors.Wrapf(err, "parameter store file %s", path)
		}
	}
	p.mu.Lock()
	p.values = values
	p.mu.Unlock()
	return nil
}

func paramNameArg(args []any) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%w: missing parameter name argument", ErrParamName)
	}
	name, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: name argument must be a string, got %T", ErrParamName, args[0])
	}
	return name, nil
}

func validateParamName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrParamName)
	}
	for _, segment := range strings.Split(name, ".") {
		if strings.TrimSpace(segment) == "" {
			return fmt.Errorf("%w: %q has an empty path segment", ErrParamName, name)
		}
	}
	return nil
}
