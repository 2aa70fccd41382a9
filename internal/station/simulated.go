package station

import (
	"encoding/json"
	"fmt"
	"sync"
)

const KindSource = "source"

// Warning marks a condition the caller should see without failing the
// operation. The dispatcher forwards it alongside the result instead of
// turning it into a failure.
type Warning struct {
	Msg string
}

func (w *Warning) Error() string { return w.Msg }

func Warningf(format string, args ...any) *Warning {
	return &Warning{Msg: fmt.Sprintf(format, args...)}
}

const (
	sourceMinLevel = 0.0
	sourceMaxLevel = 10.0
)

// Source is a simulated signal source with a bounded output level. It stands
// in for real hardware in tests and demo stations: levels outside the range
// are clipped and reported as a warning rather than rejected.
type Source struct {
	name string

	mu      sync.RWMutex
	level   float64
	enabled bool
}

// NewSource is the create_instrument factory for KindSource. Recognized
// params: "level" (float, clipped to range) and "enabled" (bool).
func NewSource(name string, params map[string]any) (Instrument, error) {
	s := &Source{name: name}
	for pname, value := range params {
		if err := s.SetParam(pname, value); err != nil {
			if _, warn := err.(*Warning); warn {
				continue
			}
			return nil, err
		}
	}
	return s, nil
}

func (s *Source) Name() string { return s.name }
func (s *Source) Kind() string { return KindSource }

func (s *Source) Params() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"level":   s.level,
		"enabled": s.enabled,
	}
}

func (s *Source) SetParam(name string, value any) error {
	switch name {
	case "level":
		level, err := floatValue(value)
		if err != nil {
			return fmt.Errorf("station: %s.level: %v", s.name, err)
		}
		clipped := level
		if clipped < sourceMinLevel {
			clipped = sourceMinLevel
		}
		if clipped > sourceMaxLevel {
			clipped = sourceMaxLevel
		}
		s.mu.Lock()
		s.level = clipped
		s.mu.Unlock()
		if clipped != level {
			return Warningf("%s.level %v clipped to %v", s.name, level, clipped)
		}
		return nil
	case "enabled":
		enabled, ok := value.(bool)
		if !ok {
			return fmt.Errorf("station: %s.enabled: want bool, got %T", s.name, value)
		}
		s.mu.Lock()
		s.enabled = enabled
		s.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: %q on %s", ErrParamUnknown, name, s.name)
	}
}

func (s *Source) Call(method string, args []any) (any, error) {
	switch method {
	case "read":
		s.mu.RLock()
		defer s.mu.RUnlock()
		if !s.enabled {
			return 0.0, nil
		}
		return s.level, nil
	case "reset":
		s.mu.Lock()
		s.level = sourceMinLevel
		s.enabled = false
		s.mu.Unlock()
		return nil, nil
	case "info":
		return map[string]any{
			"kind":      KindSource,
			"min_level": sourceMinLevel,
			"max_level": sourceMaxLevel,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q on %s", ErrUnknownMethod, method, s.name)
	}
}

func floatValue(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("want number, got %T", value)
	}
}
