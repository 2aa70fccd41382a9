package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation payloads carried in Request.Message. They travel as plain JSON
// objects; DecodeInto recovers them on the receiving side.

// CreateSpec describes an instrument to create on the station.
type CreateSpec struct {
	Name   string         `json:"name"`
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

func (s CreateSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: create spec missing name", ErrInvalidEnvelope)
	}
	if strings.TrimSpace(s.Kind) == "" {
		return fmt.Errorf("%w: create spec missing kind", ErrInvalidEnvelope)
	}
	return nil
}

// CallSpec targets one method on one instrument.
type CallSpec struct {
	Instrument string `json:"instrument"`
	Method     string `json:"method"`
	Args       []any  `json:"args,omitempty"`
}

func (s CallSpec) Validate() error {
	if strings.TrimSpace(s.Instrument) == "" {
		return fmt.Errorf("%w: call spec missing instrument", ErrInvalidEnvelope)
	}
	if strings.TrimSpace(s.Method) == "" {
		return fmt.Errorf("%w: call spec missing method", ErrInvalidEnvelope)
	}
	return nil
}

// ParamsSpec addresses an instrument's parameter map. Values is only
// consulted by set_params.
type ParamsSpec struct {
	Instrument string         `json:"instrument"`
	Values     map[string]any `json:"values,omitempty"`
}

func (s ParamsSpec) Validate() error {
	if strings.TrimSpace(s.Instrument) == "" {
		return fmt.Errorf("%w: params spec missing instrument", ErrInvalidEnvelope)
	}
	return nil
}

// DecodeInto re-decodes a message value that arrived as generic JSON into a
// typed spec.
func DecodeInto(message any, out any) error {
	b, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
