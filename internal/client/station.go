package client

import (
	"github.com/quartzlab/stationctl/internal/protocol"
)

// Typed wrappers over AskRequest, one per station operation. Replies share
// Ask's error classification; what they add is decoding into the operation's
// natural shape.

// ListInstruments returns the station's instruments as name -> kind.
func (s *Session) ListInstruments() (map[string]string, error) {
	reply, err := s.AskRequest(protocol.Request{Operation: protocol.OpListInstruments})
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if err := protocol.DecodeInto(reply, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateInstrument asks the station to construct and register an instrument.
func (s *Session) CreateInstrument(spec protocol.CreateSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	_, err := s.AskRequest(protocol.Request{Operation: protocol.OpCreateInstrument, Message: spec})
	return err
}

// Call invokes one instrument method and returns its result.
func (s *Session) Call(instrument, method string, args ...any) (any, error) {
	spec := protocol.CallSpec{Instrument: instrument, Method: method, Args: args}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return s.AskRequest(protocol.Request{Operation: protocol.OpCall, Message: spec})
}

// GetParams returns an instrument's parameters keyed by dotted name.
func (s *Session) GetParams(instrument string) (map[string]any, error) {
	spec := protocol.ParamsSpec{Instrument: instrument}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	reply, err := s.AskRequest(protocol.Request{Operation: protocol.OpGetParams, Message: spec})
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := protocol.DecodeInto(reply, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetParams applies values to an instrument's parameters.
func (s *Session) SetParams(instrument string, values map[string]any) error {
	spec := protocol.ParamsSpec{Instrument: instrument, Values: values}
	if err := spec.Validate(); err != nil {
		return err
	}
	_, err := s.AskRequest(protocol.Request{Operation: protocol.OpSetParams, Message: spec})
	return err
}
