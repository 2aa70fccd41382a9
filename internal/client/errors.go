package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quartzlab/stationctl/internal/transport"
)

var (
	ErrNotConnected     = errors.New("client: not connected")
	ErrAlreadyConnected = errors.New("client: already connected")
)

// TimeoutError reports that the station did not reply within the session's
// receive window. The session has already discarded the poisoned channel by
// the time callers see this; Redial carries the follow-up dial failure when
// the replacement channel could not be established.
type TimeoutError struct {
	Addr   transport.Address
	Window time.Duration
	Redial error
}

func (e *TimeoutError) Error() string {
	if e.Redial != nil {
		return fmt.Sprintf("client: no reply from %s within %s; redial failed: %v", e.Addr, e.Window, e.Redial)
	}
	return fmt.Sprintf("client: no reply from %s within %s", e.Addr, e.Window)
}

func (e *TimeoutError) Unwrap() error {
	return transport.ErrReceiveTimeout
}

// ServerError carries a station-reported exception. It is plain data decoded
// from the wire, never a re-raised remote error value.
type ServerError struct {
	Kind   string
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("client: server exception %s: %s", e.Kind, e.Detail)
}

// UnrecognizedErrorShapeError reports an error payload that matched none of
// the known shapes. Raw preserves the wire bytes for diagnosis.
type UnrecognizedErrorShapeError struct {
	Raw json.RawMessage
}

func (e *UnrecognizedErrorShapeError) Error() string {
	return fmt.Sprintf("client: unrecognized error shape: %s", e.Raw)
}
