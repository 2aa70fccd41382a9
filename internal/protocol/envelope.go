package protocol

import (
	"encoding/json"
	"fmt"
)

// Station operations carried in Request.Operation. An empty operation asks
// the server to treat Message as a plain echo request.
const (
	OpListInstruments  = "list_instruments"
	OpCreateInstrument = "create_instrument"
	OpCall             = "call"
	OpGetParams        = "get_params"
	OpSetParams        = "set_params"
)

func KnownOperation(op string) bool {
	switch op {
	case OpListInstruments, OpCreateInstrument, OpCall, OpGetParams, OpSetParams:
		return true
	default:
		return false
	}
}

// Request is the client->server envelope.
type Request struct {
	Operation string `json:"operation,omitempty"`
	Message   any    `json:"message"`
}

// Response is the server->client envelope. Error nil means success; the
// populated branch of Error says how the server failed.
type Response struct {
	Message any              `json:"message"`
	Error   *ErrorDescriptor `json:"error,omitempty"`
}

func (r Response) Validate() error {
	if r.Error == nil {
		return nil
	}
	switch r.Error.Kind {
	case ErrorText, ErrorWarning, ErrorException, ErrorOther:
	default:
		return fmt.Errorf("%w: unknown error kind %d", ErrInvalidEnvelope, r.Error.Kind)
	}
	if r.Error.Kind == ErrorException && r.Error.Exception == nil {
		return fmt.Errorf("%w: exception error without info", ErrInvalidEnvelope)
	}
	return nil
}

func EncodeRequest(req Request) ([]byte, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return b, nil
}

func DecodeRequest(b []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return req, nil
}

func EncodeResponse(resp Response) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return b, nil
}

func DecodeResponse(b []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := resp.Validate(); err != nil {
		return Response{}, err
	}
	return resp, nil
}
