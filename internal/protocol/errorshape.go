package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrorKind names the branch of the server error one-of.
type ErrorKind int

const (
	// ErrorText is a bare string: advisory, logged by clients.
	ErrorText ErrorKind = iota
	// ErrorWarning is {"warning": string}: surfaced but never fatal.
	ErrorWarning
	// ErrorException is {"exception": {kind, detail}}: a named server
	// failure, fatal when the session raises on errors.
	ErrorException
	// ErrorOther is any shape not matching the above; always fatal.
	ErrorOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorText:
		return "text"
	case ErrorWarning:
		return "warning"
	case ErrorException:
		return "exception"
	case ErrorOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ExceptionInfo names a server-side failure category. It is plain data;
// nothing on the client re-raises server exceptions.
type ExceptionInfo struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ErrorDescriptor is the server error one-of after classification. Exactly
// one branch is populated, per Kind. Shapes are classified here, once, at
// the wire boundary; everything above switches on Kind.
type ErrorDescriptor struct {
	Kind      ErrorKind
	Text      string
	Warning   string
	Exception *ExceptionInfo
	Other     json.RawMessage
}

func TextError(text string) *ErrorDescriptor {
	return &ErrorDescriptor{Kind: ErrorText, Text: text}
}

func WarningError(text string) *ErrorDescriptor {
	return &ErrorDescriptor{Kind: ErrorWarning, Warning: text}
}

func ExceptionError(kind, detail string) *ErrorDescriptor {
	return &ErrorDescriptor{Kind: ErrorException, Exception: &ExceptionInfo{Kind: kind, Detail: detail}}
}

func (d ErrorDescriptor) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case ErrorText:
		return json.Marshal(d.Text)
	case ErrorWarning:
		return json.Marshal(struct {
			Warning string `json:"warning"`
		}{d.Warning})
	case ErrorException:
		if d.Exception == nil {
			return nil, fmt.Errorf("%w: exception error without info", ErrInvalidEnvelope)
		}
		return json.Marshal(struct {
			Exception *ExceptionInfo `json:"exception"`
		}{d.Exception})
	case ErrorOther:
		if len(d.Other) == 0 {
			return []byte("null"), nil
		}
		return append([]byte(nil), d.Other...), nil
	default:
		return nil, fmt.Errorf("%w: unknown error kind %d", ErrInvalidEnvelope, d.Kind)
	}
}

func (d *ErrorDescriptor) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		*d = ErrorDescriptor{Kind: ErrorText, Text: text}
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err == nil && len(probe) == 1 {
		if raw, ok := probe["warning"]; ok {
			var w string
			if err := json.Unmarshal(raw, &w); err == nil {
				*d = ErrorDescriptor{Kind: ErrorWarning, Warning: w}
				return nil
			}
		}
		if raw, ok := probe["exception"]; ok {
			var info ExceptionInfo
			if err := json.Unmarshal(raw, &info); err == nil {
				*d = ErrorDescriptor{Kind: ErrorException, Exception: &info}
				return nil
			}
		}
	}

	*d = ErrorDescriptor{Kind: ErrorOther, Other: append([]byte(nil), b...)}
	return nil
}
