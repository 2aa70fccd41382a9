package protocol

import "errors"

var (
	ErrMalformedPayload = errors.New("protocol: malformed payload")
	ErrInvalidEnvelope  = errors.New("protocol: invalid envelope")
)
