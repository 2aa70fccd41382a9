package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic opens every frame on the wire: "QSTN".
	Magic uint32 = 0x5153544E

	// Version is the only wire version this build speaks.
	Version uint16 = 1

	FixedHeaderLen uint16 = 24

	FlagResponse uint16 = 0x01
	FlagError    uint16 = 0x02
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrBadMagic           = errors.New("frame: bad magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
	ErrPayloadSize        = errors.New("frame: payload shorter than declared length")
)

// Header is the fixed wire header.
type Header struct {
	Magic      uint32
	Version    uint16
	Flags      uint16
	MessageID  uint64
	PayloadLen uint64
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 8 * 1024 * 1024}
}

// ReadFrame reads one complete frame. A connection closed before the first
// header byte surfaces as io.EOF so serve loops can tell a clean close from
// a truncated frame.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}

	if h.Magic != Magic {
		return Frame{}, ErrBadMagic
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, ErrPayloadSize
			}
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame stamps magic, version and payload length onto f's header and
// writes the frame.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.PayloadLen = payloadLen

	hb := EncodeHeader(h)
	if _, err := w.Write(hb); err != nil {
		return err
	}
	if payloadLen > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint64(buf[16:24], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		Flags:      binary.BigEndian.Uint16(b[6:8]),
		MessageID:  binary.BigEndian.Uint64(b[8:16]),
		PayloadLen: binary.BigEndian.Uint64(b[16:24]),
	}, nil
}
