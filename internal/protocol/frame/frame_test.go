package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"message":"ping"}`)
	in := Frame{
		Header:  Header{MessageID: 42, Flags: FlagResponse},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Version != Version {
		t.Fatalf("header not stamped: %+v", out.Header)
	}
	if out.Header.MessageID != 42 || out.Header.Flags != FlagResponse {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch: %q", out.Payload)
	}
}

func TestReadFrameTruncatedHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameCleanCloseIsEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameBadMagic(t *testing.T) {
	h := Header{Magic: 0xDEADBEEF, Version: Version}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), DefaultLimits())
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadFrameUnsupportedVersion(t *testing.T) {
	h := Header{Magic: Magic, Version: Version + 1}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), DefaultLimits())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, PayloadLen: 64}
	wire := append(EncodeHeader(h), []byte("only a few bytes")...)
	_, err := ReadFrame(bytes.NewReader(wire), DefaultLimits())
	if !errors.Is(err, ErrPayloadSize) {
		t.Fatalf("expected ErrPayloadSize, got %v", err)
	}
}

func TestReadFramePayloadOverLimit(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, PayloadLen: 1 << 20}
	_, err := ReadFrame(bytes.NewReader(EncodeHeader(h)), Limits{MaxPayloadBytes: 16})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestWriteFramePayloadOverLimit(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, Frame{Payload: bytes.Repeat([]byte{0xAB}, 32)}, Limits{MaxPayloadBytes: 16})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on limit violation, got %d bytes", buf.Len())
	}
}
