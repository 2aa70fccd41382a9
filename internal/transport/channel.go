package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/quartzlab/stationctl/internal/logging"
	"github.com/quartzlab/stationctl/internal/protocol/frame"
)

var (
	ErrChannelClosed    = errors.New("transport: channel closed")
	ErrChannelPoisoned  = errors.New("transport: channel poisoned by receive timeout")
	ErrAwaitingReply    = errors.New("transport: send while a reply is outstanding")
	ErrNotAwaitingReply = errors.New("transport: receive without an outstanding send")
	ErrReceiveTimeout   = errors.New("transport: receive timed out")
	ErrReplyMismatch    = errors.New("transport: reply does not match outstanding request")
)

// Options tunes a channel.
type Options struct {
	ConnectTimeout time.Duration
	// ReceiveTimeout bounds each Receive. <= 0 blocks indefinitely.
	ReceiveTimeout time.Duration
	WriteTimeout   time.Duration
	Limits         frame.Limits
}

func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 10 * time.Second,
		ReceiveTimeout: 5 * time.Second,
		WriteTimeout:   10 * time.Second,
		Limits:         frame.DefaultLimits(),
	}
}

func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.Limits.MaxPayloadBytes == 0 {
		o.Limits = def.Limits
	}
	return o
}

// Channel is one point-to-point request/reply lane. It enforces strict
// send-then-receive alternation: exactly one request may be outstanding.
// A receive timeout leaves the lane out of step with its peer, so the
// channel poisons itself and must be replaced, not reused.
//
// A Channel is not safe for concurrent use; the owning session serializes
// access.
type Channel struct {
	addr   Address
	opts   Options
	conn   net.Conn
	reader *bufio.Reader

	awaitingReply bool
	poisoned      bool
	closed        bool
	lastMessageID uint64
	nextMessageID uint64
}

// DialChannel connects a fresh lane to addr.
func DialChannel(ctx context.Context, addr Address, opts Options) (*Channel, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr.HostPort())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	logging.Debugf("transport.Channel connected addr=%s", addr)
	return &Channel{
		addr:          addr,
		opts:          opts,
		conn:          conn,
		reader:        bufio.NewReader(conn),
		nextMessageID: uint64(time.Now().UnixNano()),
	}, nil
}

// Send writes one request frame. It refuses to pipeline: a second send
// before the reply is consumed returns ErrAwaitingReply.
func (ch *Channel) Send(payload []byte) error {
	if ch.closed {
		return ErrChannelClosed
	}
	if ch.poisoned {
		return ErrChannelPoisoned
	}
	if ch.awaitingReply {
		return ErrAwaitingReply
	}

	ch.nextMessageID++
	f := frame.Frame{
		Header:  frame.Header{MessageID: ch.nextMessageID},
		Payload: payload,
	}
	if err := ch.conn.SetWriteDeadline(deadlineAfter(ch.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	if err := frame.WriteFrame(ch.conn, f, ch.opts.Limits); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	ch.lastMessageID = ch.nextMessageID
	ch.awaitingReply = true
	return nil
}

// Receive reads the reply for the outstanding send. When the receive window
// elapses it returns ErrReceiveTimeout and poisons the channel: the abandoned
// request may still produce a reply later, so the lane can never be trusted
// to alternate correctly again.
func (ch *Channel) Receive() ([]byte, error) {
	if ch.closed {
		return nil, ErrChannelClosed
	}
	if ch.poisoned {
		return nil, ErrChannelPoisoned
	}
	if !ch.awaitingReply {
		return nil, ErrNotAwaitingReply
	}

	if err := ch.conn.SetReadDeadline(deadlineAfter(ch.opts.ReceiveTimeout)); err != nil {
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	f, err := frame.ReadFrame(ch.reader, ch.opts.Limits)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			ch.poisoned = true
			logging.Debugf("transport.Channel receive timeout addr=%s window=%s", ch.addr, ch.opts.ReceiveTimeout)
			return nil, fmt.Errorf("%w after %s", ErrReceiveTimeout, ch.opts.ReceiveTimeout)
		}
		return nil, fmt.Errorf("transport: receive: %w", err)
	}
	if f.Header.MessageID != ch.lastMessageID {
		ch.awaitingReply = false
		return nil, fmt.Errorf("%w: sent id=%d got id=%d", ErrReplyMismatch, ch.lastMessageID, f.Header.MessageID)
	}
	ch.awaitingReply = false
	return f.Payload, nil
}

// SetReceiveTimeout rebinds the receive window for subsequent receives.
// d <= 0 blocks indefinitely.
func (ch *Channel) SetReceiveTimeout(d time.Duration) {
	ch.opts.ReceiveTimeout = d
}

func (ch *Channel) ReceiveTimeout() time.Duration {
	return ch.opts.ReceiveTimeout
}

func (ch *Channel) RemoteAddr() Address {
	return ch.addr
}

// Poisoned reports whether a receive timeout has retired this channel.
func (ch *Channel) Poisoned() bool {
	return ch.poisoned
}

// Close is idempotent.
func (ch *Channel) Close() error {
	if ch.closed {
		return nil
	}
	ch.closed = true
	if ch.conn == nil {
		return nil
	}
	return ch.conn.Close()
}

func deadlineAfter(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
