package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quartzlab/stationctl/internal/logging"
	"github.com/quartzlab/stationctl/internal/observability"
	"github.com/quartzlab/stationctl/internal/protocol"
	"github.com/quartzlab/stationctl/internal/transport"
)

// DefaultPort is the port a station listens on unless configured otherwise.
const DefaultPort = 5555

// Config describes one session. Start from DefaultConfig; a zero Config
// disables RaiseOnError, which is rarely what callers want.
type Config struct {
	Addr    transport.Address
	Timeout time.Duration
	// RaiseOnError makes timeouts and server exceptions fail the Ask call.
	// When false they are logged and Ask returns the reply content instead.
	RaiseOnError bool
	// Connect dials during NewSession.
	Connect bool
	// ExchangeLog bounds RecentExchanges. <= 0 keeps the default of 32.
	ExchangeLog int
}

func DefaultConfig() Config {
	return Config{
		Addr:         transport.Address{Host: "localhost", Port: DefaultPort},
		Timeout:      5 * time.Second,
		RaiseOnError: true,
		Connect:      true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Addr.Host == "" && c.Addr.Port == 0 {
		c.Addr = def.Addr
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// Session is a client-side connection handle to one station. It owns at most
// one channel, valid exactly while the session is connected, and issues one
// request at a time: mu serializes Ask so concurrent callers queue instead of
// desynchronizing the channel's send/receive alternation.
type Session struct {
	cfg Config

	mu        sync.Mutex
	channel   *transport.Channel
	connected bool
	exchanges *exchangeRing
}

// NewSession validates cfg and, when cfg.Connect is set, dials the station.
func NewSession(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Addr.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:       cfg,
		exchanges: newExchangeRing(cfg.ExchangeLog),
	}
	if cfg.Connect {
		if err := s.Connect(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Connect dials a fresh channel with the session's receive window bound to
// its timeout.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return ErrAlreadyConnected
	}
	ch, err := transport.DialChannel(context.Background(), s.cfg.Addr, s.channelOptions())
	if err != nil {
		return err
	}
	s.channel = ch
	s.connected = true
	logging.Infof("client.Session connected addr=%s timeout=%s", s.cfg.Addr, s.cfg.Timeout)
	return nil
}

// Disconnect closes the channel. Calling it on a disconnected session is a
// no-op, so scoped cleanup can always run it.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	err := s.channel.Close()
	s.channel = nil
	s.connected = false
	logging.Infof("client.Session disconnected addr=%s", s.cfg.Addr)
	return err
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Addr reports the station endpoint this session targets.
func (s *Session) Addr() transport.Address {
	return s.cfg.Addr
}

// RecentExchanges returns the most recent Ask round trips, oldest first.
func (s *Session) RecentExchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges.snapshot()
}

// Ask sends message as a bare request and blocks up to the session timeout
// for the station's reply. Server-reported errors are classified per kind:
// text and warnings are logged and never fail the call; exceptions and
// timeouts fail it only when RaiseOnError is set; an unrecognized error
// shape always fails it. After a timeout the session replaces its channel
// and stays usable, but the request is never resent.
func (s *Session) Ask(message any) (any, error) {
	return s.AskRequest(protocol.Request{Message: message})
}

// AskRequest is Ask for callers that address a station operation.
func (s *Session) AskRequest(req protocol.Request) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}

	op := operationLabel(req.Operation)
	start := time.Now()

	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.channel.Send(payload); err != nil {
		s.finish(op, OutcomeTransport, start)
		return nil, fmt.Errorf("client: send: %w", err)
	}

	reply, err := s.channel.Receive()
	if err != nil {
		if errors.Is(err, transport.ErrReceiveTimeout) {
			return s.timedOut(op, start)
		}
		s.finish(op, OutcomeTransport, start)
		return nil, fmt.Errorf("client: receive: %w", err)
	}

	resp, err := protocol.DecodeResponse(reply)
	if err != nil {
		s.finish(op, OutcomeProtocol, start)
		return nil, err
	}
	return s.classify(op, resp, start)
}

// timedOut retires the poisoned channel and dials a replacement to the same
// address. Only this path replaces the channel: every other failure arrives
// as a fully formed reply and leaves the alternation intact.
func (s *Session) timedOut(op string, start time.Time) (any, error) {
	logging.Warnf("client.Session ask timed out addr=%s window=%s", s.cfg.Addr, s.cfg.Timeout)
	observability.RecordReceiveTimeout()
	s.finish(op, OutcomeTimeout, start)

	terr := &TimeoutError{Addr: s.cfg.Addr, Window: s.cfg.Timeout}
	terr.Redial = s.replaceChannel()
	if terr.Redial != nil {
		// The session is now disconnected; the caller must hear about it
		// regardless of RaiseOnError.
		return nil, terr
	}
	if s.cfg.RaiseOnError {
		return nil, terr
	}
	return nil, nil
}

func (s *Session) replaceChannel() error {
	_ = s.channel.Close()
	ch, err := transport.DialChannel(context.Background(), s.cfg.Addr, s.channelOptions())
	if err != nil {
		s.channel = nil
		s.connected = false
		observability.RecordChannelReplacement(false)
		logging.Errorf("client.Session channel replacement failed addr=%s err=%v", s.cfg.Addr, err)
		return err
	}
	s.channel = ch
	observability.RecordChannelReplacement(true)
	logging.Debugf("client.Session channel replaced addr=%s", s.cfg.Addr)
	return nil
}

func (s *Session) classify(op string, resp protocol.Response, start time.Time) (any, error) {
	if resp.Error == nil {
		s.finish(op, OutcomeOK, start)
		return resp.Message, nil
	}
	switch resp.Error.Kind {
	case protocol.ErrorText:
		logging.Errorf("client.Session server error text=%q", resp.Error.Text)
		s.finish(op, OutcomeText, start)
		return resp.Message, nil
	case protocol.ErrorWarning:
		logging.Warnf("client.Session server warning=%q", resp.Error.Warning)
		s.finish(op, OutcomeWarning, start)
		return resp.Message, nil
	case protocol.ErrorException:
		s.finish(op, OutcomeException, start)
		if s.cfg.RaiseOnError {
			return nil, &ServerError{Kind: resp.Error.Exception.Kind, Detail: resp.Error.Exception.Detail}
		}
		logging.Errorf("client.Session server exception kind=%q detail=%q",
			resp.Error.Exception.Kind, resp.Error.Exception.Detail)
		return resp.Message, nil
	default:
		s.finish(op, OutcomeUnrecognized, start)
		return nil, &UnrecognizedErrorShapeError{Raw: resp.Error.Other}
	}
}

func (s *Session) finish(op, outcome string, start time.Time) {
	d := time.Since(start)
	s.exchanges.add(Exchange{Operation: op, Outcome: outcome, Start: start, Duration: d})
	observability.RecordAsk(op, outcome, d)
}

func (s *Session) channelOptions() transport.Options {
	opts := transport.DefaultOptions()
	opts.ReceiveTimeout = s.cfg.Timeout
	return opts
}

func operationLabel(op string) string {
	if op == "" {
		return "message"
	}
	return op
}

// WithSession connects a session, runs fn against it, and disconnects
// exactly once on every exit path, panics included.
func WithSession(cfg Config, fn func(*Session) error) (err error) {
	cfg.Connect = false
	s, err := NewSession(cfg)
	if err != nil {
		return err
	}
	if err := s.Connect(); err != nil {
		return err
	}
	defer func() {
		dErr := s.Disconnect()
		if err == nil {
			err = dErr
		}
	}()
	return fn(s)
}

// Ask opens a throwaway session to host:port, issues one ask, and
// disconnects. Callers talking to a station repeatedly should hold a
// Session instead.
func Ask(message any, host string, port int) (any, error) {
	cfg := DefaultConfig()
	cfg.Addr = transport.NewAddress(host, port)
	var reply any
	err := WithSession(cfg, func(s *Session) error {
		r, askErr := s.Ask(message)
		reply = r
		return askErr
	})
	return reply, err
}
