package station

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quartzlab/stationctl/internal/protocol"
	"github.com/quartzlab/stationctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrServerRunning = errors.New("station: server already running")
	ErrServerStopped = errors.New("station: server not running")
)

// Config holds station server runtime settings.
type Config struct {
	// Name labels the station in logs and metrics.
	Name string
	// ListenAddr is the TCP listen address for the request endpoint.
	ListenAddr string
	// IdleTimeout closes connections with no inbound frame for this long.
	// Zero disables the idle check.
	IdleTimeout time.Duration
	// Limits bounds frame payload sizes on read and write.
	Limits frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Name:        "station.local",
		ListenAddr:  "127.0.0.1:5555",
		IdleTimeout: 5 * time.Minute,
		Limits:      frame.DefaultLimits(),
	}
}

func (c Config) WithDefaults() Config {
	out := c
	def := DefaultConfig()
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.ListenAddr == "" {
		out.ListenAddr = def.ListenAddr
	}
	if out.IdleTimeout < 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.Limits.MaxPayloadBytes == 0 {
		out.Limits = def.Limits
	}
	return out
}

// Server owns the TCP request endpoint: one goroutine per connection, one
// frame in, one frame out, dispatch failures answered in-band.
type Server struct {
	cfg        Config
	dispatcher *Dispatcher

	mu      sync.Mutex
	ln      net.Listener
	conns   map[string]net.Conn
	running bool

	wg sync.WaitGroup
}

func NewServer(cfg Config, dispatcher *Dispatcher) *Server {
	cfg = cfg.WithDefaults()
	if dispatcher == nil {
		dispatcher = NewDispatcher(cfg.Name, nil)
	}
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		conns:      make(map[string]net.Conn),
	}
}

func (s *Server) Name() string {
	return s.cfg.Name
}

func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Addr returns the bound listen address, or "" before Start. With a ":0"
// ListenAddr this is how callers learn the assigned port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrServerRunning
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "station %s listen on %s", s.cfg.Name, s.cfg.ListenAddr)
	}
	s.ln = ln
	s.running = true
	s.wg.Add(1)
	go s.acceptLoop(ln)

	log.Info().
		Str("station", s.cfg.Name).
		Str("addr", ln.Addr().String()).
		Msg("station listening")
	return nil
}

// Shutdown stops accepting and waits for in-flight connections to drain.
// When ctx expires first, remaining connections are force-closed and the
// context error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrServerStopped
	}
	s.running = false
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()

	_ = ln.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Str("station", s.cfg.Name).Msg("station stopped")
		return nil
	case <-ctx.Done():
		s.closeConns()
		<-done
		log.Warn().Str("station", s.cfg.Name).Msg("station stopped, connections force-closed")
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.Running() {
				log.Warn().
					Str("station", s.cfg.Name).
					Err(err).
					Msg("accept failed")
			}
			return
		}
		connID := uuid.NewString()
		s.trackConn(connID, conn)
		s.wg.Add(1)
		go s.handleConn(connID, conn)
	}
}

// handleConn runs the serve loop for one client: read a frame, dispatch,
// write the reply. Only transport-level failures end the loop.
func (s *Server) handleConn(connID string, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(connID)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log.Info().
		Str("station", s.cfg.Name).
		Str("conn_id", connID).
		Str("remote", remote).
		Msg("client connected")
	defer log.Info().
		Str("station", s.cfg.Name).
		Str("conn_id", connID).
		Str("remote", remote).
		Msg("client disconnected")

	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		in, err := frame.ReadFrame(conn, s.cfg.Limits)
		if err != nil {
			s.logReadEnd(connID, err)
			return
		}

		out := s.respond(in)
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		if err := frame.WriteFrame(conn, out, s.cfg.Limits); err != nil {
			log.Warn().
				Str("station", s.cfg.Name).
				Str("conn_id", connID).
				Err(err).
				Msg("frame write failed")
			return
		}
	}
}

// respond decodes the request payload, dispatches it, and frames the reply
// under the inbound MessageID. Decode and encode failures come back as
// exception envelopes like any other dispatch failure.
func (s *Server) respond(in frame.Frame) frame.Frame {
	var resp protocol.Response
	req, err := protocol.DecodeRequest(in.Payload)
	if err != nil {
		resp = protocol.Response{Error: protocol.ExceptionError(ExcInvalidSpec, err.Error())}
	} else {
		resp = s.dispatcher.Handle(req)
	}

	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		resp = protocol.Response{Error: protocol.ExceptionError(ExcStationError, err.Error())}
		payload, _ = protocol.EncodeResponse(resp)
	}

	flags := frame.FlagResponse
	if resp.Error != nil {
		flags |= frame.FlagError
	}
	return frame.Frame{
		Header: frame.Header{
			Flags:     flags,
			MessageID: in.Header.MessageID,
		},
		Payload: payload,
	}
}

func (s *Server) logReadEnd(connID string, err error) {
	var nerr net.Error
	switch {
	case errors.Is(err, io.EOF):
	case errors.As(err, &nerr) && nerr.Timeout():
		log.Info().
			Str("station", s.cfg.Name).
			Str("conn_id", connID).
			Dur("idle_timeout", s.cfg.IdleTimeout).
			Msg("connection idle, closing")
	case s.Running():
		log.Warn().
			Str("station", s.cfg.Name).
			Str("conn_id", connID).
			Err(err).
			Msg("frame read failed")
	}
}

func (s *Server) trackConn(connID string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[connID] = conn
}

func (s *Server) untrackConn(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, connID)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
}
