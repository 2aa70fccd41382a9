package station

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/quartzlab/stationctl/internal/observability"
	"github.com/rs/zerolog/log"
)

const monitorVersion = "0.1.0"

// MonitorConfig holds the HTTP sidecar settings.
type MonitorConfig struct {
	ListenAddr  string
	CorsOrigins []string
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{ListenAddr: "127.0.0.1:8555"}
}

// Monitor is the read-only HTTP sidecar: health, readiness, metrics and an
// instrument view over the station registry. It never mutates the station.
type Monitor struct {
	station *Server
	cfg     MonitorConfig
	router  *gin.Engine
	httpSrv *http.Server
	ln      net.Listener
	started time.Time
}

func NewMonitor(cfg MonitorConfig, station *Server) *Monitor {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultMonitorConfig().ListenAddr
	}
	observability.RegisterMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.MonitorObserver(log.Logger, station.Name()))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	m := &Monitor{
		station: station,
		cfg:     cfg,
		router:  r,
		started: time.Now(),
	}
	m.registerRoutes()
	return m
}

func (m *Monitor) registerRoutes() {
	m.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(m.started).String(),
			"station": m.station.Name(),
			"version": monitorVersion,
		})
	})

	m.router.GET("/ready", func(c *gin.Context) {
		ready := m.station.Running()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(m.started).String(),
			"station": m.station.Name(),
			"conns":   m.station.ActiveConns(),
		})
	})

	m.router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	m.router.GET("/instruments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"instruments": m.station.Dispatcher().Registry().List(),
		})
	})

	m.router.GET("/instruments/:name/params", func(c *gin.Context) {
		name := c.Param("name")
		inst, ok := m.station.Dispatcher().Registry().Resolve(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrInstrumentUnknown.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"instrument": inst.Name(),
			"kind":       inst.Kind(),
			"params":     inst.Params(),
		})
	})
}

func (m *Monitor) Router() *gin.Engine {
	return m.router
}

// Addr returns the bound listen address, or "" before Start.
func (m *Monitor) Addr() string {
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

// Start binds the listener and serves in the background. Serve errors after
// a clean Shutdown are swallowed; anything else is logged.
func (m *Monitor) Start() error {
	if m.ln != nil {
		return ErrServerRunning
	}
	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "monitor listen on %s", m.cfg.ListenAddr)
	}
	m.ln = ln
	m.httpSrv = &http.Server{Handler: m.router}

	go func() {
		if err := m.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().
				Str("station", m.station.Name()).
				Err(err).
				Msg("monitor serve failed")
		}
	}()

	log.Info().
		Str("station", m.station.Name()).
		Str("addr", ln.Addr().String()).
		Msg("monitor listening")
	return nil
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.httpSrv == nil {
		return nil
	}
	return m.httpSrv.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
