// Package http serves the operational endpoints of a running triaged
// process: liveness, readiness, status, Prometheus metrics and a scrub
// preview.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/triaged/internal/scrub"
	"github.com/fyrsmithlabs/triaged/internal/telemetry"
	"github.com/fyrsmithlabs/triaged/internal/triage"
)

// maxScrubBody bounds POST /api/v1/scrub request bodies.
const maxScrubBody = "64K"

// Server provides HTTP endpoints for triaged.
type Server struct {
	echo      *echo.Echo
	service   *triage.Service
	scrubber  scrub.Scrubber
	telemetry *telemetry.Telemetry
	logger    *zap.Logger
	config    *Config

	mu       sync.Mutex
	listener net.Listener
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// NewServer creates a server over an initialized service. tel may be nil.
func NewServer(service *triage.Service, scrubber scrub.Scrubber, tel *telemetry.Telemetry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, errors.New("service cannot be nil")
	}
	if scrubber == nil {
		return nil, errors.New("scrubber cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:      e,
		service:   service,
		scrubber:  scrubber,
		telemetry: tel,
		logger:    logger,
		config:    cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/scrub", s.handleScrub, middleware.BodyLimit(maxScrubBody))
}

// handleHealth reports liveness only.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady succeeds once the service can answer consultations.
func (s *Server) handleReady(c echo.Context) error {
	st, err := s.service.Statistics()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, ReadyResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, ReadyResponse{
		Status:       "ready",
		Documents:    st.TotalDocuments,
		VectorSearch: st.VectorStoreAvailable,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	st, err := s.service.Statistics()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	idx, err := s.service.IndexStatus()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp := StatusResponse{
		Status:     "ok",
		Version:    s.config.Version,
		Statistics: st,
		Index:      idx,
	}
	if s.telemetry != nil {
		health := s.telemetry.Health()
		if health.Degraded {
			resp.Status = "degraded"
		}
		resp.Telemetry = &TelemetryStatus{
			Enabled:      s.telemetry.IsEnabled(),
			LogsExported: s.telemetry.LogsEnabled(),
			HealthStatus: health,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleScrub previews what the consultation log would store for a query.
func (s *Server) handleScrub(c echo.Context) error {
	var req ScrubRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid scrub request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result := s.scrubber.Scrub(req.Content)
	s.logger.Debug("scrubbed content", zap.Int("findings", len(result.Findings)))

	return c.JSON(http.StatusOK, ScrubResponse{
		Content:       result.Scrubbed,
		FindingsCount: len(result.Findings),
		Rules:         result.RuleIDs(),
	})
}

// Addr returns the bound address once Start is listening, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.echo.Listener = ln

	s.logger.Info("starting http server", zap.String("addr", ln.Addr().String()))
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be exercised without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
