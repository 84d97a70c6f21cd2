// Package api is the thin HTTP intake API of the review core: submit a task,
// read its status and watch the queue.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/gigshield/reviewcore/internal/api/middleware"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/model"
	"github.com/gigshield/reviewcore/internal/review"
)

// ReviewService is what the API needs from the review core.
// *review.Service satisfies it.
type ReviewService interface {
	SubmitForReview(ctx context.Context, sub review.Submission) (string, error)
	Enqueue(taskID string) bool
	GetStatus(ctx context.Context, taskID string) (*model.ReviewTask, error)
	GetQueueMetrics() review.QueueMetrics
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Config holds the HTTP server settings.
type Config struct {
	Listen       string
	MetricsPath  string
	BodyLimit    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Listen:       ":8080",
		MetricsPath:  "/metrics",
		BodyLimit:    mw.DefaultBodyLimit,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
}

// Server is the intake HTTP server.
type Server struct {
	echo    *echo.Echo
	config  Config
	service ReviewService
	metrics http.Handler
	health  HealthFunc
	log     logger.Logger

	wg sync.WaitGroup
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetricsHandler serves h on the metrics path.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck makes /healthz report fn's result.
func WithHealthCheck(fn HealthFunc) ServerOption {
	return func(s *Server) { s.health = fn }
}

// New creates a server with its middleware and routes.
func New(cfg Config, svc ReviewService, opts ...ServerOption) *Server {
	def := DefaultConfig()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = def.MetricsPath
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	s := &Server{
		config:  cfg,
		service: svc,
		log:     logger.Global().Module("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout
	s.echo.HTTPErrorHandler = s.handleHTTPError

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(mw.NewTraceContext())
	s.echo.Use(mw.NewRequestLogger(s.log, mw.SkipPaths(s.config.MetricsPath, "/healthz")))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/healthz", s.healthCheck)
	if s.metrics != nil {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/reviews", s.submitReview)
	v1.GET("/reviews/:id", s.getReview)
	v1.GET("/queue", s.getQueue)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves in a background goroutine until Shutdown.
func (s *Server) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", logger.Error(err))
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.wg.Wait()
	s.log.Info("HTTP server stopped")
	return err
}

func (s *Server) healthCheck(c echo.Context) error {
	if s.health != nil {
		if err := s.health(c.Request().Context()); err != nil {
			s.log.Warn("health check failed", logger.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
