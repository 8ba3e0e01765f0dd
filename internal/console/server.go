// Package console serves the console origin: the /api_url discovery
// document that tells browser and CLI clients where the API lives, plus
// health and metrics endpoints.
package console

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/divviup/divviup-console/internal/config"
	"github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/metrics"
)

// Server is the console origin server.
type Server struct {
	router     *gin.Engine
	config     config.ConsoleConfig
	metrics    *metrics.Metrics
	logger     *logging.Logger
	httpServer *http.Server

	mu     sync.RWMutex
	apiURL string
	closed bool
}

// Option configures a Server.
type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the console server for cfg. cfg must have been
// validated.
func NewServer(cfg config.ConsoleConfig, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		config: cfg,
		apiURL: cfg.APIURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics("divviup_console")
	}
	if s.logger == nil {
		s.logger = logging.NewLogger(logging.WithService("divviup-console"))
	}

	s.router.HandleMethodNotAllowed = true
	s.router.Use(gin.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Accept", "Content-Type", "Authorization", logging.CorrelationIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	s.router.Use(metrics.Middleware(s.metrics, s.logger))
	s.router.Use(loggingMiddleware(s.logger))

	s.setupRoutes()
	return s
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// loggingMiddleware attaches a correlation id to each request and logs
// its completion.
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		ctx := c.Request.Context()
		if id := c.GetHeader(logging.CorrelationIDHeader); id != "" {
			ctx = logging.WithCorrelationID(ctx, id)
		}
		ctx, correlationID := logging.EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(logging.CorrelationIDHeader, correlationID)

		c.Next()

		logger.DebugWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", time.Since(start).Seconds(),
		)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/api_url", s.handleAPIURL)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// APIURL is the API base URL currently served.
func (s *Server) APIURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiURL
}

// SetAPIURL changes the served API base URL.
func (s *Server) SetAPIURL(apiURL string) {
	s.mu.Lock()
	s.apiURL = apiURL
	s.mu.Unlock()
}

// ApplyConfig is the config loader's OnChange hook. Only the API URL is
// applied live; listener and CORS changes need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	previous := s.APIURL()
	s.SetAPIURL(cfg.Console.APIURL)
	s.metrics.RecordConfigReload("success")
	if previous != cfg.Console.APIURL {
		s.logger.Info("api url changed", "from", previous, "to", cfg.Console.APIURL)
	}
}

// ReloadFailed is the config loader's OnError hook.
func (s *Server) ReloadFailed(err error) {
	s.metrics.RecordConfigReload("error")
	s.logger.Warn("config reload failed, keeping previous config", "error", err.Error())
}

// handleAPIURL serves the discovery document: the API base URL as a JSON
// string.
func (s *Server) handleAPIURL(c *gin.Context) {
	apiURL := s.APIURL()
	if apiURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "api url is not configured"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, apiURL)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"timestamp":  time.Now().UTC(),
		"configured": s.APIURL() != "",
	})
}

// Run listens on the configured address until the server is shut down.
func (s *Server) Run() error {
	addr := s.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return s.Serve(ln)
}

// Serve serves on ln until the server is shut down. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = NewHTTPServer(ln.Addr().String(), s.router)
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("starting console server", "addr", ln.Addr().String(), "api_url", s.APIURL())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: ln.Addr().String(), Err: err}
	}
	return nil
}

// Shutdown gracefully shuts down the server. A server shut down before
// it started serving will not serve.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("shutting down console server")
	if err := srv.Shutdown(ctx); err != nil {
		return &errors.ErrServerShutdown{Err: err}
	}
	return nil
}
