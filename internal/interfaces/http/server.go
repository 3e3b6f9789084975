// Package http provides the HTTP adapter for the lease request services.
// Handlers translate requests into service and engine calls and nothing more.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/lease-agent/internal/application/service"
	"github.com/garyjia/lease-agent/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxUploadBytes caps multipart request bodies
	MaxUploadBytes int64
	Mode           string
	// ShutdownTimeout bounds the drain on Stop
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxUploadBytes:  32 << 20,
		Mode:            gin.ReleaseMode,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	leaseService service.LeaseRequestService,
	extractionService service.ExtractionService,
	directoryService service.DirectoryService,
	engine workflow.Engine,
	logger Logger,
) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	registerValidatorTagNames()

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(leaseService, extractionService, directoryService, engine, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

const requestIDHeader = "X-Request-ID"

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), requestID(), s.accessLog())
}

// requestID tags each request, keeping a caller supplied id when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []interface{}{
			"request_id", c.GetString(requestIDHeader),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("HTTP request failed", kv...)
			return
		}
		s.logger.Info("HTTP request", kv...)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/lease-requests")
	{
		api.POST("", h.CreateLeaseRequest)
		api.GET("", h.ListLeaseRequests)
		api.GET("/stats", h.GetStats)
		api.GET("/export", h.ExportRegister)

		api.GET("/:id", h.GetLeaseRequest)
		api.GET("/:id/workflow-steps", h.GetWorkflowSteps)
		api.POST("/:id/steps/:step/advance", h.AdvanceStep)
		api.POST("/:id/steps/:step/review", h.ResolveReview)
		api.POST("/:id/extractions", h.RecordExtraction)
		api.POST("/:id/extract", h.RunExtraction)
		api.GET("/:id/audit", h.GetAuditTrail)
		api.GET("/:id/audit/export", h.ExportAuditTrail)
	}

	directory := s.router.Group("/api")
	{
		directory.GET("/properties", h.ListProperties)
		directory.GET("/properties/:id", h.GetProperty)
		directory.GET("/business-partners", h.ListBusinessPartners)
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or serving fails
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("Serving HTTP", "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("HTTP server failed", "error", err)
		return err
	}
}

// Stop drains in-flight requests within the shutdown timeout
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}
