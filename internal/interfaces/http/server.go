// Package http exposes the calculators, expense drafts and approval engine over REST.
// It is a thin adapter that translates HTTP requests into application calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/application/service"
	"github.com/garyjia/travel-reimbursement/internal/application/workflow"
	"github.com/garyjia/travel-reimbursement/internal/domain/allowance"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 10 << 20,
	}
}

// Dependencies are the application components the handlers call
type Dependencies struct {
	Expenses   service.ExpenseService
	Engine     workflow.ApprovalEngine
	Calculator *allowance.Calculator
	Rates      port.ExchangeRateProvider
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with all routes registered
func NewServer(config ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes

	s := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	registerRoutes(router, newHandlers(deps, config.MaxUploadBytes, logger))
	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/health", h.healthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/per-diem/quote", h.quotePerDiem)
		api.POST("/mileage/quote", h.quoteMileage)
		api.POST("/currency/normalize", h.normalize)

		api.GET("/expenses", h.listExpenses)
		api.POST("/expenses", h.createDraft)
		api.POST("/expenses/per-diem", h.createPerDiemDraft)
		api.POST("/expenses/mileage", h.createMileageDraft)
		api.POST("/expenses/receipt", h.createReceiptDraft)
		api.GET("/expenses/:id", h.getExpense)
		api.PUT("/expenses/:id", h.updateDraft)
		api.DELETE("/expenses/:id", h.deleteDraft)
		api.POST("/expenses/:id/submit", h.submit)
		api.GET("/expenses/:id/workflow", h.getWorkflowByExpense)

		api.GET("/workflows/:id", h.getWorkflow)
		api.POST("/workflows/:id/steps/:index/resolve", h.resolveStep)
		api.GET("/workflows/:id/sla", h.checkSla)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
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
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
