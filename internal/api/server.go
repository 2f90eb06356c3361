// Package api serves audit reports and degraded listings over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/tbaudit/internal/audit"
)

// Auditor reconciles tasks and lists single sources.
type Auditor interface {
	Reconcile(ctx context.Context, taskID string) (*audit.Report, error)
	ListSource(ctx context.Context, taskID string, side audit.Side) (*audit.Listing, error)
}

// LogReader reads local log rows for the UI.
type LogReader interface {
	ListLocalEntries(ctx context.Context, taskID string) ([]audit.LocalRecord, error)
}

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// requestIDKey is the gin context key holding the request ID.
const requestIDKey = "request_id"

// Server is the HTTP surface of the auditor.
type Server struct {
	auditor  Auditor
	logs     LogReader
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewServer creates a server. A nil gatherer serves the default Prometheus
// registry; a nil logger discards.
func NewServer(auditor Auditor, logs LogReader, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{auditor: auditor, logs: logs, gatherer: gatherer, logger: logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	r.GET("/audit/tasks/:taskId/logs", s.handleAudit)
	r.GET("/audit/tasks/:taskId/sources/:side", s.handleSource)
	r.GET("/tasks/:taskId/logs", s.handleTaskLogs)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// requestID propagates X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

// requestLogger returns the server logger tagged with the request ID.
func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return s.logger.With("request_id", c.GetString(requestIDKey), "handler", handler)
}
