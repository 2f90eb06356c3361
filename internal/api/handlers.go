package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/tbaudit/internal/audit"
	"github.com/roach88/tbaudit/internal/reconcile"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidTaskID     = "INVALID_TASK_ID"
	CodeInvalidSource     = "INVALID_SOURCE"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Side      string `json:"side,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// TaskLogsResponse is the body of GET /tasks/:taskId/logs.
type TaskLogsResponse struct {
	TaskID string              `json:"task_id"`
	Logs   []audit.LocalRecord `json:"logs"`
}

// pinger is implemented by log readers that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth handles GET /healthz. When the log reader can be pinged an
// unreachable store reports 503.
func (s *Server) handleHealth(c *gin.Context) {
	if p, ok := s.logs.(pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			s.requestLogger(c, "handleHealth").Warn("store unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAudit handles GET /audit/tasks/:taskId/logs.
//
// Response:
//
//	200 OK: audit.Report
//	400 Bad Request: empty task id
//	503 Service Unavailable: a source could not be read; retryable
func (s *Server) handleAudit(c *gin.Context) {
	logger := s.requestLogger(c, "handleAudit")
	taskID := strings.TrimSpace(c.Param("taskId"))

	report, err := s.auditor.Reconcile(c.Request.Context(), taskID)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}

	logger.Info("audit served",
		"task_id", taskID,
		"items", len(report.Items),
		"anomalies", report.HasAnomalies())
	c.JSON(http.StatusOK, report)
}

// handleSource handles GET /audit/tasks/:taskId/sources/:side. The listing
// reads one side only and is marked with X-Audit-Degraded.
func (s *Server) handleSource(c *gin.Context) {
	logger := s.requestLogger(c, "handleSource")
	taskID := strings.TrimSpace(c.Param("taskId"))

	side, err := audit.ParseSide(c.Param("side"))
	if err != nil {
		logger.Warn("invalid source", "side", c.Param("side"))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidSource})
		return
	}

	listing, err := s.auditor.ListSource(c.Request.Context(), taskID, side)
	if err != nil {
		s.writeError(c, logger, err)
		return
	}

	c.Header("X-Audit-Degraded", "true")
	c.JSON(http.StatusOK, listing)
}

// handleTaskLogs handles GET /tasks/:taskId/logs, the UI read path over the
// local store.
func (s *Server) handleTaskLogs(c *gin.Context) {
	logger := s.requestLogger(c, "handleTaskLogs")
	taskID := strings.TrimSpace(c.Param("taskId"))
	if taskID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: reconcile.ErrEmptyTaskID.Error(), Code: CodeInvalidTaskID})
		return
	}

	logs, err := s.logs.ListLocalEntries(c.Request.Context(), taskID)
	if err != nil {
		logger.Error("list local logs failed", "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to read local logs", Code: CodeInternal})
		return
	}

	c.JSON(http.StatusOK, TaskLogsResponse{TaskID: taskID, Logs: logs})
}

// writeError maps engine errors onto HTTP responses.
func (s *Server) writeError(c *gin.Context, logger *slog.Logger, err error) {
	var unavailable *reconcile.SourceUnavailableError
	switch {
	case errors.Is(err, reconcile.ErrEmptyTaskID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidTaskID})
	case errors.As(err, &unavailable):
		logger.Warn("source unavailable", "side", unavailable.Side, "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     err.Error(),
			Code:      CodeSourceUnavailable,
			Side:      string(unavailable.Side),
			Retryable: unavailable.Retryable(),
		})
	default:
		logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: CodeInternal})
	}
}
