package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elitedynamics/stepflow/internal/application/orchestrator"
	"github.com/elitedynamics/stepflow/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"checks": gin.H{
			"orchestrator": "ok",
		},
	})
}

// handleSubmitWorkflow accepts a workflow submission: a named template or an
// ad-hoc step list, in execution or suggestion mode.
func (s *Server) handleSubmitWorkflow(c *gin.Context) {
	var req orchestrator.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	result, err := s.manager.Submit(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("failed to submit workflow", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	if result.Mode == domain.ModeSuggestion {
		c.JSON(http.StatusOK, gin.H{
			"mode": result.Mode,
			"plan": result.Plan,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"run_id": result.RunID,
		"mode":   result.Mode,
		"status": "submitted",
	})
}

// handleListTemplates lists the registered workflow templates.
func (s *Server) handleListTemplates(c *gin.Context) {
	names := s.manager.Templates().Names()
	c.JSON(http.StatusOK, gin.H{
		"templates": names,
		"total":     len(names),
	})
}

// handleListRuns lists retained runs.
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.manager.ListRuns(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "LIST_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	summaries := make([]gin.H, len(runs))
	for i, run := range runs {
		summaries[i] = gin.H{
			"run_id":       run.RunID,
			"workflow_id":  run.WorkflowID,
			"status":       run.Status,
			"submitted_at": run.SubmittedAt,
			"completed_at": run.CompletedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  summaries,
		"total": len(summaries),
	})
}

// handleGetRun returns the full state of one run.
func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.manager.RunStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

// handleGetResult returns the outputs of a finished run, including the
// per-step error breakdown for partial failures.
func (s *Server) handleGetResult(c *gin.Context) {
	run, err := s.manager.RunStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	if !run.Status.Terminal() {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_COMPLETED",
				Message: "Run has not finished yet",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       run.RunID,
		"status":       run.Status,
		"context":      run.Context,
		"steps":        run.Steps,
		"failures":     run.Failures,
		"completed_at": run.CompletedAt,
	})
}

// handleCancelRun requests cooperative cancellation of a run.
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.manager.Cancel(c.Request.Context(), runID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, domain.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"status": "cancelling",
	})
}
