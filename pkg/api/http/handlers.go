package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/campaignops/campo/internal/application/orchestrator"
	"github.com/campaignops/campo/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
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
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"checks": gin.H{
			"orchestrator": "ok",
		},
	})
}

// handleStartPipeline handles campaign start requests. The pipeline
// runs in the background; the returned pipeline_id is used for polling.
func (s *Server) handleStartPipeline(c *gin.Context) {
	var req orchestrator.StartRequest
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

	resp, err := s.orchestrator.StartCampaign(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "VALIDATION_FAILED",
					Message: err.Error(),
				},
			})
			return
		}

		s.logger.Error("failed to start pipeline", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "START_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// handleListPipelines lists active pipelines
func (s *Server) handleListPipelines(c *gin.Context) {
	pipelines, err := s.orchestrator.ListActive(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list pipelines", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "LIST_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipelines": pipelines,
		"total":     len(pipelines),
	})
}

// handleGetPipeline returns the full pipeline state, including partial
// stage results while the pipeline is still running.
func (s *Server) handleGetPipeline(c *gin.Context) {
	pipelineID := c.Param("id")

	state, err := s.orchestrator.GetStatus(c.Request.Context(), pipelineID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Pipeline not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

// handleGetStatus returns a compact status view
func (s *Server) handleGetStatus(c *gin.Context) {
	pipelineID := c.Param("id")

	state, err := s.orchestrator.GetStatus(c.Request.Context(), pipelineID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Pipeline not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipeline_id":    state.PipelineID,
		"campaign_name":  state.CampaignName,
		"current_stage":  state.CurrentStage,
		"overall_status": state.OverallStatus,
		"created_at":     state.CreatedAt,
		"updated_at":     state.UpdatedAt,
		"completed_at":   state.CompletedAt,
	})
}

// handleCancelPipeline requests cooperative cancellation
func (s *Server) handleCancelPipeline(c *gin.Context) {
	pipelineID := c.Param("id")

	accepted, err := s.orchestrator.StopPipeline(c.Request.Context(), pipelineID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Pipeline not found",
				},
			})
			return
		}

		s.logger.Error("failed to cancel pipeline",
			zap.String("pipeline_id", pipelineID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	if !accepted {
		c.JSON(http.StatusConflict, gin.H{
			"pipeline_id": pipelineID,
			"accepted":    false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pipeline_id": pipelineID,
		"accepted":    true,
	})
}

// handleComplianceResults reads previously computed approve/reject
// lists from the compliance agent.
func (s *Server) handleComplianceResults(c *gin.Context) {
	campaignID := c.Param("id")

	results, err := s.compliance.GetCampaignResults(c.Request.Context(), campaignID)
	if err != nil {
		s.logger.Error("failed to get compliance results",
			zap.String("campaign_id", campaignID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: ErrorDetail{
				Code:    "COMPLIANCE_UNAVAILABLE",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, results)
}

// handleComplianceStats reads aggregate counters from the compliance agent
func (s *Server) handleComplianceStats(c *gin.Context) {
	stats, err := s.compliance.GetStats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to get compliance stats", zap.Error(err))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: ErrorDetail{
				Code:    "COMPLIANCE_UNAVAILABLE",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
