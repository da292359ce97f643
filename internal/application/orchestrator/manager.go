package orchestrator

import (
	"context"
	"fmt"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"go.uber.org/zap"
)

// Submitter hands a created pipeline to the runner pool for execution.
type Submitter interface {
	Submit(pipelineID string) error
}

// StartResponse is returned to the caller immediately; the pipeline
// runs in the background and is observed via status polling.
type StartResponse struct {
	PipelineID string        `json:"pipeline_id"`
	Status     domain.Status `json:"status"`
}

// Manager is the orchestration facade. It validates input, creates
// pipeline state, and delegates; it contains no stage or retry logic.
type Manager struct {
	validator *Validator
	store     ports.StateStore
	metrics   ports.MetricsCollector
	submitter Submitter
	logger    *zap.Logger
}

// NewManager creates the orchestration facade.
func NewManager(
	validator *Validator,
	store ports.StateStore,
	metrics ports.MetricsCollector,
	submitter Submitter,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		validator: validator,
		store:     store,
		metrics:   metrics,
		submitter: submitter,
		logger:    logger,
	}
}

// StartCampaign validates the request, stores the initial pending state
// and submits the pipeline to the runner pool. It returns as soon as
// the pipeline is queued.
func (m *Manager) StartCampaign(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	if err := m.validator.Validate(req); err != nil {
		m.logger.Warn("start request rejected", zap.Error(err))
		m.metrics.RecordPipelineStarted("rejected")
		return nil, err
	}

	triggerType := req.TriggerType
	if triggerType == "" {
		triggerType = domain.TriggerManual
	}

	state := &domain.PipelineState{
		CampaignName:  req.CampaignName,
		TriggerType:   triggerType,
		TriggerData:   req.TriggerData,
		CustomerID:    req.CustomerID,
		CustomerIDs:   req.CustomerIDs,
		CurrentStage:  domain.StageSegmentation,
		OverallStatus: domain.StatusPending,
		StageResults:  []domain.StageResult{},
	}

	pipelineID, err := m.store.Create(ctx, state)
	if err != nil {
		m.logger.Error("failed to create pipeline state",
			zap.String("campaign", req.CampaignName),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	if err := m.submitter.Submit(pipelineID); err != nil {
		m.logger.Error("failed to submit pipeline",
			zap.String("pipeline_id", pipelineID),
			zap.Error(err))

		if updateErr := m.store.Update(ctx, pipelineID, func(s *domain.PipelineState) error {
			s.OverallStatus = domain.StatusFailed
			s.Error = fmt.Sprintf("submission failed: %v", err)
			return nil
		}); updateErr != nil {
			m.logger.Error("failed to mark pipeline failed",
				zap.String("pipeline_id", pipelineID),
				zap.Error(updateErr))
		}

		return nil, fmt.Errorf("failed to submit pipeline: %w", err)
	}

	m.metrics.RecordPipelineStarted(string(domain.StatusPending))
	m.logger.Info("pipeline submitted",
		zap.String("pipeline_id", pipelineID),
		zap.String("campaign", req.CampaignName),
		zap.Int("customers", len(state.Customers())))

	return &StartResponse{
		PipelineID: pipelineID,
		Status:     domain.StatusPending,
	}, nil
}

// GetStatus returns the best-known state of a pipeline, including
// partial stage results while it is still running.
func (m *Manager) GetStatus(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	return m.store.Get(ctx, pipelineID)
}

// StopPipeline requests cooperative cancellation. It returns false when
// the pipeline already reached a terminal status; an in-flight agent
// call is never interrupted, cancellation takes effect at the next
// stage boundary.
func (m *Manager) StopPipeline(ctx context.Context, pipelineID string) (bool, error) {
	accepted, err := m.store.RequestCancel(ctx, pipelineID)
	if err != nil {
		return false, err
	}

	if accepted {
		m.logger.Info("pipeline cancellation requested",
			zap.String("pipeline_id", pipelineID))
	}

	return accepted, nil
}

// ListActive returns all pending and running pipelines.
func (m *Manager) ListActive(ctx context.Context) ([]*domain.PipelineState, error) {
	return m.store.ListActive(ctx)
}

// Shutdown logs shutdown; in-flight pipelines are drained by the
// runner pool's own shutdown.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("orchestration manager shut down")
	return nil
}
