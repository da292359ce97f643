package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// reachCap is the customer count above which the summary extrapolates
// estimated reach instead of reporting processed approvals directly.
const reachCap = 1000

// defaultTemplateLimit bounds the content retrieval search.
const defaultTemplateLimit = 5

// Config holds executor tuning knobs.
type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	TemplateLimit int
}

// Executor runs pipelines. One Execute call owns one pipeline end to
// end; the state store is the only thing shared with other components.
type Executor struct {
	store        ports.StateStore
	events       ports.EventBus
	metrics      ports.MetricsCollector
	segmentation ports.SegmentationClient
	content      ports.ContentClient
	generation   ports.GenerationClient
	compliance   ports.ComplianceClient
	logger       *zap.Logger

	maxRetries    int
	retryDelay    time.Duration
	templateLimit int
}

// New creates a pipeline executor.
func New(
	store ports.StateStore,
	events ports.EventBus,
	metrics ports.MetricsCollector,
	segmentation ports.SegmentationClient,
	content ports.ContentClient,
	generation ports.GenerationClient,
	compliance ports.ComplianceClient,
	logger *zap.Logger,
	cfg Config,
) *Executor {
	templateLimit := cfg.TemplateLimit
	if templateLimit <= 0 {
		templateLimit = defaultTemplateLimit
	}

	return &Executor{
		store:         store,
		events:        events,
		metrics:       metrics,
		segmentation:  segmentation,
		content:       content,
		generation:    generation,
		compliance:    compliance,
		logger:        logger,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
		templateLimit: templateLimit,
	}
}

// runContext accumulates stage outputs; each stage's output is required
// input for the next.
type runContext struct {
	customers  []domain.Customer
	templates  []domain.Template
	variants   []domain.MessageVariant
	validation *domain.ValidationResult
}

// Execute runs the pipeline with the given id to a terminal status and
// returns the final state. Stage failures are recorded in the state,
// never returned as errors; the returned error covers only state store
// faults.
func (e *Executor) Execute(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	started := time.Now()

	if err := e.store.Update(ctx, pipelineID, func(state *domain.PipelineState) error {
		state.OverallStatus = domain.StatusRunning
		state.CurrentStage = domain.StageSegmentation
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to mark pipeline running: %w", err)
	}

	e.publishEvent(ctx, pipelineID, domain.EventTypePipelineStarted, "", nil)
	e.logger.Info("pipeline started", zap.String("pipeline_id", pipelineID))

	run := &runContext{}

	for i, stage := range domain.ExecutionStages() {
		cancelled, state, err := e.checkCancel(ctx, pipelineID)
		if err != nil {
			return nil, err
		}
		if cancelled {
			e.metrics.RecordPipelineCompleted(string(domain.StatusCancelled), time.Since(started))
			return state, nil
		}

		result := e.runStage(ctx, pipelineID, stage, run)

		if result.Status == domain.StageStatusError {
			final, err := e.failPipeline(ctx, pipelineID, result)
			if err != nil {
				return nil, err
			}
			e.metrics.RecordPipelineCompleted(string(domain.StatusFailed), time.Since(started))
			return final, nil
		}

		if err := e.recordStage(ctx, pipelineID, result, nextStage(i)); err != nil {
			return nil, err
		}
		e.publishEvent(ctx, pipelineID, domain.EventTypeStageCompleted, stage, map[string]any{
			"duration": result.Duration.String(),
		})

		// An empty segment or an empty variant set is a valid outcome:
		// the remaining stages have nothing to act on.
		if e.shortCircuit(stage, run) {
			final, err := e.completePipeline(ctx, pipelineID, run, remainingStages(i))
			if err != nil {
				return nil, err
			}
			e.metrics.RecordPipelineCompleted(string(domain.StatusCompleted), time.Since(started))
			return final, nil
		}
	}

	final, err := e.completePipeline(ctx, pipelineID, run, nil)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordPipelineCompleted(string(domain.StatusCompleted), time.Since(started))
	return final, nil
}

// checkCancel observes the cancel flag at a stage boundary and, when
// set, transitions the pipeline to cancelled.
func (e *Executor) checkCancel(ctx context.Context, pipelineID string) (bool, *domain.PipelineState, error) {
	state, err := e.store.Get(ctx, pipelineID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read state: %w", err)
	}

	if !state.CancelRequested {
		return false, state, nil
	}

	if err := e.store.Update(ctx, pipelineID, func(s *domain.PipelineState) error {
		now := time.Now()
		s.OverallStatus = domain.StatusCancelled
		s.CompletedAt = &now
		return nil
	}); err != nil {
		return false, nil, fmt.Errorf("failed to mark pipeline cancelled: %w", err)
	}

	e.publishEvent(ctx, pipelineID, domain.EventTypePipelineCancelled, "", nil)
	e.logger.Info("pipeline cancelled",
		zap.String("pipeline_id", pipelineID),
		zap.String("at_stage", string(state.CurrentStage)))

	final, err := e.store.Get(ctx, pipelineID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to read state: %w", err)
	}
	return true, final, nil
}

// runStage executes one stage, applying the retry policy to each agent
// call, and returns its result record.
func (e *Executor) runStage(ctx context.Context, pipelineID string, stage domain.Stage, run *runContext) domain.StageResult {
	e.publishEvent(ctx, pipelineID, domain.EventTypeStageStarted, stage, nil)

	start := time.Now()
	result := domain.StageResult{
		Stage:     stage,
		StartedAt: start,
	}

	var err error
	switch stage {
	case domain.StageSegmentation:
		result.Attempts, err = e.runSegmentation(ctx, pipelineID, run)
		result.Customers = run.customers
	case domain.StageContentRetrieval:
		result.Attempts, err = e.runContentRetrieval(ctx, pipelineID, run)
		result.Templates = run.templates
	case domain.StageGeneration:
		result.Attempts, err = e.runGeneration(ctx, run)
		result.Variants = run.variants
	case domain.StageCompliance:
		result.Attempts, err = e.runCompliance(ctx, pipelineID, run)
		result.Validation = run.validation
	}

	result.Duration = time.Since(start)

	if err != nil {
		result.Status = domain.StageStatusError
		result.Error = err.Error()
		e.logger.Error("stage failed",
			zap.String("pipeline_id", pipelineID),
			zap.String("stage", string(stage)),
			zap.Int("attempts", result.Attempts),
			zap.Error(err))
	} else {
		result.Status = domain.StageStatusDone
		e.logger.Info("stage completed",
			zap.String("pipeline_id", pipelineID),
			zap.String("stage", string(stage)),
			zap.Duration("duration", result.Duration))
	}

	e.metrics.RecordStageExecuted(string(stage), string(result.Status), result.Duration)

	return result
}

func (e *Executor) runSegmentation(ctx context.Context, pipelineID string, run *runContext) (int, error) {
	state, err := e.store.Get(ctx, pipelineID)
	if err != nil {
		return 0, err
	}

	query := ports.SegmentQuery{
		CampaignName: state.CampaignName,
		CustomerIDs:  state.Customers(),
		Criteria:     state.TriggerData,
	}

	return e.callWithRetry(ctx, "segmentation", func(ctx context.Context) error {
		customers, err := e.segmentation.QuerySegments(ctx, query)
		if err != nil {
			return err
		}
		run.customers = customers
		return nil
	})
}

func (e *Executor) runContentRetrieval(ctx context.Context, pipelineID string, run *runContext) (int, error) {
	state, err := e.store.Get(ctx, pipelineID)
	if err != nil {
		return 0, err
	}

	search := ports.TemplateSearch{
		Query: state.CampaignName,
		Limit: e.templateLimit,
	}
	if category, ok := state.TriggerData["category"].(string); ok {
		search.Category = category
	}

	return e.callWithRetry(ctx, "content", func(ctx context.Context) error {
		templates, err := e.content.SearchTemplates(ctx, search)
		if err != nil {
			return err
		}
		run.templates = templates
		return nil
	})
}

// runGeneration produces variants for every segmented customer,
// rotating through the retrieved templates.
func (e *Executor) runGeneration(ctx context.Context, run *runContext) (int, error) {
	run.variants = nil

	totalAttempts := 0
	for i, customer := range run.customers {
		if len(run.templates) == 0 {
			break
		}
		template := run.templates[i%len(run.templates)]

		req := ports.GenerationRequest{Customer: customer, Template: template}

		attempts, err := e.callWithRetry(ctx, "generation", func(ctx context.Context) error {
			variants, err := e.generation.Generate(ctx, req)
			if err != nil {
				return err
			}
			run.variants = append(run.variants, variants...)
			return nil
		})
		totalAttempts += attempts
		if err != nil {
			return totalAttempts, err
		}
	}

	return totalAttempts, nil
}

func (e *Executor) runCompliance(ctx context.Context, pipelineID string, run *runContext) (int, error) {
	attempts, err := e.callWithRetry(ctx, "compliance", func(ctx context.Context) error {
		validation, err := e.compliance.Validate(ctx, pipelineID, run.variants)
		if err != nil {
			return err
		}
		run.validation = validation
		return nil
	})
	if err != nil {
		return attempts, err
	}

	if run.validation.Source == domain.VerdictSourceFallback {
		e.metrics.RecordComplianceFallback()
	}

	return attempts, nil
}

// callWithRetry applies the bounded retry policy: only unavailability
// is retried, with a short delay between attempts.
func (e *Executor) callWithRetry(ctx context.Context, agent string, call func(context.Context) error) (int, error) {
	var err error

	maxAttempts := e.maxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		err = call(ctx)
		latency := time.Since(start)

		if err == nil {
			e.metrics.RecordAgentCall(agent, "ok", latency)
			return attempt, nil
		}
		e.metrics.RecordAgentCall(agent, "error", latency)

		agentErr, ok := domain.AsAgentError(err)
		if !ok || !agentErr.Retryable() {
			return attempt, err
		}

		if attempt < maxAttempts {
			e.metrics.RecordAgentRetry(agent)
			e.logger.Warn("agent call failed, retrying",
				zap.String("agent", agent),
				zap.Int("attempt", attempt),
				zap.Duration("delay", e.retryDelay),
				zap.Error(err))

			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return attempt, err
			}
		}
	}

	return maxAttempts, err
}

// recordStage appends the stage result and advances the current stage.
// The result is durably recorded before the next stage begins.
func (e *Executor) recordStage(ctx context.Context, pipelineID string, result domain.StageResult, next domain.Stage) error {
	if err := e.store.Update(ctx, pipelineID, func(state *domain.PipelineState) error {
		state.StageResults = append(state.StageResults, result)
		state.CurrentStage = next
		return nil
	}); err != nil {
		return fmt.Errorf("failed to record stage result: %w", err)
	}
	return nil
}

// failPipeline records the failed stage result and the terminal error.
func (e *Executor) failPipeline(ctx context.Context, pipelineID string, result domain.StageResult) (*domain.PipelineState, error) {
	if err := e.store.Update(ctx, pipelineID, func(state *domain.PipelineState) error {
		now := time.Now()
		state.StageResults = append(state.StageResults, result)
		state.OverallStatus = domain.StatusFailed
		state.Error = fmt.Sprintf("stage %s failed: %s", result.Stage, result.Error)
		state.CompletedAt = &now
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to record pipeline failure: %w", err)
	}

	e.publishEvent(ctx, pipelineID, domain.EventTypeStageFailed, result.Stage, map[string]any{
		"error": result.Error,
	})
	e.publishEvent(ctx, pipelineID, domain.EventTypePipelineFailed, "", map[string]any{
		"error": result.Error,
	})

	return e.store.Get(ctx, pipelineID)
}

// completePipeline records skipped results for any stages that had
// nothing to act on, stores the summary and marks the pipeline done.
func (e *Executor) completePipeline(ctx context.Context, pipelineID string, run *runContext, skipped []domain.Stage) (*domain.PipelineState, error) {
	var requested int
	if state, err := e.store.Get(ctx, pipelineID); err == nil {
		requested = len(state.Customers())
	}

	summary := buildSummary(run, requested)

	if err := e.store.Update(ctx, pipelineID, func(state *domain.PipelineState) error {
		now := time.Now()
		for _, stage := range skipped {
			state.StageResults = append(state.StageResults, domain.StageResult{
				Stage:     stage,
				Status:    domain.StageStatusSkipped,
				StartedAt: now,
			})
		}
		state.CurrentStage = domain.StageCompleted
		state.OverallStatus = domain.StatusCompleted
		state.Summary = summary
		state.CompletedAt = &now
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to record pipeline completion: %w", err)
	}

	e.publishEvent(ctx, pipelineID, domain.EventTypePipelineCompleted, "", map[string]any{
		"total_approved": summary.TotalApproved,
		"total_rejected": summary.TotalRejected,
	})
	e.logger.Info("pipeline completed",
		zap.String("pipeline_id", pipelineID),
		zap.Int("customers", summary.CustomersProcessed),
		zap.Int("approved", summary.TotalApproved),
		zap.Int("rejected", summary.TotalRejected))

	return e.store.Get(ctx, pipelineID)
}

// shortCircuit reports whether later stages have nothing to act on.
func (e *Executor) shortCircuit(stage domain.Stage, run *runContext) bool {
	switch stage {
	case domain.StageSegmentation:
		return len(run.customers) == 0
	case domain.StageGeneration:
		return len(run.variants) == 0
	}
	return false
}

// buildSummary aggregates the campaign outcome. For customer sets over
// the practical cap the reach is extrapolated from the processed share.
func buildSummary(run *runContext, requested int) *domain.CampaignSummary {
	summary := &domain.CampaignSummary{
		CustomersProcessed: len(run.customers),
		MessagesGenerated:  len(run.variants),
	}

	if run.validation != nil {
		summary.TotalChecked = run.validation.TotalChecked
		summary.TotalApproved = run.validation.TotalApproved
		summary.TotalRejected = run.validation.TotalRejected
		summary.ComplianceSource = run.validation.Source
	}

	summary.EstimatedReach = summary.TotalApproved
	if requested > reachCap && summary.CustomersProcessed > 0 {
		ratio := float64(summary.TotalApproved) / float64(summary.CustomersProcessed)
		summary.EstimatedReach = int(ratio * float64(requested))
	}

	return summary
}

// publishEvent publishes a lifecycle event; delivery failures are
// logged, never fatal to the pipeline.
func (e *Executor) publishEvent(ctx context.Context, pipelineID string, eventType domain.EventType, stage domain.Stage, data map[string]any) {
	event := domain.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		PipelineID: pipelineID,
		Stage:      stage,
		Timestamp:  time.Now(),
		Data:       data,
	}

	if err := e.events.Publish(ctx, "pipeline.events", event); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("pipeline_id", pipelineID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// nextStage returns the stage the pipeline advances to after the stage
// at index i.
func nextStage(i int) domain.Stage {
	stages := domain.ExecutionStages()
	if i+1 < len(stages) {
		return stages[i+1]
	}
	return domain.StageDelivery
}

// remainingStages returns the stages after index i, for skip records.
func remainingStages(i int) []domain.Stage {
	stages := domain.ExecutionStages()
	if i+1 >= len(stages) {
		return nil
	}
	return stages[i+1:]
}
