package ports

import (
	"context"
	"time"

	"github.com/campaignops/campo/pkg/domain"
)

// StateStore is the authoritative registry of pipeline states. Updates
// to the same pipeline id are serialized; reads return copies and never
// observe a half-applied update.
type StateStore interface {
	// Create allocates a fresh pipeline id, stores the initial state
	// and returns the id.
	Create(ctx context.Context, state *domain.PipelineState) (string, error)

	// Get returns the state for the given id or domain.ErrNotFound.
	Get(ctx context.Context, pipelineID string) (*domain.PipelineState, error)

	// Update applies mutate to the stored state atomically. The state
	// passed to mutate may be modified in place; Update stamps
	// UpdatedAt after a successful mutation.
	Update(ctx context.Context, pipelineID string, mutate func(*domain.PipelineState) error) error

	// ListActive returns all states with a pending or running status.
	ListActive(ctx context.Context) ([]*domain.PipelineState, error)

	// RequestCancel sets the cancel flag. It returns false when the
	// pipeline is unknown or already terminal.
	RequestCancel(ctx context.Context, pipelineID string) (bool, error)
}

// EventHandler processes a single event delivered by the bus.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus distributes pipeline lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordPipelineStarted(status string)
	RecordPipelineCompleted(status string, duration time.Duration)
	RecordStageExecuted(stage, status string, duration time.Duration)
	RecordAgentCall(agent, status string, duration time.Duration)
	RecordAgentRetry(agent string)
	RecordComplianceFallback()
	SetActivePipelines(count int)
	RecordRunnerPoolStatus(idle, busy, stopped int)
}

// SegmentQuery is the orchestration-level segmentation request.
type SegmentQuery struct {
	CampaignName string         `json:"campaign_name"`
	CustomerIDs  []string       `json:"customer_ids"`
	Criteria     map[string]any `json:"criteria,omitempty"`
}

// TemplateSearch is the orchestration-level content retrieval request.
type TemplateSearch struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	Category string `json:"category,omitempty"`
}

// GenerationRequest asks for message variants for one customer and
// template pairing.
type GenerationRequest struct {
	Customer domain.Customer `json:"customer"`
	Template domain.Template `json:"template"`
}

// SegmentationClient selects the customers a campaign targets.
type SegmentationClient interface {
	HealthCheck(ctx context.Context) bool
	QuerySegments(ctx context.Context, query SegmentQuery) ([]domain.Customer, error)
}

// ContentClient retrieves candidate message templates.
type ContentClient interface {
	HealthCheck(ctx context.Context) bool
	SearchTemplates(ctx context.Context, search TemplateSearch) ([]domain.Template, error)
}

// GenerationClient produces message variants.
type GenerationClient interface {
	HealthCheck(ctx context.Context) bool
	Generate(ctx context.Context, req GenerationRequest) ([]domain.MessageVariant, error)
}

// ComplianceClient validates generated messages. Validate must always
// produce a result: when the remote service is unavailable it answers
// from a local heuristic and tags the result as fallback-sourced.
type ComplianceClient interface {
	HealthCheck(ctx context.Context) bool
	Validate(ctx context.Context, campaignID string, variants []domain.MessageVariant) (*domain.ValidationResult, error)
	GetCampaignResults(ctx context.Context, campaignID string) (*domain.CampaignResults, error)
	GetStats(ctx context.Context) (*domain.ComplianceStats, error)
}
