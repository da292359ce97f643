package domain

import "time"

// Stage identifies one step of the campaign pipeline.
type Stage string

const (
	StageSegmentation     Stage = "segmentation"
	StageContentRetrieval Stage = "content_retrieval"
	StageGeneration       Stage = "generation"
	StageCompliance       Stage = "compliance"
	StageDelivery         Stage = "delivery"
	StageCompleted        Stage = "completed"
)

// ExecutionStages returns the stages the executor drives, in order.
// Delivery is performed by the caller from the final summary.
func ExecutionStages() []Stage {
	return []Stage{
		StageSegmentation,
		StageContentRetrieval,
		StageGeneration,
		StageCompliance,
	}
}

// Status is the overall status of a pipeline execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TriggerType describes what initiated a campaign run.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerEvent     TriggerType = "event"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerEvent:
		return true
	}
	return false
}

// StageStatus is the outcome of a single stage.
type StageStatus string

const (
	StageStatusDone    StageStatus = "done"
	StageStatusError   StageStatus = "error"
	StageStatusSkipped StageStatus = "skipped"
)

// Customer is one recipient selected by the segmentation agent.
type Customer struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Email      string         `json:"email,omitempty"`
	Segment    string         `json:"segment,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Template is a content template returned by the content agent.
type Template struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// MessageVariant is one generated message for one customer.
type MessageVariant struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	TemplateID string `json:"template_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body"`
}

// StageResult records the outcome of one stage. Exactly one of the
// payload fields is populated, matching the stage that produced it.
type StageResult struct {
	Stage     Stage       `json:"stage"`
	Status    StageStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	StartedAt time.Time   `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string      `json:"error,omitempty"`

	Customers  []Customer        `json:"customers,omitempty"`
	Templates  []Template        `json:"templates,omitempty"`
	Variants   []MessageVariant  `json:"variants,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// CampaignSummary aggregates the outcome of a completed pipeline.
type CampaignSummary struct {
	CustomersProcessed int           `json:"customers_processed"`
	MessagesGenerated  int           `json:"messages_generated"`
	TotalChecked       int           `json:"total_checked"`
	TotalApproved      int           `json:"total_approved"`
	TotalRejected      int           `json:"total_rejected"`
	EstimatedReach     int           `json:"estimated_reach"`
	ComplianceSource   VerdictSource `json:"compliance_source,omitempty"`
}

// PipelineState is the live state of one campaign execution. It is
// created by the orchestrator, mutated only through the state store by
// the executor that owns it, and read concurrently by status queries.
type PipelineState struct {
	PipelineID   string         `json:"pipeline_id"`
	CampaignName string         `json:"campaign_name"`
	TriggerType  TriggerType    `json:"trigger_type"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`

	// Exactly one of CustomerID and CustomerIDs is set.
	CustomerID  string   `json:"customer_id,omitempty"`
	CustomerIDs []string `json:"customer_ids,omitempty"`

	CurrentStage  Stage         `json:"current_stage"`
	OverallStatus Status        `json:"overall_status"`
	StageResults  []StageResult `json:"stage_results"`

	Summary         *CampaignSummary `json:"summary,omitempty"`
	Error           string           `json:"error,omitempty"`
	CancelRequested bool             `json:"cancel_requested"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the pipeline has reached a terminal status.
func (p *PipelineState) Terminal() bool {
	return p.OverallStatus.Terminal()
}

// Customers returns the requested customer identifiers regardless of
// which of the two mutually exclusive fields carries them.
func (p *PipelineState) Customers() []string {
	if p.CustomerID != "" {
		return []string{p.CustomerID}
	}
	return p.CustomerIDs
}

// Clone returns a deep copy so that readers never observe a state
// being mutated by the owning executor.
func (p *PipelineState) Clone() *PipelineState {
	cp := *p

	if p.TriggerData != nil {
		cp.TriggerData = make(map[string]any, len(p.TriggerData))
		for k, v := range p.TriggerData {
			cp.TriggerData[k] = v
		}
	}
	if p.CustomerIDs != nil {
		cp.CustomerIDs = append([]string(nil), p.CustomerIDs...)
	}
	if p.StageResults != nil {
		cp.StageResults = append([]StageResult(nil), p.StageResults...)
	}
	if p.Summary != nil {
		summary := *p.Summary
		cp.Summary = &summary
	}
	if p.CompletedAt != nil {
		completed := *p.CompletedAt
		cp.CompletedAt = &completed
	}

	return &cp
}
