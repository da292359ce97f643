package domain

import "time"

// EventType identifies a pipeline lifecycle event.
type EventType string

const (
	EventTypePipelineStarted   EventType = "pipeline.started"
	EventTypeStageStarted      EventType = "stage.started"
	EventTypeStageCompleted    EventType = "stage.completed"
	EventTypeStageFailed       EventType = "stage.failed"
	EventTypePipelineCompleted EventType = "pipeline.completed"
	EventTypePipelineFailed    EventType = "pipeline.failed"
	EventTypePipelineCancelled EventType = "pipeline.cancelled"
)

// Event is published on the event bus at every pipeline transition.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	PipelineID string         `json:"pipeline_id"`
	Stage      Stage          `json:"stage,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}
