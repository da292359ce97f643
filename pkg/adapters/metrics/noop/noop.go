// Package noop provides a MetricsCollector that records nothing. The
// Prometheus collector registers globally, so tests use this instead.
package noop

import "time"

// Collector discards all metrics.
type Collector struct{}

// NewCollector creates a no-op metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (*Collector) RecordPipelineStarted(string)                        {}
func (*Collector) RecordPipelineCompleted(string, time.Duration)       {}
func (*Collector) RecordStageExecuted(string, string, time.Duration)   {}
func (*Collector) RecordAgentCall(string, string, time.Duration)       {}
func (*Collector) RecordAgentRetry(string)                             {}
func (*Collector) RecordComplianceFallback()                           {}
func (*Collector) SetActivePipelines(int)                              {}
func (*Collector) RecordRunnerPoolStatus(int, int, int)                {}
