package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus.
type Collector struct {
	pipelinesStarted    *prometheus.CounterVec
	pipelinesCompleted  *prometheus.CounterVec
	pipelineDuration    prometheus.Histogram
	stagesExecuted      *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	agentCalls          *prometheus.CounterVec
	agentLatency        *prometheus.HistogramVec
	agentRetries        *prometheus.CounterVec
	complianceFallbacks prometheus.Counter
	activePipelines     prometheus.Gauge
	runnerPoolIdle      prometheus.Gauge
	runnerPoolBusy      prometheus.Gauge
	runnerPoolStopped   prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		pipelinesStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campo_pipelines_started_total",
				Help: "Total number of pipelines started",
			},
			[]string{"status"},
		),
		pipelinesCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campo_pipelines_completed_total",
				Help: "Total number of pipelines finished, by terminal status",
			},
			[]string{"status"},
		),
		pipelineDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "campo_pipeline_duration_seconds",
				Help:    "End-to-end pipeline execution duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		stagesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campo_stages_executed_total",
				Help: "Total number of stage executions",
			},
			[]string{"stage", "status"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campo_stage_duration_seconds",
				Help:    "Stage execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		agentCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campo_agent_calls_total",
				Help: "Total number of agent calls",
			},
			[]string{"agent", "status"},
		),
		agentLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campo_agent_latency_seconds",
				Help:    "Agent call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"agent"},
		),
		agentRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campo_agent_retries_total",
				Help: "Total number of agent call retries",
			},
			[]string{"agent"},
		),
		complianceFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "campo_compliance_fallbacks_total",
				Help: "Total number of compliance checks answered by the local fallback",
			},
		),
		activePipelines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "campo_active_pipelines",
				Help: "Number of currently active pipelines",
			},
		),
		runnerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "campo_runner_pool_idle",
				Help: "Number of idle pipeline runners",
			},
		),
		runnerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "campo_runner_pool_busy",
				Help: "Number of busy pipeline runners",
			},
		),
		runnerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "campo_runner_pool_stopped",
				Help: "Number of stopped pipeline runners",
			},
		),
	}
}

// RecordPipelineStarted records a pipeline start.
func (c *Collector) RecordPipelineStarted(status string) {
	c.pipelinesStarted.WithLabelValues(status).Inc()
}

// RecordPipelineCompleted records a pipeline reaching a terminal status.
func (c *Collector) RecordPipelineCompleted(status string, duration time.Duration) {
	c.pipelinesCompleted.WithLabelValues(status).Inc()
	c.pipelineDuration.Observe(duration.Seconds())
}

// RecordStageExecuted records a stage execution.
func (c *Collector) RecordStageExecuted(stage, status string, duration time.Duration) {
	c.stagesExecuted.WithLabelValues(stage, status).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordAgentCall records one agent call.
func (c *Collector) RecordAgentCall(agent, status string, duration time.Duration) {
	c.agentCalls.WithLabelValues(agent, status).Inc()
	c.agentLatency.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordAgentRetry records a retried agent call.
func (c *Collector) RecordAgentRetry(agent string) {
	c.agentRetries.WithLabelValues(agent).Inc()
}

// RecordComplianceFallback records a fallback-sourced compliance check.
func (c *Collector) RecordComplianceFallback() {
	c.complianceFallbacks.Inc()
}

// SetActivePipelines sets the active pipelines gauge.
func (c *Collector) SetActivePipelines(count int) {
	c.activePipelines.Set(float64(count))
}

// RecordRunnerPoolStatus records runner pool occupancy.
func (c *Collector) RecordRunnerPoolStatus(idle, busy, stopped int) {
	c.runnerPoolIdle.Set(float64(idle))
	c.runnerPoolBusy.Set(float64(busy))
	c.runnerPoolStopped.Set(float64(stopped))
}
