package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthMonitor monitors runner pool health.
type HealthMonitor struct {
	pool     *Pool
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// HealthStatus represents the health status of the runner pool.
type HealthStatus struct {
	TotalRunners    int
	IdleRunners     int
	BusyRunners     int
	StoppedRunners  int
	ActivePipelines int
	Healthy         bool
	Timestamp       time.Time
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(pool *Pool, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		pool:     pool,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the health monitor.
func (h *HealthMonitor) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop stops the health monitor.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
}

// run is the main health monitoring loop.
func (h *HealthMonitor) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.checkHealth()
		}
	}
}

// checkHealth records pool occupancy and active pipeline count.
func (h *HealthMonitor) checkHealth() {
	status := h.GetStatus()

	h.logger.Info("runner pool health check",
		zap.Int("total", status.TotalRunners),
		zap.Int("idle", status.IdleRunners),
		zap.Int("busy", status.BusyRunners),
		zap.Int("stopped", status.StoppedRunners),
		zap.Int("active_pipelines", status.ActivePipelines),
		zap.Bool("healthy", status.Healthy))

	h.pool.metrics.RecordRunnerPoolStatus(
		status.IdleRunners,
		status.BusyRunners,
		status.StoppedRunners,
	)
	h.pool.metrics.SetActivePipelines(status.ActivePipelines)

	if !status.Healthy {
		h.logger.Warn("runner pool is unhealthy",
			zap.Int("idle", status.IdleRunners),
			zap.Int("total", status.TotalRunners))
	}

	if status.BusyRunners == status.TotalRunners {
		h.logger.Warn("all runners are busy - consider scaling up",
			zap.Int("total", status.TotalRunners))
	}
}

// GetStatus returns the current health status.
func (h *HealthMonitor) GetStatus() *HealthStatus {
	runnerStatuses := h.pool.GetStatus()

	var idle, busy, stopped int
	for _, status := range runnerStatuses {
		switch status {
		case WorkerStatusIdle:
			idle++
		case WorkerStatusBusy:
			busy++
		case WorkerStatusStopped:
			stopped++
		}
	}

	active := 0
	if states, err := h.pool.store.ListActive(context.Background()); err == nil {
		active = len(states)
	}

	total := len(runnerStatuses)
	healthy := idle > 0 && stopped == 0

	return &HealthStatus{
		TotalRunners:    total,
		IdleRunners:     idle,
		BusyRunners:     busy,
		StoppedRunners:  stopped,
		ActivePipelines: active,
		Healthy:         healthy,
		Timestamp:       time.Now(),
	}
}

// IsHealthy returns true if the runner pool is healthy.
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetStatus().Healthy
}
