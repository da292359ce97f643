package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"go.uber.org/zap"
)

// queueCapacity bounds how many submitted pipelines may wait for a
// free runner before Submit starts rejecting.
const queueCapacity = 100

// Runner drives one pipeline to a terminal status.
type Runner interface {
	Execute(ctx context.Context, pipelineID string) (*domain.PipelineState, error)
}

// Pool manages a fixed set of pipeline runner goroutines.
type Pool struct {
	size            int
	runner          Runner
	store           ports.StateStore
	metrics         ports.MetricsCollector
	logger          *zap.Logger
	health          *HealthMonitor
	pipelineTimeout time.Duration

	jobs    chan string
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single runner goroutine.
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents runner status.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new runner pool.
func NewPool(
	size int,
	runner Runner,
	store ports.StateStore,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
	pipelineTimeout time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:            size,
		runner:          runner,
		store:           store,
		metrics:         metrics,
		logger:          logger,
		pipelineTimeout: pipelineTimeout,
		jobs:            make(chan string, queueCapacity),
		workers:         make([]*worker, size),
		ctx:             ctx,
		cancel:          cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the runner pool.
func (p *Pool) Start() error {
	p.logger.Info("starting runner pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("runner-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("runner pool started", zap.Int("runners", p.size))
	return nil
}

// Submit queues a pipeline for execution. It never blocks: when the
// queue is full or the pool is shutting down an error is returned and
// the caller decides what to do with the pipeline state.
func (p *Pool) Submit(pipelineID string) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("runner pool is shut down")
	case p.jobs <- pipelineID:
		return nil
	default:
		return fmt.Errorf("runner queue is full")
	}
}

// Shutdown gracefully shuts down the runner pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down runner pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("runner pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all runners.
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main runner loop.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("runner started", zap.String("runner_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = WorkerStatusStopped
			w.mu.Unlock()
			w.pool.logger.Info("runner stopped", zap.String("runner_id", w.id))
			return

		case pipelineID := <-w.pool.jobs:
			w.execute(ctx, pipelineID)
		}
	}
}

// execute drives one pipeline, bounded by the pipeline timeout.
func (w *worker) execute(ctx context.Context, pipelineID string) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.mu.Unlock()
	}()

	w.pool.logger.Info("executing pipeline",
		zap.String("runner_id", w.id),
		zap.String("pipeline_id", pipelineID))

	runCtx, cancel := context.WithTimeout(ctx, w.pool.pipelineTimeout)
	defer cancel()

	startTime := time.Now()

	state, err := w.pool.runner.Execute(runCtx, pipelineID)
	if err != nil {
		w.pool.logger.Error("pipeline execution error",
			zap.String("runner_id", w.id),
			zap.String("pipeline_id", pipelineID),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("pipeline execution finished",
		zap.String("runner_id", w.id),
		zap.String("pipeline_id", pipelineID),
		zap.String("status", string(state.OverallStatus)),
		zap.Duration("duration", time.Since(startTime)))
}
