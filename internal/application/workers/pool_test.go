package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campaignops/campo/pkg/adapters/metrics/noop"
	memorystore "github.com/campaignops/campo/pkg/adapters/statestore/memory"
	"github.com/campaignops/campo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	mu       sync.Mutex
	executed []string
	block    chan struct{}
	done     chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{done: make(chan string, 100)}
}

func (f *fakeRunner) Execute(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.executed = append(f.executed, pipelineID)
	f.mu.Unlock()

	f.done <- pipelineID
	return &domain.PipelineState{
		PipelineID:    pipelineID,
		OverallStatus: domain.StatusCompleted,
	}, nil
}

func (f *fakeRunner) executedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executed...)
}

func newTestPool(size int, runner Runner) *Pool {
	return NewPool(
		size,
		runner,
		memorystore.NewStore(),
		noop.NewCollector(),
		zap.NewNop(),
		time.Minute,
		time.Minute,
	)
}

func TestPoolExecutesSubmittedPipelines(t *testing.T) {
	runner := newFakeRunner()
	pool := newTestPool(3, runner)

	require.NoError(t, pool.Start())
	defer pool.Shutdown(context.Background())

	ids := []string{"pipe-1", "pipe-2", "pipe-3"}
	for _, id := range ids {
		require.NoError(t, pool.Submit(id))
	}

	for range ids {
		select {
		case <-runner.done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for pipeline execution")
		}
	}

	assert.ElementsMatch(t, ids, runner.executedIDs())
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool := newTestPool(1, newFakeRunner())
	require.NoError(t, pool.Start())
	require.NoError(t, pool.Shutdown(context.Background()))

	err := pool.Submit("pipe-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shut down")
}

func TestPoolShutdownWaitsForRunners(t *testing.T) {
	runner := newFakeRunner()
	pool := newTestPool(2, runner)
	require.NoError(t, pool.Start())

	require.NoError(t, pool.Submit("pipe-1"))

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pipeline execution")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, pool.Shutdown(ctx))

	for _, status := range pool.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, status)
	}
}

func TestHealthStatus(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})

	pool := newTestPool(2, runner)
	require.NoError(t, pool.Start())
	defer func() {
		close(runner.block)
		pool.Shutdown(context.Background())
	}()

	require.NoError(t, pool.Submit("pipe-1"))

	// Wait for a runner to pick the job up and block.
	require.Eventually(t, func() bool {
		return pool.health.GetStatus().BusyRunners == 1
	}, 5*time.Second, 10*time.Millisecond)

	status := pool.health.GetStatus()
	assert.Equal(t, 2, status.TotalRunners)
	assert.Equal(t, 1, status.IdleRunners)
	assert.Equal(t, 1, status.BusyRunners)
	assert.True(t, status.Healthy)
	assert.True(t, pool.health.IsHealthy())
}
