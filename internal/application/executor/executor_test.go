package executor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campaignops/campo/internal/application/executor"
	memoryevents "github.com/campaignops/campo/pkg/adapters/events/memory"
	"github.com/campaignops/campo/pkg/adapters/metrics/noop"
	memorystore "github.com/campaignops/campo/pkg/adapters/statestore/memory"
	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSegmentation struct {
	customers []domain.Customer
	errs      []error
	calls     int
	onCall    func()
}

func (f *fakeSegmentation) HealthCheck(ctx context.Context) bool { return true }

func (f *fakeSegmentation) QuerySegments(ctx context.Context, query ports.SegmentQuery) ([]domain.Customer, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.customers, nil
}

type fakeContent struct {
	templates []domain.Template
	err       error
	calls     int
}

func (f *fakeContent) HealthCheck(ctx context.Context) bool { return true }

func (f *fakeContent) SearchTemplates(ctx context.Context, search ports.TemplateSearch) ([]domain.Template, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.templates, nil
}

type fakeGeneration struct {
	err      error
	calls    int
	pairings map[string]string // customer id -> template id
	empty    bool
}

func (f *fakeGeneration) HealthCheck(ctx context.Context) bool { return true }

func (f *fakeGeneration) Generate(ctx context.Context, req ports.GenerationRequest) ([]domain.MessageVariant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	if f.pairings == nil {
		f.pairings = make(map[string]string)
	}
	f.pairings[req.Customer.ID] = req.Template.ID
	return []domain.MessageVariant{{
		ID:         "variant-" + req.Customer.ID,
		CustomerID: req.Customer.ID,
		TemplateID: req.Template.ID,
		Subject:    "Hello " + req.Customer.Name,
		Body:       req.Template.Body,
	}}, nil
}

type fakeCompliance struct {
	source  domain.VerdictSource
	approve func(domain.MessageVariant) bool
	err     error
	calls   int
}

func (f *fakeCompliance) HealthCheck(ctx context.Context) bool { return true }

func (f *fakeCompliance) Validate(ctx context.Context, campaignID string, variants []domain.MessageVariant) (*domain.ValidationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	source := f.source
	if source == "" {
		source = domain.VerdictSourceRemote
	}

	result := &domain.ValidationResult{
		Source:       source,
		Approved:     []domain.MessageVariant{},
		Rejected:     []domain.MessageVariant{},
		TotalChecked: len(variants),
	}
	for _, v := range variants {
		approved := f.approve == nil || f.approve(v)
		result.Verdicts = append(result.Verdicts, domain.ComplianceVerdict{
			MessageID: v.ID,
			Approved:  approved,
		})
		if approved {
			result.Approved = append(result.Approved, v)
			result.TotalApproved++
		} else {
			result.Rejected = append(result.Rejected, v)
			result.TotalRejected++
		}
	}
	return result, nil
}

func (f *fakeCompliance) GetCampaignResults(ctx context.Context, campaignID string) (*domain.CampaignResults, error) {
	return &domain.CampaignResults{CampaignID: campaignID}, nil
}

func (f *fakeCompliance) GetStats(ctx context.Context) (*domain.ComplianceStats, error) {
	return &domain.ComplianceStats{}, nil
}

func customers(n int) []domain.Customer {
	out := make([]domain.Customer, n)
	for i := range out {
		out[i] = domain.Customer{
			ID:   fmt.Sprintf("cust-%d", i),
			Name: fmt.Sprintf("Customer %d", i),
		}
	}
	return out
}

func customerIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("cust-%d", i)
	}
	return out
}

func newTestExecutor(store ports.StateStore, seg *fakeSegmentation, content *fakeContent, gen *fakeGeneration, comp *fakeCompliance) *executor.Executor {
	return executor.New(
		store,
		memoryevents.NewInMemoryEventBus(),
		noop.NewCollector(),
		seg,
		content,
		gen,
		comp,
		zap.NewNop(),
		executor.Config{
			MaxRetries: 2,
			RetryDelay: time.Millisecond,
		},
	)
}

func createPipeline(t *testing.T, store ports.StateStore, ids []string) string {
	t.Helper()

	pipelineID, err := store.Create(context.Background(), &domain.PipelineState{
		CampaignName:  "spring-sale",
		TriggerType:   domain.TriggerManual,
		CustomerIDs:   ids,
		CurrentStage:  domain.StageSegmentation,
		OverallStatus: domain.StatusPending,
		StageResults:  []domain.StageResult{},
	})
	require.NoError(t, err)
	return pipelineID
}

func TestExecuteHappyPath(t *testing.T) {
	store := memorystore.NewStore()
	seg := &fakeSegmentation{customers: customers(3)}
	content := &fakeContent{templates: []domain.Template{
		{ID: "tmpl-0", Title: "Spring", Body: "Spring is here"},
		{ID: "tmpl-1", Title: "Sale", Body: "Everything must go"},
	}}
	gen := &fakeGeneration{}
	comp := &fakeCompliance{approve: func(v domain.MessageVariant) bool {
		return v.CustomerID != "cust-2"
	}}

	exec := newTestExecutor(store, seg, content, gen, comp)
	pipelineID := createPipeline(t, store, customerIDs(3))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, final.OverallStatus)
	assert.Equal(t, domain.StageCompleted, final.CurrentStage)
	require.NotNil(t, final.CompletedAt)

	require.Len(t, final.StageResults, 4)
	for i, stage := range domain.ExecutionStages() {
		assert.Equal(t, stage, final.StageResults[i].Stage)
		assert.Equal(t, domain.StageStatusDone, final.StageResults[i].Status)
	}

	// One generation call per segmented customer, rotating templates.
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, "tmpl-0", gen.pairings["cust-0"])
	assert.Equal(t, "tmpl-1", gen.pairings["cust-1"])
	assert.Equal(t, "tmpl-0", gen.pairings["cust-2"])

	require.NotNil(t, final.Summary)
	assert.Equal(t, 3, final.Summary.CustomersProcessed)
	assert.Equal(t, 3, final.Summary.MessagesGenerated)
	assert.Equal(t, 3, final.Summary.TotalChecked)
	assert.Equal(t, 2, final.Summary.TotalApproved)
	assert.Equal(t, 1, final.Summary.TotalRejected)
	assert.Equal(t, 2, final.Summary.EstimatedReach)
	assert.Equal(t, domain.VerdictSourceRemote, final.Summary.ComplianceSource)
}

func TestExecuteRetriesUnavailable(t *testing.T) {
	store := memorystore.NewStore()
	unavailable := domain.NewAgentError("segmentation", domain.AgentErrorUnavailable, "connection refused", nil)
	seg := &fakeSegmentation{
		customers: customers(1),
		errs:      []error{unavailable, unavailable},
	}
	content := &fakeContent{templates: []domain.Template{{ID: "tmpl-0", Body: "Hi"}}}
	gen := &fakeGeneration{}
	comp := &fakeCompliance{}

	exec := newTestExecutor(store, seg, content, gen, comp)
	pipelineID := createPipeline(t, store, customerIDs(1))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, final.OverallStatus)
	assert.Equal(t, 3, seg.calls)
	require.NotEmpty(t, final.StageResults)
	assert.Equal(t, 3, final.StageResults[0].Attempts)
}

func TestExecuteFailsAfterRetryBudget(t *testing.T) {
	store := memorystore.NewStore()
	unavailable := domain.NewAgentError("segmentation", domain.AgentErrorUnavailable, "connection refused", nil)
	seg := &fakeSegmentation{
		errs: []error{unavailable, unavailable, unavailable},
	}

	exec := newTestExecutor(store, seg, &fakeContent{}, &fakeGeneration{}, &fakeCompliance{})
	pipelineID := createPipeline(t, store, customerIDs(1))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, final.OverallStatus)
	assert.Equal(t, 3, seg.calls)
	assert.Contains(t, final.Error, "stage segmentation failed")
	require.NotNil(t, final.CompletedAt)

	// The failed stage is the only recorded result.
	require.Len(t, final.StageResults, 1)
	assert.Equal(t, domain.StageSegmentation, final.StageResults[0].Stage)
	assert.Equal(t, domain.StageStatusError, final.StageResults[0].Status)
	assert.Equal(t, 3, final.StageResults[0].Attempts)
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	store := memorystore.NewStore()
	seg := &fakeSegmentation{customers: customers(1)}
	content := &fakeContent{
		err: domain.NewAgentError("content", domain.AgentErrorInvalidInput, "bad query", nil),
	}

	exec := newTestExecutor(store, seg, content, &fakeGeneration{}, &fakeCompliance{})
	pipelineID := createPipeline(t, store, customerIDs(1))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, final.OverallStatus)
	assert.Equal(t, 1, content.calls)

	require.Len(t, final.StageResults, 2)
	assert.Equal(t, domain.StageStatusDone, final.StageResults[0].Status)
	assert.Equal(t, domain.StageContentRetrieval, final.StageResults[1].Stage)
	assert.Equal(t, domain.StageStatusError, final.StageResults[1].Status)
	assert.Equal(t, 1, final.StageResults[1].Attempts)
}

func TestExecuteEmptySegmentShortCircuits(t *testing.T) {
	store := memorystore.NewStore()
	seg := &fakeSegmentation{customers: []domain.Customer{}}
	content := &fakeContent{}
	gen := &fakeGeneration{}
	comp := &fakeCompliance{}

	exec := newTestExecutor(store, seg, content, gen, comp)
	pipelineID := createPipeline(t, store, customerIDs(2))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, final.OverallStatus)
	assert.Zero(t, content.calls)
	assert.Zero(t, gen.calls)
	assert.Zero(t, comp.calls)

	require.Len(t, final.StageResults, 4)
	assert.Equal(t, domain.StageStatusDone, final.StageResults[0].Status)
	for _, result := range final.StageResults[1:] {
		assert.Equal(t, domain.StageStatusSkipped, result.Status)
	}

	require.NotNil(t, final.Summary)
	assert.Zero(t, final.Summary.CustomersProcessed)
	assert.Zero(t, final.Summary.EstimatedReach)
}

func TestExecuteEmptyVariantsShortCircuits(t *testing.T) {
	store := memorystore.NewStore()
	seg := &fakeSegmentation{customers: customers(2)}
	content := &fakeContent{templates: []domain.Template{{ID: "tmpl-0", Body: "Hi"}}}
	gen := &fakeGeneration{empty: true}
	comp := &fakeCompliance{}

	exec := newTestExecutor(store, seg, content, gen, comp)
	pipelineID := createPipeline(t, store, customerIDs(2))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, final.OverallStatus)
	assert.Zero(t, comp.calls)

	require.Len(t, final.StageResults, 4)
	assert.Equal(t, domain.StageCompliance, final.StageResults[3].Stage)
	assert.Equal(t, domain.StageStatusSkipped, final.StageResults[3].Status)

	require.NotNil(t, final.Summary)
	assert.Equal(t, 2, final.Summary.CustomersProcessed)
	assert.Zero(t, final.Summary.MessagesGenerated)
}

func TestExecuteCancelBetweenStages(t *testing.T) {
	store := memorystore.NewStore()
	pipelineID := createPipeline(t, store, customerIDs(1))

	seg := &fakeSegmentation{customers: customers(1)}
	seg.onCall = func() {
		// Simulates an operator cancelling while segmentation is in
		// flight; the flag is honored at the next stage boundary.
		accepted, err := store.RequestCancel(context.Background(), pipelineID)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	exec := newTestExecutor(store, seg, &fakeContent{}, &fakeGeneration{}, &fakeCompliance{})

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, final.OverallStatus)
	require.NotNil(t, final.CompletedAt)

	// Segmentation finished before the flag was observed, so exactly
	// one stage result is recorded.
	require.Len(t, final.StageResults, 1)
	assert.Equal(t, domain.StageSegmentation, final.StageResults[0].Stage)
	assert.Equal(t, domain.StageStatusDone, final.StageResults[0].Status)
}

func TestExecuteCancelBeforeFirstStage(t *testing.T) {
	store := memorystore.NewStore()
	pipelineID := createPipeline(t, store, customerIDs(1))

	accepted, err := store.RequestCancel(context.Background(), pipelineID)
	require.NoError(t, err)
	require.True(t, accepted)

	seg := &fakeSegmentation{customers: customers(1)}
	exec := newTestExecutor(store, seg, &fakeContent{}, &fakeGeneration{}, &fakeCompliance{})

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCancelled, final.OverallStatus)
	assert.Zero(t, seg.calls)
	assert.Empty(t, final.StageResults)
}

func TestExecuteFallbackSourceRecorded(t *testing.T) {
	store := memorystore.NewStore()
	seg := &fakeSegmentation{customers: customers(1)}
	content := &fakeContent{templates: []domain.Template{{ID: "tmpl-0", Body: "Hi"}}}
	gen := &fakeGeneration{}
	comp := &fakeCompliance{source: domain.VerdictSourceFallback}

	exec := newTestExecutor(store, seg, content, gen, comp)
	pipelineID := createPipeline(t, store, customerIDs(1))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, final.OverallStatus)
	require.NotNil(t, final.Summary)
	assert.Equal(t, domain.VerdictSourceFallback, final.Summary.ComplianceSource)
}

func TestExecuteConcurrentPipelinesAreIsolated(t *testing.T) {
	store := memorystore.NewStore()

	const pipelines = 10
	ids := make([]string, pipelines)
	for i := range ids {
		ids[i] = createPipeline(t, store, customerIDs(2))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(pipelineID string) {
			defer wg.Done()

			// Fakes hold per-call state, so each pipeline gets its own.
			exec := newTestExecutor(store,
				&fakeSegmentation{customers: customers(2)},
				&fakeContent{templates: []domain.Template{{ID: "tmpl-0", Body: "Hi"}}},
				&fakeGeneration{},
				&fakeCompliance{})

			_, err := exec.Execute(context.Background(), pipelineID)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		state, err := store.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, state.PipelineID)
		assert.Equal(t, domain.StatusCompleted, state.OverallStatus)
		assert.Len(t, state.StageResults, 4)
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	store := memorystore.NewStore()
	seg := &fakeSegmentation{customers: customers(1)}
	content := &fakeContent{templates: []domain.Template{{ID: "tmpl-0", Body: "Hi"}}}

	exec := newTestExecutor(store, seg, content, &fakeGeneration{}, &fakeCompliance{})
	pipelineID := createPipeline(t, store, customerIDs(1))

	_, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	first, err := store.Get(context.Background(), pipelineID)
	require.NoError(t, err)
	second, err := store.Get(context.Background(), pipelineID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecuteReachExtrapolatedForLargeSegments(t *testing.T) {
	store := memorystore.NewStore()

	// 1500 requested, 100 processed, half approved.
	seg := &fakeSegmentation{customers: customers(100)}
	content := &fakeContent{templates: []domain.Template{{ID: "tmpl-0", Body: "Hi"}}}
	gen := &fakeGeneration{}
	approved := 0
	comp := &fakeCompliance{approve: func(v domain.MessageVariant) bool {
		approved++
		return approved%2 == 0
	}}

	exec := newTestExecutor(store, seg, content, gen, comp)
	pipelineID := createPipeline(t, store, customerIDs(1500))

	final, err := exec.Execute(context.Background(), pipelineID)
	require.NoError(t, err)

	require.NotNil(t, final.Summary)
	assert.Equal(t, 100, final.Summary.CustomersProcessed)
	assert.Equal(t, 50, final.Summary.TotalApproved)
	assert.Equal(t, 750, final.Summary.EstimatedReach)
}
