package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/campaignops/campo/internal/application/orchestrator"
	"github.com/campaignops/campo/pkg/adapters/metrics/noop"
	memorystore "github.com/campaignops/campo/pkg/adapters/statestore/memory"
	"github.com/campaignops/campo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubmitter struct {
	submitted []string
}

func (f *fakeSubmitter) Submit(pipelineID string) error {
	f.submitted = append(f.submitted, pipelineID)
	return nil
}

type fakeComplianceClient struct {
	results *domain.CampaignResults
	stats   *domain.ComplianceStats
	err     error
}

func (f *fakeComplianceClient) HealthCheck(ctx context.Context) bool { return true }

func (f *fakeComplianceClient) Validate(ctx context.Context, campaignID string, variants []domain.MessageVariant) (*domain.ValidationResult, error) {
	return nil, nil
}

func (f *fakeComplianceClient) GetCampaignResults(ctx context.Context, campaignID string) (*domain.CampaignResults, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeComplianceClient) GetStats(ctx context.Context) (*domain.ComplianceStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

type testServer struct {
	server *Server
	store  *memorystore.Store
}

func newTestServer(t *testing.T, compliance *fakeComplianceClient) *testServer {
	t.Helper()

	store := memorystore.NewStore()
	mgr := orchestrator.NewManager(
		orchestrator.NewValidator(),
		store,
		noop.NewCollector(),
		&fakeSubmitter{},
		zap.NewNop(),
	)

	server := NewServer(&Config{
		Port:         0,
		Orchestrator: mgr,
		Compliance:   compliance,
		Logger:       zap.NewNop(),
	})

	return &testServer{server: server, store: store}
}

func (ts *testServer) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	ts.server.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) startPipeline(t *testing.T) string {
	t.Helper()

	w := ts.request(t, nethttp.MethodPost, "/api/v1/pipelines", orchestrator.StartRequest{
		CampaignName: "spring-sale",
		CustomerIDs:  []string{"cust-1", "cust-2"},
	})
	require.Equal(t, nethttp.StatusAccepted, w.Code)

	var resp orchestrator.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.PipelineID)
	return resp.PipelineID
}

func TestStartPipelineAccepted(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})

	w := ts.request(t, nethttp.MethodPost, "/api/v1/pipelines", orchestrator.StartRequest{
		CampaignName: "spring-sale",
		CustomerID:   "cust-1",
	})

	assert.Equal(t, nethttp.StatusAccepted, w.Code)

	var resp orchestrator.StartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.PipelineID)
	assert.Equal(t, domain.StatusPending, resp.Status)
}

func TestStartPipelineValidationFailure(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})

	w := ts.request(t, nethttp.MethodPost, "/api/v1/pipelines", orchestrator.StartRequest{
		CampaignName: "spring-sale",
	})

	assert.Equal(t, nethttp.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
}

func TestStartPipelineMalformedBody(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})

	req := httptest.NewRequest(nethttp.MethodPost, "/api/v1/pipelines", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	ts.server.router.ServeHTTP(w, req)

	assert.Equal(t, nethttp.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestGetPipeline(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})
	pipelineID := ts.startPipeline(t)

	w := ts.request(t, nethttp.MethodGet, "/api/v1/pipelines/"+pipelineID, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	var state domain.PipelineState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, pipelineID, state.PipelineID)
	assert.Equal(t, "spring-sale", state.CampaignName)
	assert.Equal(t, domain.StatusPending, state.OverallStatus)
}

func TestGetPipelineNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})

	w := ts.request(t, nethttp.MethodGet, "/api/v1/pipelines/no-such-pipeline", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetStatusCompactView(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})
	pipelineID := ts.startPipeline(t)

	w := ts.request(t, nethttp.MethodGet, "/api/v1/pipelines/"+pipelineID+"/status", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, pipelineID, resp["pipeline_id"])
	assert.Equal(t, string(domain.StatusPending), resp["overall_status"])
	assert.Equal(t, string(domain.StageSegmentation), resp["current_stage"])
}

func TestListPipelines(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})
	ts.startPipeline(t)
	ts.startPipeline(t)

	w := ts.request(t, nethttp.MethodGet, "/api/v1/pipelines", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	var resp struct {
		Pipelines []domain.PipelineState `json:"pipelines"`
		Total     int                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Pipelines, 2)
}

func TestCancelPipeline(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})
	pipelineID := ts.startPipeline(t)

	w := ts.request(t, nethttp.MethodPost, "/api/v1/pipelines/"+pipelineID+"/cancel", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["accepted"])
}

func TestCancelPipelineAlreadyTerminal(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})
	pipelineID := ts.startPipeline(t)

	require.NoError(t, ts.store.Update(context.Background(), pipelineID, func(s *domain.PipelineState) error {
		s.OverallStatus = domain.StatusCompleted
		return nil
	}))

	w := ts.request(t, nethttp.MethodPost, "/api/v1/pipelines/"+pipelineID+"/cancel", nil)
	assert.Equal(t, nethttp.StatusConflict, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["accepted"])
}

func TestCancelPipelineNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})

	w := ts.request(t, nethttp.MethodPost, "/api/v1/pipelines/no-such-pipeline/cancel", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestComplianceResults(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{
		results: &domain.CampaignResults{
			CampaignID:    "pipe-1",
			TotalApproved: 3,
			TotalRejected: 1,
		},
	})

	w := ts.request(t, nethttp.MethodGet, "/api/v1/compliance/campaigns/pipe-1/results", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	var results domain.CampaignResults
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Equal(t, 3, results.TotalApproved)
}

func TestComplianceResultsUnavailable(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{
		err: domain.NewAgentError("compliance", domain.AgentErrorUnavailable, "connection refused", nil),
	})

	w := ts.request(t, nethttp.MethodGet, "/api/v1/compliance/campaigns/pipe-1/results", nil)
	assert.Equal(t, nethttp.StatusBadGateway, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "COMPLIANCE_UNAVAILABLE", resp.Error.Code)
}

func TestComplianceStats(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{
		stats: &domain.ComplianceStats{TotalAnalyzed: 10, TotalApproved: 9, TotalRejected: 1},
	})

	w := ts.request(t, nethttp.MethodGet, "/api/v1/compliance/stats", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	var stats domain.ComplianceStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 10, stats.TotalAnalyzed)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeComplianceClient{})

	w := ts.request(t, nethttp.MethodGet, "/health", nil)
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
