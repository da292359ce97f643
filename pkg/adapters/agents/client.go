package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"go.uber.org/zap"
)

// baseClient carries the shared HTTP plumbing of all agent clients.
type baseClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

func newBaseClient(name, baseURL string, timeout time.Duration, logger *zap.Logger) baseClient {
	return baseClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// SetHTTPClient replaces the underlying HTTP client. Used in tests.
func (c *baseClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// post sends a JSON request and decodes a JSON response into out.
func (c *baseClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.NewAgentError(c.name, domain.AgentErrorInternal, "failed to marshal request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.NewAgentError(c.name, domain.AgentErrorInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// get sends a GET request and decodes a JSON response into out.
func (c *baseClient) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.NewAgentError(c.name, domain.AgentErrorInternal, "failed to build request", err)
	}

	return c.do(req, out)
}

func (c *baseClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts are handled identically to connection failures.
		return domain.NewAgentError(c.name, domain.AgentErrorUnavailable, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewAgentError(c.name, domain.AgentErrorUnavailable, "failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		kind := classifyStatus(resp.StatusCode)
		msg := fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200))
		return domain.NewAgentError(c.name, kind, msg, nil)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewAgentError(c.name, domain.AgentErrorInternal, "failed to decode response", err)
	}

	return nil
}

// healthCheck probes GET /health. It reports false on any failure and
// never returns an error.
func (c *baseClient) healthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("health check failed",
			zap.String("agent", c.name),
			zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// classifyStatus maps an HTTP status to an error kind. Server-side and
// throttling statuses are retryable; other 4xx mean the payload was
// rejected and retrying is pointless.
func classifyStatus(status int) domain.AgentErrorKind {
	if status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return domain.AgentErrorUnavailable
	}
	return domain.AgentErrorInvalidInput
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
