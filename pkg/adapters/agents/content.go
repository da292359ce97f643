package agents

import (
	"context"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"go.uber.org/zap"
)

// ContentClient talks to the content retrieval agent.
type ContentClient struct {
	baseClient
}

// NewContentClient creates a content agent client.
func NewContentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ContentClient {
	return &ContentClient{
		baseClient: newBaseClient("content", baseURL, timeout, logger),
	}
}

type templateSearchRequest struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	Category string `json:"category,omitempty"`
}

type templateSearchResponse struct {
	Results []domain.Template `json:"results"`
}

// HealthCheck probes the content agent.
func (c *ContentClient) HealthCheck(ctx context.Context) bool {
	return c.healthCheck(ctx)
}

// SearchTemplates retrieves candidate templates for a campaign.
func (c *ContentClient) SearchTemplates(ctx context.Context, search ports.TemplateSearch) ([]domain.Template, error) {
	req := templateSearchRequest{
		Query:    search.Query,
		Limit:    search.Limit,
		Category: search.Category,
	}

	var resp templateSearchResponse
	if err := c.post(ctx, "/templates/search", req, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("templates retrieved",
		zap.String("query", search.Query),
		zap.Int("results", len(resp.Results)))

	return resp.Results, nil
}
