package agents

import (
	"context"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"go.uber.org/zap"
)

// SegmentationClient talks to the customer segmentation agent.
type SegmentationClient struct {
	baseClient
}

// NewSegmentationClient creates a segmentation agent client.
func NewSegmentationClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SegmentationClient {
	return &SegmentationClient{
		baseClient: newBaseClient("segmentation", baseURL, timeout, logger),
	}
}

type segmentQueryRequest struct {
	Criteria map[string]any `json:"criteria"`
}

type segmentQueryResponse struct {
	Customers []domain.Customer `json:"customers"`
}

// HealthCheck probes the segmentation agent.
func (c *SegmentationClient) HealthCheck(ctx context.Context) bool {
	return c.healthCheck(ctx)
}

// QuerySegments resolves the customers a campaign targets. An empty
// result is a valid outcome, not an error.
func (c *SegmentationClient) QuerySegments(ctx context.Context, query ports.SegmentQuery) ([]domain.Customer, error) {
	criteria := map[string]any{
		"campaign_name": query.CampaignName,
		"customer_ids":  query.CustomerIDs,
	}
	for k, v := range query.Criteria {
		criteria[k] = v
	}

	var resp segmentQueryResponse
	if err := c.post(ctx, "/segments/query", segmentQueryRequest{Criteria: criteria}, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("segments resolved",
		zap.String("campaign", query.CampaignName),
		zap.Int("customers", len(resp.Customers)))

	return resp.Customers, nil
}
