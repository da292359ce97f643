package agents

import (
	"context"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/campaignops/campo/pkg/ports"
	"go.uber.org/zap"
)

// GenerationClient talks to the message generation agent.
type GenerationClient struct {
	baseClient
}

// NewGenerationClient creates a generation agent client.
func NewGenerationClient(baseURL string, timeout time.Duration, logger *zap.Logger) *GenerationClient {
	return &GenerationClient{
		baseClient: newBaseClient("generation", baseURL, timeout, logger),
	}
}

type generateRequest struct {
	Customer domain.Customer `json:"customer"`
	Template domain.Template `json:"template"`
}

type generateResponse struct {
	Variants []domain.MessageVariant `json:"variants"`
}

// HealthCheck probes the generation agent.
func (c *GenerationClient) HealthCheck(ctx context.Context) bool {
	return c.healthCheck(ctx)
}

// Generate produces message variants for one customer and template.
func (c *GenerationClient) Generate(ctx context.Context, req ports.GenerationRequest) ([]domain.MessageVariant, error) {
	var resp generateResponse
	if err := c.post(ctx, "/generate", generateRequest(req), &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("variants generated",
		zap.String("customer_id", req.Customer.ID),
		zap.Int("variants", len(resp.Variants)))

	return resp.Variants, nil
}
