package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"go.uber.org/zap"
)

// ComplianceClient talks to the compliance validation agent. When the
// remote safety service is unavailable, Validate answers from a local
// deterministic keyword heuristic instead of failing the pipeline. The
// result is tagged with its source so consumers can treat fallback
// verdicts with lower trust.
type ComplianceClient struct {
	baseClient
}

// NewComplianceClient creates a compliance agent client.
func NewComplianceClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ComplianceClient {
	return &ComplianceClient{
		baseClient: newBaseClient("compliance", baseURL, timeout, logger),
	}
}

type analyzeRequest struct {
	CampaignID string           `json:"campaign_id"`
	Messages   []analyzeMessage `json:"messages"`
}

type analyzeMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type analyzeResponse struct {
	Results []analyzeResult `json:"results"`
}

type analyzeResult struct {
	MessageID  string                `json:"message_id"`
	Approved   bool                  `json:"approved"`
	Categories domain.CategoryScores `json:"categories"`
	Confidence float64               `json:"confidence"`
	Reason     string                `json:"reason"`
}

// HealthCheck probes the compliance agent.
func (c *ComplianceClient) HealthCheck(ctx context.Context) bool {
	return c.healthCheck(ctx)
}

// Validate checks a batch of message variants. Unavailability of the
// remote service triggers the local fallback; payload rejections do not.
func (c *ComplianceClient) Validate(ctx context.Context, campaignID string, variants []domain.MessageVariant) (*domain.ValidationResult, error) {
	req := analyzeRequest{
		CampaignID: campaignID,
		Messages:   make([]analyzeMessage, 0, len(variants)),
	}
	for _, v := range variants {
		req.Messages = append(req.Messages, analyzeMessage{ID: v.ID, Text: v.Body})
	}

	var resp analyzeResponse
	if err := c.post(ctx, "/content-safety/analyze", req, &resp); err != nil {
		agentErr, ok := domain.AsAgentError(err)
		if ok && agentErr.Kind == domain.AgentErrorUnavailable {
			c.logger.Warn("compliance service unavailable, using local fallback",
				zap.String("campaign_id", campaignID),
				zap.Int("messages", len(variants)),
				zap.Error(err))
			return fallbackValidate(variants), nil
		}
		return nil, err
	}

	if len(resp.Results) != len(variants) {
		return nil, domain.NewAgentError(c.name, domain.AgentErrorInternal,
			fmt.Sprintf("result count %d does not match %d messages", len(resp.Results), len(variants)), nil)
	}

	result := &domain.ValidationResult{
		Source:       domain.VerdictSourceRemote,
		Verdicts:     make([]domain.ComplianceVerdict, 0, len(variants)),
		Approved:     []domain.MessageVariant{},
		Rejected:     []domain.MessageVariant{},
		TotalChecked: len(variants),
	}

	for i, r := range resp.Results {
		variant := variants[i]
		messageID := r.MessageID
		if messageID == "" {
			messageID = variant.ID
		}

		result.Verdicts = append(result.Verdicts, domain.ComplianceVerdict{
			MessageID:  messageID,
			Approved:   r.Approved,
			Categories: r.Categories,
			Confidence: r.Confidence,
			Reason:     r.Reason,
		})

		if r.Approved {
			result.Approved = append(result.Approved, variant)
			result.TotalApproved++
		} else {
			result.Rejected = append(result.Rejected, variant)
			result.TotalRejected++
		}
	}

	return result, nil
}

// GetCampaignResults retrieves previously computed approve/reject lists
// for a campaign.
func (c *ComplianceClient) GetCampaignResults(ctx context.Context, campaignID string) (*domain.CampaignResults, error) {
	var results domain.CampaignResults
	if err := c.get(ctx, "/campaigns/"+campaignID+"/results", &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// GetStats retrieves aggregate compliance counters.
func (c *ComplianceClient) GetStats(ctx context.Context) (*domain.ComplianceStats, error) {
	var stats domain.ComplianceStats
	if err := c.get(ctx, "/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
