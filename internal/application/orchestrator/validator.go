package orchestrator

import (
	"fmt"
	"strings"

	"github.com/campaignops/campo/pkg/domain"
)

// StartRequest is a request to start one campaign pipeline. Exactly one
// of CustomerID and CustomerIDs must be set.
type StartRequest struct {
	CampaignName string             `json:"campaign_name"`
	TriggerType  domain.TriggerType `json:"trigger_type"`
	TriggerData  map[string]any     `json:"trigger_data,omitempty"`
	CustomerID   string             `json:"customer_id,omitempty"`
	CustomerIDs  []string           `json:"customer_ids,omitempty"`
}

// Validator validates campaign start requests.
type Validator struct{}

// NewValidator creates a new start request validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks a start request. Oversized customer sets are not
// rejected here; they only inform the reach estimate downstream.
func (v *Validator) Validate(req *StartRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", domain.ErrValidation)
	}

	if strings.TrimSpace(req.CampaignName) == "" {
		return fmt.Errorf("%w: campaign name is required", domain.ErrValidation)
	}

	hasSingle := req.CustomerID != ""
	hasSet := len(req.CustomerIDs) > 0

	if hasSingle && hasSet {
		return fmt.Errorf("%w: customer_id and customer_ids are mutually exclusive", domain.ErrValidation)
	}
	if !hasSingle && !hasSet {
		return fmt.Errorf("%w: one of customer_id or customer_ids is required", domain.ErrValidation)
	}

	for _, id := range req.CustomerIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: customer_ids must not contain empty identifiers", domain.ErrValidation)
		}
	}

	if req.TriggerType != "" && !req.TriggerType.Valid() {
		return fmt.Errorf("%w: unknown trigger type %q", domain.ErrValidation, req.TriggerType)
	}

	return nil
}
