package domain

// VerdictSource marks whether a compliance decision came from the
// remote safety service or from the local heuristic fallback.
type VerdictSource string

const (
	VerdictSourceRemote   VerdictSource = "remote"
	VerdictSourceFallback VerdictSource = "fallback"
)

// CategoryScores holds per-category severity scores (0 = none, 6 = max)
// as reported by the content safety service.
type CategoryScores struct {
	Hate     int `json:"hate"`
	Sexual   int `json:"sexual"`
	Violence int `json:"violence"`
	SelfHarm int `json:"self_harm"`
}

// Max returns the highest severity across all categories.
func (c CategoryScores) Max() int {
	max := c.Hate
	for _, v := range []int{c.Sexual, c.Violence, c.SelfHarm} {
		if v > max {
			max = v
		}
	}
	return max
}

// ComplianceVerdict is the per-message-variant compliance decision.
type ComplianceVerdict struct {
	MessageID  string         `json:"message_id"`
	Approved   bool           `json:"approved"`
	Categories CategoryScores `json:"categories"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason,omitempty"`
}

// ValidationResult is the aggregated outcome of checking a batch of
// message variants. Source distinguishes remote verdicts from the
// lower-trust fallback path.
type ValidationResult struct {
	Source        VerdictSource       `json:"source"`
	Verdicts      []ComplianceVerdict `json:"verdicts"`
	Approved      []MessageVariant    `json:"approved_messages"`
	Rejected      []MessageVariant    `json:"rejected_messages"`
	TotalChecked  int                 `json:"total_checked"`
	TotalApproved int                 `json:"total_approved"`
	TotalRejected int                 `json:"total_rejected"`
}

// CampaignResults holds previously computed compliance results for a
// campaign, as served by the compliance agent.
type CampaignResults struct {
	CampaignID    string              `json:"campaign_id"`
	Approved      []ComplianceVerdict `json:"approved_messages"`
	Rejected      []ComplianceVerdict `json:"rejected_messages"`
	TotalApproved int                 `json:"total_approved"`
	TotalRejected int                 `json:"total_rejected"`
}

// ComplianceStats holds aggregate counters from the compliance agent.
type ComplianceStats struct {
	TotalAnalyzed int `json:"total_analyzed"`
	TotalApproved int `json:"total_approved"`
	TotalRejected int `json:"total_rejected"`
}
