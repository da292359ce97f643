package agents

import (
	"fmt"
	"strings"

	"github.com/campaignops/campo/pkg/domain"
)

// rejectSeverity is the severity at or above which a fallback verdict
// rejects a message. Mirrors the remote service's 0-6 severity scale.
const rejectSeverity = 4

// fallbackConfidence is deliberately low: fallback verdicts carry less
// trust than remote ones.
const fallbackConfidence = 0.5

// fallbackCategories is ordered so verdict reasons are deterministic.
var fallbackCategories = []struct {
	name     string
	keywords []string
}{
	{"hate", []string{"hate", "racist", "bigot", "slur"}},
	{"sexual", []string{"explicit", "nsfw", "x-rated"}},
	{"violence", []string{"kill", "murder", "weapon", "assault"}},
	{"self_harm", []string{"suicide", "self-harm", "self harm"}},
}

// fallbackValidate screens message variants with a deterministic
// keyword check. It is the degraded-mode substitute used when the
// remote safety service cannot be reached.
func fallbackValidate(variants []domain.MessageVariant) *domain.ValidationResult {
	result := &domain.ValidationResult{
		Source:       domain.VerdictSourceFallback,
		Verdicts:     make([]domain.ComplianceVerdict, 0, len(variants)),
		Approved:     []domain.MessageVariant{},
		Rejected:     []domain.MessageVariant{},
		TotalChecked: len(variants),
	}

	for _, variant := range variants {
		verdict := screenMessage(variant)
		result.Verdicts = append(result.Verdicts, verdict)

		if verdict.Approved {
			result.Approved = append(result.Approved, variant)
			result.TotalApproved++
		} else {
			result.Rejected = append(result.Rejected, variant)
			result.TotalRejected++
		}
	}

	return result
}

func screenMessage(variant domain.MessageVariant) domain.ComplianceVerdict {
	text := strings.ToLower(variant.Subject + " " + variant.Body)

	var scores domain.CategoryScores
	var flagged []string

	for _, category := range fallbackCategories {
		severity := 0
		for _, keyword := range category.keywords {
			if strings.Contains(text, keyword) {
				severity = rejectSeverity
				break
			}
		}
		if severity > 0 {
			flagged = append(flagged, category.name)
		}

		switch category.name {
		case "hate":
			scores.Hate = severity
		case "sexual":
			scores.Sexual = severity
		case "violence":
			scores.Violence = severity
		case "self_harm":
			scores.SelfHarm = severity
		}
	}

	approved := scores.Max() < rejectSeverity
	reason := "fallback keyword screen: no flagged content"
	if !approved {
		reason = fmt.Sprintf("fallback keyword screen: flagged %s", strings.Join(flagged, ", "))
	}

	return domain.ComplianceVerdict{
		MessageID:  variant.ID,
		Approved:   approved,
		Categories: scores,
		Confidence: fallbackConfidence,
		Reason:     reason,
	}
}
