package matching

import (
	"math"

	"github.com/Ramsey-B/clover/pkg/models"
)

// amountEpsilon is the absolute difference under which two amounts are
// considered equal for exact matching, bonuses and discrepancy detection.
const amountEpsilon = 0.01

// ConfidenceRule is a pure transform over a confidence value in [0, 100].
type ConfidenceRule struct {
	Name  string
	Apply func(confidence float64, source, target *models.NormalizedRecord, discrepancies []models.Discrepancy) float64
}

// confidenceRules are applied in order; each result is clamped to [0, 100]
// before the next rule runs.
var confidenceRules = []ConfidenceRule{
	{
		Name: "amount_exact_bonus",
		Apply: func(confidence float64, source, target *models.NormalizedRecord, _ []models.Discrepancy) float64 {
			if source.AmountValid && target.AmountValid && math.Abs(source.Amount-target.Amount) < amountEpsilon {
				return confidence + 5
			}
			return confidence
		},
	},
	{
		Name: "date_exact_bonus",
		Apply: func(confidence float64, source, target *models.NormalizedRecord, _ []models.Discrepancy) float64 {
			if source.DateValid && target.DateValid && source.NormalizedDate == target.NormalizedDate {
				return confidence + 3
			}
			return confidence
		},
	},
	{
		Name: "reference_match_bonus",
		Apply: func(confidence float64, source, target *models.NormalizedRecord, _ []models.Discrepancy) float64 {
			if source.HasReference() && target.HasReference() && *source.Reference == *target.Reference {
				return confidence + 10
			}
			return confidence
		},
	},
	{
		Name: "critical_discrepancy_penalty",
		Apply: func(confidence float64, _, _ *models.NormalizedRecord, discrepancies []models.Discrepancy) float64 {
			for _, d := range discrepancies {
				if d.Severity == models.DiscrepancySeverityCritical {
					return confidence - 15
				}
			}
			return confidence
		},
	},
}

// AdjustConfidence folds the ordered rule set over a raw confidence value.
func AdjustConfidence(confidence float64, source, target *models.NormalizedRecord, discrepancies []models.Discrepancy) float64 {
	adjusted := clampConfidence(confidence)
	for _, rule := range confidenceRules {
		adjusted = clampConfidence(rule.Apply(adjusted, source, target, discrepancies))
	}
	return adjusted
}

func clampConfidence(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// ActionForConfidence derives the recommended action from the final
// confidence value.
func ActionForConfidence(confidence float64) models.MatchAction {
	switch {
	case confidence >= 90:
		return models.MatchActionAccept
	case confidence >= 70:
		return models.MatchActionReview
	default:
		return models.MatchActionReject
	}
}

// DeriveDiscrepancies flags fields that diverge beyond the significance
// threshold on a committed match. Amount differences above 10% of the source
// amount are critical, anything above the epsilon is minor.
func DeriveDiscrepancies(source, target *models.NormalizedRecord) []models.Discrepancy {
	var discrepancies []models.Discrepancy

	if source.AmountValid && target.AmountValid {
		diff := math.Abs(source.Amount - target.Amount)
		if diff > amountEpsilon {
			severity := models.DiscrepancySeverityMinor
			if diff > 0.1*math.Abs(source.Amount) {
				severity = models.DiscrepancySeverityCritical
			}
			discrepancies = append(discrepancies, models.Discrepancy{
				Field:       "amount",
				SourceValue: source.Amount,
				TargetValue: target.Amount,
				Difference:  diff,
				Severity:    severity,
			})
		}
	}

	return discrepancies
}
