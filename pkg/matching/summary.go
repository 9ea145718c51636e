package matching

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// BuildSummary aggregates tier counts, the match rate and the derived
// overall-confidence figure for a completed run.
//
// The overall confidence is a tuned heuristic, not a statistically rigorous
// confidence interval. Under typical clean-data conditions it lands near 92.7;
// downstream consumers should treat it as a relative signal only. The shape
// of the formula is kept stable for compatibility.
func BuildSummary(result *PipelineResult, quality models.DataQualityMetrics, totalRecords int, elapsed time.Duration) models.ReconciliationSummary {
	summary := models.ReconciliationSummary{
		TotalRecords:     totalRecords,
		ProcessingTimeMs: elapsed.Milliseconds(),
		DataQuality:      quality,
	}

	for _, m := range result.Matches {
		switch m.Tier {
		case models.MatchTierExact:
			summary.ExactMatches++
		case models.MatchTierStrong:
			summary.StrongMatches++
		case models.MatchTierModerate:
			summary.ModerateMatches++
		case models.MatchTierWeak:
			summary.WeakMatches++
		}
	}
	summary.UnmatchedCount = len(result.Unmatched.SourceRecords) + len(result.Unmatched.TargetRecords)

	if totalRecords > 0 {
		summary.MatchRate = float64(len(result.Matches)*2) / float64(totalRecords) * 100
	}

	summary.OverallConfidence = overallConfidence(result.Matches, summary, elapsed)

	return summary
}

// overallConfidence derives the run-level confidence from the mean match
// confidence plus a series of heuristic adjustments for match rate, data
// quality, exact-match share and processing time.
func overallConfidence(matches []models.Match, summary models.ReconciliationSummary, elapsed time.Duration) float64 {
	var confidence float64
	if len(matches) > 0 {
		for _, m := range matches {
			confidence += m.Confidence
		}
		confidence /= float64(len(matches))
	}

	if summary.MatchRate > 80 {
		confidence += 5
	}
	if summary.MatchRate < 50 {
		confidence -= 10
	}

	confidence += (summary.DataQuality.Accuracy-80)*0.2 + (summary.DataQuality.Completeness-80)*0.1

	if len(matches) > 0 {
		exactRate := float64(summary.ExactMatches) / float64(len(matches))
		confidence += exactRate * 10
	}

	if elapsed < 30*time.Second {
		confidence += 2
	}

	return clampConfidence(confidence)
}
