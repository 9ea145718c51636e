package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestBuildSummary(t *testing.T) {
	t.Run("should count matches per tier", func(t *testing.T) {
		result := &PipelineResult{
			Matches: []models.Match{
				{Tier: models.MatchTierExact, Confidence: 100},
				{Tier: models.MatchTierExact, Confidence: 100},
				{Tier: models.MatchTierStrong, Confidence: 92},
				{Tier: models.MatchTierModerate, Confidence: 75},
			},
		}
		result.Unmatched.SourceRecords = []models.Record{{ID: "s5"}}
		result.Unmatched.TargetRecords = []models.Record{{ID: "t5"}}

		summary := BuildSummary(result, models.DataQualityMetrics{}, 10, time.Second)
		assert.Equal(t, 2, summary.ExactMatches)
		assert.Equal(t, 1, summary.StrongMatches)
		assert.Equal(t, 1, summary.ModerateMatches)
		assert.Equal(t, 0, summary.WeakMatches)
		assert.Equal(t, 2, summary.UnmatchedCount)
		assert.Equal(t, 10, summary.TotalRecords)
		assert.InDelta(t, 80.0, summary.MatchRate, 1e-9)
	})

	t.Run("should compute full confidence on a perfect run", func(t *testing.T) {
		result := &PipelineResult{
			Matches: []models.Match{
				{Tier: models.MatchTierExact, Confidence: 100},
				{Tier: models.MatchTierStrong, Confidence: 90},
			},
		}
		quality := models.DataQualityMetrics{Completeness: 100, Consistency: 100, Accuracy: 100}

		summary := BuildSummary(result, quality, 4, time.Second)
		// mean 95, +5 match rate, +6 quality, +5 exact share, +2 speed, clamped
		assert.Equal(t, 100.0, summary.OverallConfidence)
	})

	t.Run("should bottom out on a run with no matches and poor data", func(t *testing.T) {
		result := &PipelineResult{}
		result.Unmatched.SourceRecords = []models.Record{{ID: "s1"}}
		result.Unmatched.TargetRecords = []models.Record{{ID: "t1"}}

		summary := BuildSummary(result, models.DataQualityMetrics{}, 2, time.Second)
		// mean 0, -10 match rate, -24 quality, +2 speed, clamped at zero
		assert.Equal(t, 0.0, summary.OverallConfidence)
		assert.Equal(t, 0.0, summary.MatchRate)
	})

	t.Run("should not award the speed bonus on slow runs", func(t *testing.T) {
		result := &PipelineResult{
			Matches: []models.Match{{Tier: models.MatchTierStrong, Confidence: 80}},
		}
		quality := models.DataQualityMetrics{Completeness: 80, Accuracy: 80}

		fast := BuildSummary(result, quality, 2, time.Second)
		slow := BuildSummary(result, quality, 2, time.Minute)
		assert.InDelta(t, 2.0, fast.OverallConfidence-slow.OverallConfidence, 1e-9)
	})

	t.Run("should record processing time", func(t *testing.T) {
		summary := BuildSummary(&PipelineResult{}, models.DataQualityMetrics{}, 0, 1500*time.Millisecond)
		assert.Equal(t, int64(1500), summary.ProcessingTimeMs)
	})
}
