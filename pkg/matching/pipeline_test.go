package matching

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func runPipeline(t *testing.T, cfg PipelineConfig, runCfg models.ReconciliationConfig, source, target []models.Record) *PipelineResult {
	t.Helper()
	pipeline := NewPipeline(testLogger(), cfg, runCfg.Normalize())
	return pipeline.Run(
		context.Background(),
		normalizers.NormalizeRecords(source, nil),
		normalizers.NormalizeRecords(target, &normalizers.Options{FieldMappings: runCfg.FieldMappings}),
	)
}

func auditStages(result *PipelineResult) []string {
	stages := make([]string, 0, len(result.AuditTrail))
	for _, e := range result.AuditTrail {
		stages = append(stages, e.Stage)
	}
	return stages
}

func TestPipelineExactTier(t *testing.T) {
	t.Run("should match identical amount and date in the exact tier", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 1250.00, Description: "Rent April", Date: "2024-04-01"}}
		target := []models.Record{{ID: "t1", Amount: 1250.00, Description: "April rent payment", Date: "2024-04-01"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, result.Matches, 1)

		match := result.Matches[0]
		assert.Equal(t, models.MatchTierExact, match.Tier)
		assert.Equal(t, "s1", match.SourceRecord.ID)
		assert.Equal(t, "t1", match.TargetRecord.ID)
		assert.Equal(t, 1.0, match.Similarity)
		assert.Equal(t, models.MatchActionAccept, match.Action)
		// 100 raw, bonuses cannot push it higher
		assert.Equal(t, 100.0, match.Confidence)
		assert.NotEmpty(t, match.ID)
	})

	t.Run("should match identical amount and description when dates differ", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 89.99, Description: "Software license", Date: "2024-04-01"}}
		target := []models.Record{{ID: "t1", Amount: 89.99, Description: "SOFTWARE LICENSE", Date: "2024-04-04"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, models.MatchTierExact, result.Matches[0].Tier)
	})

	t.Run("should claim the first matching target and never revisit", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 100, Description: "Coffee", Date: "2024-04-01"}}
		target := []models.Record{
			{ID: "t1", Amount: 100, Description: "Coffee", Date: "2024-04-01"},
			{ID: "t2", Amount: 100, Description: "Coffee", Date: "2024-04-01"},
		}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "t1", result.Matches[0].TargetRecord.ID)
		require.Len(t, result.Unmatched.TargetRecords, 1)
		assert.Equal(t, "t2", result.Unmatched.TargetRecords[0].ID)
	})

	t.Run("should not exact-match on amount alone", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 55, Description: "Taxi fare", Date: "2024-04-01"}}
		target := []models.Record{{ID: "t1", Amount: 55, Description: "Completely unrelated thing", Date: "2024-06-20"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		for _, m := range result.Matches {
			assert.NotEqual(t, models.MatchTierExact, m.Tier)
		}
	})

	t.Run("should not count empty descriptions as corroboration", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 55, Description: "", Date: "pending"}}
		target := []models.Record{{ID: "t1", Amount: 55, Description: "", Date: "tbd"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		// equal amounts plus matching empty descriptions still fall through
		// to the fuzzy tiers
		require.Len(t, result.Matches, 1)
		assert.Equal(t, models.MatchTierModerate, result.Matches[0].Tier)
	})
}

func TestPipelineFuzzyTiers(t *testing.T) {
	t.Run("should match near-identical records in the strong tier", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 250.00, Description: "Office supplies staples", Date: "2024-03-10"}}
		target := []models.Record{{ID: "t1", Amount: 250.00, Description: "Office supplies staple", Date: "2024-03-12"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, result.Matches, 1)

		match := result.Matches[0]
		assert.Equal(t, models.MatchTierStrong, match.Tier)
		assert.GreaterOrEqual(t, match.Similarity, StrongThreshold)
		assert.Equal(t, models.MatchActionAccept, match.Action)
	})

	t.Run("should strong-match a half-percent amount difference with equal description and date", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 100.00, Description: "Office Supplies", Date: "2024-01-05"}}
		target := []models.Record{{ID: "t1", Amount: 100.50, Description: "Office Supplies", Date: "2024-01-05"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, models.MatchTierStrong, result.Matches[0].Tier)
		assert.GreaterOrEqual(t, result.Matches[0].Similarity, 0.85)
	})

	t.Run("should not match wildly different amounts even with identical descriptions", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 1000, Description: "Office rental", Date: "2024-01-05"}}
		target := []models.Record{{ID: "t1", Amount: 50000, Description: "Office rental", Date: "2024-01-05"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		assert.Empty(t, result.Matches)
		assert.Len(t, result.Unmatched.SourceRecords, 1)
		assert.Len(t, result.Unmatched.TargetRecords, 1)
	})

	t.Run("should leave everything unmatched when one side is empty", func(t *testing.T) {
		target := []models.Record{
			{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "t2", Amount: 200, Description: "Utilities", Date: "2024-04-02"},
		}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, nil, target)
		assert.Empty(t, result.Matches)
		assert.Empty(t, result.Unmatched.SourceRecords)
		assert.Len(t, result.Unmatched.TargetRecords, 2)
	})

	t.Run("should leave dissimilar records unmatched", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 1200, Description: "Quarterly insurance premium", Date: "2024-01-15"}}
		target := []models.Record{{ID: "t1", Amount: 35.20, Description: "Team lunch", Date: "2024-05-02"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		assert.Empty(t, result.Matches)
		assert.Len(t, result.Unmatched.SourceRecords, 1)
		assert.Len(t, result.Unmatched.TargetRecords, 1)
	})

	t.Run("should apply the reference bonus to fuzzy matches", func(t *testing.T) {
		ref := "INV-2024-100"
		source := []models.Record{{ID: "s1", Amount: 100.00, Description: "Office supplies staples", Date: "2024-03-10", Reference: &ref}}
		target := []models.Record{{ID: "t1", Amount: 100.50, Description: "Office supplies staple", Date: "2024-03-11", Reference: &ref}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, result.Matches, 1)

		match := result.Matches[0]
		assert.Equal(t, models.MatchTierStrong, match.Tier)
		assert.Equal(t, 100.0, match.Confidence)
		assert.Equal(t, models.MatchActionAccept, match.Action)
	})

	t.Run("should break score ties to the first target in input order", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 400, Description: "Consulting invoice", Date: "2024-02-01"}}
		target := []models.Record{
			{ID: "t1", Amount: 400, Description: "Consulting invoices", Date: "2024-02-02"},
			{ID: "t2", Amount: 400, Description: "Consulting invoices", Date: "2024-02-02"},
		}

		for workers := 1; workers <= 4; workers++ {
			cfg := DefaultPipelineConfig()
			cfg.ScoreWorkers = workers
			result := runPipeline(t, cfg, models.ReconciliationConfig{}, source, target)
			require.Len(t, result.Matches, 1)
			assert.Equal(t, "t1", result.Matches[0].TargetRecord.ID)
		}
	})

	t.Run("should produce identical results across repeated runs", func(t *testing.T) {
		source := []models.Record{
			{ID: "s1", Amount: 120.00, Description: "Cloud hosting", Date: "2024-03-01"},
			{ID: "s2", Amount: 89.99, Description: "Domain renewal", Date: "2024-03-03"},
			{ID: "s3", Amount: 600.00, Description: "Contractor payout", Date: "2024-03-05"},
		}
		target := []models.Record{
			{ID: "t1", Amount: 600.00, Description: "Contractor payout", Date: "2024-03-05"},
			{ID: "t2", Amount: 120.50, Description: "Cloud hosting fees", Date: "2024-03-02"},
			{ID: "t3", Amount: 89.99, Description: "Domain renewals", Date: "2024-03-04"},
		}

		cfg := DefaultPipelineConfig()
		cfg.ScoreWorkers = 4

		baseline := runPipeline(t, cfg, models.ReconciliationConfig{}, source, target)
		for i := 0; i < 5; i++ {
			result := runPipeline(t, cfg, models.ReconciliationConfig{}, source, target)
			require.Equal(t, len(baseline.Matches), len(result.Matches))
			for j := range baseline.Matches {
				assert.Equal(t, baseline.Matches[j].SourceRecord.ID, result.Matches[j].SourceRecord.ID)
				assert.Equal(t, baseline.Matches[j].TargetRecord.ID, result.Matches[j].TargetRecord.ID)
				assert.Equal(t, baseline.Matches[j].Tier, result.Matches[j].Tier)
				assert.InDelta(t, baseline.Matches[j].Similarity, result.Matches[j].Similarity, 1e-12)
			}
		}
	})
}

func TestPipelineAlgorithms(t *testing.T) {
	t.Run("fast algorithm should skip the moderate tier", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 100, Description: "Rent", Date: "2024-04-01"}}
		target := []models.Record{{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"}}

		comprehensive := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{MatchingAlgorithm: models.AlgorithmComprehensive}, source, target)
		assert.Contains(t, auditStages(comprehensive), "moderate_fuzzy_matching_completed")

		fast := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{MatchingAlgorithm: models.AlgorithmFast}, source, target)
		assert.NotContains(t, auditStages(fast), "moderate_fuzzy_matching_completed")
	})

	t.Run("strict algorithm should require exact amounts for fuzzy matches", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 100, Description: "Monthly retainer", Date: "2024-04-01"}}
		target := []models.Record{{ID: "t1", Amount: 105, Description: "Monthly retainer", Date: "2024-04-01"}}

		relaxed := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		require.Len(t, relaxed.Matches, 1)

		strict := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{MatchingAlgorithm: models.AlgorithmStrict}, source, target)
		assert.Empty(t, strict.Matches)
		assert.Len(t, strict.Unmatched.SourceRecords, 1)
	})
}

func TestPipelineInvariants(t *testing.T) {
	t.Run("should conserve records across matches and unmatched", func(t *testing.T) {
		source := []models.Record{
			{ID: "s1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "s2", Amount: 42.50, Description: "Lunch", Date: "2024-04-02"},
			{ID: "s3", Amount: 9000, Description: "Server hardware", Date: "2024-04-03"},
		}
		target := []models.Record{
			{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "t2", Amount: 77.10, Description: "Parking", Date: "2024-04-05"},
		}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)

		total := len(result.Matches)*2 + len(result.Unmatched.SourceRecords) + len(result.Unmatched.TargetRecords)
		assert.Equal(t, len(source)+len(target), total)
	})

	t.Run("should never claim a record twice", func(t *testing.T) {
		source := []models.Record{
			{ID: "s1", Amount: 100, Description: "Subscription", Date: "2024-04-01"},
			{ID: "s2", Amount: 100, Description: "Subscription", Date: "2024-04-01"},
		}
		target := []models.Record{
			{ID: "t1", Amount: 100, Description: "Subscription", Date: "2024-04-01"},
		}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)

		seenSource := make(map[string]bool)
		seenTarget := make(map[string]bool)
		for _, m := range result.Matches {
			assert.False(t, seenSource[m.SourceRecord.ID])
			assert.False(t, seenTarget[m.TargetRecord.ID])
			seenSource[m.SourceRecord.ID] = true
			seenTarget[m.TargetRecord.ID] = true
		}
		require.Len(t, result.Matches, 1)
		assert.Len(t, result.Unmatched.SourceRecords, 1)
	})

	t.Run("should keep confidences within bounds", func(t *testing.T) {
		source := []models.Record{
			{ID: "s1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "s2", Amount: 250, Description: "Office supplies staples", Date: "2024-03-10"},
		}
		target := []models.Record{
			{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "t2", Amount: 251, Description: "Office supplies staple", Date: "2024-03-12"},
		}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		for _, m := range result.Matches {
			assert.GreaterOrEqual(t, m.Confidence, 0.0)
			assert.LessOrEqual(t, m.Confidence, 100.0)
		}
	})

	t.Run("should record tier transitions in the audit trail", func(t *testing.T) {
		source := []models.Record{{ID: "s1", Amount: 100, Description: "Rent", Date: "2024-04-01"}}
		target := []models.Record{{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"}}

		result := runPipeline(t, DefaultPipelineConfig(), models.ReconciliationConfig{}, source, target)
		stages := auditStages(result)
		assert.Equal(t, "run_started", stages[0])
		assert.Contains(t, stages, "exact_matching_completed")
		assert.Contains(t, stages, "strong_fuzzy_matching_completed")
	})
}

func TestPipelineTimeBudget(t *testing.T) {
	t.Run("should stop early and report partial results when the budget expires", func(t *testing.T) {
		source := []models.Record{
			{ID: "s1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "s2", Amount: 200, Description: "Utilities", Date: "2024-04-02"},
		}
		target := []models.Record{
			{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"},
			{ID: "t2", Amount: 200, Description: "Utilities", Date: "2024-04-02"},
		}

		cfg := DefaultPipelineConfig()
		cfg.TimeBudget = time.Nanosecond

		result := runPipeline(t, cfg, models.ReconciliationConfig{}, source, target)
		assert.True(t, result.TimedOut)
		assert.Contains(t, auditStages(result), "early_termination")

		total := len(result.Matches)*2 + len(result.Unmatched.SourceRecords) + len(result.Unmatched.TargetRecords)
		assert.Equal(t, len(source)+len(target), total)
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		source := normalizers.NormalizeRecords([]models.Record{{ID: "s1", Amount: 100, Description: "Rent", Date: "2024-04-01"}}, nil)
		target := normalizers.NormalizeRecords([]models.Record{{ID: "t1", Amount: 100, Description: "Rent", Date: "2024-04-01"}}, nil)

		pipeline := NewPipeline(testLogger(), DefaultPipelineConfig(), models.DefaultReconciliationConfig())
		result := pipeline.Run(ctx, source, target)
		assert.True(t, result.TimedOut)
		assert.Empty(t, result.Matches)
	})
}
