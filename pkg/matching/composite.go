package matching

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Canonical field weights for the composite score. Reference and account are
// optional and only contribute when both sides provide a value; the total is
// renormalized so their absence does not depress the score.
const (
	amountWeight      = 0.35
	descriptionWeight = 0.25
	dateWeight        = 0.20
	referenceWeight   = 0.15
	accountWeight     = 0.05
)

// CompositeScorer combines per-field similarities into one weighted score per
// record pair.
type CompositeScorer struct {
	scorer *Scorer
	cfg    models.ReconciliationConfig
}

// NewCompositeScorer creates a composite scorer for one run configuration.
func NewCompositeScorer(cfg models.ReconciliationConfig) *CompositeScorer {
	return &CompositeScorer{
		scorer: NewScorer(),
		cfg:    cfg,
	}
}

// Score computes the composite similarity for a source/target pair along with
// the per-field breakdown. The result is in [0, 1].
func (c *CompositeScorer) Score(source, target *models.NormalizedRecord) (float64, []models.FieldComparison) {
	comparisons := make([]models.FieldComparison, 0, 5)
	var score, totalWeight float64

	add := func(field string, sourceValue, targetValue any, similarity, weight float64) {
		comparisons = append(comparisons, models.FieldComparison{
			Field:       field,
			SourceValue: sourceValue,
			TargetValue: targetValue,
			Similarity:  similarity,
			Weight:      weight,
			Weighted:    similarity * weight,
		})
		score += similarity * weight
		totalWeight += weight
	}

	amountSim := 0.0
	if source.AmountValid && target.AmountValid {
		amountSim = c.scorer.AmountSimilarity(source.Amount, target.Amount, c.cfg.AmountTolerancePercent)
	}
	add("amount", source.Amount, target.Amount, amountSim, amountWeight)

	descSim := c.scorer.StringSimilarity(source.NormalizedDescription, target.NormalizedDescription)
	add("description", source.Description, target.Description, descSim, descriptionWeight)

	dateSim := 0.0
	if source.DateValid && target.DateValid {
		dateSim = c.scorer.DateSimilarity(DaysBetween(source.NormalizedDate, target.NormalizedDate), c.cfg.DateToleranceDays)
	}
	add("date", source.Date, target.Date, dateSim, dateWeight)

	if source.HasReference() && target.HasReference() {
		refSim := c.scorer.StringSimilarity(
			normalizers.NormalizeReference(*source.Reference),
			normalizers.NormalizeReference(*target.Reference),
		)
		add("reference", *source.Reference, *target.Reference, refSim, referenceWeight)
	}

	if source.HasAccountCode() && target.HasAccountCode() {
		accountSim := c.scorer.ExactMatch(*source.AccountCode, *target.AccountCode, true)
		add("account", *source.AccountCode, *target.AccountCode, accountSim, accountWeight)
	}

	if totalWeight == 0 {
		return 0, comparisons
	}
	return score / totalWeight, comparisons
}

// DaysBetween returns the absolute difference in calendar days between two
// normalized YYYY-MM-DD dates. Unparseable input returns a distance far
// beyond any tolerance.
func DaysBetween(a, b string) int {
	ta, okA := normalizers.ParseDate(a)
	tb, okB := normalizers.ParseDate(b)
	if !okA || !okB {
		return 1 << 20
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}
