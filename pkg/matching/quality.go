package matching

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// AssessDataQuality computes corpus-level quality metrics over the combined
// normalized source and target records. It runs once before matching; the
// percentages feed the overall-confidence heuristic and the duplicate count
// surfaces recurring (amount, description, date) triples.
func AssessDataQuality(records []models.NormalizedRecord) models.DataQualityMetrics {
	metrics := models.DataQualityMetrics{}
	if len(records) == 0 {
		return metrics
	}

	total := float64(len(records))
	var complete, consistent, accurate int

	triples := make(map[string]int, len(records))
	missing := make(map[string]bool)

	for _, r := range records {
		hasAmount := r.AmountValid || r.Amount != 0
		hasDescription := r.Description != ""
		hasDate := r.Date != ""

		if hasAmount && hasDescription && hasDate {
			complete++
		}
		if r.AmountValid && r.DateValid {
			consistent++
		}
		if r.AmountValid && r.Amount != 0 && len(r.Description) > 3 {
			accurate++
		}

		key := fmt.Sprintf("%.2f|%s|%s", r.Amount, r.NormalizedDescription, r.NormalizedDate)
		triples[key]++

		if !r.HasReference() {
			missing["reference"] = true
		}
		if !r.HasAccountCode() {
			missing["account_code"] = true
		}
		if r.CustomerID == nil || *r.CustomerID == "" {
			missing["customer_id"] = true
		}
		if r.VendorID == nil || *r.VendorID == "" {
			missing["vendor_id"] = true
		}
	}

	for _, count := range triples {
		if count > 1 {
			metrics.DuplicateCount++
		}
	}

	metrics.Completeness = float64(complete) / total * 100
	metrics.Consistency = float64(consistent) / total * 100
	metrics.Accuracy = float64(accurate) / total * 100

	for field := range missing {
		metrics.MissingFields = append(metrics.MissingFields, field)
	}
	sort.Strings(metrics.MissingFields)

	return metrics
}
