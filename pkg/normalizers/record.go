package normalizers

import (
	"encoding/json"
	"math"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// dateLayouts are tried in order when reducing a date to a calendar date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// ParseDate parses a record date string into a calendar date. It returns the
// parsed time and whether parsing succeeded.
func ParseDate(value string) (time.Time, bool) {
	value = Trim(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

// Options tune how a record collection is normalized.
//
// FieldMappings maps canonical optional field names to metadata keys, letting
// records from systems with different export schemas participate without
// reshaping them upstream. FieldNormalizers maps a field name to a chain of
// registered normalizer names; a chain on description replaces the built-in
// normalization, chains on the optional fields rewrite the stored value.
type Options struct {
	FieldMappings    map[string]string
	FieldNormalizers map[string][]string
}

// NormalizeRecord produces the canonical copy of a record used by the
// matching pipeline. The caller's record is never mutated; per-field parse
// failures are flagged rather than surfaced as errors so a single bad record
// cannot abort a run.
func NormalizeRecord(record models.Record, opts *Options) models.NormalizedRecord {
	if opts == nil {
		opts = &Options{}
	}

	normalized := models.NormalizedRecord{Record: record}

	if chain := opts.FieldNormalizers["description"]; len(chain) > 0 {
		normalized.NormalizedDescription = ApplyChain(record.Description, chain...)
	} else {
		normalized.NormalizedDescription = NormalizeDescription(record.Description)
	}

	if t, ok := ParseDate(record.Date); ok {
		normalized.NormalizedDate = t.Format("2006-01-02")
		normalized.DateValid = true
	} else {
		// Invalid dates pass through unchanged; the similarity engine
		// scores them as zero and data quality counts them.
		normalized.NormalizedDate = record.Date
	}

	normalized.AmountValid = !math.IsNaN(record.Amount) && !math.IsInf(record.Amount, 0)

	if len(opts.FieldMappings) > 0 {
		resolveMappedFields(&normalized, opts.FieldMappings)
	}
	if len(opts.FieldNormalizers) > 0 {
		applyFieldNormalizers(&normalized, opts.FieldNormalizers)
	}

	return normalized
}

// NormalizeRecords normalizes a full collection preserving input order.
func NormalizeRecords(records []models.Record, opts *Options) []models.NormalizedRecord {
	normalized := make([]models.NormalizedRecord, 0, len(records))
	for _, record := range records {
		normalized = append(normalized, NormalizeRecord(record, opts))
	}
	return normalized
}

// applyFieldNormalizers runs configured chains over the optional string
// fields. Chains run after mapping resolution so mapped values are covered.
func applyFieldNormalizers(record *models.NormalizedRecord, fieldNormalizers map[string][]string) {
	apply := func(value *string, field string) *string {
		chain, ok := fieldNormalizers[field]
		if value == nil || !ok || len(chain) == 0 {
			return value
		}
		normalized := ApplyChain(*value, chain...)
		return &normalized
	}

	record.Reference = apply(record.Reference, "reference")
	record.AccountCode = apply(record.AccountCode, "account_code")
	record.CustomerID = apply(record.CustomerID, "customer_id")
	record.VendorID = apply(record.VendorID, "vendor_id")
}

// resolveMappedFields fills missing optional fields from record metadata using
// the configured field mappings.
func resolveMappedFields(record *models.NormalizedRecord, fieldMappings map[string]string) {
	if len(record.Metadata) == 0 {
		return
	}

	var metadata map[string]any
	if err := json.Unmarshal(record.Metadata, &metadata); err != nil {
		return
	}

	lookup := func(canonical string) *string {
		key, ok := fieldMappings[canonical]
		if !ok {
			return nil
		}
		if value, ok := metadata[key].(string); ok && value != "" {
			return &value
		}
		return nil
	}

	if record.Reference == nil || *record.Reference == "" {
		if v := lookup("reference"); v != nil {
			record.Reference = v
		}
	}
	if record.AccountCode == nil || *record.AccountCode == "" {
		if v := lookup("account_code"); v != nil {
			record.AccountCode = v
		}
	}
	if record.CustomerID == nil || *record.CustomerID == "" {
		if v := lookup("customer_id"); v != nil {
			record.CustomerID = v
		}
	}
	if record.VendorID == nil || *record.VendorID == "" {
		if v := lookup("vendor_id"); v != nil {
			record.VendorID = v
		}
	}
}
