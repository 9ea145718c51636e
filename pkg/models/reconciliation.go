package models

import (
	"time"
)

// MatchTier classifies the quality band of a committed match
type MatchTier string

const (
	MatchTierExact    MatchTier = "exact"
	MatchTierStrong   MatchTier = "strong"
	MatchTierModerate MatchTier = "moderate"
	MatchTierWeak     MatchTier = "weak"
)

// MatchAction is the recommended disposition for a match, derived purely from
// the final confidence value
type MatchAction string

const (
	MatchActionAccept MatchAction = "accept"
	MatchActionReview MatchAction = "review"
	MatchActionReject MatchAction = "reject"
)

// DiscrepancySeverity classifies how far a matched field diverges
type DiscrepancySeverity string

const (
	DiscrepancySeverityCritical DiscrepancySeverity = "critical"
	DiscrepancySeverityMajor    DiscrepancySeverity = "major"
	DiscrepancySeverityMinor    DiscrepancySeverity = "minor"
)

// MatchingAlgorithm selects how aggressive the tiered pipeline is
type MatchingAlgorithm string

const (
	// AlgorithmComprehensive runs every tier: exact, strong fuzzy, moderate fuzzy.
	AlgorithmComprehensive MatchingAlgorithm = "comprehensive"
	// AlgorithmFast stops after the strong fuzzy tier.
	AlgorithmFast MatchingAlgorithm = "fast"
	// AlgorithmStrict requires exact amounts and disables partial matches.
	AlgorithmStrict MatchingAlgorithm = "strict"
)

// ReconciliationConfig controls a single reconciliation run
type ReconciliationConfig struct {
	MatchingAlgorithm      MatchingAlgorithm `json:"matching_algorithm"`
	ConfidenceThreshold    float64           `json:"confidence_threshold"`
	DateToleranceDays      int               `json:"date_tolerance_days"`
	AmountTolerancePercent float64           `json:"amount_tolerance_percent"`
	AllowPartialMatches    bool              `json:"allow_partial_matches"`
	RequireExactAmount     bool              `json:"require_exact_amount"`
	// FieldMappings maps canonical optional field names (reference,
	// account_code, customer_id, vendor_id) to metadata keys on target
	// records whose source system exports them under different names.
	FieldMappings map[string]string `json:"field_mappings,omitempty"`
	// FieldNormalizers maps a field name (description, reference,
	// account_code, customer_id, vendor_id) to a chain of registered
	// normalizer names applied to both sides during normalization. A chain on
	// description replaces the built-in one.
	FieldNormalizers map[string][]string `json:"field_normalizers,omitempty"`
}

// DefaultReconciliationConfig returns the documented defaults.
func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		MatchingAlgorithm:      AlgorithmComprehensive,
		ConfidenceThreshold:    75,
		DateToleranceDays:      5,
		AmountTolerancePercent: 0.01,
		AllowPartialMatches:    true,
		RequireExactAmount:     false,
	}
}

// Normalize fills zero values with the documented defaults and applies the
// algorithm presets. The preset owns AllowPartialMatches: comprehensive runs
// the moderate tier, fast and strict do not.
func (c ReconciliationConfig) Normalize() ReconciliationConfig {
	if c.MatchingAlgorithm == "" {
		c.MatchingAlgorithm = AlgorithmComprehensive
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 75
	}
	if c.DateToleranceDays == 0 {
		c.DateToleranceDays = 5
	}
	if c.AmountTolerancePercent == 0 {
		c.AmountTolerancePercent = 0.01
	}
	switch c.MatchingAlgorithm {
	case AlgorithmFast:
		c.AllowPartialMatches = false
	case AlgorithmStrict:
		c.AllowPartialMatches = false
		c.RequireExactAmount = true
	default:
		c.AllowPartialMatches = true
	}
	return c
}

// FieldComparison records how a single field contributed to a match score
type FieldComparison struct {
	Field       string  `json:"field"`
	SourceValue any     `json:"source_value"`
	TargetValue any     `json:"target_value"`
	Similarity  float64 `json:"similarity"`
	Weight      float64 `json:"weight"`
	Weighted    float64 `json:"weighted"`
}

// Discrepancy flags a field whose values diverge beyond the significance
// threshold on an otherwise committed match
type Discrepancy struct {
	Field       string              `json:"field"`
	SourceValue any                 `json:"source_value"`
	TargetValue any                 `json:"target_value"`
	Difference  float64             `json:"difference"`
	Severity    DiscrepancySeverity `json:"severity"`
}

// Match is a committed source/target pairing. It is created exactly once per
// pair that clears a tier threshold and never mutated afterward.
type Match struct {
	ID            string            `json:"id"`
	SourceRecord  Record            `json:"source_record"`
	TargetRecord  Record            `json:"target_record"`
	Tier          MatchTier         `json:"tier"`
	Similarity    float64           `json:"similarity"`
	Confidence    float64           `json:"confidence"`
	Comparisons   []FieldComparison `json:"field_comparisons"`
	Discrepancies []Discrepancy     `json:"discrepancies,omitempty"`
	Action        MatchAction       `json:"recommended_action"`
}

// UnmatchedRecords holds the residual records not claimed by any match
type UnmatchedRecords struct {
	SourceRecords []Record `json:"source_records"`
	TargetRecords []Record `json:"target_records"`
}

// DataQualityMetrics describes the combined input corpus before matching
type DataQualityMetrics struct {
	Completeness   float64  `json:"completeness"`
	Consistency    float64  `json:"consistency"`
	Accuracy       float64  `json:"accuracy"`
	DuplicateCount int      `json:"duplicate_count"`
	MissingFields  []string `json:"missing_fields,omitempty"`
}

// AuditEvent is a timestamped stage-transition marker
type AuditEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Stage     string         `json:"stage"`
	Details   map[string]any `json:"details,omitempty"`
}

// ReconciliationSummary aggregates a completed run
type ReconciliationSummary struct {
	TotalRecords      int                `json:"total_records"`
	ExactMatches      int                `json:"exact_matches"`
	StrongMatches     int                `json:"strong_matches"`
	ModerateMatches   int                `json:"moderate_matches"`
	WeakMatches       int                `json:"weak_matches"`
	UnmatchedCount    int                `json:"unmatched_count"`
	MatchRate         float64            `json:"match_rate"`
	OverallConfidence float64            `json:"overall_confidence"`
	ProcessingTimeMs  int64              `json:"processing_time_ms"`
	DataQuality       DataQualityMetrics `json:"data_quality"`
}

// ReconciliationResult is the full output returned to the caller
type ReconciliationResult struct {
	Summary    ReconciliationSummary `json:"summary"`
	Matches    []Match               `json:"matches"`
	Unmatched  UnmatchedRecords      `json:"unmatched"`
	AuditTrail []AuditEvent          `json:"audit_trail"`
	Confidence float64               `json:"confidence"`
}

// ReconcileRequest is the API request to run a reconciliation. An omitted
// record collection is treated as empty; one-sided runs are valid.
type ReconcileRequest struct {
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	SourceRecords []Record             `json:"source_records" validate:"dive"`
	TargetRecords []Record             `json:"target_records" validate:"dive"`
	Config        ReconciliationConfig `json:"config"`
}
