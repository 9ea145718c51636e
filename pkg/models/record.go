package models

import (
	"encoding/json"
)

// Record is a single financial line item from either side of a reconciliation.
// Records are owned by the caller and are never mutated by the pipeline; the
// normalizer produces canonical copies instead.
type Record struct {
	ID          string          `json:"id" validate:"required"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Reference   *string         `json:"reference,omitempty"`
	AccountCode *string         `json:"account_code,omitempty"`
	CustomerID  *string         `json:"customer_id,omitempty"`
	VendorID    *string         `json:"vendor_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// NormalizedRecord is the canonical form of a Record used by the matching
// pipeline. Validity flags feed the data-quality assessment and let per-field
// failures degrade to zero similarity instead of aborting the run.
type NormalizedRecord struct {
	Record

	// Description after lowercasing, punctuation replacement and whitespace
	// collapse. The original Description is preserved on the embedded Record.
	NormalizedDescription string

	// Date reduced to a YYYY-MM-DD calendar date. Unparseable dates pass
	// through unchanged with DateValid=false.
	NormalizedDate string

	AmountValid bool
	DateValid   bool
}

// HasReference reports whether the record carries a non-empty reference value.
func (r *NormalizedRecord) HasReference() bool {
	return r.Reference != nil && *r.Reference != ""
}

// HasAccountCode reports whether the record carries a non-empty account code.
func (r *NormalizedRecord) HasAccountCode() bool {
	return r.AccountCode != nil && *r.AccountCode != ""
}
