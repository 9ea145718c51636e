package models

import (
	"encoding/json"
	"time"
)

// ReconciliationJob status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// ReconciliationJob tracks the lifecycle of a reconciliation run. The core
// pipeline owns no persistence; jobs are stored by the job repository on
// behalf of the run orchestration.
type ReconciliationJob struct {
	ID           string          `json:"id" db:"id"`
	TenantID     string          `json:"tenant_id" db:"tenant_id"`
	Name         string          `json:"name" db:"name"`
	Description  *string         `json:"description,omitempty" db:"description"`
	Status       string          `json:"status" db:"status"`
	Summary      json.RawMessage `json:"summary,omitempty" db:"summary"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	DurationMs   *int64          `json:"duration_ms,omitempty" db:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// JobListResponse is the response for listing reconciliation jobs
type JobListResponse struct {
	Items      []ReconciliationJob `json:"items"`
	TotalCount int                 `json:"total_count"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
}
