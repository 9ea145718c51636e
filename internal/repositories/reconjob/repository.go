package reconjob

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/internal/database"
	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/models"
)

const jobColumns = "id, tenant_id, name, description, status, summary, error_message, duration_ms, created_at, updated_at, completed_at"

// Repository persists reconciliation job lifecycle records. It implements the
// matching.JobStore collaborator.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new reconciliation job repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CreateJob inserts a new job in running state and returns its id.
func (r *Repository) CreateJob(ctx context.Context, tenantID, name, description string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "reconjob.Repository.CreateJob")
	defer span.End()

	id := uuid.New().String()
	now := time.Now().UTC()

	var desc *string
	if description != "" {
		desc = &description
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("reconciliation_jobs")
	sb.Cols("id", "tenant_id", "name", "description", "status", "created_at", "updated_at")
	sb.Values(id, tenantID, name, desc, models.JobStatusRunning, now, now)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": id}).Error("Failed to create reconciliation job")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to create reconciliation job")
	}

	return id, nil
}

// CompleteJob marks a job completed and stores its summary.
func (r *Repository) CompleteJob(ctx context.Context, tenantID, jobID string, summary models.ReconciliationSummary, durationMs int64) error {
	ctx, span := tracing.StartSpan(ctx, "reconjob.Repository.CompleteJob")
	defer span.End()

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to serialize job summary")
	}

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("reconciliation_jobs")
	ub.Set(
		ub.Assign("status", models.JobStatusCompleted),
		ub.Assign("summary", string(summaryJSON)),
		ub.Assign("duration_ms", durationMs),
		ub.Assign("updated_at", now),
		ub.Assign("completed_at", now),
	)
	ub.Where(
		ub.Equal("id", jobID),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("Failed to complete reconciliation job")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to complete reconciliation job")
	}

	return nil
}

// FailJob marks a job failed with the given error message.
func (r *Repository) FailJob(ctx context.Context, tenantID, jobID, errorMessage string) error {
	ctx, span := tracing.StartSpan(ctx, "reconjob.Repository.FailJob")
	defer span.End()

	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("reconciliation_jobs")
	ub.Set(
		ub.Assign("status", models.JobStatusFailed),
		ub.Assign("error_message", errorMessage),
		ub.Assign("updated_at", now),
		ub.Assign("completed_at", now),
	)
	ub.Where(
		ub.Equal("id", jobID),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"job_id": jobID}).Error("Failed to mark reconciliation job failed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update reconciliation job")
	}

	return nil
}

// Get retrieves a job by ID
func (r *Repository) Get(ctx context.Context, tenantID, jobID string) (*models.ReconciliationJob, error) {
	ctx, span := tracing.StartSpan(ctx, "reconjob.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(jobColumns)
	sb.From("reconciliation_jobs")
	sb.Where(
		sb.Equal("id", jobID),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var job models.ReconciliationJob
	if err := r.db.GetContext(ctx, &job, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("reconciliation job %s not found", jobID))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get reconciliation job")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get reconciliation job")
	}

	return &job, nil
}

// List retrieves recent jobs for a tenant, newest first
func (r *Repository) List(ctx context.Context, tenantID string, limit int) ([]models.ReconciliationJob, error) {
	ctx, span := tracing.StartSpan(ctx, "reconjob.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(jobColumns)
	sb.From("reconciliation_jobs")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	jobs := make([]models.ReconciliationJob, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reconciliation jobs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list reconciliation jobs")
	}

	return jobs, nil
}
