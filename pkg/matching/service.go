package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// JobStore is the job-lifecycle collaborator. The core calls it at the start
// and end of a run but owns no persistence itself.
type JobStore interface {
	CreateJob(ctx context.Context, tenantID, name, description string) (string, error)
	CompleteJob(ctx context.Context, tenantID, jobID string, summary models.ReconciliationSummary, durationMs int64) error
	FailJob(ctx context.Context, tenantID, jobID, errorMessage string) error
}

// Emitter publishes run lifecycle events for downstream consumers.
type Emitter interface {
	EmitReconciliationCompleted(ctx context.Context, tenantID, jobID string, summary models.ReconciliationSummary) error
	EmitReconciliationFailed(ctx context.Context, tenantID, jobID, message string) error
}

// Service orchestrates reconciliation runs: normalization, quality
// assessment, the tiered pipeline, summarization, job lifecycle and event
// emission.
type Service struct {
	log     ectologger.Logger
	jobs    JobStore
	emitter Emitter
	cfg     PipelineConfig
}

// NewService creates a reconciliation service.
func NewService(log ectologger.Logger, jobs JobStore, emitter Emitter, cfg PipelineConfig) *Service {
	return &Service{
		log:     log,
		jobs:    jobs,
		emitter: emitter,
		cfg:     cfg,
	}
}

// Reconcile runs the full pipeline over the request's record collections.
// Per-record failures degrade to minimum similarity; the only fatal condition
// is a collaborator failure, which is surfaced wrapped and recorded against
// the job.
func (s *Service) Reconcile(ctx context.Context, tenantID string, req *models.ReconcileRequest) (*models.ReconciliationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.Reconcile")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":    tenantID,
		"source_count": len(req.SourceRecords),
		"target_count": len(req.TargetRecords),
	})

	name := req.Name
	if name == "" {
		name = "reconciliation"
	}

	jobID, err := s.jobs.CreateJob(ctx, tenantID, name, req.Description)
	if err != nil {
		return nil, fmt.Errorf("Data reconciliation failed: %w", err)
	}

	log = log.WithFields(map[string]any{"job_id": jobID})
	log.Info("Starting reconciliation run")

	start := time.Now()
	cfg := req.Config.Normalize()

	result := s.run(ctx, cfg, req.SourceRecords, req.TargetRecords, start)

	durationMs := time.Since(start).Milliseconds()
	if err := s.jobs.CompleteJob(ctx, tenantID, jobID, result.Summary, durationMs); err != nil {
		if failErr := s.jobs.FailJob(ctx, tenantID, jobID, err.Error()); failErr != nil {
			log.WithError(failErr).Error("Failed to record job failure")
		}
		if s.emitter != nil {
			if emitErr := s.emitter.EmitReconciliationFailed(ctx, tenantID, jobID, err.Error()); emitErr != nil {
				log.WithError(emitErr).Warn("Failed to emit reconciliation.failed event")
			}
		}
		return nil, fmt.Errorf("Data reconciliation failed: %w", err)
	}

	if s.emitter != nil {
		if err := s.emitter.EmitReconciliationCompleted(ctx, tenantID, jobID, result.Summary); err != nil {
			// Event delivery is not part of the run contract
			log.WithError(err).Warn("Failed to emit reconciliation.completed event")
		}
	}

	log.WithFields(map[string]any{
		"matched":            len(result.Matches),
		"unmatched":          result.Summary.UnmatchedCount,
		"overall_confidence": result.Summary.OverallConfidence,
		"duration_ms":        durationMs,
	}).Info("Reconciliation run completed")

	return result, nil
}

// run executes the pure portion of a reconciliation: everything between the
// collaborator calls. It never returns an error; malformed records degrade to
// zero similarity.
func (s *Service) run(ctx context.Context, cfg models.ReconciliationConfig, source, target []models.Record, start time.Time) *models.ReconciliationResult {
	// Field mappings resolve against target metadata only; normalizer chains
	// run on both sides so the fields stay comparable.
	normalizedSource := normalizers.NormalizeRecords(source, &normalizers.Options{
		FieldNormalizers: cfg.FieldNormalizers,
	})
	normalizedTarget := normalizers.NormalizeRecords(target, &normalizers.Options{
		FieldMappings:    cfg.FieldMappings,
		FieldNormalizers: cfg.FieldNormalizers,
	})

	corpus := make([]models.NormalizedRecord, 0, len(normalizedSource)+len(normalizedTarget))
	corpus = append(corpus, normalizedSource...)
	corpus = append(corpus, normalizedTarget...)
	quality := AssessDataQuality(corpus)

	pipeline := NewPipeline(s.log, s.cfg, cfg)
	pipelineResult := pipeline.Run(ctx, normalizedSource, normalizedTarget)

	totalRecords := len(source) + len(target)
	summary := BuildSummary(pipelineResult, quality, totalRecords, time.Since(start))

	return &models.ReconciliationResult{
		Summary:    summary,
		Matches:    pipelineResult.Matches,
		Unmatched:  pipelineResult.Unmatched,
		AuditTrail: pipelineResult.AuditTrail,
		Confidence: summary.OverallConfidence,
	}
}
