// Package matching implements the multi-stage fuzzy reconciliation pipeline:
// record preprocessing, tiered matching (exact, strong fuzzy, moderate fuzzy),
// composite similarity scoring across weighted fields, confidence adjustment
// and summary/audit generation.
package matching

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/internal/tracing"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Tier thresholds. A fuzzy match's tier label is derived from its achieved
// score, not from which tier loop found it.
const (
	StrongThreshold   = 0.85
	ModerateThreshold = 0.70
)

// PipelineConfig contains tuning knobs for the matching pipeline
type PipelineConfig struct {
	StrongThreshold   float64       // Minimum composite score for a strong fuzzy match (default: 0.85)
	ModerateThreshold float64       // Minimum composite score for a moderate fuzzy match (default: 0.70)
	ScoreWorkers      int           // Parallelism for candidate scoring within one source record (default: 1)
	TimeBudget        time.Duration // Wall-clock budget for the whole run; 0 means unbounded
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		StrongThreshold:   StrongThreshold,
		ModerateThreshold: ModerateThreshold,
		ScoreWorkers:      1,
	}
}

// Pipeline runs the ordered matching tiers over two record collections.
// Each tier operates only on the records the previous tiers left unclaimed;
// the claimed sets are owned by the run and threaded through every tier so a
// record can never be claimed twice.
type Pipeline struct {
	log       ectologger.Logger
	cfg       PipelineConfig
	runCfg    models.ReconciliationConfig
	composite *CompositeScorer
}

// PipelineResult is the raw outcome of a pipeline run before summarization
type PipelineResult struct {
	Matches    []models.Match
	Unmatched  models.UnmatchedRecords
	AuditTrail []models.AuditEvent
	TimedOut   bool
}

// NewPipeline creates a pipeline for a single reconciliation run.
func NewPipeline(log ectologger.Logger, cfg PipelineConfig, runCfg models.ReconciliationConfig) *Pipeline {
	if cfg.StrongThreshold == 0 {
		cfg.StrongThreshold = StrongThreshold
	}
	if cfg.ModerateThreshold == 0 {
		cfg.ModerateThreshold = ModerateThreshold
	}
	if cfg.ScoreWorkers < 1 {
		cfg.ScoreWorkers = 1
	}
	return &Pipeline{
		log:       log,
		cfg:       cfg,
		runCfg:    runCfg,
		composite: NewCompositeScorer(runCfg),
	}
}

// runState carries the mutable claim sets through the tiers. Claiming is
// serialized: only the tier loop writes, which is what preserves the
// first-match and first-highest-score tie-break rules.
type runState struct {
	source        []models.NormalizedRecord
	target        []models.NormalizedRecord
	claimedSource []bool
	claimedTarget []bool
	matches       []models.Match
	audit         []models.AuditEvent
	deadline      time.Time
	timedOut      bool
}

func (s *runState) expired(ctx context.Context) bool {
	if s.timedOut {
		return true
	}
	select {
	case <-ctx.Done():
		s.timedOut = true
		return true
	default:
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		s.timedOut = true
		return true
	}
	return false
}

func (s *runState) addEvent(stage string, details map[string]any) {
	s.audit = append(s.audit, models.AuditEvent{
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		Details:   details,
	})
}

func (s *runState) matchedCount() int {
	return len(s.matches)
}

// Run executes all tiers in order and returns the committed matches, the
// residual unmatched records and the audit trail. Budget expiry is not an
// error: the pipeline stops before the next unprocessed source record and
// returns whatever state exists.
func (p *Pipeline) Run(ctx context.Context, source, target []models.NormalizedRecord) *PipelineResult {
	ctx, span := tracing.StartSpan(ctx, "matching.Pipeline.Run")
	defer span.End()

	state := &runState{
		source:        source,
		target:        target,
		claimedSource: make([]bool, len(source)),
		claimedTarget: make([]bool, len(target)),
	}
	if p.cfg.TimeBudget > 0 {
		state.deadline = time.Now().Add(p.cfg.TimeBudget)
	}

	state.addEvent("run_started", map[string]any{
		"source_count": len(source),
		"target_count": len(target),
		"algorithm":    string(p.runCfg.MatchingAlgorithm),
	})

	p.runExactTier(ctx, state)
	state.addEvent("exact_matching_completed", map[string]any{
		"matched": state.matchedCount(),
	})

	if !state.timedOut {
		p.runFuzzyTier(ctx, state, p.cfg.StrongThreshold, "strong_fuzzy_matching_completed")
	}

	if !state.timedOut && p.runCfg.AllowPartialMatches {
		p.runFuzzyTier(ctx, state, p.cfg.ModerateThreshold, "moderate_fuzzy_matching_completed")
	}

	if state.timedOut {
		state.addEvent("early_termination", map[string]any{
			"matched":   state.matchedCount(),
			"remaining": countUnclaimed(state.claimedSource),
		})
		p.log.WithContext(ctx).WithFields(map[string]any{
			"matched": state.matchedCount(),
		}).Warn("Reconciliation stopped early: time budget expired")
	}

	result := &PipelineResult{
		Matches:    state.matches,
		AuditTrail: state.audit,
		TimedOut:   state.timedOut,
	}
	result.Unmatched.SourceRecords = collectUnclaimed(source, state.claimedSource)
	result.Unmatched.TargetRecords = collectUnclaimed(target, state.claimedTarget)

	return result
}

// runExactTier claims the first unclaimed target whose amount matches within
// the epsilon and whose date or description matches exactly. First match
// wins; the scan never looks for a better candidate.
func (p *Pipeline) runExactTier(ctx context.Context, state *runState) {
	for i := range state.source {
		if state.expired(ctx) {
			return
		}
		src := &state.source[i]

		for j := range state.target {
			if state.claimedTarget[j] {
				continue
			}
			tgt := &state.target[j]
			if !isExactMatch(src, tgt) {
				continue
			}

			state.claimedSource[i] = true
			state.claimedTarget[j] = true
			state.matches = append(state.matches, p.buildMatch(src, tgt, models.MatchTierExact, 1.0))
			break
		}
	}
}

// runFuzzyTier scores every remaining source record against every remaining
// target and claims the highest-scoring target at or above the threshold.
// Ties break to the first highest-scoring target in input order.
func (p *Pipeline) runFuzzyTier(ctx context.Context, state *runState, threshold float64, auditStage string) {
	for i := range state.source {
		if state.expired(ctx) {
			break
		}
		if state.claimedSource[i] {
			continue
		}
		src := &state.source[i]

		bestIdx, bestScore := p.bestCandidate(ctx, src, state)
		if bestIdx < 0 || bestScore < threshold {
			continue
		}

		state.claimedSource[i] = true
		state.claimedTarget[bestIdx] = true
		state.matches = append(state.matches, p.buildMatch(src, &state.target[bestIdx], p.tierForScore(bestScore), bestScore))
	}

	state.addEvent(auditStage, map[string]any{
		"matched":   state.matchedCount(),
		"threshold": threshold,
	})
}

// bestCandidate scores src against every unclaimed target. Scoring may fan
// out over a bounded worker group; results land in index order so the
// reduction below keeps the documented tie-break.
func (p *Pipeline) bestCandidate(ctx context.Context, src *models.NormalizedRecord, state *runState) (int, float64) {
	scores := make([]float64, len(state.target))
	for i := range scores {
		scores[i] = -1
	}

	eligible := func(j int) bool {
		if state.claimedTarget[j] {
			return false
		}
		if p.runCfg.RequireExactAmount {
			tgt := &state.target[j]
			if !src.AmountValid || !tgt.AmountValid || !amountsEqual(src.Amount, tgt.Amount) {
				return false
			}
		}
		return true
	}

	if p.cfg.ScoreWorkers <= 1 {
		for j := range state.target {
			if eligible(j) {
				scores[j], _ = p.composite.Score(src, &state.target[j])
			}
		}
	} else {
		var wg sync.WaitGroup
		for w := 0; w < p.cfg.ScoreWorkers; w++ {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				for j := offset; j < len(state.target); j += p.cfg.ScoreWorkers {
					if eligible(j) {
						scores[j], _ = p.composite.Score(src, &state.target[j])
					}
				}
			}(w)
		}
		wg.Wait()
	}

	bestIdx, bestScore := -1, -1.0
	for j, score := range scores {
		if score > bestScore {
			bestIdx, bestScore = j, score
		}
	}
	return bestIdx, bestScore
}

// buildMatch commits a claimed pair: field comparisons, discrepancies,
// adjusted confidence and the recommended action. Exact matches start from a
// fixed confidence of 100; fuzzy matches from similarity x 100.
func (p *Pipeline) buildMatch(src, tgt *models.NormalizedRecord, tier models.MatchTier, similarity float64) models.Match {
	_, comparisons := p.composite.Score(src, tgt)
	discrepancies := DeriveDiscrepancies(src, tgt)

	raw := similarity * 100
	if tier == models.MatchTierExact {
		raw = 100
	}
	confidence := AdjustConfidence(raw, src, tgt, discrepancies)

	return models.Match{
		ID:            uuid.New().String(),
		SourceRecord:  src.Record,
		TargetRecord:  tgt.Record,
		Tier:          tier,
		Similarity:    similarity,
		Confidence:    confidence,
		Comparisons:   comparisons,
		Discrepancies: discrepancies,
		Action:        ActionForConfidence(confidence),
	}
}

// tierForScore labels a fuzzy match by its achieved score.
func (p *Pipeline) tierForScore(score float64) models.MatchTier {
	switch {
	case score >= p.cfg.StrongThreshold:
		return models.MatchTierStrong
	case score >= p.cfg.ModerateThreshold:
		return models.MatchTierModerate
	default:
		return models.MatchTierWeak
	}
}

func isExactMatch(src, tgt *models.NormalizedRecord) bool {
	if !src.AmountValid || !tgt.AmountValid || !amountsEqual(src.Amount, tgt.Amount) {
		return false
	}
	if src.DateValid && tgt.DateValid && src.NormalizedDate == tgt.NormalizedDate {
		return true
	}
	// An empty description carries no corroborating signal, so it never
	// qualifies a pair for the exact tier on its own.
	return strings.EqualFold(src.Description, tgt.Description) && src.Description != ""
}

func amountsEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < amountEpsilon
}

func countUnclaimed(claimed []bool) int {
	count := 0
	for _, c := range claimed {
		if !c {
			count++
		}
	}
	return count
}

func collectUnclaimed(records []models.NormalizedRecord, claimed []bool) []models.Record {
	unclaimed := make([]models.Record, 0)
	for i, record := range records {
		if !claimed[i] {
			unclaimed = append(unclaimed, record.Record)
		}
	}
	return unclaimed
}
