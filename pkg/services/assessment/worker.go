package assessment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/services/collectors"
	"github.com/de-tools/compliance-atlas/pkg/services/credentials"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
	"github.com/rs/zerolog"
)

// ReportSink persists one unit's raw collector output. Blob storage in
// production; a no-op in tests.
type ReportSink interface {
	SaveRawReport(ctx context.Context, unit domain.UnitOfWork, findings []domain.Finding) error
}

// Worker processes one unit of work end to end: collect, reconcile,
// report completion, and finalize the assessment when it is the unit that
// crosses completed_units == total_units.
type Worker struct {
	assessments assessmentstore.Store
	findings    finding.Store
	history     history.Store
	reconciler  *Reconciler
	collectors  collectors.Registry
	credentials credentials.Provider
	reports     ReportSink
}

func NewWorker(
	db *sql.DB,
	assessments assessmentstore.Store,
	findings finding.Store,
	historyStore history.Store,
	registry collectors.Registry,
	provider credentials.Provider,
	reports ReportSink,
) *Worker {
	return &Worker{
		assessments: assessments,
		findings:    findings,
		history:     historyStore,
		reconciler:  NewReconciler(db, findings, historyStore),
		collectors:  registry,
		credentials: provider,
		reports:     reports,
	}
}

// Handle is the queue handler for one unit. Delivery is at-least-once, so
// every step is safe to repeat. Returned errors go back to the transport
// for redelivery; before returning one, the assessment is best-effort
// marked failed.
func (w *Worker) Handle(ctx context.Context, unit domain.UnitOfWork) error {
	logger := zerolog.Ctx(ctx).With().
		Str("assessment_id", unit.AssessmentID).
		Str("subscription_id", unit.SubscriptionID).
		Str("module", unit.Module.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	job, err := w.assessments.Get(ctx, unit.AssessmentID)
	if err != nil {
		return w.fail(ctx, unit, fmt.Errorf("load assessment: %w", err))
	}
	if job == nil {
		// Redelivered unit for a deleted job: a no-op, not an error.
		logger.Warn().Msg("assessment no longer exists, discarding unit")
		return nil
	}

	if err := w.assessments.MarkRunning(ctx, unit.AssessmentID); err != nil {
		return w.fail(ctx, unit, fmt.Errorf("mark running: %w", err))
	}

	runStart := time.Now().UTC()
	counts := domain.SeverityCounts{}
	unitStatus := store.ModuleResultCompleted
	var unitError *string

	raw, err := w.collect(ctx, unit)
	if err != nil {
		// One subscription's collection failure must not block the
		// fan-in: record it, contribute zero findings, still count the
		// unit as complete.
		logger.Error().Err(err).Msg("collector failed, unit completes with no findings")
		unitStatus = store.ModuleResultFailed
		msg := err.Error()
		unitError = &msg
	} else {
		if w.reports != nil {
			if err := w.reports.SaveRawReport(ctx, unit, raw); err != nil {
				logger.Warn().Err(err).Msg("failed to persist raw report, continuing")
			}
		}
		counts, err = w.reconciler.ReconcileUnit(ctx, unit, raw, runStart)
		if err != nil {
			return w.fail(ctx, unit, fmt.Errorf("reconcile unit: %w", err))
		}
	}

	result := store.ModuleResult{
		AssessmentID:     unit.AssessmentID,
		SubscriptionID:   unit.SubscriptionID,
		SubscriptionName: unit.SubscriptionName,
		Status:           unitStatus,
		TotalFindings:    counts.Total,
		HighFindings:     counts.High,
		MediumFindings:   counts.Medium,
		LowFindings:      counts.Low,
		Score:            ModuleScore(counts),
		ErrorMessage:     unitError,
		CompletedAt:      time.Now().UTC(),
	}
	if err := w.assessments.AddModuleResult(ctx, result); err != nil {
		return w.fail(ctx, unit, fmt.Errorf("record module result: %w", err))
	}

	completed, err := w.assessments.RecordUnitComplete(ctx, unit.AssessmentID)
	if err != nil {
		return w.fail(ctx, unit, fmt.Errorf("record unit complete: %w", err))
	}

	logger.Info().
		Int("completed_units", completed).
		Int("total_units", unit.TotalUnits).
		Str("unit_status", unitStatus).
		Msg("unit complete")

	// Only the caller whose increment crossed the boundary finalizes.
	if completed == unit.TotalUnits {
		if err := w.finalize(ctx, unit); err != nil {
			return w.fail(ctx, unit, fmt.Errorf("finalize assessment: %w", err))
		}
	}
	return nil
}

// collect acquires a credential session scoped to the unit and runs the
// module's collector for the unit's subscription.
func (w *Worker) collect(ctx context.Context, unit domain.UnitOfWork) ([]domain.Finding, error) {
	session, err := w.credentials.Acquire(ctx, unit.CredentialsRef)
	if err != nil {
		return nil, fmt.Errorf("acquire credentials: %w", err)
	}
	defer session.Close()

	collector, err := w.collectors.Create(ctx, unit.Module, session)
	if err != nil {
		return nil, fmt.Errorf("create collector: %w", err)
	}

	raw, err := collector.Collect(ctx, domain.Subscription{
		ID:   unit.SubscriptionID,
		Name: unit.SubscriptionName,
	})
	if err != nil {
		return nil, fmt.Errorf("collect findings: %w", err)
	}
	return raw, nil
}

// finalize aggregates the whole run from its persisted finding rows, so
// the result is independent of unit completion order, then resolves the
// history rows this run stopped observing and completes the job.
func (w *Worker) finalize(ctx context.Context, unit domain.UnitOfWork) error {
	logger := zerolog.Ctx(ctx)
	now := time.Now().UTC()

	agg, err := w.findings.Aggregate(ctx, unit.AssessmentID)
	if err != nil {
		return fmt.Errorf("aggregate findings: %w", err)
	}

	observed, err := w.findings.DistinctHashes(ctx, unit.AssessmentID)
	if err != nil {
		return fmt.Errorf("load observed hashes: %w", err)
	}

	resolved, err := w.history.ResolveMissing(ctx, unit.CustomerID, unit.Module.String(), observed, now)
	if err != nil {
		return fmt.Errorf("resolve missing findings: %w", err)
	}

	agg.Score = Score(domain.SeverityCounts{
		Total:  agg.TotalFindings,
		High:   agg.HighFindings,
		Medium: agg.MediumFindings,
		Low:    agg.LowFindings,
	})
	agg.CompletedAt = now

	if err := w.assessments.Finalize(ctx, unit.AssessmentID, agg); err != nil {
		return err
	}

	logger.Info().
		Int("total_findings", agg.TotalFindings).
		Int("score", agg.Score).
		Int64("resolved_findings", resolved).
		Msg("assessment finalized")
	return nil
}

// fail best-effort marks the assessment failed and hands the original
// error back to the transport, which owns retry policy.
func (w *Worker) fail(ctx context.Context, unit domain.UnitOfWork, err error) error {
	logger := zerolog.Ctx(ctx)
	if markErr := w.assessments.MarkFailed(ctx, unit.AssessmentID, err.Error()); markErr != nil {
		logger.Error().Err(markErr).Msg("failed to mark assessment failed")
	}
	return err
}
