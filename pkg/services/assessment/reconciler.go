package assessment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
)

// Reconciler classifies one unit's raw findings against the customer's
// finding history and updates both the per-run finding rows and the
// durable ledger.
type Reconciler struct {
	db       *sql.DB
	findings finding.Store
	history  history.Store
}

func NewReconciler(db *sql.DB, findings finding.Store, historyStore history.Store) *Reconciler {
	return &Reconciler{
		db:       db,
		findings: findings,
		history:  historyStore,
	}
}

// ReconcileUnit processes the raw findings of one (assessment, subscription)
// unit. Classification works off the pre-run history snapshot plus a
// same-run seen set: a hash present in either is Recurring, a first-ever
// hash is New. Delivery is at-least-once, so the whole write is safe to
// repeat: the unit's earlier rows are replaced rather than appended to,
// a ledger row already touched by this assessment is read back to its
// pre-run state before classifying, and every write lands in one
// transaction.
func (r *Reconciler) ReconcileUnit(
	ctx context.Context,
	unit domain.UnitOfWork,
	raw []domain.Finding,
	runStart time.Time,
) (domain.SeverityCounts, error) {
	prior, err := r.history.List(ctx, unit.CustomerID, unit.Module.String())
	if err != nil {
		return domain.SeverityCounts{}, fmt.Errorf("load finding history: %w", err)
	}

	snapshot := make(map[string]store.CustomerFinding, len(prior))
	for _, f := range prior {
		snapshot[f.ContentHash] = f
	}

	seen := make(map[string]struct{})
	rows := make([]store.Finding, 0, len(raw))
	upserts := make([]store.CustomerFinding, 0, len(raw))
	var counts domain.SeverityCounts

	for _, f := range raw {
		if f.Severity == domain.SeverityInfo {
			continue
		}

		hash := ContentHash(f.Resource.ID, f.Resource.Name, f.Text, f.Category)
		known, inHistory := snapshot[hash]
		if inHistory && known.LastAssessmentID == unit.AssessmentID {
			// This run already wrote the ledger row (a redelivered unit,
			// or another subscription's unit). Undo that write in the
			// local view so classification sees the pre-run state.
			if known.OccurrenceCount <= 1 {
				inHistory = false
			} else {
				known.OccurrenceCount--
			}
		}
		_, seenThisRun := seen[hash]

		change := domain.ChangeNew
		firstSeen := runStart
		occurrences := 1
		if inHistory {
			change = domain.ChangeRecurring
			firstSeen = known.FirstSeenAt
			occurrences = known.OccurrenceCount + 1
		} else if seenThisRun {
			change = domain.ChangeRecurring
		}

		rows = append(rows, store.Finding{
			AssessmentID:    unit.AssessmentID,
			ModuleCode:      unit.Module.String(),
			SubscriptionID:  unit.SubscriptionID,
			Severity:        f.Severity.String(),
			Category:        f.Category,
			ResourceID:      f.Resource.ID,
			ResourceName:    f.Resource.Name,
			ResourceType:    f.Resource.Type,
			FindingText:     f.Text,
			Recommendation:  f.Recommendation,
			ContentHash:     hash,
			ChangeStatus:    string(change),
			Status:          store.FindingOpen,
			FirstSeenAt:     firstSeen,
			LastSeenAt:      runStart,
			OccurrenceCount: occurrences,
		})

		if !seenThisRun {
			upserts = append(upserts, store.CustomerFinding{
				CustomerID:       unit.CustomerID,
				ModuleCode:       unit.Module.String(),
				ContentHash:      hash,
				Severity:         f.Severity.String(),
				Category:         f.Category,
				ResourceID:       f.Resource.ID,
				ResourceName:     f.Resource.Name,
				ResourceType:     f.Resource.Type,
				FindingText:      f.Text,
				Recommendation:   f.Recommendation,
				Status:           store.FindingOpen,
				FirstSeenAt:      firstSeen,
				LastSeenAt:       runStart,
				LastAssessmentID: unit.AssessmentID,
			})
		}

		seen[hash] = struct{}{}
		counts.Add(f.Severity)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SeverityCounts{}, fmt.Errorf("begin transaction: %w", err)
	}
	txCtx := duckdb.WithTransaction(ctx, tx)

	if err := r.findings.DeleteByUnit(txCtx, unit.AssessmentID, unit.SubscriptionID); err != nil {
		_ = tx.Rollback()
		return domain.SeverityCounts{}, fmt.Errorf("clear unit findings: %w", err)
	}
	for _, u := range upserts {
		if err := r.history.Upsert(txCtx, u); err != nil {
			_ = tx.Rollback()
			return domain.SeverityCounts{}, fmt.Errorf("upsert finding history: %w", err)
		}
	}
	if err := r.findings.Add(txCtx, rows); err != nil {
		_ = tx.Rollback()
		return domain.SeverityCounts{}, fmt.Errorf("persist findings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.SeverityCounts{}, fmt.Errorf("commit unit reconciliation: %w", err)
	}
	return counts, nil
}
