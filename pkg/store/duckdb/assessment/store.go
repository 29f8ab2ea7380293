package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/compliance-atlas/pkg/models/store"
)

// Store persists assessment job records and per-unit module results.
//
// RecordUnitComplete is the completion coordinator: it must stay a single
// atomic increment-and-return statement so that when N workers finish
// concurrently, exactly one of them observes completed_units == total_units
// and performs finalization. A read-then-write sequence here would allow
// double or missed finalization.
type Store interface {
	Create(ctx context.Context, a *store.Assessment) error
	Get(ctx context.Context, id string) (*store.Assessment, error)
	MarkRunning(ctx context.Context, id string) error
	RecordUnitComplete(ctx context.Context, id string) (int, error)
	Finalize(ctx context.Context, id string, agg store.Aggregate) error
	MarkFailed(ctx context.Context, id string, message string) error
	AddModuleResult(ctx context.Context, r store.ModuleResult) error
	ListModuleResults(ctx context.Context, id string) ([]store.ModuleResult, error)
}

type assessmentStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &assessmentStore{db: db}, nil
}

func (s *assessmentStore) Create(ctx context.Context, a *store.Assessment) error {
	query := `
		INSERT INTO assessments (
			id, customer_id, connection_id, module_id, module_code,
			status, total_units, completed_units, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.CustomerID, a.ConnectionID, a.ModuleID, a.ModuleCode,
		a.Status, a.TotalUnits, a.CompletedUnits, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// Get returns (nil, nil) when the assessment does not exist. Workers rely
// on this to discard redelivered units for deleted jobs without treating
// them as errors.
func (s *assessmentStore) Get(ctx context.Context, id string) (*store.Assessment, error) {
	query := `
		SELECT id, customer_id, connection_id, module_id, module_code,
			status, total_units, completed_units,
			total_findings, high_findings, medium_findings, low_findings,
			score, error_message, created_at, started_at, completed_at
		FROM assessments
		WHERE id = ?`

	var a store.Assessment
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.CustomerID, &a.ConnectionID, &a.ModuleID, &a.ModuleCode,
		&a.Status, &a.TotalUnits, &a.CompletedUnits,
		&a.TotalFindings, &a.HighFindings, &a.MediumFindings, &a.LowFindings,
		&a.Score, &a.ErrorMessage, &a.CreatedAt, &a.StartedAt, &a.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query assessment %s: %w", id, err)
	}
	return &a, nil
}

// MarkRunning is idempotent: it only applies while the assessment is
// queued or already running, and started_at keeps the first unit's value.
func (s *assessmentStore) MarkRunning(ctx context.Context, id string) error {
	query := `
		UPDATE assessments
		SET status = ?, started_at = COALESCE(started_at, CURRENT_TIMESTAMP)
		WHERE id = ? AND status IN (?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		store.AssessmentRunning, id, store.AssessmentQueued, store.AssessmentRunning)
	if err != nil {
		return fmt.Errorf("mark assessment %s running: %w", id, err)
	}
	return nil
}

func (s *assessmentStore) RecordUnitComplete(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE assessments
		SET completed_units = completed_units + 1
		WHERE id = ?
		RETURNING completed_units`

	var completed int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("assessment %s no longer exists", id)
	}
	if err != nil {
		return 0, fmt.Errorf("record unit complete for %s: %w", id, err)
	}
	return completed, nil
}

// Finalize writes the aggregated fields exactly once: the status guard
// means a second call (which the coordinator already prevents) is a no-op.
func (s *assessmentStore) Finalize(ctx context.Context, id string, agg store.Aggregate) error {
	query := `
		UPDATE assessments
		SET status = ?, total_findings = ?, high_findings = ?,
			medium_findings = ?, low_findings = ?, score = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		store.AssessmentCompleted,
		agg.TotalFindings, agg.HighFindings, agg.MediumFindings, agg.LowFindings,
		agg.Score, agg.CompletedAt,
		id, store.AssessmentQueued, store.AssessmentRunning)
	if err != nil {
		return fmt.Errorf("finalize assessment %s: %w", id, err)
	}
	return nil
}

func (s *assessmentStore) MarkFailed(ctx context.Context, id string, message string) error {
	query := `
		UPDATE assessments
		SET status = ?, error_message = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != ?`

	_, err := s.db.ExecContext(ctx, query, store.AssessmentFailed, message, id, store.AssessmentCompleted)
	if err != nil {
		return fmt.Errorf("mark assessment %s failed: %w", id, err)
	}
	return nil
}

// AddModuleResult upserts so that a redelivered unit overwrites its own
// previous result instead of failing on the primary key. The error message
// binds as sql.NullString; the driver cannot bind a *string.
func (s *assessmentStore) AddModuleResult(ctx context.Context, r store.ModuleResult) error {
	query := `
		INSERT INTO module_results (
			assessment_id, subscription_id, subscription_name, status,
			total_findings, high_findings, medium_findings, low_findings,
			score, error_message, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (assessment_id, subscription_id) DO UPDATE SET
			status = excluded.status,
			total_findings = excluded.total_findings,
			high_findings = excluded.high_findings,
			medium_findings = excluded.medium_findings,
			low_findings = excluded.low_findings,
			score = excluded.score,
			error_message = excluded.error_message,
			completed_at = excluded.completed_at`

	var errMsg sql.NullString
	if r.ErrorMessage != nil {
		errMsg = sql.NullString{String: *r.ErrorMessage, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		r.AssessmentID, r.SubscriptionID, r.SubscriptionName, r.Status,
		r.TotalFindings, r.HighFindings, r.MediumFindings, r.LowFindings,
		r.Score, errMsg, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert module result: %w", err)
	}
	return nil
}

func (s *assessmentStore) ListModuleResults(ctx context.Context, id string) ([]store.ModuleResult, error) {
	query := `
		SELECT assessment_id, subscription_id, subscription_name, status,
			total_findings, high_findings, medium_findings, low_findings,
			score, error_message, completed_at
		FROM module_results
		WHERE assessment_id = ?
		ORDER BY subscription_id`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query module results: %w", err)
	}
	defer rows.Close()

	var results []store.ModuleResult
	for rows.Next() {
		var r store.ModuleResult
		err := rows.Scan(
			&r.AssessmentID, &r.SubscriptionID, &r.SubscriptionName, &r.Status,
			&r.TotalFindings, &r.HighFindings, &r.MediumFindings, &r.LowFindings,
			&r.Score, &r.ErrorMessage, &r.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan module result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
