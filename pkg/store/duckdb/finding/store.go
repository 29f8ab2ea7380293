package finding

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
)

// Store persists per-run findings. Rows are append-only; aggregation at
// finalization is a plain SUM/COUNT over them, so the final result does
// not depend on unit completion order.
type Store interface {
	Add(ctx context.Context, findings []store.Finding) error
	DeleteByUnit(ctx context.Context, assessmentID, subscriptionID string) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]store.Finding, error)
	Aggregate(ctx context.Context, assessmentID string) (store.Aggregate, error)
	DistinctHashes(ctx context.Context, assessmentID string) ([]string, error)
}

type findingStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &findingStore{db: db}, nil
}

func (s *findingStore) Add(ctx context.Context, findings []store.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx := duckdb.GetTransaction(ctx)
	query := `
		INSERT INTO assessment_findings (
			assessment_id, module_code, subscription_id, severity, category,
			resource_id, resource_name, resource_type, finding_text, recommendation,
			content_hash, change_status, status, first_seen_at, last_seen_at,
			occurrence_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var stmt *sql.Stmt
	var err error
	if tx == nil {
		stmt, err = s.db.PrepareContext(ctx, query)
	} else {
		stmt, err = tx.PrepareContext(ctx, query)
	}
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		_, err = stmt.ExecContext(ctx,
			f.AssessmentID, f.ModuleCode, f.SubscriptionID, f.Severity, f.Category,
			f.ResourceID, f.ResourceName, f.ResourceType, f.FindingText, f.Recommendation,
			f.ContentHash, f.ChangeStatus, f.Status, f.FirstSeenAt, f.LastSeenAt,
			f.OccurrenceCount,
		)
		if err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}
	return nil
}

// DeleteByUnit clears one unit's rows so a redelivered unit replaces its
// earlier observations instead of appending a second set.
func (s *findingStore) DeleteByUnit(ctx context.Context, assessmentID, subscriptionID string) error {
	tx := duckdb.GetTransaction(ctx)
	query := `DELETE FROM assessment_findings WHERE assessment_id = ? AND subscription_id = ?`

	var err error
	if tx == nil {
		_, err = s.db.ExecContext(ctx, query, assessmentID, subscriptionID)
	} else {
		_, err = tx.ExecContext(ctx, query, assessmentID, subscriptionID)
	}
	if err != nil {
		return fmt.Errorf("delete findings for unit %s/%s: %w", assessmentID, subscriptionID, err)
	}
	return nil
}

func (s *findingStore) ListByAssessment(ctx context.Context, assessmentID string) ([]store.Finding, error) {
	query := `
		SELECT assessment_id, module_code, subscription_id, severity, category,
			resource_id, resource_name, resource_type, finding_text, recommendation,
			content_hash, change_status, status, first_seen_at, last_seen_at,
			occurrence_count
		FROM assessment_findings
		WHERE assessment_id = ?
		ORDER BY subscription_id, content_hash`

	rows, err := s.db.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []store.Finding
	for rows.Next() {
		var f store.Finding
		err := rows.Scan(
			&f.AssessmentID, &f.ModuleCode, &f.SubscriptionID, &f.Severity, &f.Category,
			&f.ResourceID, &f.ResourceName, &f.ResourceType, &f.FindingText, &f.Recommendation,
			&f.ContentHash, &f.ChangeStatus, &f.Status, &f.FirstSeenAt, &f.LastSeenAt,
			&f.OccurrenceCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (s *findingStore) Aggregate(ctx context.Context, assessmentID string) (store.Aggregate, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN severity = 'high' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN severity = 'medium' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN severity = 'low' THEN 1 ELSE 0 END), 0)
		FROM assessment_findings
		WHERE assessment_id = ?`

	var agg store.Aggregate
	err := s.db.QueryRowContext(ctx, query, assessmentID).Scan(
		&agg.TotalFindings, &agg.HighFindings, &agg.MediumFindings, &agg.LowFindings,
	)
	if err != nil {
		return store.Aggregate{}, fmt.Errorf("aggregate findings for %s: %w", assessmentID, err)
	}
	return agg, nil
}

// DistinctHashes returns every content hash observed in this run, used at
// finalization to resolve history rows the run did not re-observe.
func (s *findingStore) DistinctHashes(ctx context.Context, assessmentID string) ([]string, error) {
	query := `
		SELECT DISTINCT content_hash
		FROM assessment_findings
		WHERE assessment_id = ?`

	rows, err := s.db.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("query distinct hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
