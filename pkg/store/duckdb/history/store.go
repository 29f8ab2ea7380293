package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
)

// Store owns the customer finding ledger: one row per
// (customer, module, content hash), mutated by every run that re-observes
// the hash and resolved at finalization when a run stops observing it.
// Rows are never deleted.
type Store interface {
	List(ctx context.Context, customerID string, moduleCode string) ([]store.CustomerFinding, error)
	Upsert(ctx context.Context, f store.CustomerFinding) error
	ResolveMissing(ctx context.Context, customerID, moduleCode string, observedHashes []string, resolvedAt time.Time) (int64, error)
}

type historyStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &historyStore{db: db}, nil
}

func (s *historyStore) List(ctx context.Context, customerID string, moduleCode string) ([]store.CustomerFinding, error) {
	query := `
		SELECT customer_id, module_code, content_hash, severity, category,
			resource_id, resource_name, resource_type, finding_text, recommendation,
			status, first_seen_at, last_seen_at, occurrence_count, resolved_at,
			last_assessment_id
		FROM customer_findings
		WHERE customer_id = ? AND module_code = ?
		ORDER BY last_seen_at DESC`

	rows, err := s.db.QueryContext(ctx, query, customerID, moduleCode)
	if err != nil {
		return nil, fmt.Errorf("query customer findings: %w", err)
	}
	defer rows.Close()

	var findings []store.CustomerFinding
	for rows.Next() {
		var f store.CustomerFinding
		err := rows.Scan(
			&f.CustomerID, &f.ModuleCode, &f.ContentHash, &f.Severity, &f.Category,
			&f.ResourceID, &f.ResourceName, &f.ResourceType, &f.FindingText, &f.Recommendation,
			&f.Status, &f.FirstSeenAt, &f.LastSeenAt, &f.OccurrenceCount, &f.ResolvedAt,
			&f.LastAssessmentID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan customer finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// Upsert is a single atomic insert-or-update. The occurrence count grows
// by one per assessment, not per write: when the stored row was last
// touched by the same assessment (a redelivered unit, or a second
// subscription observing the same hash in one run) the increment is
// skipped, so repeated deliveries cannot compound the count.
func (s *historyStore) Upsert(ctx context.Context, f store.CustomerFinding) error {
	tx := duckdb.GetTransaction(ctx)
	query := `
		INSERT INTO customer_findings (
			customer_id, module_code, content_hash, severity, category,
			resource_id, resource_name, resource_type, finding_text, recommendation,
			status, first_seen_at, last_seen_at, occurrence_count, resolved_at,
			last_assessment_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, NULL, ?)
		ON CONFLICT (customer_id, module_code, content_hash) DO UPDATE SET
			severity = excluded.severity,
			category = excluded.category,
			resource_id = excluded.resource_id,
			resource_name = excluded.resource_name,
			resource_type = excluded.resource_type,
			finding_text = excluded.finding_text,
			recommendation = excluded.recommendation,
			status = excluded.status,
			last_seen_at = excluded.last_seen_at,
			occurrence_count = customer_findings.occurrence_count +
				CASE WHEN customer_findings.last_assessment_id = excluded.last_assessment_id
					THEN 0 ELSE 1 END,
			resolved_at = NULL,
			last_assessment_id = excluded.last_assessment_id`

	args := []interface{}{
		f.CustomerID, f.ModuleCode, f.ContentHash, f.Severity, f.Category,
		f.ResourceID, f.ResourceName, f.ResourceType, f.FindingText, f.Recommendation,
		store.FindingOpen, f.FirstSeenAt, f.LastSeenAt,
		f.LastAssessmentID,
	}

	var err error
	if tx == nil {
		_, err = s.db.ExecContext(ctx, query, args...)
	} else {
		_, err = tx.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("upsert customer finding %s: %w", f.ContentHash, err)
	}
	return nil
}

// ResolveMissing marks every open history row for the customer+module
// whose hash was not observed in this run as resolved. An empty observed
// set resolves all open rows.
func (s *historyStore) ResolveMissing(
	ctx context.Context,
	customerID, moduleCode string,
	observedHashes []string,
	resolvedAt time.Time,
) (int64, error) {
	args := []interface{}{store.FindingResolved, resolvedAt, customerID, moduleCode, store.FindingOpen}

	query := `
		UPDATE customer_findings
		SET status = ?, resolved_at = ?
		WHERE customer_id = ? AND module_code = ? AND status = ?`

	if len(observedHashes) > 0 {
		placeholders := make([]string, len(observedHashes))
		for i, h := range observedHashes {
			placeholders[i] = "?"
			args = append(args, h)
		}
		query += fmt.Sprintf(" AND content_hash NOT IN (%s)", strings.Join(placeholders, ", "))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("resolve missing findings: %w", err)
	}
	resolved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return resolved, nil
}
