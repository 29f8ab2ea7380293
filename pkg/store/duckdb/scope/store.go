package scope

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/compliance-atlas/pkg/models/store"
)

// Store is the read side of the customer management data: which
// subscriptions a connection covers and which modules their service tier
// includes. The CRUD API that writes these tables lives elsewhere.
type Store interface {
	GetConnection(ctx context.Context, id string) (*store.Connection, error)
	GetModuleID(ctx context.Context, code string) (int, error)
	ListSubscriptionsInScope(ctx context.Context, connectionID string, moduleID int) ([]store.Subscription, error)
}

type scopeStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &scopeStore{db: db}, nil
}

func (s *scopeStore) GetConnection(ctx context.Context, id string) (*store.Connection, error) {
	query := `
		SELECT id, customer_id, name, credentials_ref
		FROM connections
		WHERE id = ?`

	var c store.Connection
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.CustomerID, &c.Name, &c.CredentialsRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query connection %s: %w", id, err)
	}
	return &c, nil
}

func (s *scopeStore) GetModuleID(ctx context.Context, code string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, `SELECT id FROM modules WHERE code = ?`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("module %s is not registered", code)
	}
	if err != nil {
		return 0, fmt.Errorf("query module id for %s: %w", code, err)
	}
	return id, nil
}

// ListSubscriptionsInScope returns the connection's subscriptions whose
// assigned service tier includes the requested module.
func (s *scopeStore) ListSubscriptionsInScope(
	ctx context.Context,
	connectionID string,
	moduleID int,
) ([]store.Subscription, error) {
	query := `
		SELECT sub.id, sub.connection_id, sub.name, sub.tier_id
		FROM subscriptions sub
		JOIN tier_modules tm ON tm.tier_id = sub.tier_id
		WHERE sub.connection_id = ? AND tm.module_id = ?
		ORDER BY sub.id`

	rows, err := s.db.QueryContext(ctx, query, connectionID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions in scope: %w", err)
	}
	defer rows.Close()

	var subs []store.Subscription
	for rows.Next() {
		var sub store.Subscription
		if err := rows.Scan(&sub.ID, &sub.ConnectionID, &sub.Name, &sub.TierID); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
