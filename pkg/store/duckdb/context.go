package duckdb

import (
	"context"
	"database/sql"
)

type txKey struct{}

// WithTransaction binds a transaction to the context so that store
// operations sharing the context (finding inserts plus the history
// upserts of one unit) execute in the same transaction.
func WithTransaction(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func GetTransaction(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}
