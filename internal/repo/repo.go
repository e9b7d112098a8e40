// Package repo persists schedules, runs, users, and audit entries in Postgres.
package repo

import (
	"context"
	"database/sql"
)

// Querier is the subset of *sql.DB and *sql.Tx the repos use. Repos are bound
// to a DB by default; WithTx rebinds one to an open transaction so the caller
// can couple writes across repos (claim + advance).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
