// Package debounce implements the Postgres-backed coalescing layer:
// the Debounce Store, Batch Tracker, Debounce Engine, and Arg
// Accumulator (spec.md §4.2-§4.5).
package debounce

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so callers decide
// whether a given operation runs in their own open transaction
// (submission-time debouncing) or in one the engine opens and owns
// (post-preprocessing debouncing).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
