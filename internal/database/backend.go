package database

//go:generate mockgen -source=backend.go -destination=mocks/mocks.go -package=mocks

import "context"

// Backend is a connection pool bound to a single Endpoint.
// Implementations are safe for concurrent use and queue callers once the
// pool's MaxConns ceiling is reached.
type Backend interface {
	// Endpoint returns the endpoint this pool was built for.
	Endpoint() Endpoint

	// Ping performs a trivial round-trip.
	Ping(ctx context.Context) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a statement expected to return at most one row.
	// Errors are deferred to Row.Scan.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Begin opens a transaction.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)

	// Close drains the pool.
	Close() error
}
