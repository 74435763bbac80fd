// Package postgres implements database.Backend on top of pgxpool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/errs"
)

// DB is a PostgreSQL connection pool for one endpoint.
// It is safe for concurrent use by multiple goroutines.
type DB struct {
	pool     *pgxpool.Pool
	endpoint database.Endpoint
}

// Open builds the pool for ep. No connection is dialled here; the first
// Ping or query establishes one, so replicas are validated lazily.
func Open(ctx context.Context, ep database.Endpoint) (*DB, error) {
	poolCfg, err := buildPoolConfig(ep)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	return &DB{pool: pool, endpoint: ep}, nil
}

// --- database.Backend implementation ---

// Endpoint returns the endpoint the pool was built for.
func (db *DB) Endpoint() database.Endpoint {
	return db.endpoint
}

// Ping verifies the database is reachable by acquiring a connection and
// running an empty statement on it.
func (db *DB) Ping(ctx context.Context) error {
	return mapError(db.pool.Ping(ctx), "ping failed")
}

// Close drains the connection pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Query executes a query returning multiple rows
func (db *DB) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgRow{row: db.pool.QueryRow(ctx, sql, args...)}
}

// Exec executes a statement returning the number of rows affected
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

// Begin starts a transaction, read-only when opts asks for it.
func (db *DB) Begin(ctx context.Context, opts database.TxOptions) (database.Tx, error) {
	txOpts := pgx.TxOptions{}
	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	tx, err := db.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &pgTx{tx: tx}, nil
}

// Pool returns the underlying pgxpool (for advanced use)
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// --- pgRows wraps pgx.Rows ---

type pgRows struct{ rows pgx.Rows }

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return mapError(r.rows.Scan(dest...), "scan failed") }
func (r *pgRows) Close()                 { r.rows.Close() }
func (r *pgRows) Err() error             { return mapError(r.rows.Err(), "row iteration failed") }

func (r *pgRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// --- pgRow wraps pgx.Row ---

type pgRow struct{ row pgx.Row }

func (r *pgRow) Scan(dest ...any) error { return mapError(r.row.Scan(dest...), "scan failed") }

// --- pgTx wraps pgx.Tx ---

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgRows{rows: rows}, nil
}

func (t *pgTx) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgRow{row: t.tx.QueryRow(ctx, sql, args...)}
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx), "commit failed")
}

func (t *pgTx) Rollback(ctx context.Context) error {
	return mapError(t.tx.Rollback(ctx), "rollback failed")
}
