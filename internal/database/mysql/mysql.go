// Package mysql implements database.Backend on top of database/sql and
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/errs"
)

// DB is a MySQL connection pool for one endpoint.
// It is safe for concurrent use by multiple goroutines.
type DB struct {
	sqlDB    *sql.DB
	endpoint database.Endpoint
}

// Open builds the pool for ep without dialling.
func Open(_ context.Context, ep database.Endpoint) (*DB, error) {
	cfg, err := buildConfig(ep)
	if err != nil {
		return nil, err
	}

	connector, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfigInvalid, "invalid mysql config", err)
	}

	sqlDB := sql.OpenDB(connector)
	p := ep.Pool
	if p.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(p.MaxConns))
	}
	sqlDB.SetMaxIdleConns(idleConns(p))
	sqlDB.SetConnMaxIdleTime(p.IdleTimeout)
	sqlDB.SetConnMaxLifetime(p.MaxLifetime)

	return &DB{sqlDB: sqlDB, endpoint: ep}, nil
}

// defaultIdleConns matches database/sql's own default.
const defaultIdleConns = 2

// idleConns is the idle ceiling for p. MinConns is a warm floor, not a
// ceiling, so idle connections are capped by the open limit and trimmed by
// IdleTimeout.
func idleConns(p database.PoolConfig) int {
	if p.MaxConns > 0 {
		return int(p.MaxConns)
	}
	return max(defaultIdleConns, int(p.MinConns))
}

// Endpoint returns the endpoint the pool was built for.
func (db *DB) Endpoint() database.Endpoint {
	return db.endpoint
}

// Ping verifies the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return mapError(db.sqlDB.PingContext(ctx), "ping failed")
}

// Close shuts down the connection pool
func (db *DB) Close() error {
	return mapError(db.sqlDB.Close(), "close failed")
}

// Query executes a query returning multiple rows
func (db *DB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := db.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

// QueryRow executes a query returning a single row
func (db *DB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: db.sqlDB.QueryRowContext(ctx, query, args...)}
}

// Exec executes a statement returning rows affected
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := db.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	return n, mapError(err, "rows affected unavailable")
}

// Begin starts a transaction, read-only when opts asks for it.
func (db *DB) Begin(ctx context.Context, opts database.TxOptions) (database.Tx, error) {
	tx, err := db.sqlDB.BeginTx(ctx, &sql.TxOptions{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &mysqlTx{tx: tx}, nil
}

// SqlDB returns the underlying *sql.DB (for advanced use)
func (db *DB) SqlDB() *sql.DB {
	return db.sqlDB
}

// --- mysqlRows wraps *sql.Rows ---

type mysqlRows struct{ rows *sql.Rows }

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Scan(dest ...any) error     { return mapError(r.rows.Scan(dest...), "scan failed") }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }
func (r *mysqlRows) Err() error                 { return mapError(r.rows.Err(), "row iteration failed") }

// --- mysqlRow wraps *sql.Row ---

type mysqlRow struct{ row *sql.Row }

func (r *mysqlRow) Scan(dest ...any) error { return mapError(r.row.Scan(dest...), "scan failed") }

// --- mysqlTx wraps *sql.Tx ---

type mysqlTx struct{ tx *sql.Tx }

func (t *mysqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func (t *mysqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *mysqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	return n, mapError(err, "rows affected unavailable")
}

func (t *mysqlTx) Commit(_ context.Context) error   { return mapError(t.tx.Commit(), "commit failed") }
func (t *mysqlTx) Rollback(_ context.Context) error { return mapError(t.tx.Rollback(), "rollback failed") }
