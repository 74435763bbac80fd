// Package routing dispatches database operations to the primary or to one of
// its read replicas.
//
// A Router holds the primary backend, an ordered replica set and a Strategy.
// Writes and transactions always go to the primary. Reads go to a replica
// chosen by the strategy unless the router is in primary-only mode, which is
// obtained through UsePrimaryOnly and never mutates the source router.
//
// Errors from the chosen backend are returned as-is. The router does not
// retry on another replica and does not fall back to the primary when a
// replica fails.
package routing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/metrics"
)

const tracerName = "github.com/koustreak/dbroute/internal/routing"

// Mode controls where reads go.
type Mode int

const (
	// ModeAuto sends reads to a replica picked by the strategy.
	ModeAuto Mode = iota
	// ModePrimaryOnly sends every operation to the primary.
	ModePrimaryOnly
)

func (m Mode) String() string {
	if m == ModePrimaryOnly {
		return "primary-only"
	}
	return "auto"
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Router) { r.log = logger.OrNop(l) }
}

// WithMetrics sets the metrics sink. nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMode sets the initial mode.
func WithMode(m Mode) Option {
	return func(r *Router) { r.mode = m }
}

// Router is safe for concurrent use. It does not own its backends.
type Router struct {
	primary  database.Backend
	replicas []database.Backend
	strategy Strategy
	mode     Mode

	log     *logger.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New builds a router. A nil strategy selects the first replica.
func New(primary database.Backend, replicas []database.Backend, strategy Strategy, opts ...Option) *Router {
	if strategy == nil {
		strategy = FirstAvailable()
	}
	r := &Router{
		primary:  primary,
		replicas: append([]database.Backend(nil), replicas...),
		strategy: strategy,
		mode:     ModeAuto,
		log:      logger.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UsePrimaryOnly returns a router sharing this one's backends and strategy
// with every read forced to the primary. r is left unchanged.
func (r *Router) UsePrimaryOnly() *Router {
	cp := *r
	cp.mode = ModePrimaryOnly
	return &cp
}

// Mode reports the routing mode.
func (r *Router) Mode() Mode { return r.mode }

// Strategy returns the replica selection strategy.
func (r *Router) Strategy() Strategy { return r.strategy }

// Primary returns the primary backend.
func (r *Router) Primary() database.Backend { return r.primary }

// Replicas returns a copy of the replica set in configured order.
func (r *Router) Replicas() []database.Backend {
	return append([]database.Backend(nil), r.replicas...)
}

// Reader returns the backend a read issued now would use.
func (r *Router) Reader() database.Backend {
	b, _ := r.read()
	return b
}

// Writer returns the primary.
func (r *Router) Writer() database.Backend { return r.primary }

// Query runs a read.
func (r *Router) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	b, idx := r.read()
	ctx, span := r.start(ctx, "query", idx)
	defer span.End()

	rows, err := b.Query(ctx, sql, args...)
	record(span, err)
	return rows, err
}

// QueryRow runs a single-row read. Errors surface from Row.Scan, which also
// ends the operation's span.
func (r *Router) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	b, idx := r.read()
	ctx, span := r.start(ctx, "query_row", idx)

	return &tracedRow{row: b.QueryRow(ctx, sql, args...), span: span}
}

type tracedRow struct {
	row  database.Row
	span trace.Span
}

func (t *tracedRow) Scan(dest ...any) error {
	defer t.span.End()
	err := t.row.Scan(dest...)
	record(t.span, err)
	return err
}

// Exec runs a write on the primary regardless of mode.
func (r *Router) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, span := r.start(ctx, "exec", -1)
	defer span.End()

	n, err := r.primary.Exec(ctx, sql, args...)
	record(span, err)
	return n, err
}

// Ping probes the primary.
func (r *Router) Ping(ctx context.Context) error {
	return r.primary.Ping(ctx)
}

// OnPrimary runs fn against the primary.
func (r *Router) OnPrimary(ctx context.Context, fn func(context.Context, database.Backend) error) error {
	ctx, span := r.start(ctx, "on_primary", -1)
	defer span.End()

	err := fn(ctx, r.primary)
	record(span, err)
	return err
}

// OnReplica runs fn against a replica picked by the strategy, even when the
// router is primary-only. With no replicas configured fn gets the primary.
func (r *Router) OnReplica(ctx context.Context, fn func(context.Context, database.Backend) error) error {
	b, idx := r.pick()
	ctx, span := r.start(ctx, "on_replica", idx)
	defer span.End()

	err := fn(ctx, b)
	record(span, err)
	return err
}

// InTx runs fn in a read-write transaction on the primary. The transaction
// commits when fn returns nil and rolls back otherwise.
func (r *Router) InTx(ctx context.Context, fn func(context.Context, database.Tx) error) error {
	ctx, span := r.start(ctx, "tx", -1)
	defer span.End()

	err := r.runTx(ctx, r.primary, database.TxOptions{}, fn)
	record(span, err)
	return err
}

// InReplicaTx runs fn in a read-only transaction on a replica picked by the
// strategy, or on the primary when there are no replicas.
func (r *Router) InReplicaTx(ctx context.Context, fn func(context.Context, database.Tx) error) error {
	b, idx := r.pick()
	ctx, span := r.start(ctx, "replica_tx", idx)
	defer span.End()

	err := r.runTx(ctx, b, database.TxOptions{ReadOnly: true}, fn)
	record(span, err)
	return err
}

func (r *Router) runTx(ctx context.Context, b database.Backend, opts database.TxOptions, fn func(context.Context, database.Tx) error) error {
	tx, err := b.Begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			r.rollback(ctx, tx, b)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		r.rollback(ctx, tx, b)
		return err
	}
	return tx.Commit(ctx)
}

func (r *Router) rollback(ctx context.Context, tx database.Tx, b database.Backend) {
	if err := tx.Rollback(ctx); err != nil {
		r.log.WarnWith("transaction rollback failed", err, map[string]any{
			"endpoint": b.Endpoint().String(),
		})
	}
}

// read resolves the backend for a read under the current mode.
func (r *Router) read() (database.Backend, int) {
	if r.mode == ModePrimaryOnly {
		return r.primary, -1
	}
	return r.pick()
}

// pick selects a replica, or the primary when the set is empty.
func (r *Router) pick() (database.Backend, int) {
	b, idx := Select(r.strategy, r.replicas)
	if b == nil {
		return r.primary, -1
	}
	return b, idx
}

func (r *Router) start(ctx context.Context, op string, replica int) (context.Context, trace.Span) {
	target := metrics.TargetPrimary
	if replica >= 0 {
		target = metrics.TargetReplica
	}
	r.metrics.ObserveOperation(op, target)

	attrs := []attribute.KeyValue{
		attribute.String("db.route.operation", op),
		attribute.String("db.route.target", target),
		attribute.String("db.route.mode", r.mode.String()),
	}
	if replica >= 0 {
		attrs = append(attrs, attribute.Int("db.route.replica_index", replica))
	}
	return r.tracer.Start(ctx, fmt.Sprintf("dbroute.%s", op), trace.WithAttributes(attrs...))
}

func record(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
