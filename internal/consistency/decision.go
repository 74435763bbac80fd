package consistency

import (
	"context"

	"github.com/koustreak/dbroute/internal/errs"
	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/metrics"
	"github.com/koustreak/dbroute/internal/routing"
)

// Operation is the kind of work a request performs.
type Operation int

const (
	// OpRead may go to a replica unless the caller wrote recently.
	OpRead Operation = iota
	// OpWrite always goes to the primary and opens the caller's window.
	OpWrite
)

func (o Operation) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Key derives the consistency key for a caller. An empty identity has no key.
func Key(identity string) string {
	if identity == "" {
		return ""
	}
	return "user:" + identity
}

// DeciderOption configures a Decider.
type DeciderOption func(*Decider)

// WithDeciderLogger sets the logger.
func WithDeciderLogger(l *logger.Logger) DeciderOption {
	return func(d *Decider) { d.log = logger.OrNop(l) }
}

// WithDeciderMetrics counts decisions.
func WithDeciderMetrics(m *metrics.Metrics) DeciderOption {
	return func(d *Decider) { d.metrics = m }
}

// Decider picks the router for one operation.
type Decider struct {
	tracker Tracker
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewDecider builds a decider backed by tracker.
func NewDecider(tracker Tracker, opts ...DeciderOption) *Decider {
	d := &Decider{tracker: tracker, log: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Route returns the router op should use.
//
// Writes always get a primary-only router, and an identified writer opens a
// new window. Reads get a primary-only router while the caller's window is
// open and router itself otherwise. A tracker failure yields the primary-only
// router along with the error.
func (d *Decider) Route(ctx context.Context, op Operation, identity string, router *routing.Router) (*routing.Router, error) {
	key := Key(identity)

	if op == OpWrite {
		var err error
		if key != "" {
			if markErr := d.tracker.MarkMutation(ctx, key); markErr != nil {
				err = errs.Wrap(errs.KindOf(markErr), "mark mutation for "+key, markErr)
			}
		}
		d.metrics.ObserveDecision(op.String(), metrics.RoutePrimary)
		return router.UsePrimaryOnly(), err
	}

	if key == "" {
		d.metrics.ObserveDecision(op.String(), metrics.RouteDefault)
		return router, nil
	}

	recent, err := d.tracker.RecentMutation(ctx, key)
	if err != nil {
		d.metrics.ObserveDecision(op.String(), metrics.RoutePrimary)
		return router.UsePrimaryOnly(), errs.Wrap(errs.KindOf(err), "lookup mutation for "+key, err)
	}
	if recent {
		d.metrics.ObserveDecision(op.String(), metrics.RoutePrimary)
		return router.UsePrimaryOnly(), nil
	}

	d.metrics.ObserveDecision(op.String(), metrics.RouteDefault)
	return router, nil
}
