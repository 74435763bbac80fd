// Package dbpool owns the connection pools of a deployment and builds the
// router that dispatches work across them.
//
// A Manager is built from configuration without touching the network. Connect
// probes the primary with a bounded, linearly backed-off retry loop, opens the
// replica pools without probing them and returns a routing.Router whose
// replica strategy is derived from the configured strategy and the deployment
// region. ConnectIsolated hands out single-connection, primary-only pools for
// short batch jobs. CloseAll drains everything the manager opened.
package dbpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/dbroute/internal/config"
	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/errs"
	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/metrics"
	"github.com/koustreak/dbroute/internal/provider"
	"github.com/koustreak/dbroute/internal/routing"
)

// Isolated pool tuning.
const (
	IsolatedMaxConns    = 1
	IsolatedIdleTimeout = 10 * time.Second
	IsolatedMaxLifetime = 60 * time.Second
	isolatedLabelPrefix = "dbroute-job-"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = logger.OrNop(l).Component("dbpool") }
}

// WithMetrics sets the metrics sink, also passed to the routers.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock sets the clock used for retry delays and round-robin selection.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithConnector replaces the driver connector.
func WithConnector(c Connector) Option {
	return func(m *Manager) {
		if c != nil {
			m.connector = c
		}
	}
}

// WithResolver replaces the provider resolver.
func WithResolver(r *provider.Resolver) Option {
	return func(m *Manager) {
		if r != nil {
			m.resolver = r
		}
	}
}

// Manager owns every pool opened for one configuration.
type Manager struct {
	cfg      *config.Config
	profile  *provider.Profile
	topology *Topology
	strategy routing.StrategyKind

	connector Connector
	resolver  *provider.Resolver
	clock     clock.Clock
	log       *logger.Logger
	metrics   *metrics.Metrics

	warnOnce sync.Once

	mu       sync.Mutex
	backends []database.Backend
	isolated map[*Isolated]struct{}
	closed   bool
}

// New validates cfg and prepares the topology. It performs no I/O.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindConfigInvalid, "config is required")
	}

	m := &Manager{
		cfg:       cfg,
		connector: DriverConnector{},
		resolver:  provider.DefaultResolver(),
		clock:     clock.WallClock,
		log:       logger.Nop(),
		isolated:  make(map[*Isolated]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	kind, err := routing.ParseStrategy(cfg.Database.Strategy)
	if err != nil {
		return nil, err
	}
	m.strategy = kind

	m.profile = m.resolver.Resolve(cfg.Database.PrimaryURL)
	topo, err := BuildTopology(cfg.Database, cfg.Environment, m.profile)
	if err != nil {
		return nil, err
	}
	m.topology = topo
	return m, nil
}

// Topology returns the validated endpoints.
func (m *Manager) Topology() *Topology { return m.topology }

// Profile returns the provider profile resolved from the primary URL.
func (m *Manager) Profile() *provider.Profile { return m.profile }

// Connect opens the pools and returns a router over them.
//
// retries is the total number of primary probe attempts; a non-positive value
// uses the configured count. With no replicas configured the primary is not
// probed and a primary-only router is returned straight away.
func (m *Manager) Connect(ctx context.Context, retries int) (*routing.Router, error) {
	if retries <= 0 {
		retries = m.cfg.Database.ConnectRetries
	}
	if m.isClosed() {
		return nil, errs.New(errs.ErrKindConnectionFailed, "pool manager is closed")
	}

	primary, err := m.open(ctx, m.topology.Primary)
	if err != nil {
		return nil, err
	}

	if len(m.topology.Replicas) == 0 {
		m.warnOnce.Do(func() {
			m.log.Warn("no read replicas configured, all traffic goes to the primary")
		})
		return routing.New(primary, nil, nil, m.routerOptions(routing.WithMode(routing.ModePrimaryOnly))...), nil
	}

	if err := m.probe(ctx, primary, retries); err != nil {
		m.release(primary)
		return nil, err
	}

	replicas, err := m.openReplicas(ctx)
	if err != nil {
		m.release(primary)
		return nil, err
	}

	strategy, err := m.buildStrategy()
	if errs.IsRegionUnresolved(err) {
		m.log.WarnWith("falling back to round-robin replica selection", err, map[string]any{
			"region":    m.cfg.Region.String(),
			"canonical": m.profile.Canonical(m.cfg.Region.String()),
			"regions":   m.topology.Regions(),
		})
	}
	m.log.InfoWith("connected", map[string]any{
		"provider": m.profile.Name,
		"replicas": len(replicas),
		"strategy": strategy.Name(),
		"region":   m.cfg.Region.String(),
	})
	return routing.New(primary, replicas, strategy, m.routerOptions()...), nil
}

// probe pings the primary until it answers or attempts run out.
func (m *Manager) probe(ctx context.Context, primary database.Backend, attempts int) error {
	interval := m.cfg.Database.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := m.topology.Primary.Pool.ConnectTimeout

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			pctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			err := primary.Ping(pctx)
			m.metrics.ObserveConnectAttempt(err == nil)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			m.log.WarnWith("primary liveness probe failed", err, map[string]any{
				"attempt":  attempt,
				"attempts": attempts,
			})
		},
		Attempts:    attempts,
		Delay:       interval,
		BackoffFunc: linearBackoff(interval),
		Clock:       m.clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}

	last := retry.LastError(err)
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, "connect cancelled", last)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed,
		fmt.Sprintf("primary unreachable after %d attempts", attempts), last)
}

// linearBackoff waits attempt × base after the given failed attempt.
func linearBackoff(base time.Duration) func(time.Duration, int) time.Duration {
	return func(_ time.Duration, attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return time.Duration(attempt) * base
	}
}

// openReplicas opens every replica pool concurrently. Pools are not probed.
func (m *Manager) openReplicas(ctx context.Context) ([]database.Backend, error) {
	eps := m.topology.Replicas
	out := make([]database.Backend, len(eps))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range eps {
		g.Go(func() error {
			b, err := m.open(gctx, ep)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, b := range out {
			if b != nil {
				m.release(b)
			}
		}
		return nil, err
	}
	return out, nil
}

// buildStrategy turns the configured strategy into a routing.Strategy. A
// region strategy that cannot place the deployment region falls back to
// round-robin and reports the miss as a region_unresolved error.
func (m *Manager) buildStrategy() (routing.Strategy, error) {
	switch m.strategy {
	case routing.KindRandom:
		return routing.Random(), nil
	case routing.KindFirst:
		return routing.FirstAvailable(), nil
	case routing.KindRoundRobin:
		return routing.RoundRobin(m.clock), nil
	}

	current := m.cfg.Region
	if idx := m.profile.RegionIndex(string(current), m.topology.Regions()); idx != provider.NoMatch {
		m.log.With().
			Str("region", current.String()).
			Str("canonical", m.profile.Canonical(current.String())).
			Int("replica", idx).
			Logger().
			Debug("replica placed by region")
		return routing.RegionBased(idx), nil
	}

	return routing.RoundRobin(m.clock),
		errs.Newf(errs.ErrKindRegionUnresolved, "region %q matches no replica", current.String())
}

func (m *Manager) routerOptions(extra ...routing.Option) []routing.Option {
	return append([]routing.Option{
		routing.WithLogger(m.log),
		routing.WithMetrics(m.metrics),
	}, extra...)
}

// open opens a backend and tracks it for CloseAll.
func (m *Manager) open(ctx context.Context, ep database.Endpoint) (database.Backend, error) {
	b, err := m.connector.Open(ctx, ep)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.backends = append(m.backends, b)
	m.mu.Unlock()
	return b, nil
}

// release closes b and stops tracking it.
func (m *Manager) release(b database.Backend) {
	m.mu.Lock()
	for i, tracked := range m.backends {
		if tracked == b {
			m.backends = append(m.backends[:i], m.backends[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := b.Close(); err != nil {
		m.log.WarnWith("failed to close pool", err, map[string]any{"endpoint": b.Endpoint().String()})
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CloseAll closes every pool the manager opened, including isolated pools
// that are still open. Failures are aggregated. Later calls are no-ops.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	backends := m.backends
	m.backends = nil
	for iso := range m.isolated {
		backends = append(backends, iso.backend)
	}
	m.isolated = make(map[*Isolated]struct{})
	m.mu.Unlock()

	var result *multierror.Error
	for _, b := range backends {
		if err := b.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", b.Endpoint(), err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to close pools", err)
	}
	m.log.Info("all pools closed")
	return nil
}

// Isolated is a single-connection, primary-only pool for one batch job.
type Isolated struct {
	*routing.Router

	backend database.Backend
	manager *Manager
	label   string
	once    sync.Once
	err     error
}

// Label returns the application name the pool reports to the server.
func (i *Isolated) Label() string { return i.label }

// Close releases this pool only. Safe to call more than once.
func (i *Isolated) Close() error {
	i.once.Do(func() {
		m := i.manager
		m.mu.Lock()
		_, tracked := m.isolated[i]
		delete(m.isolated, i)
		m.mu.Unlock()

		// CloseAll already closed it.
		if !tracked {
			return
		}
		i.err = i.backend.Close()
		m.log.Debugf("isolated pool %s closed", i.label)
	})
	return i.err
}

// ConnectIsolated opens a dedicated pool on the primary pooler URL, or on the
// primary when no pooler is configured. Replicas are never involved.
func (m *Manager) ConnectIsolated(ctx context.Context) (*Isolated, error) {
	if m.isClosed() {
		return nil, errs.New(errs.ErrKindConnectionFailed, "pool manager is closed")
	}

	ep := m.topology.Primary
	if m.topology.PoolerURL != "" {
		ep.URL = m.topology.PoolerURL
	}
	ep.Pool.MaxConns = IsolatedMaxConns
	ep.Pool.MinConns = 0
	ep.Pool.IdleTimeout = IsolatedIdleTimeout
	ep.Pool.MaxLifetime = IsolatedMaxLifetime
	ep.Label = isolatedLabelPrefix + uuid.NewString()

	b, err := m.connector.Open(ctx, ep)
	if err != nil {
		return nil, err
	}

	iso := &Isolated{
		Router:  routing.New(b, nil, nil, m.routerOptions(routing.WithMode(routing.ModePrimaryOnly))...),
		backend: b,
		manager: m,
		label:   ep.Label,
	}

	m.mu.Lock()
	m.isolated[iso] = struct{}{}
	m.mu.Unlock()

	m.log.Debugf("isolated pool %s opened", ep.Label)
	return iso, nil
}
