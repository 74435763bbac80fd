package dbpool

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/koustreak/dbroute/internal/config"
	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/errs"
	"github.com/koustreak/dbroute/internal/provider"
)

// Topology is the validated set of endpoints for one deployment.
type Topology struct {
	Primary  database.Endpoint
	Replicas []database.Endpoint
	// PoolerURL is used for isolated job pools; empty means the primary URL.
	PoolerURL string
}

// Regions returns the replica region tags in replica order.
func (t *Topology) Regions() []string {
	out := make([]string, 0, len(t.Replicas))
	for _, r := range t.Replicas {
		if r.Region != "" {
			out = append(out, r.Region)
		}
	}
	if len(out) != len(t.Replicas) {
		return nil
	}
	return out
}

// BuildTopology validates cfg and builds endpoints tuned by profile for env.
// It performs no I/O.
func BuildTopology(cfg config.Database, env string, profile *provider.Profile) (*Topology, error) {
	if profile == nil {
		profile = provider.Generic
	}
	if err := checkURL("primary", cfg.PrimaryURL); err != nil {
		return nil, err
	}
	if cfg.PrimaryPoolerURL != "" {
		if err := checkURL("primary pooler", cfg.PrimaryPoolerURL); err != nil {
			return nil, err
		}
	}

	if n, m := len(cfg.ReplicaURLs), len(cfg.ReplicaRegions); m > 0 && n != m {
		return nil, errs.Newf(errs.ErrKindConfigInvalid,
			"replica regions count (%d) does not match replica urls count (%d)", m, n)
	}

	pool := profile.PoolConfig(env)
	topo := &Topology{
		Primary: database.Endpoint{
			Role:  database.RolePrimary,
			URL:   strings.TrimSpace(cfg.PrimaryURL),
			Pool:  pool,
			Label: "dbroute-primary",
		},
		PoolerURL: strings.TrimSpace(cfg.PrimaryPoolerURL),
	}

	for i, raw := range cfg.ReplicaURLs {
		if err := checkURL(fmt.Sprintf("replica %d", i), raw); err != nil {
			return nil, err
		}
		ep := database.Endpoint{
			Role:  database.RoleReplica,
			URL:   strings.TrimSpace(raw),
			Pool:  pool,
			Index: i,
			Label: fmt.Sprintf("dbroute-replica-%d", i),
		}
		if len(cfg.ReplicaRegions) > 0 {
			ep.Region = strings.TrimSpace(cfg.ReplicaRegions[i])
		}
		topo.Replicas = append(topo.Replicas, ep)
	}
	return topo, nil
}

var supportedSchemes = map[string]bool{
	"postgres":   true,
	"postgresql": true,
	"mysql":      true,
}

func checkURL(what, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errs.Newf(errs.ErrKindConfigInvalid, "%s url is required", what)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errs.Wrap(errs.ErrKindConfigInvalid, what+" url is malformed", err)
	}
	if !supportedSchemes[strings.ToLower(u.Scheme)] {
		return errs.Newf(errs.ErrKindConfigInvalid, "%s url has unsupported scheme %q", what, u.Scheme)
	}
	if u.Hostname() == "" {
		return errs.Newf(errs.ErrKindConfigInvalid, "%s url has no host", what)
	}
	return nil
}
