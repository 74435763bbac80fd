// Package provider classifies a primary connection URL into a hosting
// provider profile: pool tuning plus a region alias table.
//
// Resolution is pure string matching over an ordered list of profiles;
// the first profile whose Match accepts the URL wins and the generic
// profile is used when none does. No network access is involved.
package provider

import (
	"net/url"
	"strings"

	"github.com/koustreak/dbroute/internal/database"
)

// Alias groups provider-specific spellings under one canonical region tag.
type Alias struct {
	Canonical string
	Spellings []string
}

// Profile is the tuning and region vocabulary for one hosting provider.
// Profiles are stateless and shared by reference.
type Profile struct {
	Name    string
	Match   func(u *url.URL) bool
	Pool    func(env string) database.PoolConfig
	Aliases []Alias
}

// Resolver holds profiles in evaluation order.
type Resolver struct {
	profiles []*Profile
	fallback *Profile
}

// NewResolver returns a resolver that tries profiles in the given order and
// falls back to Generic.
func NewResolver(profiles ...*Profile) *Resolver {
	return &Resolver{profiles: profiles, fallback: Generic}
}

// DefaultResolver knows every built-in provider.
func DefaultResolver() *Resolver {
	return NewResolver(Neon, Supabase, PlanetScale, RDS, Fly, Railway)
}

// Resolve returns the profile for primaryURL. An unparseable URL resolves to
// the generic profile; URL validation is the pool manager's job.
func (r *Resolver) Resolve(primaryURL string) *Profile {
	u, err := url.Parse(primaryURL)
	if err != nil {
		return r.fallback
	}
	for _, p := range r.profiles {
		if p.Match != nil && p.Match(u) {
			return p
		}
	}
	return r.fallback
}

// Profiles returns the ordered profile list, without the fallback.
func (r *Resolver) Profiles() []*Profile {
	return r.profiles
}

// PoolConfig returns the profile's pool tuning for env.
func (p *Profile) PoolConfig(env string) database.PoolConfig {
	if p.Pool == nil {
		return database.DefaultPoolConfig()
	}
	return p.Pool(env)
}

// IsLocalEnv reports whether env names a local development environment,
// where plaintext connections are acceptable.
func IsLocalEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// hostHasSuffix matches the URL host against domain suffixes.
func hostHasSuffix(suffixes ...string) func(*url.URL) bool {
	return func(u *url.URL) bool {
		host := strings.ToLower(u.Hostname())
		for _, s := range suffixes {
			if host == strings.TrimPrefix(s, ".") || strings.HasSuffix(host, s) {
				return true
			}
		}
		return false
	}
}
