package provider

import (
	"testing"

	"github.com/koustreak/dbroute/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	r := DefaultResolver()

	tests := []struct {
		name string
		url  string
		want *Profile
	}{
		{"neon pooler", "postgres://u:p@ep-cool-1234-pooler.us-east-2.aws.neon.tech/app", Neon},
		{"supabase direct", "postgres://postgres:p@db.abcd.supabase.co:5432/postgres", Supabase},
		{"supabase pooler", "postgres://u:p@aws-0-eu-west-1.pooler.supabase.com:6543/postgres", Supabase},
		{"planetscale", "mysql://u:p@aws.connect.psdb.cloud/app", PlanetScale},
		{"rds", "postgres://u:p@app.cluster-abc.eu-west-1.rds.amazonaws.com/app", RDS},
		{"fly flycast", "postgres://u:p@my-db.flycast:5432/app", Fly},
		{"fly app domain", "postgres://u:p@my-db.fly.dev:5432/app", Fly},
		{"bare internal host", "postgres://u:p@db.internal:5432/app", Generic},
		{"ec2 private dns", "postgres://u:p@ip-10-0-0-5.ec2.internal:5432/app", Generic},
		{"gcp internal dns", "postgres://u:p@pg.c.myproj.internal:5432/app", Generic},
		{"railway proxy", "postgres://u:p@roundhouse.proxy.rlwy.net:31234/railway", Railway},
		{"unknown host", "postgres://u:p@db.example.com/app", Generic},
		{"localhost", "postgres://u:p@localhost:5432/app", Generic},
		{"unparseable", "postgres://u:p@host:badport/app", Generic},
		{"case insensitive host", "postgres://u:p@EP-X.US-EAST-2.AWS.NEON.TECH/app", Neon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, r.Resolve(tt.url))
		})
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	broad := &Profile{Name: "broad", Match: hostHasSuffix(".com")}
	narrow := &Profile{Name: "narrow", Match: hostHasSuffix(".example.com")}

	assert.Equal(t, "broad", NewResolver(broad, narrow).Resolve("postgres://db.example.com/x").Name)
	assert.Equal(t, "narrow", NewResolver(narrow, broad).Resolve("postgres://db.example.com/x").Name)
}

func TestResolve_DoesNotMatchLookalikeHosts(t *testing.T) {
	r := DefaultResolver()
	assert.Same(t, Generic, r.Resolve("postgres://u:p@neon.tech.evil.example/app"))
}

func TestGeneric_TLSByEnvironment(t *testing.T) {
	assert.Equal(t, database.TLSRequire, Generic.PoolConfig("production").TLS)
	assert.Equal(t, database.TLSRequire, Generic.PoolConfig("").TLS)
	assert.Equal(t, database.TLSDisable, Generic.PoolConfig("development").TLS)
	assert.Equal(t, database.TLSDisable, Generic.PoolConfig("LOCAL").TLS)
}

func TestResolve_PrivateDNSRequiresTLS(t *testing.T) {
	r := DefaultResolver()
	for _, host := range []string{"db.internal", "ip-10-0-0-5.ec2.internal", "pg.c.myproj.internal"} {
		t.Run(host, func(t *testing.T) {
			p := r.Resolve("postgres://u:p@" + host + ":5432/app")
			assert.Same(t, Generic, p)
			assert.Equal(t, database.TLSRequire, p.PoolConfig("production").TLS)
			assert.Equal(t, 1, p.RegionIndex("eu-west-1", []string{"us-east", "eu-west"}))
		})
	}
}

func TestProfiles_ManagedRequireTLS(t *testing.T) {
	for _, p := range []*Profile{Neon, Supabase, PlanetScale, RDS, Railway} {
		t.Run(p.Name, func(t *testing.T) {
			assert.NotEqual(t, database.TLSDefault, p.PoolConfig("production").TLS)
			assert.NotEqual(t, database.TLSDisable, p.PoolConfig("production").TLS)
		})
	}
}

func TestProfiles_HavePoolTuning(t *testing.T) {
	for _, p := range DefaultResolver().Profiles() {
		t.Run(p.Name, func(t *testing.T) {
			cfg := p.PoolConfig("production")
			assert.Positive(t, cfg.MaxConns)
			assert.Positive(t, cfg.ConnectTimeout)
			assert.NotEmpty(t, p.Aliases)
		})
	}
}

func TestPoolConfig_NilPoolFunc(t *testing.T) {
	p := &Profile{Name: "bare"}
	assert.Equal(t, database.DefaultPoolConfig(), p.PoolConfig("production"))
}

func TestRegionIndex(t *testing.T) {
	tests := []struct {
		name    string
		profile *Profile
		current string
		regions []string
		want    int
	}{
		{"direct match", Generic, "eu-west", []string{"us-east", "eu-west"}, 1},
		{"direct match is case insensitive", Generic, "EU-West", []string{"us-east", "eu-west"}, 1},
		{"first direct match wins", Generic, "us-east", []string{"us-east", "us-east"}, 0},
		{"no match", Generic, "ap-south", []string{"us-east", "eu-west"}, NoMatch},
		{"unresolved sentinel", Generic, "unresolved", []string{"us-east"}, NoMatch},
		{"empty current", Generic, "", []string{"us-east"}, NoMatch},
		{"empty regions", Generic, "us-east", nil, NoMatch},
		{"current is spelling, configured is canonical", Generic, "eu-west-1", []string{"us-east", "eu-west"}, 1},
		{"current is canonical, configured is spelling", Generic, "us-east", []string{"aws-eu-west-1", "aws-us-east-1"}, 1},
		{"both spellings of one group", Generic, "eu-west-2", []string{"aws-us-east-1", "aws-eu-west-1"}, 1},
		{"fly airport code", Fly, "lhr", []string{"us-east", "eu-west"}, 1},
		{"fly codes on both sides", Fly, "ewr", []string{"lhr", "iad"}, 1},
		{"alias table is per provider", Neon, "lhr", []string{"us-east", "eu-west"}, NoMatch},
		{"direct match beats alias order", Generic, "us-east-1", []string{"us-east", "us-east-1"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.RegionIndex(tt.current, tt.regions))
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "eu-west", Fly.Canonical("CDG"))
	assert.Equal(t, "us-east", Generic.Canonical("us-east-2"))
	assert.Equal(t, "mars-1", Generic.Canonical("Mars-1"))
}
