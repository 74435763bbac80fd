package database

import (
	"fmt"
	"net/url"
	"time"
)

// Role identifies what an endpoint is used for.
type Role string

const (
	RolePrimary Role = "primary"
	RoleReplica Role = "replica"
)

// TLSMode controls transport security for an endpoint. Values follow the
// libpq sslmode spelling; the MySQL backend translates them.
type TLSMode string

const (
	TLSDefault    TLSMode = ""            // leave whatever the URL says
	TLSDisable    TLSMode = "disable"     // plaintext
	TLSRequire    TLSMode = "require"     // encrypted, certificate not verified
	TLSVerifyFull TLSMode = "verify-full" // encrypted and verified
)

// PoolConfig holds the resolved pool tuning for one endpoint.
type PoolConfig struct {
	MaxConns       int32         // ceiling on concurrent connections; callers queue beyond it
	MinConns       int32         // idle connections kept warm
	IdleTimeout    time.Duration // maximum time a connection may sit idle
	ConnectTimeout time.Duration // time limit for establishing a new connection
	MaxLifetime    time.Duration // maximum time a connection may be reused
	TLS            TLSMode
}

// DefaultPoolConfig returns general-purpose pool settings.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:       20,
		MinConns:       0,
		IdleTimeout:    5 * time.Minute,
		ConnectTimeout: 10 * time.Second,
		MaxLifetime:    30 * time.Minute,
	}
}

// Endpoint is one physical database target. It is built once by the pool
// manager and never modified afterwards.
type Endpoint struct {
	Role   Role
	URL    string
	Pool   PoolConfig
	Region string // optional region tag, replicas only
	Index  int    // position in the replica set; 0 for the primary
	Label  string // application name reported to the server, may be empty
}

// Scheme returns the URL scheme (postgres, postgresql, mysql) or "" when the
// URL does not parse.
func (e Endpoint) Scheme() string {
	u, err := url.Parse(e.URL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Redacted returns the URL with any password masked, for logs.
func (e Endpoint) Redacted() string {
	u, err := url.Parse(e.URL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

func (e Endpoint) String() string {
	if e.Role == RoleReplica {
		return fmt.Sprintf("replica[%d]", e.Index)
	}
	return string(e.Role)
}
