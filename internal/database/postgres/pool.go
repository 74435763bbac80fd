package postgres

import (
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/errs"
)

// buildPoolConfig turns an endpoint into a pgxpool config. It does no I/O.
func buildPoolConfig(ep database.Endpoint) (*pgxpool.Config, error) {
	connStr, err := connString(ep)
	if err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfigInvalid, "invalid postgres url", err)
	}

	p := ep.Pool
	if p.MaxConns > 0 {
		poolCfg.MaxConns = p.MaxConns
	}
	poolCfg.MinConns = p.MinConns
	if p.IdleTimeout > 0 {
		poolCfg.MaxConnIdleTime = p.IdleTimeout
	}
	if p.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = p.MaxLifetime
	}
	if p.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = p.ConnectTimeout
	}
	if ep.Label != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = ep.Label
	}

	return poolCfg, nil
}

// connString applies the endpoint's TLS mode unless the URL already pins an
// sslmode of its own.
func connString(ep database.Endpoint) (string, error) {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindConfigInvalid, "invalid postgres url", err)
	}
	if ep.Pool.TLS == database.TLSDefault {
		return u.String(), nil
	}

	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", string(ep.Pool.TLS))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
