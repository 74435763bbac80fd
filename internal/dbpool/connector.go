package dbpool

//go:generate mockgen -source=connector.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"strings"

	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/database/mysql"
	"github.com/koustreak/dbroute/internal/database/postgres"
	"github.com/koustreak/dbroute/internal/errs"
)

// Connector opens a backend for an endpoint. Opening must not dial; the
// first round-trip happens on first use.
type Connector interface {
	Open(ctx context.Context, ep database.Endpoint) (database.Backend, error)
}

// DriverConnector picks the backend by URL scheme.
type DriverConnector struct{}

func (DriverConnector) Open(ctx context.Context, ep database.Endpoint) (database.Backend, error) {
	switch strings.ToLower(ep.Scheme()) {
	case "postgres", "postgresql":
		db, err := postgres.Open(ctx, ep)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "mysql":
		db, err := mysql.Open(ctx, ep)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, errs.Newf(errs.ErrKindConfigInvalid, "no driver for %s url scheme %q", ep, ep.Scheme())
	}
}
