package consistency

import (
	"net/http"
	"strings"

	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/routing"
)

// IdentityFunc extracts a stable caller identity from a request. An empty
// result marks the caller as anonymous.
type IdentityFunc func(*http.Request) string

// HeaderIdentity reads the identity from header name.
func HeaderIdentity(name string) IdentityFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// OperationFor classifies a request method. Safe methods read, everything
// else writes.
func OperationFor(method string) Operation {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return OpRead
	default:
		return OpWrite
	}
}

// Middleware decides a router per request and stores it in the request
// context, where handlers fetch it with routing.FromContext. A logger tagged
// with the routing decision is stored alongside it for logger.FromContext.
// A tracker failure is logged and the request proceeds on the primary.
func Middleware(d *Decider, base *routing.Router, identity IdentityFunc, log *logger.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log).Component("consistency")
	if identity == nil {
		identity = func(*http.Request) string { return "" }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op := OperationFor(r.Method)

			router, err := d.Route(r.Context(), op, identity(r), base)
			if err != nil {
				log.WarnWith("consistency tracker failed, routing to primary", err, map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				})
			}

			reqLog := log.With().
				Str("operation", op.String()).
				Str("route_mode", router.Mode().String()).
				Logger()
			ctx := reqLog.WithContext(routing.NewContext(r.Context(), router))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
