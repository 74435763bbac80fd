package routing

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying r.
func NewContext(ctx context.Context, r *Router) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the router stored by NewContext.
func FromContext(ctx context.Context) (*Router, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Router)
	return r, ok && r != nil
}
