package consistency

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbroute/internal/database"
	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/routing"
)

func TestOperationFor(t *testing.T) {
	tests := map[string]Operation{
		http.MethodGet:     OpRead,
		http.MethodHead:    OpRead,
		http.MethodOptions: OpRead,
		http.MethodPost:    OpWrite,
		http.MethodPut:     OpWrite,
		http.MethodPatch:   OpWrite,
		http.MethodDelete:  OpWrite,
	}
	for method, want := range tests {
		assert.Equal(t, want, OperationFor(method), method)
	}
}

func newMux(t *testing.T, tracker Tracker) (http.Handler, database.Backend, database.Backend) {
	t.Helper()
	router, primary, replica := newRouter(t)
	d := NewDecider(tracker)

	target := func(w http.ResponseWriter, r *http.Request) {
		rt, ok := routing.FromContext(r.Context())
		require.True(t, ok)
		if rt.Reader() == primary {
			_, _ = w.Write([]byte("primary"))
			return
		}
		_, _ = w.Write([]byte("replica"))
	}

	mux := chi.NewRouter()
	mux.Use(Middleware(d, router, HeaderIdentity("X-User-ID"), nil))
	mux.Get("/items", target)
	mux.Post("/items", target)
	return mux, primary, replica
}

func do(h http.Handler, method, user string) string {
	req := httptest.NewRequest(method, "/items", nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestMiddleware_ReadYourWrites(t *testing.T) {
	mux, _, _ := newMux(t, NewCacheTracker(NewCache(DefaultTTL)))

	assert.Equal(t, "replica", do(mux, http.MethodGet, "42"))
	assert.Equal(t, "primary", do(mux, http.MethodPost, "42"))
	assert.Equal(t, "primary", do(mux, http.MethodGet, "42"))
	assert.Equal(t, "replica", do(mux, http.MethodGet, "7"))
	assert.Equal(t, "replica", do(mux, http.MethodGet, ""))
}

func TestMiddleware_TrackerFailureUsesPrimary(t *testing.T) {
	mux, _, _ := newMux(t, failingTracker{err: errors.New("redis down")})

	assert.Equal(t, "primary", do(mux, http.MethodGet, "42"))
}

func TestMiddleware_StoresRequestLogger(t *testing.T) {
	router, _, _ := newRouter(t)
	buf := &bytes.Buffer{}
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: buf})

	mux := chi.NewRouter()
	mux.Use(Middleware(NewDecider(NewCacheTracker(NewCache(DefaultTTL))), router, HeaderIdentity("X-User-ID"), log))
	mux.Post("/items", func(_ http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
	})

	do(mux, http.MethodPost, "42")

	out := buf.String()
	assert.Contains(t, out, `"component":"consistency"`)
	assert.Contains(t, out, `"operation":"write"`)
	assert.Contains(t, out, `"route_mode":"primary-only"`)
}

func TestHeaderIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	req.Header.Set("X-User-ID", "  abc ")
	assert.Equal(t, "abc", HeaderIdentity("X-User-ID")(req))
}
