package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koustreak/dbroute/internal/consistency"
	"github.com/koustreak/dbroute/internal/logger"
	"github.com/koustreak/dbroute/internal/routing"
)

const (
	readyTimeout   = 2 * time.Second
	identityHeader = "X-User-ID"
)

func newHandler(router *routing.Router, decider *consistency.Decider, reg *prometheus.Registry, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()

		if err := router.Ping(ctx); err != nil {
			log.WarnWith("readiness probe failed", err, nil)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Reports where the caller's requests would be routed right now.
	r.Group(func(r chi.Router) {
		r.Use(consistency.Middleware(decider, router, consistency.HeaderIdentity(identityHeader), log))
		r.HandleFunc("/debug/route", func(w http.ResponseWriter, req *http.Request) {
			rt, ok := routing.FromContext(req.Context())
			if !ok {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "no router in context"})
				return
			}
			logger.FromContext(req.Context()).Debug("route reported")
			writeJSON(w, http.StatusOK, map[string]any{
				"mode":     rt.Mode().String(),
				"read":     rt.Reader().Endpoint().String(),
				"write":    rt.Writer().Endpoint().String(),
				"strategy": rt.Strategy().Name(),
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
