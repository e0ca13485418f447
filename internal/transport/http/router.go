// Package httpapi wires the document API and the operational endpoints onto a
// single chi router. Authentication and claims resolution happen upstream; the
// edge forwards the caller's identity in X-User-Id / X-Contact-Id headers.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catchcert/pkg/platform/middleware/identity"
	"catchcert/pkg/platform/middleware/requesttime"
	"catchcert/pkg/requestcontext"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Health(ctx context.Context) error { return f(ctx) }

// NewRouter mounts the document API under /v1 alongside the ops endpoints.
// Nil dependencies are reported as "not configured" rather than failing the
// health check.
func NewRouter(h *Handler, deps map[string]Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestID)
	r.Use(requesttime.Middleware)
	r.Use(identity.Middleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", h.handleCreateDraft)
		r.Get("/documents/{documentNumber}", h.handleGet)
		r.Patch("/documents/{documentNumber}", h.handlePatch)
		r.Delete("/documents/{documentNumber}", h.handleDelete)
		r.Put("/documents/{documentNumber}/status", h.handleSetStatus)
		r.Post("/documents/{documentNumber}/complete", h.handleComplete)
		r.Post("/documents/{documentNumber}/clone", h.handleClone)
		r.Get("/journeys/{journey}/drafts", h.handleDraftHeaders)
		r.Get("/journeys/{journey}/completed", h.handleCompletedHeaders)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "not configured"
				continue
			}
			if err := dep.Health(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(checks)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// requestID stamps each request with an ID, honoring one supplied upstream.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}
