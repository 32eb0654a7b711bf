// Package router builds the agent's small ambient HTTP surface:
// liveness/readiness endpoints, not the spec's core. It is never on
// the poll hot path.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
)

// HealthSource reports the two facts the handlers need: whether the
// Mapping Store has loaded, and when the loop last completed a tick.
type HealthSource interface {
	IsMappingLoaded() bool
	LastTick() time.Time
}

// StallThreshold is how long a poll loop can go quiet before /healthz
// starts reporting unhealthy.
const StallThreshold = 2 * time.Minute

func New(serviceName string, health HealthSource) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		last := health.LastTick()
		if last.IsZero() || time.Since(last) > StallThreshold {
			http.Error(w, "poll loop stalled", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if !health.IsMappingLoaded() {
			http.Error(w, "mapping store not loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}
