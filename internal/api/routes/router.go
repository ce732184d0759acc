package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinicbook/backend/internal/api/handlers"
	"github.com/clinicbook/backend/internal/api/middleware"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	"github.com/clinicbook/backend/pkg/auth"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler

	verifier       *auth.Verifier
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	metrics        *observability.Metrics
	checks         []readinessCheck
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

// NewRouter creates a new router
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	verifier *auth.Verifier,
	rateLimiter *middleware.RateLimiter,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		appointmentHandler: appointmentHandler,
		verifier:           verifier,
		rateLimiter:        rateLimiter,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// AddReadinessCheck registers a dependency probed by GET /ready
func (r *Router) AddReadinessCheck(name string, check func(context.Context) error) {
	r.checks = append(r.checks, readinessCheck{name: name, check: check})
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	r.mux.HandleFunc("GET /ready", r.ready)

	authed := middleware.Authenticate(r.verifier)
	limited := func(h http.HandlerFunc) http.Handler {
		if r.rateLimiter == nil {
			return authed(h)
		}
		return authed(r.rateLimiter.Middleware(h))
	}

	// Appointment endpoints
	r.mux.Handle("POST /api/appointments", limited(r.appointmentHandler.BookAppointment))
	r.mux.Handle("GET /api/appointments/available-slots", authed(http.HandlerFunc(r.appointmentHandler.GetAvailableSlots)))
	r.mux.Handle("GET /api/appointments/mine", authed(http.HandlerFunc(r.appointmentHandler.GetMyAppointment)))
	r.mux.Handle("GET /api/appointments/by-email", authed(http.HandlerFunc(r.appointmentHandler.GetAppointmentsByEmail)))
	r.mux.Handle("DELETE /api/appointments/{id}", limited(r.appointmentHandler.CancelAppointment))

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability sits directly on the mux so it sees the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.Compression(handler)

	// CORS wraps everything so preflights never reach the mux
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(r.checks))
	for _, c := range r.checks {
		if err := c.check(ctx); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("dependency", c.name).Msg("readiness check failed")
			results[c.name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[c.name] = "up"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}
