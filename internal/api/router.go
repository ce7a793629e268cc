package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/kiranshivaraju/subrelay/internal/api/middleware"
	"github.com/kiranshivaraju/subrelay/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	// RateLimit guards job submission. Nil disables it.
	RateLimit   *mw.RateLimit
	CORSOrigins []string

	InfoHandler    http.HandlerFunc
	HealthHandler  http.HandlerFunc
	ProcessHandler http.HandlerFunc
	StatusHandler  http.HandlerFunc
	StreamHandler  http.Handler
	MetricsHandler http.Handler
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(deps.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders: []string{mw.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	r.Get("/", orNotImplemented(deps.InfoHandler))
	r.Get("/api/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/status", orNotImplemented(deps.StatusHandler))
	r.Method(http.MethodGet, "/api/status/stream", orNotImplementedHandler(deps.StreamHandler))
	r.Method(http.MethodGet, "/metrics", orNotImplementedHandler(deps.MetricsHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/process", orNotImplemented(deps.ProcessHandler))
	})

	return r
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return notImplemented
}

func orNotImplementedHandler(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(notImplemented)
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented")
}
