// Package handler provides HTTP handlers for the Fletcher Signer API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Router assembles the HTTP routes and middleware chain.
type Router struct {
	signedURLHandler *SignedURLHandler
	middlewares      []func(http.Handler) http.Handler
	logger           zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	SignedURLHandler *SignedURLHandler

	// Middlewares are applied to API routes in order (outermost first).
	// Health stays outside the chain so probes are never rate limited
	// or asked for credentials.
	Middlewares []func(http.Handler) http.Handler

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		signedURLHandler: cfg.SignedURLHandler,
		middlewares:      cfg.Middlewares,
		logger:           cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", rt.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range rt.middlewares {
			r.Use(mw)
		}
		rt.signedURLHandler.RegisterRoutes(r)
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
