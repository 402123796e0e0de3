// Package adminapi implements the Admin API (C7): CRUD over the route
// catalogue, mounted only when the database-backed Config Provider is
// active and admin enablement is configured, per spec.md §4.6.
package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/authgate/authgate/internal/adminauth"
	"github.com/authgate/authgate/internal/config"
)

// Config holds the composition-root settings for the admin router.
type Config struct {
	// Auth is the authenticator chain (bearer, session-role, or both).
	// An empty chain always denies, matching §4.6's "neither mechanism
	// configured" case.
	Auth adminauth.Chain

	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultConfig returns conservative defaults for the mutation rate
// limiter; CORS origins default to empty, requiring explicit
// configuration before any cross-origin admin caller is allowed.
func DefaultConfig() Config {
	return Config{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  30,
		RateLimitWindow:    time.Minute,
	}
}

// NewRouter builds the /admin/* router driving provider's route CRUD.
// The caller is responsible for mounting the result only when a
// database-backed Provider and the admin enablement flag are both
// active (§4.6 "Availability") — this package does not itself gate on
// that; it is purely the handler composition.
func NewRouter(provider config.MutableProvider, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// go-chi/cors treats an empty AllowedOrigins as "allow all", so the
	// CORS handler is installed only when origins are configured.
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}))
	}

	h := &handlers{provider: provider}

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.Middleware)

		r.Get("/routes", h.listRoutes)
		r.Get("/routes/{id}", h.getRoute)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(cfg.effectiveRequests(), cfg.effectiveWindow(), httprate.WithKeyFuncs(httprate.KeyByIP)))
			r.Post("/routes", h.createRoute)
			r.Put("/routes/{id}", h.updateRoute)
			r.Delete("/routes/{id}", h.deleteRoute)
		})
	})

	return r
}

func (c Config) effectiveRequests() int {
	if c.RateLimitRequests <= 0 {
		return DefaultConfig().RateLimitRequests
	}
	return c.RateLimitRequests
}

func (c Config) effectiveWindow() time.Duration {
	if c.RateLimitWindow <= 0 {
		return DefaultConfig().RateLimitWindow
	}
	return c.RateLimitWindow
}
