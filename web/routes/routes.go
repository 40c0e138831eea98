// Package routes provides HTTP route registration for the web server.
package routes

import (
	"net/http"

	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/web/handlers"
	webmiddleware "github.com/demos-sh/demos/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP handler with middleware and every route registered.
func NewRouter(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(webmiddleware.AllowedHosts(cfg.AllowedHosts))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.NotFound)

	RegisterUtilityRoutes(r)

	limiter := webmiddleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		RegisterAgentRoutes(r)
	})

	return r
}

// RegisterAgentRoutes registers the endpoints the tunnel agent talks to
func RegisterAgentRoutes(r chi.Router) {
	r.Post("/get_connection_info/", handlers.WithFormParsing(handlers.GetConnectionInfo))
	r.Post("/get_key_file/", handlers.WithFormParsing(handlers.GetKeyFile))
	r.Post("/connect/", handlers.WithFormParsing(handlers.Connect))
	r.Post("/disconnect/", handlers.WithFormParsing(handlers.Disconnect))
	r.Post("/keep_alive/", handlers.WithFormParsing(handlers.KeepAlive))
}

// RegisterUtilityRoutes registers utility routes like the health check
func RegisterUtilityRoutes(r chi.Router) {
	r.Get("/health", handlers.Health)
}
