package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ethpandaops/reportoor/pkg/metrics"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() (http.Handler, error) {
	maxBody, err := s.cfg.MaxRequestSizeBytes()
	if err != nil {
		return nil, err
	}

	s.maxBody = maxBody

	metrics.Register()

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			if s.cfg.Server.RateLimit.Enabled {
				r.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit))
			}

			r.Use(s.limitBody)

			r.Route("/{project}", func(r chi.Router) {
				// Asynchronous reporting.
				r.Post("/launch/async", s.handleStartLaunch)
				r.Put("/launch/async/{launchId}/finish", s.handleFinishLaunch)
				r.Post("/item/async", s.handleStartRootItem)
				r.Post("/item/async/{parentId}", s.handleStartChildItem)
				r.Put("/item/async/{itemId}", s.handleFinishItem)
				r.Put("/item/{itemId}/update", s.handleUpdateItem)

				// Materialized state.
				r.Get("/launch/{launchId}", s.handleGetLaunch)
				r.Get("/launch/{launchId}/items", s.handleListItems)
				r.Get("/item/{itemId}", s.handleGetItem)

				r.Post("/log", s.handleSaveLog)
			})
		})
	})

	return r, nil
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
