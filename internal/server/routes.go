package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(metricsMiddleware)
	r.Use(s.corsMiddleware())

	r.Get("/", s.handleIndex)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			if s.cfg.RateLimitPerMinute > 0 {
				if s.limiter == nil {
					s.limiter = newRateLimiterMap(s.cfg.RateLimitPerMinute, s.done)
				}
				r.Use(s.rateLimitMiddleware(s.limiter))
			}

			r.Get("/options", s.handleOptions)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/kpis", s.handleKPIs)
			r.Get("/status", s.handleStatus)
			r.Get("/phases", s.handlePhases)
			r.Get("/monthly", s.handleMonthly)
			r.Get("/countries", s.handleCountries)
			r.Get("/enrollment", s.handleEnrollment)
			r.Get("/preview", s.handlePreview)
			r.Get("/download", s.handleDownload)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", headerRequestID},
		ExposedHeaders: []string{headerRequestID, "Content-Disposition"},
		MaxAge:         300,
	}

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
