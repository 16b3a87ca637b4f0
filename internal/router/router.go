package router

import (
	"net/http"

	"surveysync/internal/handler"
	"surveysync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler            *handler.Handler
	SyncHandler        *handler.SyncHandler
	SubmissionsHandler *handler.SubmissionsHandler
	AdminHandler       *handler.AdminHandler
	AuthMiddleware     func(http.Handler) http.Handler
}

// PublicPaths are served without an API key.
var PublicPaths = []string{"/api/v1/health", "/api/v1/ready"}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Sync endpoints
			if cfg.SyncHandler != nil {
				r.Post("/sync", cfg.SyncHandler.Trigger)
				r.Get("/sync", cfg.SyncHandler.Status)
			}

			// Submission endpoints
			if cfg.SubmissionsHandler != nil {
				r.Route("/submissions", func(r chi.Router) {
					r.Get("/", cfg.SubmissionsHandler.List)
					r.Get("/{id}", cfg.SubmissionsHandler.Get)
				})
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.GetStats)
			}
		})
	})

	return r
}
