// Package api exposes services, projects and analytics over a chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/orchestration"
	"github.com/nucleus/pm-sync/internal/reconcile"
)

// Options tunes the router middleware.
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int

	// JWTSecret enables HS256 bearer verification on /api/v1 when set.
	JWTSecret string
}

// Handler serves the API.
type Handler struct {
	db      *database.Client
	manager *orchestration.Manager
	engine  *reconcile.Engine
}

// NewHandler wires the handler to its collaborators.
func NewHandler(db *database.Client, manager *orchestration.Manager, engine *reconcile.Engine) *Handler {
	return &Handler{
		db:      db,
		manager: manager,
		engine:  engine,
	}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(correlationID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(opts.CORSOrigins))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(opts.RateLimitPerMinute))
		r.Use(requestMetrics)
		if opts.JWTSecret != "" {
			r.Use(authenticate([]byte(opts.JWTSecret)))
		}

		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.ListServices)
			r.Post("/", h.CreateService)
			r.Get("/health", h.HealthCheckServices)
			r.Post("/sync", h.SyncServices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetService)
				r.Put("/", h.UpdateService)
				r.Delete("/", h.DeleteService)
				r.Post("/connect", h.ConnectService)
				r.Post("/disconnect", h.DisconnectService)
				r.Get("/repositories", h.ListRepositories)
				r.Get("/projects", h.ListRemoteProjects)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/sync", h.SyncProject)
			r.Post("/sync-all", h.SyncAllProjects)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Get("/analytics", h.ProjectAnalytics)
				r.Get("/workflow-insights", h.WorkflowInsights)
				r.Get("/team-members", h.ListTeamMembers)
			})
		})

		r.Get("/work-items", h.ListWorkItems)
		r.Get("/dashboard", h.Dashboard)
	})

	return r
}
