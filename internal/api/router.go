package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagecraft/engine/internal/api/handlers"
	mw "github.com/pagecraft/engine/internal/api/middleware"
	"github.com/pagecraft/engine/internal/metrics"
)

type Dependencies struct {
	HMACSecret         []byte
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	TemplatesDir       string
	HealthHandler      *handlers.HealthHandler
	TemplatesHandler   *handlers.TemplatesHandler
	ProjectsHandler    *handlers.ProjectsHandler
	DeploymentsHandler *handlers.DeploymentsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.Instrument(dep.Metrics))
	r.Use(mw.CORS)

	// Probes and metrics are not rate limited
	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)
	if dep.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(dep.Gatherer, promhttp.HandlerOpts{}))
	}

	// Preview pages load these without credentials
	if dep.TemplatesDir != "" {
		r.Handle(handlers.AssetRoute+"/*", http.StripPrefix(handlers.AssetRoute, handlers.AssetsHandler(dep.TemplatesDir)))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(mw.RateLimit(10, 20))
		api.Use(chimid.Compress(5))
		api.Use(mw.Auth(dep.HMACSecret))

		// Templates
		api.Route("/templates", func(tr chi.Router) {
			tr.Get("/", dep.TemplatesHandler.List)
			tr.Post("/", dep.TemplatesHandler.Create)
			tr.Get("/{id}", dep.TemplatesHandler.Get)
			tr.Post("/{id}/bundle", dep.TemplatesHandler.UploadBundle)
			tr.Get("/{id}/versions", dep.TemplatesHandler.Versions)
			tr.Get("/{id}/files", dep.TemplatesHandler.Files)
			tr.Delete("/{id}/files", dep.TemplatesHandler.DeleteFiles)
			tr.Post("/{id}/clone", dep.TemplatesHandler.Clone)
		})

		// Projects
		api.Route("/projects", func(pr chi.Router) {
			pr.Get("/", dep.ProjectsHandler.List)
			pr.Post("/", dep.ProjectsHandler.Create)
			pr.Get("/{id}", dep.ProjectsHandler.Get)
			pr.Patch("/{id}", dep.ProjectsHandler.Update)
			pr.Get("/{id}/config", dep.ProjectsHandler.Config)
			pr.Put("/{id}/config", dep.ProjectsHandler.UpdateConfig)
			pr.Put("/{id}/status", dep.ProjectsHandler.UpdateStatus)
			pr.Post("/{id}/build", dep.ProjectsHandler.Build)
			pr.Get("/{id}/preview", dep.ProjectsHandler.Preview)
			pr.Get("/{id}/activity", dep.ProjectsHandler.Activity)
			pr.Get("/{id}/deployments", dep.DeploymentsHandler.List)
			pr.Post("/{id}/deployments", dep.DeploymentsHandler.Create)
		})

		// Deployments
		api.Get("/deployments/{id}", dep.DeploymentsHandler.Get)
	})

	return r
}
