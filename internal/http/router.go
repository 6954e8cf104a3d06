package httpserver

import (
	"net/http"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"

	"github.com/iago/factory-ops-back/internal/http/handlers"
	"github.com/iago/factory-ops-back/internal/http/middleware"
	"github.com/iago/factory-ops-back/internal/metrics"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         log.Interface
	APIPrefix      string
	CORSOrigins    []string
	RateLimiter    *middleware.RateLimiter
	MetricsEnabled bool
}

func NewRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Trace(deps.Logger))
	if deps.MetricsEnabled {
		router.Use(metrics.Middleware)
	}
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   deps.CORSOrigins,
		AllowCredentials: true,
	}))
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware)
	}

	api := deps.API
	router.NotFound(api.NotFound)
	router.MethodNotAllowed(api.MethodNotAllowed)

	router.Get("/", api.Root)
	router.Get("/health", api.Health)
	if deps.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler())
	}

	routes := func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", api.UploadDocument)
			r.Get("/health", api.DocumentsHealth)
		})
		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/health", api.MaintenanceHealth)
			r.Route("/failure-reports", func(r chi.Router) {
				r.Get("/", api.ListFailureReports)
				r.Post("/", api.CreateFailureReport)
				r.Route("/{reportID}", func(r chi.Router) {
					r.Get("/", api.GetFailureReport)
					r.Patch("/", api.UpdateFailureReport)
					r.Delete("/", api.DeleteFailureReport)
					r.Post("/worker-arrived", api.MarkWorkerArrived)
					r.Post("/photos", api.AddReportPhoto)
				})
			})
		})
		r.Get("/audit-log", api.AuditLog)
	}
	if deps.APIPrefix == "" {
		routes(router)
	} else {
		router.Route(deps.APIPrefix, routes)
	}

	return router
}
