package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"task-tracker/internal/metrics"
	"task-tracker/internal/ratelimit"
)

// RouterDeps bundles what the router needs.
type RouterDeps struct {
	Handler  *Handler
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Limiter  *ratelimit.MapLimiter
}

// NewRouter wires middleware and routes. The route names follow the original service so
// existing clients keep working.
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	h := deps.Handler

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware(log, deps.Metrics))

	r.Get("/healthchecker", h.HealthCheck)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimitMiddleware(deps.Limiter))

		r.Post("/add_user", h.AddUser)
		r.Post("/add_task", h.AddTask)
		r.Post("/task_done", h.TaskDone)
		r.Post("/delete_task", h.DeleteTask)
		r.Get("/get_user/{user_id}", h.GetUser)
		r.Get("/get_all_users", h.GetAllUsers)
		r.Get("/get_tasks/{user_id}", h.GetTasks)
		r.Get("/get_all_tasks", h.GetAllTasks)

		r.Post("/admin/reconcile", h.Reconcile)
	})

	return r
}
