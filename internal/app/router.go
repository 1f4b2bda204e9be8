package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/studioops/studioops/internal/auth"
	"github.com/studioops/studioops/internal/comments"
	"github.com/studioops/studioops/internal/dashboard"
	"github.com/studioops/studioops/internal/directory"
	"github.com/studioops/studioops/internal/documents"
	"github.com/studioops/studioops/internal/ledger"
	"github.com/studioops/studioops/internal/observability"
	"github.com/studioops/studioops/internal/projects"
	"github.com/studioops/studioops/internal/shared"
	"github.com/studioops/studioops/internal/tasks"
	"github.com/studioops/studioops/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler      *auth.Handler
	LedgerHandler    *ledger.Handler
	DashboardHandler *dashboard.Handler
	DirectoryHandler *directory.Handler
	ProjectsHandler  *projects.Handler
	TasksHandler     *tasks.Handler
	CommentsHandler  *comments.Handler
	DocumentsHandler *documents.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Metrics.Middleware)

	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession)

		params.LedgerHandler.MountRoutes(r)
		params.DashboardHandler.MountRoutes(r)
		params.DirectoryHandler.MountRoutes(r)
		params.ProjectsHandler.MountRoutes(r)
		params.TasksHandler.MountRoutes(r)
		params.CommentsHandler.MountRoutes(r)
		params.DocumentsHandler.MountRoutes(r)

		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
