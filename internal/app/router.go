package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nimbus-hr/nimbus/internal/directory"
	"github.com/nimbus-hr/nimbus/internal/gate"
	"github.com/nimbus-hr/nimbus/internal/observability"
	"github.com/nimbus-hr/nimbus/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	GateHandler      *gate.Handler
	DirectoryHandler *directory.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Nimbus defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.GateHandler != nil {
		r.Route("/api/v1", func(r chi.Router) {
			params.GateHandler.MountRoutes(r)
			if params.DirectoryHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					params.DirectoryHandler.MountRoutes(r)
				})
			}
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	}

	return r
}
