package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nhatro-erp/nhatro-erp/internal/billing"
	"github.com/nhatro-erp/nhatro-erp/internal/ledger"
	"github.com/nhatro-erp/nhatro-erp/internal/observability"
	"github.com/nhatro-erp/nhatro-erp/internal/tenancy"
	"github.com/nhatro-erp/nhatro-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	BillingHandler *billing.Handler
	LedgerHandler  *ledger.Handler
	TenancyHandler *tenancy.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		if params.BillingHandler != nil {
			api.Route("/bills", params.BillingHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/categories", params.LedgerHandler.MountRoutes)
		}
		if params.TenancyHandler != nil {
			params.TenancyHandler.MountRoutes(api)
		}
		if params.JobsHandler != nil {
			api.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
