package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timosh-design/blankstock/internal/catalog"
	"github.com/timosh-design/blankstock/internal/intake"
	"github.com/timosh-design/blankstock/internal/ledger"
	"github.com/timosh-design/blankstock/internal/mapping"
	"github.com/timosh-design/blankstock/internal/observability"
	"github.com/timosh-design/blankstock/internal/replenish"
	"github.com/timosh-design/blankstock/internal/webhook"
	"github.com/timosh-design/blankstock/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	CatalogHandler   *catalog.Handler
	MappingHandler   *mapping.Handler
	LedgerHandler    *ledger.Handler
	IntakeHandler    *intake.Handler
	ReplenishHandler *replenish.Handler
	WebhookHandler   *webhook.Handler
	JobsHandler      *jobs.Handler
	Pool             *pgxpool.Pool
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router.
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
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	// Webhooks bypass the API rate limit; redeliveries come in bursts.
	if params.WebhookHandler != nil {
		r.Post("/webhooks/orders", params.WebhookHandler.Receive)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(APIRateLimit())
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(api)
		}
		if params.MappingHandler != nil {
			params.MappingHandler.MountRoutes(api)
		}
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(api)
		}
		if params.IntakeHandler != nil {
			params.IntakeHandler.MountRoutes(api)
		}
		if params.ReplenishHandler != nil {
			params.ReplenishHandler.MountRoutes(api)
		}
		if params.JobsHandler != nil {
			params.JobsHandler.MountRoutes(api)
		}
	})

	return r
}
