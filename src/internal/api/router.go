package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
	"github.com/maksimkurb/keen-iprules/src/internal/rules"
)

// RouterOptions configure NewRouter.
type RouterOptions struct {
	Logger *log.Logger
	// Grammar and StrictActions are the defaults for POST /api/v1/check.
	Grammar       rules.Grammar
	StrictActions bool
	// Gatherer is served on /metrics. Nil selects the default registry.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new HTTP router with all API endpoints.
func NewRouter(ctrl ServiceController, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(Logger(logger))
	r.Use(PrivateSubnetOnly(logger))
	r.Use(CORS)
	r.Use(JSONContentType)

	h := NewHandler(ctrl, opts.Grammar, opts.StrictActions, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/rules", h.GetRules)
		r.Get("/ledger", h.GetLedger)
		r.Get("/health", h.CheckHealth)

		r.Post("/service", h.ControlService)
		r.Post("/check", h.CheckSettings)
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
