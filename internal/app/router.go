package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-laundry/internal/catalog"
	"github.com/noah-isme/backend-laundry/internal/common"
	"github.com/noah-isme/backend-laundry/internal/draft"
	"github.com/noah-isme/backend-laundry/internal/health"
	"github.com/noah-isme/backend-laundry/internal/obs"
	"github.com/noah-isme/backend-laundry/internal/pricing"
	"github.com/noah-isme/backend-laundry/internal/ratelimit"
	"github.com/noah-isme/backend-laundry/internal/security"
)

const idempotencyTTL = 24 * time.Hour

// NewRouter mounts every HTTP surface of the service on a chi router.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics("laundry", obs.ParseBucketsCSV(cfg.Obs.HTTPBuckets), d.Registry)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RequestLogger{Logger: d.Logger, SkipPaths: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(security.Headers{EnableHSTS: cfg.IsProduction()}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After", "Idempotent-Replay"},
		MaxAge:         300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{Registry: d.Registry}))
	}

	healthHandler := health.Handler{Probes: probes(d)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
		v.Use(ratelimit.Handler{
			Limiter: d.Limiter,
			OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limit store unavailable") },
		}.Middleware)

		catalog.NewHandler(d.Lookup).Routes(v)

		pricingHandler := &pricing.Handler{Engine: d.Engine, Validator: d.Validator}
		v.Route("/pricing", pricingHandler.Routes)

		if d.Drafts != nil {
			var idem *common.Idem
			if d.Redis != nil {
				idem = &common.Idem{R: d.Redis, TTL: idempotencyTTL}
			}
			draftHandler := &draft.Handler{
				Store:     d.Drafts,
				Engine:    d.Engine,
				Validator: d.Validator,
				Idem:      idem,
				Logger:    d.Logger,
			}
			draftHandler.Routes(v)
		}
	})

	var handler http.Handler = r
	if cfg.Obs.TracingEnabled {
		handler = obs.Tracing(cfg.Obs.ServiceName, handler)
	}
	return handler
}

func probes(d *Dependencies) []health.Probe {
	var out []health.Probe
	if d.DB != nil {
		out = append(out, health.Postgres(d.DB))
	}
	if d.Redis != nil {
		out = append(out, health.Redis(d.Redis))
	}
	if d.Breaker != nil {
		out = append(out, health.Breaker("catalog", d.Breaker))
	}
	return out
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
