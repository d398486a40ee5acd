package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/creditpacks-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/creditpacks-backend/api/controllers/webhooks"
	"github.com/angelmondragon/creditpacks-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/creditpacks-backend/internal/checkout"
	"github.com/angelmondragon/creditpacks-backend/internal/packs"
	lemonsqueezywebhook "github.com/angelmondragon/creditpacks-backend/internal/webhooks/lemonsqueezy"
	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	catalog *packs.Catalog,
	creditsService controllers.CreditsService,
	checkoutService checkoutsvc.Service,
	webhookService webhookcontrollers.LemonSqueezyWebhookService,
	webhookGuard *lemonsqueezywebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recover(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          redis.RateLimiter
		guard            webhookcontrollers.LemonSqueezyGuard
		checks           = []controllers.ReadinessCheck{{Name: "database", Pinger: dbP}}
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiter = redisClient
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})
	}
	if webhookGuard != nil {
		guard = webhookGuard
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	consumePolicy := middleware.NewRateLimitPolicy("consume", cfg.RateLimit.ConsumeWindow, cfg.RateLimit.ConsumeLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/packs", controllers.PublicPacks(catalog))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/lemonsqueezy", webhookcontrollers.LemonSqueezyWebhook(webhookService, guard, webhookcontrollers.LemonSqueezyWebhookOptions{
			Secret:       cfg.LemonSqueezy.WebhookSecret,
			MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		}, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.BaseURL))
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", controllers.CreditsBalance(creditsService, logg))
			r.Get("/check", controllers.CreditsCheck(creditsService, logg))
			r.Get("/orders", controllers.CreditsOrders(creditsService, logg))
			r.Get("/usages", controllers.CreditsUsages(creditsService, logg))
			r.With(
				middleware.RateLimit(consumePolicy, limiter, logg),
				middleware.Idempotency(idempotencyStore, logg),
			).Post("/consume", controllers.CreditsConsume(creditsService, logg))
		})
		r.With(middleware.Idempotency(idempotencyStore, logg)).Post("/checkout", controllers.Checkout(checkoutService, logg))
	})

	return r
}
