package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/creditpacks-backend/api/routes"
	"github.com/angelmondragon/creditpacks-backend/internal/checkout"
	"github.com/angelmondragon/creditpacks-backend/internal/credits"
	"github.com/angelmondragon/creditpacks-backend/internal/ledger"
	"github.com/angelmondragon/creditpacks-backend/internal/packs"
	"github.com/angelmondragon/creditpacks-backend/internal/users"
	lemonsqueezywebhook "github.com/angelmondragon/creditpacks-backend/internal/webhooks/lemonsqueezy"
	"github.com/angelmondragon/creditpacks-backend/pkg/config"
	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/lemonsqueezy"
	"github.com/angelmondragon/creditpacks-backend/pkg/logger"
	"github.com/angelmondragon/creditpacks-backend/pkg/metrics"
	"github.com/angelmondragon/creditpacks-backend/pkg/migrate"
	"github.com/angelmondragon/creditpacks-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	creditMetrics := metrics.NewCreditMetrics(registry)

	catalog := packs.NewCatalog(cfg.Packs)
	usersRepo := users.NewRepository(dbClient.DB())
	ordersRepo := ledger.NewRepository(dbClient.DB())

	reconciler, err := ledger.NewReconciler(ledger.ReconcilerParams{
		Orders:            ordersRepo,
		Users:             usersRepo,
		Catalog:           catalog,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           creditMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger reconciler", err)
		os.Exit(1)
	}

	creditsService, err := credits.NewService(credits.ServiceParams{
		Users:             usersRepo,
		Orders:            ordersRepo,
		Usages:            credits.NewRepository(dbClient.DB()),
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           creditMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credits service", err)
		os.Exit(1)
	}

	var checkoutService checkout.Service
	provider, err := lemonsqueezy.NewClient(
		cfg.LemonSqueezy.APIKey,
		cfg.LemonSqueezy.StoreID,
		lemonsqueezy.WithBaseURL(cfg.LemonSqueezy.BaseURL),
		lemonsqueezy.WithTimeout(cfg.LemonSqueezy.Timeout),
	)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "checkout disabled")
	} else {
		checkoutService, err = checkout.NewService(checkout.ServiceParams{
			Catalog:  catalog,
			Provider: provider,
			Users:    usersRepo,
			Logger:   logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create checkout service", err)
			os.Exit(1)
		}
	}

	var journal lemonsqueezywebhook.JournalRepository
	if cfg.Webhook.Journal {
		journal = lemonsqueezywebhook.NewJournalRepository(dbClient.DB())
	}
	webhookService, err := lemonsqueezywebhook.NewService(lemonsqueezywebhook.ServiceParams{
		Reconciler: reconciler,
		Journal:    journal,
		Logger:     logg,
		Metrics:    webhookMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	guard, err := lemonsqueezywebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "lemonsqueezy")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	if cfg.LemonSqueezy.WebhookSecret == "" {
		logg.Warn(context.Background(), "lemonsqueezy webhook secret not set, deliveries will be refused")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			catalog,
			creditsService,
			checkoutService,
			webhookService,
			guard,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
