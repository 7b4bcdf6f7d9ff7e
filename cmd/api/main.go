package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gigbroker-backend/api/routes"
	"github.com/angelmondragon/gigbroker-backend/internal/contracts"
	"github.com/angelmondragon/gigbroker-backend/internal/escrow"
	"github.com/angelmondragon/gigbroker-backend/internal/history"
	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	"github.com/angelmondragon/gigbroker-backend/internal/messaging"
	"github.com/angelmondragon/gigbroker-backend/internal/notifications"
	"github.com/angelmondragon/gigbroker-backend/internal/webhooks"
	"github.com/angelmondragon/gigbroker-backend/internal/withdrawals"
	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	"github.com/angelmondragon/gigbroker-backend/pkg/db"
	"github.com/angelmondragon/gigbroker-backend/pkg/gateway"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/metrics"
	"github.com/angelmondragon/gigbroker-backend/pkg/migrate"
	"github.com/angelmondragon/gigbroker-backend/pkg/outbox"
	"github.com/angelmondragon/gigbroker-backend/pkg/redis"
	"github.com/angelmondragon/gigbroker-backend/pkg/stripe"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(ctx, cfg.Gateway, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	platformMetrics := metrics.NewPlatformMetrics(registry)

	gormDB := dbClient.DB()
	contractRepo := contracts.NewRepository(gormDB)
	historyRepo := history.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	withdrawalRepo := withdrawals.NewRepository(gormDB)
	reviewRepo := webhooks.NewReviewRepository(gormDB)
	messageRepo := messaging.NewRepository(gormDB)
	standingRepo := messaging.NewStandingRepository(gormDB)
	notificationRepo := notifications.NewRepository(gormDB)

	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	feePolicy, err := escrow.NewFeePolicy(cfg.Fees)
	if err != nil {
		logg.Error(ctx, "invalid fee configuration", err)
		os.Exit(1)
	}

	escrowSvc, err := escrow.NewService(gatewayClient, ledgerRepo, feePolicy, logg)
	if err != nil {
		logg.Error(ctx, "failed to create escrow service", err)
		os.Exit(1)
	}

	contractSvc, err := contracts.NewService(dbClient, contractRepo, historyRepo, escrowSvc, emitter, platformMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create contracts service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}

	withdrawalSvc, err := withdrawals.NewService(dbClient, withdrawalRepo, ledgerRepo, stripeClient, emitter, logg)
	if err != nil {
		logg.Error(ctx, "failed to create withdrawals service", err)
		os.Exit(1)
	}

	webhookSvc, err := webhooks.NewService(dbClient, ledgerRepo, withdrawalSvc, reviewRepo, redisClient, platformMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create webhook service", err)
		os.Exit(1)
	}

	messagingSvc, err := messaging.NewService(dbClient, messageRepo, standingRepo, contractRepo, emitter, platformMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create messaging service", err)
		os.Exit(1)
	}

	notificationSvc, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Metrics:       platformMetrics,
			Registry:      registry,
			Contracts:     contractSvc,
			Messaging:     messagingSvc,
			Withdrawals:   withdrawalSvc,
			Ledger:        ledgerSvc,
			Notifications: notificationSvc,
			Webhooks:      webhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
