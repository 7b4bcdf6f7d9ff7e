package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gigbroker-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/gigbroker-backend/api/controllers/webhooks"
	"github.com/angelmondragon/gigbroker-backend/api/middleware"
	"github.com/angelmondragon/gigbroker-backend/internal/contracts"
	"github.com/angelmondragon/gigbroker-backend/internal/ledger"
	"github.com/angelmondragon/gigbroker-backend/internal/messaging"
	"github.com/angelmondragon/gigbroker-backend/internal/notifications"
	"github.com/angelmondragon/gigbroker-backend/internal/webhooks"
	"github.com/angelmondragon/gigbroker-backend/internal/withdrawals"
	"github.com/angelmondragon/gigbroker-backend/pkg/config"
	"github.com/angelmondragon/gigbroker-backend/pkg/db"
	"github.com/angelmondragon/gigbroker-backend/pkg/logger"
	"github.com/angelmondragon/gigbroker-backend/pkg/metrics"
	"github.com/angelmondragon/gigbroker-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      db.Pinger
	Redis   *redis.Client
	Metrics *metrics.PlatformMetrics

	Registry prometheus.Gatherer

	Contracts     contracts.Service
	Messaging     messaging.Service
	Withdrawals   withdrawals.Service
	Ledger        ledger.Service
	Notifications notifications.Service
	Webhooks      webhooks.Service
}

// NewRouter builds the full API route tree.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/gateway", webhookcontrollers.GatewayWebhook(deps.Webhooks, cfg.Gateway.WebhookSecret, deps.Metrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/contracts", func(r chi.Router) {
			r.Post("/", controllers.CreateContract(deps.Contracts, logg))
			r.Get("/", controllers.ListContracts(deps.Contracts, logg))
			r.Route("/{contractId}", func(r chi.Router) {
				r.Get("/", controllers.GetContract(deps.Contracts, logg))
				r.Post("/actions", controllers.ApplyContractAction(deps.Contracts, logg, false))
				r.Get("/history", controllers.ContractHistory(deps.Contracts, logg))
				r.Get("/ledger", controllers.ContractLedger(deps.Contracts, deps.Ledger, logg))
				r.Post("/messages", controllers.SendMessage(deps.Messaging, logg))
				r.Get("/messages", controllers.ListMessages(deps.Messaging, logg))
			})
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/", controllers.RequestWithdrawal(deps.Withdrawals, logg))
			r.Get("/", controllers.ListWithdrawals(deps.Withdrawals, logg))
			r.Get("/{withdrawalId}", controllers.GetWithdrawal(deps.Withdrawals, logg))
		})

		r.Get("/balance", controllers.GetBalance(deps.Ledger, logg))
		r.Get("/balance/statement", controllers.GetStatement(deps.Ledger, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/contracts/{contractId}/actions", controllers.ApplyContractAction(deps.Contracts, logg, true))
		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", controllers.AdminListWebhookReviews(deps.Webhooks, logg))
			r.Post("/{eventId}/resolve", controllers.AdminResolveWebhookReview(deps.Webhooks, logg))
		})
	})

	return r
}
