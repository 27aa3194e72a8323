package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/http/handlers"
	"github.com/proxybuy/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	dealHandler *handlers.DealHandler,
	webhookHandler *handlers.WebhookHandler,
	opsHandler *handlers.OpsHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID, X-Signature",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/healthz", opsHandler.Health)

	api := app.Group("/api")
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Deals
	api.Post("/deals", dealHandler.CreateDeal)
	api.Get("/deals/:id", dealHandler.GetDeal)
	api.Get("/deals/:id/escrow", dealHandler.GetEscrowInfo)
	api.Post("/deals/:id/purchase", dealHandler.ConfirmPurchase)
	api.Post("/deals/:id/shipment", dealHandler.CreateShipment)
	api.Post("/deals/:id/confirm", dealHandler.ConfirmDelivery)
	api.Post("/deals/:id/dispute", dealHandler.OpenDispute)

	// Arbitration
	api.Post("/disputes/:id/resolve", dealHandler.ResolveDispute)

	// Payment provider callback
	api.Post("/payments/webhook", webhookHandler.PaymentWebhook)

	// Internal: без rate limit, дергается оркестратором и из воркера
	app.Post("/internal/sweep", opsHandler.RunSweep)
}
