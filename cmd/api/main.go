package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/db"
	"github.com/proxybuy/backend/internal/events"
	apphttp "github.com/proxybuy/backend/internal/http"
	"github.com/proxybuy/backend/internal/http/handlers"
	"github.com/proxybuy/backend/internal/repositories"
	"github.com/proxybuy/backend/internal/services"
	"github.com/proxybuy/backend/internal/ton"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, "proxybuy-api", log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "proxybuy-api", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	dealRepo := repositories.NewDealRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	onchainRepo := repositories.NewOnchainRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	shipmentRepo := repositories.NewShipmentRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Chain side
	chain := ton.NewClient(cfg.TONAPIBaseURL, cfg.TONAPIKey, ton.RetryPolicy{
		Attempts:  uint(cfg.ChainRetryAttempts),
		BaseDelay: cfg.ChainRetryBaseDelay,
	}, log)

	keys, err := ton.DeriveKeys(cfg.WalletSeedPhrase)
	if err != nil {
		log.Fatal("invalid wallet seed phrase", zap.Error(err))
	}
	wallet, err := ton.NewWallet(keys, chain, cfg.ChainDryRun, log)
	if err != nil {
		log.Fatal("wallet init failed", zap.Error(err))
	}
	log.Info("service wallet ready", zap.String("address", wallet.Address()), zap.Bool("dry_run", cfg.ChainDryRun))

	escrowService, err := services.NewEscrowService(cfg, wallet, chain, log)
	if err != nil {
		log.Fatal("escrow service init failed", zap.Error(err))
	}

	// Events
	publisher := events.NewRedisPublisher(rdb, log)

	// Services
	rate := &services.StaticRateSource{RubPerTon: decimal.RequireFromString(cfg.RateRubPerTon)}
	dealService := services.NewDealService(
		dealRepo, orderRepo, onchainRepo, paymentRepo, disputeRepo, shipmentRepo, auditRepo,
		escrowService, rate, &services.FlatShippingQuoter{}, &services.AllowAllStoreValidator{},
		&services.RegexContactFilter{}, publisher, cfg, log,
	)
	sweepService := services.NewSweepService(dealRepo, dealService, log)

	// Handlers
	dealHandler := handlers.NewDealHandler(dealService, cfg, log)
	webhookHandler := handlers.NewWebhookHandler(dealService, cfg, log)
	opsHandler := handlers.NewOpsHandler(sweepService, pool, rdb, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, dealHandler, webhookHandler, opsHandler)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("ton_network", cfg.TONNetwork))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
