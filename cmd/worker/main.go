package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/db"
	"github.com/proxybuy/backend/internal/events"
	"github.com/proxybuy/backend/internal/repositories"
	"github.com/proxybuy/backend/internal/services"
	"github.com/proxybuy/backend/internal/ton"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Воркер гоняет sweep по тикеру: таймауты дедлайнов и дофондирование
// эскроу. API-процесс может дернуть тот же проход через /internal/sweep.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, "proxybuy-worker", log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "proxybuy-worker", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	dealRepo := repositories.NewDealRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	onchainRepo := repositories.NewOnchainRepo(pool)
	paymentRepo := repositories.NewPaymentRepo(pool)
	disputeRepo := repositories.NewDisputeRepo(pool)
	shipmentRepo := repositories.NewShipmentRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

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

	escrowService, err := services.NewEscrowService(cfg, wallet, chain, log)
	if err != nil {
		log.Fatal("escrow service init failed", zap.Error(err))
	}

	publisher := events.NewRedisPublisher(rdb, log)
	rate := &services.StaticRateSource{RubPerTon: decimal.RequireFromString(cfg.RateRubPerTon)}
	dealService := services.NewDealService(
		dealRepo, orderRepo, onchainRepo, paymentRepo, disputeRepo, shipmentRepo, auditRepo,
		escrowService, rate, &services.FlatShippingQuoter{}, &services.AllowAllStoreValidator{},
		&services.RegexContactFilter{}, publisher, cfg, log,
	)
	sweepService := services.NewSweepService(dealRepo, dealService, log)

	log.Info("worker started",
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.String("ton_network", cfg.TONNetwork))

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if _, err := sweepService.Run(ctx); err != nil {
				log.Error("sweep pass aborted", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
