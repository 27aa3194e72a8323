package services

import (
	"context"
	"errors"
	"time"

	"github.com/proxybuy/backend/internal/models"
	"github.com/proxybuy/backend/internal/repositories"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

// SweepStats is one pass's tally, returned to the caller and logged.
type SweepStats struct {
	PurchaseTimeouts int `json:"purchase_timeouts"`
	ShipTimeouts     int `json:"ship_timeouts"`
	AutoCompleted    int `json:"auto_completed"`
	EscrowRetries    int `json:"escrow_retries"`
	Errors           int `json:"errors"`
}

// SweepService — единственный писатель терминальных статусов по таймаутам.
// Каждая сделка обрабатывается независимо: ошибка одной не прерывает проход.
type SweepService struct {
	deals DealStore
	svc   *DealService
	log   *zap.Logger
	now   func() time.Time
}

func NewSweepService(deals DealStore, svc *DealService, log *zap.Logger) *SweepService {
	return &SweepService{deals: deals, svc: svc, log: log, now: time.Now}
}

// Run executes one sweep pass: expired deadlines first, then the escrow
// funding retry for NEW deals that already have a contract.
func (s *SweepService) Run(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.now().UTC()

	s.sweepExpired(ctx, &stats, now, models.DealStatusFunded, repositories.DeadlinePurchase,
		models.DealStatusCancelledRefundCustomer, chainCancelBeforeBuy, &stats.PurchaseTimeouts)
	s.sweepExpired(ctx, &stats, now, models.DealStatusPurchased, repositories.DeadlineShip,
		models.DealStatusCancelledRefundCustomer, chainCancelBeforeShip, &stats.ShipTimeouts)
	s.sweepExpired(ctx, &stats, now, models.DealStatusShipped, repositories.DeadlineConfirm,
		models.DealStatusCompleted, chainAutoComplete, &stats.AutoCompleted)

	s.retryFunding(ctx, &stats)

	s.log.Info("sweep pass finished",
		zap.Int("purchase_timeouts", stats.PurchaseTimeouts),
		zap.Int("ship_timeouts", stats.ShipTimeouts),
		zap.Int("auto_completed", stats.AutoCompleted),
		zap.Int("escrow_retries", stats.EscrowRetries),
		zap.Int("errors", stats.Errors))

	return stats, ctx.Err()
}

func (s *SweepService) sweepExpired(ctx context.Context, stats *SweepStats, now time.Time, status, deadlineColumn, target, chainMethod string, counter *int) {
	deals, err := s.deals.ListDeadlineExpired(ctx, status, deadlineColumn, now, sweepBatchSize)
	if err != nil {
		s.log.Error("sweep: expired list failed",
			zap.String("status", status), zap.String("deadline", deadlineColumn), zap.Error(err))
		stats.Errors++
		return
	}

	for i := range deals {
		deal := &deals[i]
		if err := s.svc.cancelOnTimeout(ctx, deal, target, chainMethod); err != nil {
			var stale *StaleStateError
			if errors.As(err, &stale) {
				// кто-то успел перевести сделку — не ошибка
				continue
			}
			s.log.Error("sweep: timeout transition failed",
				zap.String("deal_id", deal.ID.String()),
				zap.String("target", target), zap.Error(err))
			stats.Errors++
			continue
		}
		*counter++
	}
}

// retryFunding re-drives paid deals stuck in NEW: a failed deploy, a lost
// escrow transfer — fundDeal picks up from whatever landed. Content-addressed
// деплой и проверка баланса делают повтор идемпотентным.
func (s *SweepService) retryFunding(ctx context.Context, stats *SweepStats) {
	deals, err := s.deals.ListNewPaid(ctx, sweepBatchSize)
	if err != nil {
		s.log.Error("sweep: funding retry list failed", zap.Error(err))
		stats.Errors++
		return
	}

	for i := range deals {
		deal := &deals[i]
		if err := s.svc.fundDeal(ctx, deal); err != nil {
			s.log.Error("sweep: escrow funding retry failed",
				zap.String("deal_id", deal.ID.String()), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.EscrowRetries++
	}
}
