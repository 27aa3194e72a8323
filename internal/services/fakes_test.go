package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proxybuy/backend/internal/events"
	"github.com/proxybuy/backend/internal/models"
	"github.com/proxybuy/backend/internal/money"
	"github.com/proxybuy/backend/internal/repositories"
	"github.com/proxybuy/backend/internal/ton"
	"github.com/shopspring/decimal"
)

// fakeStore — in-memory persistence for the whole aggregate. Copy-on-read,
// как и настоящая БД: мутации сервиса видны только через Update-методы.
type fakeStore struct {
	mu sync.Mutex

	deals         map[uuid.UUID]*models.Deal
	orders        map[uuid.UUID]*models.Order
	shipAddrs     map[uuid.UUID]*models.ShippingAddress
	onchain       map[uuid.UUID]*models.OnchainDeal
	payments      map[uuid.UUID]*models.Payment
	disputes      map[uuid.UUID]*models.Dispute
	shipments     map[uuid.UUID]*models.Shipment
	confirmations map[uuid.UUID]*models.PurchaseConfirmation
	auditLog      []models.AuditLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deals:         make(map[uuid.UUID]*models.Deal),
		orders:        make(map[uuid.UUID]*models.Order),
		shipAddrs:     make(map[uuid.UUID]*models.ShippingAddress),
		onchain:       make(map[uuid.UUID]*models.OnchainDeal),
		payments:      make(map[uuid.UUID]*models.Payment),
		disputes:      make(map[uuid.UUID]*models.Dispute),
		shipments:     make(map[uuid.UUID]*models.Shipment),
		confirmations: make(map[uuid.UUID]*models.PurchaseConfirmation),
	}
}

// --- DealStore ---

func (f *fakeStore) Create(_ context.Context, d *models.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	cp := *d
	f.deals[d.ID] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeStore) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok {
		return repositories.ErrNotFound
	}
	d.Status = status
	return nil
}

func (f *fakeStore) SetActualItemPrice(_ context.Context, id uuid.UUID, price decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok {
		return repositories.ErrNotFound
	}
	d.ActualItemPriceRub = decimal.NewNullDecimal(price)
	return nil
}

func (f *fakeStore) SetActualShippingCost(_ context.Context, id uuid.UUID, cost decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok {
		return repositories.ErrNotFound
	}
	d.ActualShippingCostRub = decimal.NewNullDecimal(cost)
	return nil
}

func (f *fakeStore) SetRemainder(_ context.Context, id uuid.UUID, remainder decimal.Decimal, policy *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deals[id]
	if !ok {
		return repositories.ErrNotFound
	}
	d.RemainderRub = decimal.NewNullDecimal(remainder)
	d.RemainderPolicy = policy
	return nil
}

func (f *fakeStore) ListDeadlineExpired(_ context.Context, status, deadlineColumn string, now time.Time, limit int) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Deal
	for _, d := range f.deals {
		if d.Status != status || len(out) >= limit {
			continue
		}
		var deadline time.Time
		switch deadlineColumn {
		case repositories.DeadlinePurchase:
			deadline = d.PurchaseDeadline
		case repositories.DeadlineShip:
			deadline = d.ShipDeadline
		case repositories.DeadlineConfirm:
			deadline = d.ConfirmDeadline
		}
		if deadline.Before(now) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListNewPaid(_ context.Context, limit int) ([]models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Deal
	for id, d := range f.deals {
		if d.Status != models.DealStatusNew || len(out) >= limit {
			continue
		}
		for _, p := range f.payments {
			if p.DealID == id && p.Status == models.PaymentStatusSuccess {
				out = append(out, *d)
				break
			}
		}
	}
	return out, nil
}

// --- OrderStore ---
// Отдельные адаптеры: имена методов DealStore и остальных сторов совпадают.

type orderStoreAdapter struct{ f *fakeStore }

func (a orderStoreAdapter) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	o, ok := a.f.orders[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (a orderStoreAdapter) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	o, ok := a.f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (a orderStoreAdapter) GetShippingAddress(_ context.Context, orderID uuid.UUID) (*models.ShippingAddress, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	addr, ok := a.f.shipAddrs[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *addr
	return &cp, nil
}

// --- OnchainStore ---

type onchainStoreAdapter struct{ f *fakeStore }

func (a onchainStoreAdapter) Create(_ context.Context, oc *models.OnchainDeal) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if _, exists := a.f.onchain[oc.DealID]; exists {
		return repositories.ErrAlreadyDeployed
	}
	if oc.ID == uuid.Nil {
		oc.ID = uuid.New()
	}
	oc.DeployedAt = time.Now().UTC()
	cp := *oc
	a.f.onchain[oc.DealID] = &cp
	return nil
}

func (a onchainStoreAdapter) GetByDealID(_ context.Context, dealID uuid.UUID) (*models.OnchainDeal, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	oc, ok := a.f.onchain[dealID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *oc
	return &cp, nil
}

func (a onchainStoreAdapter) Touch(_ context.Context, dealID uuid.UUID) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if oc, ok := a.f.onchain[dealID]; ok {
		oc.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// --- PaymentStore ---

type paymentStoreAdapter struct{ f *fakeStore }

func (a paymentStoreAdapter) Create(_ context.Context, p *models.Payment) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	a.f.payments[p.ID] = &cp
	return nil
}

func (a paymentStoreAdapter) GetByDealID(_ context.Context, dealID uuid.UUID) (*models.Payment, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	for _, p := range a.f.payments {
		if p.DealID == dealID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (a paymentStoreAdapter) GetByProviderReference(_ context.Context, ref string) (*models.Payment, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	for _, p := range a.f.payments {
		if p.ProviderReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (a paymentStoreAdapter) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	p, ok := a.f.payments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Status = status
	return nil
}

// --- DisputeStore ---

type disputeStoreAdapter struct{ f *fakeStore }

func (a disputeStoreAdapter) Create(_ context.Context, d *models.Dispute) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	for _, existing := range a.f.disputes {
		if existing.DealID == d.DealID && existing.Resolution == models.DisputeResolutionPending {
			return repositories.ErrDisputeAlreadyOpen
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	cp := *d
	a.f.disputes[d.ID] = &cp
	return nil
}

func (a disputeStoreAdapter) GetByID(_ context.Context, id uuid.UUID) (*models.Dispute, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	d, ok := a.f.disputes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (a disputeStoreAdapter) GetOpenByDealID(_ context.Context, dealID uuid.UUID) (*models.Dispute, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	for _, d := range a.f.disputes {
		if d.DealID == dealID && d.Resolution == models.DisputeResolutionPending {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (a disputeStoreAdapter) Resolve(_ context.Context, id uuid.UUID, resolution string, resolverID uuid.UUID, at time.Time) (bool, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	d, ok := a.f.disputes[id]
	if !ok || d.Resolution != models.DisputeResolutionPending {
		return false, nil
	}
	d.Resolution = resolution
	d.ResolverID = &resolverID
	d.ResolvedAt = &at
	return true, nil
}

// --- ShipmentStore ---

type shipmentStoreAdapter struct{ f *fakeStore }

func (a shipmentStoreAdapter) Create(_ context.Context, s *models.Shipment) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	a.f.shipments[s.DealID] = &cp
	return nil
}

func (a shipmentStoreAdapter) GetByDealID(_ context.Context, dealID uuid.UUID) (*models.Shipment, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	s, ok := a.f.shipments[dealID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (a shipmentStoreAdapter) CreateConfirmation(_ context.Context, c *models.PurchaseConfirmation) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	a.f.confirmations[c.DealID] = &cp
	return nil
}

func (a shipmentStoreAdapter) GetConfirmation(_ context.Context, dealID uuid.UUID) (*models.PurchaseConfirmation, error) {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	c, ok := a.f.confirmations[dealID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// --- AuditStore ---

type auditStoreAdapter struct{ f *fakeStore }

func (a auditStoreAdapter) Log(_ context.Context, entry models.AuditLog) error {
	a.f.mu.Lock()
	defer a.f.mu.Unlock()
	a.f.auditLog = append(a.f.auditLog, entry)
	return nil
}

// fakeEscrow records chain interactions and simulates landed transfers by
// crediting the balance.
type fakeEscrow struct {
	mu sync.Mutex

	deployErr error
	topUpErr  error
	invokeErr map[string]error
	status    string
	statusOK  bool

	balance *big.Int
	deploys int
	topUps  []*big.Int
	invokes []string
}

func newFakeEscrow() *fakeEscrow {
	return &fakeEscrow{invokeErr: make(map[string]error), balance: big.NewInt(0)}
}

func (f *fakeEscrow) Deploy(_ context.Context, deal *models.Deal, _ string) (*ton.DeployReceipt, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deployErr != nil {
		return nil, "", f.deployErr
	}
	f.deploys++
	addr := fmt.Sprintf("0:%x", deal.ID[:])
	return &ton.DeployReceipt{ContractAddress: addr}, "deadbeef", nil
}

func (f *fakeEscrow) EscrowAmountNano(deal *models.Deal) (*big.Int, error) {
	return money.ToNano(deal.EscrowTon())
}

func (f *fakeEscrow) Balance(_ context.Context, _ string) (*big.Int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), true, nil
}

func (f *fakeEscrow) TopUp(_ context.Context, _ string, amountNano *big.Int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topUpErr != nil {
		return f.topUpErr
	}
	f.topUps = append(f.topUps, new(big.Int).Set(amountNano))
	f.balance.Add(f.balance, amountNano)
	return nil
}

func (f *fakeEscrow) Invoke(_ context.Context, _ string, method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.invokeErr[method]; err != nil {
		return err
	}
	f.invokes = append(f.invokes, method)
	return nil
}

func (f *fakeEscrow) ContractStatus(_ context.Context, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statusOK, nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) byType(t string) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// stubQuoter returns a fixed price for mail modes.
type stubQuoter struct{ price decimal.Decimal }

func (q stubQuoter) Quote(_ context.Context, _, _, _, mode string) (decimal.Decimal, error) {
	if mode == models.DeliveryModePersonalHandover {
		return decimal.Zero, nil
	}
	return q.price, nil
}

// stubValidator returns a fixed verdict.
type stubValidator struct{ verdict string }

func (v stubValidator) Validate(_ context.Context, _ string) (string, error) {
	return v.verdict, nil
}
