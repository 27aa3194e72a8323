package services

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/proxybuy/backend/internal/config"
	"github.com/proxybuy/backend/internal/models"
	"github.com/proxybuy/backend/internal/money"
	"github.com/proxybuy/backend/internal/ton"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

// ChainWallet is the signer side of the escrow orchestration.
type ChainWallet interface {
	Address() string
	DeployContract(ctx context.Context, code, data *cell.Cell, amountNano *big.Int) (*ton.DeployReceipt, error)
	SendTransfer(ctx context.Context, to string, amountNano *big.Int, memo string) (*ton.TransferReceipt, error)
}

// ChainReader is the read side: account state and get methods.
type ChainReader interface {
	GetAccountState(ctx context.Context, addr string) (*ton.AccountState, error)
	RunGetMethod(ctx context.Context, addr, method string, stack [][]any) (*ton.GetMethodResult, error)
}

// Contract status get-method vocabulary, mapped onto deal statuses.
// Неинициализированный аккаунт статуса не имеет и ничего не перетирает.
var onchainStatusToDeal = map[int64]string{
	1: models.DealStatusFunded,
	2: models.DealStatusPurchased,
	3: models.DealStatusShipped,
	4: models.DealStatusCompleted,
	5: models.DealStatusCancelledRefundCustomer,
	6: models.DealStatusCancelledPayBuyer,
	7: models.DealStatusDispute,
}

// EscrowService owns everything that touches the contract: init-data
// construction, deploy, the escrow top-up transfer, method invocation and
// the authoritative status read.
type EscrowService struct {
	wallet           ChainWallet
	chain            ChainReader
	code             *cell.Cell
	serviceAddr      string
	arbiterAddr      string
	deployAmountNano *big.Int
	dryRun           bool
	log              *zap.Logger
}

func NewEscrowService(cfg *config.Config, wallet ChainWallet, chain ChainReader, log *zap.Logger) (*EscrowService, error) {
	var code *cell.Cell
	if cfg.EscrowCodeBOCB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(cfg.EscrowCodeBOCB64)
		if err != nil {
			return nil, fmt.Errorf("escrow code boc: %w", err)
		}
		code, err = cell.FromBOC(raw)
		if err != nil {
			return nil, fmt.Errorf("escrow code boc: %w", err)
		}
	}

	deployTON, err := decimal.NewFromString(cfg.DeployAmountTON)
	if err != nil {
		return nil, fmt.Errorf("deploy amount %q: %w", cfg.DeployAmountTON, err)
	}
	deployNano, err := money.ToNano(deployTON)
	if err != nil {
		return nil, fmt.Errorf("deploy amount: %w", err)
	}

	return &EscrowService{
		wallet:           wallet,
		chain:            chain,
		code:             code,
		serviceAddr:      cfg.ServiceTONAddress,
		arbiterAddr:      cfg.ArbiterTONAddress,
		deployAmountNano: deployNano,
		dryRun:           cfg.ChainDryRun,
		log:              log,
	}, nil
}

func (s *EscrowService) buildParams(deal *models.Deal, orderTitle string) (ton.EscrowParams, error) {
	toNano := func(d decimal.Decimal) (*big.Int, error) { return money.ToNano(d) }

	item, err := toNano(deal.ItemPriceMaxTon)
	if err != nil {
		return ton.EscrowParams{}, err
	}
	reward, err := toNano(deal.BuyerRewardTon)
	if err != nil {
		return ton.EscrowParams{}, err
	}
	shipping, err := toNano(deal.ShippingBudgetTon)
	if err != nil {
		return ton.EscrowParams{}, err
	}
	fee, err := toNano(deal.ServiceFeeTon)
	if err != nil {
		return ton.EscrowParams{}, err
	}
	insurance, err := toNano(deal.InsuranceTon)
	if err != nil {
		return ton.EscrowParams{}, err
	}

	return ton.EscrowParams{
		CustomerAddress:    deal.CustomerTONAddress,
		BuyerAddress:       deal.BuyerTONAddress,
		ServiceAddress:     s.serviceAddr,
		ArbiterAddress:     s.arbiterAddr,
		ItemPriceNano:      item,
		BuyerRewardNano:    reward,
		ShippingBudgetNano: shipping,
		ServiceFeeNano:     fee,
		InsuranceNano:      insurance,
		PurchaseDeadline:   deal.PurchaseDeadline,
		ShipDeadline:       deal.ShipDeadline,
		ConfirmDeadline:    deal.ConfirmDeadline,
		MetadataHash:       ton.MetadataHash(deal.ID, orderTitle, deal.CreatedAt),
	}, nil
}

// Deploy sends the state-init with only the activation reserve. The escrow
// itself follows as a separate transfer — деплой и фондирование никогда не
// склеиваются в одно сообщение.
func (s *EscrowService) Deploy(ctx context.Context, deal *models.Deal, orderTitle string) (*ton.DeployReceipt, string, error) {
	if s.code == nil {
		return nil, "", fmt.Errorf("%w: escrow contract code is not configured", ton.ErrInvalidParameters)
	}

	params, err := s.buildParams(deal, orderTitle)
	if err != nil {
		return nil, "", err
	}
	data, err := ton.BuildEscrowInitData(params)
	if err != nil {
		return nil, "", err
	}

	receipt, err := s.wallet.DeployContract(ctx, s.code, data, s.deployAmountNano)
	if err != nil {
		return nil, "", fmt.Errorf("deploy: %w", err)
	}

	s.log.Info("escrow contract deploy submitted",
		zap.String("deal_id", deal.ID.String()),
		zap.String("address", receipt.ContractAddress),
		zap.Bool("simulated", receipt.Simulated))

	return receipt, hex.EncodeToString(params.MetadataHash), nil
}

// EscrowAmountNano is what the contract must hold on top of activation.
func (s *EscrowService) EscrowAmountNano(deal *models.Deal) (*big.Int, error) {
	return money.ToNano(deal.EscrowTon())
}

// TopUp transfers escrow into the contract. Callers must have confirmed
// the current balance first — повторный перевод вслепую даёт двойное
// фондирование.
func (s *EscrowService) TopUp(ctx context.Context, addr string, amountNano *big.Int, memo string) error {
	_, err := s.wallet.SendTransfer(ctx, addr, amountNano, memo)
	return err
}

// Balance reads the contract's current holdings.
func (s *EscrowService) Balance(ctx context.Context, addr string) (*big.Int, bool, error) {
	state, err := s.chain.GetAccountState(ctx, addr)
	if err != nil {
		return nil, false, err
	}
	return state.BalanceNano, state.Initialized(), nil
}

// invokeGasNano rides along with every command message. Лишнее контракт
// вернёт сдачей, нехватка газа молча убивает команду.
var invokeGasNano = big.NewInt(50_000_000) // 0.05 TON

// Invoke submits a lifecycle command to the contract as a text-comment
// message from the service wallet. The status get-method is read first:
// an uninitialized or broken contract would swallow the command without a
// trace. Failures propagate so the caller leaves off-chain state untouched.
// В dry-run контракта не существует, префлайт пропускается вместе с ним.
func (s *EscrowService) Invoke(ctx context.Context, addr, method string) error {
	if !s.dryRun {
		res, err := s.chain.RunGetMethod(ctx, addr, "status", nil)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return &ton.ChainError{Kind: ton.ErrKindContractRejected, Op: method,
				Err: fmt.Errorf("status get-method exit code %d", res.ExitCode)}
		}
	}

	if _, err := s.wallet.SendTransfer(ctx, addr, invokeGasNano, method); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// ContractStatus maps the contract's status get-method onto a deal status.
// Returns ok=false when the account is uninitialized or reports an unknown
// code — в этих случаях офчейн-статус не перетирается.
func (s *EscrowService) ContractStatus(ctx context.Context, addr string) (string, bool, error) {
	state, err := s.chain.GetAccountState(ctx, addr)
	if err != nil {
		return "", false, err
	}
	if !state.Initialized() {
		return "", false, nil
	}

	res, err := s.chain.RunGetMethod(ctx, addr, "status", nil)
	if err != nil {
		return "", false, err
	}
	if res.ExitCode != 0 {
		return "", false, nil
	}
	code, err := res.FirstInt()
	if err != nil {
		return "", false, nil
	}
	status, ok := onchainStatusToDeal[code]
	return status, ok, nil
}
