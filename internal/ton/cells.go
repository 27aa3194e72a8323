package ton

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// EscrowParams — всё, что уходит в init-data эскроу-контракта.
// Amounts are in nano-units; the bit layout below is the contract ABI and
// must never be reordered — the derived address depends on every bit.
type EscrowParams struct {
	CustomerAddress string
	BuyerAddress    string
	ServiceAddress  string
	ArbiterAddress  string

	ItemPriceNano      *big.Int
	BuyerRewardNano    *big.Int
	ShippingBudgetNano *big.Int
	ServiceFeeNano     *big.Int
	InsuranceNano      *big.Int

	PurchaseDeadline time.Time
	ShipDeadline     time.Time
	ConfirmDeadline  time.Time

	MetadataHash []byte // 32 bytes
}

func (p *EscrowParams) validate() error {
	if p.CustomerAddress == "" || p.BuyerAddress == "" || p.ServiceAddress == "" || p.ArbiterAddress == "" {
		return fmt.Errorf("%w: all four party addresses are required", ErrInvalidParameters)
	}
	for _, amt := range []*big.Int{p.ItemPriceNano, p.BuyerRewardNano, p.ShippingBudgetNano, p.ServiceFeeNano, p.InsuranceNano} {
		if amt == nil || amt.Sign() < 0 {
			return fmt.Errorf("%w: amounts must be present and non-negative", ErrInvalidParameters)
		}
	}
	if len(p.MetadataHash) != 32 {
		return fmt.Errorf("%w: metadata hash must be 32 bytes", ErrInvalidParameters)
	}
	return nil
}

// BuildEscrowInitData packs the contract init-data cell tree:
//
//	root: deployed flag (1 bit, 0) | customer | buyer | service | ref(b1)
//	b1:   arbiter | 5 x coins | purchase deadline u64 | ship deadline u64 | ref(b2)
//	b2:   confirm deadline u64 | metadata hash 256 bits
func BuildEscrowInitData(p EscrowParams) (*cell.Cell, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	customer, err := address.ParseAddr(p.CustomerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: customer address: %v", ErrInvalidParameters, err)
	}
	buyer, err := address.ParseAddr(p.BuyerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: buyer address: %v", ErrInvalidParameters, err)
	}
	service, err := address.ParseAddr(p.ServiceAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: service address: %v", ErrInvalidParameters, err)
	}
	arbiter, err := address.ParseAddr(p.ArbiterAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: arbiter address: %v", ErrInvalidParameters, err)
	}

	b2 := cell.BeginCell().
		MustStoreUInt(uint64(p.ConfirmDeadline.Unix()), 64).
		MustStoreSlice(p.MetadataHash, 256).
		EndCell()

	b1 := cell.BeginCell().
		MustStoreAddr(arbiter).
		MustStoreBigCoins(p.ItemPriceNano).
		MustStoreBigCoins(p.BuyerRewardNano).
		MustStoreBigCoins(p.ShippingBudgetNano).
		MustStoreBigCoins(p.ServiceFeeNano).
		MustStoreBigCoins(p.InsuranceNano).
		MustStoreUInt(uint64(p.PurchaseDeadline.Unix()), 64).
		MustStoreUInt(uint64(p.ShipDeadline.Unix()), 64).
		MustStoreRef(b2).
		EndCell()

	root := cell.BeginCell().
		MustStoreBoolBit(false). // deployed flag, contract flips it on first message
		MustStoreAddr(customer).
		MustStoreAddr(buyer).
		MustStoreAddr(service).
		MustStoreRef(b1).
		EndCell()

	return root, nil
}

// StateInit wraps code+data: split_depth absent, special absent, code
// present as ref, data present as ref, library absent.
func StateInit(code, data *cell.Cell) *cell.Cell {
	return cell.BeginCell().
		MustStoreBoolBit(false). // split_depth
		MustStoreBoolBit(false). // special
		MustStoreBoolBit(true).
		MustStoreRef(code).
		MustStoreBoolBit(true).
		MustStoreRef(data).
		MustStoreBoolBit(false). // library
		EndCell()
}

// ContractAddress derives the content address: workchain + representation
// hash of the state-init cell. Pure function of its inputs — retrying a
// deploy always targets the same address.
func ContractAddress(workchain byte, code, data *cell.Cell) *address.Address {
	si := StateInit(code, data)
	return address.NewAddress(0, workchain, si.Hash())
}

// MetadataHash is the canonical deal summary digest stored in init-data:
// SHA-256 of "<dealID>-<orderTitle>-<createdAt RFC3339>".
func MetadataHash(dealID uuid.UUID, orderTitle string, createdAt time.Time) []byte {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", dealID, orderTitle, createdAt.UTC().Format(time.RFC3339))))
	return h[:]
}
