package ton

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

// Standard wallet v3r2 code and subwallet id.
const (
	walletV3R2CodeB64 = "te6cckEBAQEAcQAA3v8AIN0gggFMl7ohggEznLqxn3Gw7UTQ0x/THzHXC//jBOCk8mCDCNcYINMf0x/TH/gjE7vyY+1E0NMf0x/T/9FRMrryoVFEuvKiBPkBVBBV+RDyo/gAkyDXSpbTB9QC+wDo0QGkyMsfyx/L/8ntVBC9ba0="
	DefaultSubwallet  = 698983191

	// external message validity window
	messageTTL = 60 * time.Second

	defaultSendMode = 3
)

// chainAPI is the slice of Client the wallet needs. Narrowed so tests can
// substitute a fake transport.
type chainAPI interface {
	SendBOC(ctx context.Context, boc []byte) error
	Seqno(ctx context.Context, addr string) (uint32, error)
	GetAccountState(ctx context.Context, addr string) (*AccountState, error)
}

// Wallet signs and submits external messages from the service hot wallet.
// Seqno consumption is serialized behind the mutex: two messages with the
// same sequence number would have the second rejected by the network.
type Wallet struct {
	keys      *KeyPair
	addr      *address.Address
	subwallet uint32
	client    chainAPI
	dryRun    bool
	log       *zap.Logger

	mu sync.Mutex
}

type DeployReceipt struct {
	ContractAddress string
	Simulated       bool
}

type TransferReceipt struct {
	Simulated bool
}

func walletV3R2Code() (*cell.Cell, error) {
	raw, err := base64.StdEncoding.DecodeString(walletV3R2CodeB64)
	if err != nil {
		return nil, err
	}
	return cell.FromBOC(raw)
}

// NewWallet builds the wallet state from the key pair and derives its own
// address. dryRun derives everything but never submits — явный режим
// симуляции, не fallback на ошибках.
func NewWallet(keys *KeyPair, client chainAPI, dryRun bool, log *zap.Logger) (*Wallet, error) {
	if keys == nil {
		return nil, &SigningError{Reason: "key pair is required"}
	}
	code, err := walletV3R2Code()
	if err != nil {
		return nil, fmt.Errorf("wallet code: %w", err)
	}

	data := cell.BeginCell().
		MustStoreUInt(0, 32). // initial seqno
		MustStoreUInt(DefaultSubwallet, 32).
		MustStoreSlice(keys.Public, 256).
		EndCell()

	return &Wallet{
		keys:      keys,
		addr:      ContractAddress(0, code, data),
		subwallet: DefaultSubwallet,
		client:    client,
		dryRun:    dryRun,
		log:       log,
	}, nil
}

func (w *Wallet) Address() string { return w.addr.String() }

// signingPayload is rebuilt for both the hash and the message body, so the
// builder is never reused after EndCell.
func (w *Wallet) signingPayload(seqno uint32, validUntil int64, mode uint8, msg *cell.Cell) *cell.Builder {
	return cell.BeginCell().
		MustStoreUInt(uint64(w.subwallet), 32).
		MustStoreUInt(uint64(validUntil), 32).
		MustStoreUInt(uint64(seqno), 32).
		MustStoreUInt(uint64(mode), 8).
		MustStoreRef(msg)
}

// internalMessage encodes int_msg_info$0: ihr_disabled, bounce=false (the
// destination may be uninitialized), empty fees, optional state-init ref,
// body as ref.
func internalMessage(dest *address.Address, amountNano *big.Int, stateInit, body *cell.Cell) *cell.Cell {
	b := cell.BeginCell().
		MustStoreUInt(0b0100, 4). // tag 0, ihr_disabled 1, bounce 0, bounced 0
		MustStoreUInt(0, 2).      // src: addr_none
		MustStoreAddr(dest).
		MustStoreBigCoins(amountNano).
		MustStoreBoolBit(false). // no extra currencies
		MustStoreCoins(0).       // ihr_fee
		MustStoreCoins(0).       // fwd_fee
		MustStoreUInt(0, 64).    // created_lt
		MustStoreUInt(0, 32)     // created_at

	if stateInit != nil {
		b.MustStoreBoolBit(true).MustStoreBoolBit(true).MustStoreRef(stateInit)
	} else {
		b.MustStoreBoolBit(false)
	}

	if body != nil {
		b.MustStoreBoolBit(true).MustStoreRef(body)
	} else {
		b.MustStoreBoolBit(false)
	}
	return b.EndCell()
}

// externalMessage wraps the signed body for the wallet itself.
func externalMessage(dest *address.Address, body *cell.Cell) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(0b10, 2). // ext_in_msg_info$10
		MustStoreUInt(0, 2).    // src: addr_none
		MustStoreAddr(dest).
		MustStoreCoins(0).       // import fee
		MustStoreBoolBit(false). // wallet is already deployed, no state-init
		MustStoreBoolBit(true).
		MustStoreRef(body).
		EndCell()
}

func (w *Wallet) submit(ctx context.Context, op string, inner *cell.Cell) error {
	seqno, err := w.client.Seqno(ctx, w.addr.String())
	if err != nil {
		return fmt.Errorf("%s: wallet seqno: %w", op, err)
	}

	validUntil := time.Now().Add(messageTTL).Unix()
	hash := w.signingPayload(seqno, validUntil, defaultSendMode, inner).EndCell().Hash()

	sig, err := w.keys.Sign(hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body := cell.BeginCell().
		MustStoreSlice(sig, 512).
		MustStoreBuilder(w.signingPayload(seqno, validUntil, defaultSendMode, inner)).
		EndCell()

	ext := externalMessage(w.addr, body)
	if err := w.client.SendBOC(ctx, ext.ToBOC()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w.log.Info("external message submitted",
		zap.String("op", op), zap.Uint32("seqno", seqno))
	return nil
}

// DeployContract derives the target address, submits a transfer carrying the
// state-init and returns the address regardless of confirmation — деплой
// fire-and-forget, подтверждение приходит через reconciliation.
func (w *Wallet) DeployContract(ctx context.Context, code, data *cell.Cell, amountNano *big.Int) (*DeployReceipt, error) {
	target := ContractAddress(0, code, data)

	if w.dryRun {
		w.log.Info("dry run: deploy skipped", zap.String("address", target.String()))
		return &DeployReceipt{ContractAddress: target.String(), Simulated: true}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	si := StateInit(code, data)
	inner := internalMessage(target, amountNano, si, nil)
	if err := w.submit(ctx, "deploy", inner); err != nil {
		return nil, err
	}
	return &DeployReceipt{ContractAddress: target.String()}, nil
}

// SendTransfer submits a plain value transfer with a text comment.
func (w *Wallet) SendTransfer(ctx context.Context, to string, amountNano *big.Int, memo string) (*TransferReceipt, error) {
	dest, err := address.ParseAddr(to)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w: %v", ErrInvalidParameters, err)
	}

	if w.dryRun {
		w.log.Info("dry run: transfer skipped",
			zap.String("to", to), zap.String("amount_nano", amountNano.String()))
		return &TransferReceipt{Simulated: true}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var body *cell.Cell
	if memo != "" {
		body = cell.BeginCell().
			MustStoreUInt(0, 32). // text comment opcode
			MustStoreStringSnake(memo).
			EndCell()
	}

	inner := internalMessage(dest, amountNano, nil, body)
	if err := w.submit(ctx, "transfer", inner); err != nil {
		return nil, err
	}
	return &TransferReceipt{}, nil
}
