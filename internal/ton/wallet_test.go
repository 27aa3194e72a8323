package ton

import (
	"context"
	"crypto/ed25519"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"
)

// fakeChain records submitted BOCs and serves a canned seqno.
type fakeChain struct {
	seqno uint32
	sent  [][]byte
}

func (f *fakeChain) SendBOC(_ context.Context, boc []byte) error {
	f.sent = append(f.sent, boc)
	return nil
}

func (f *fakeChain) Seqno(_ context.Context, _ string) (uint32, error) {
	return f.seqno, nil
}

func (f *fakeChain) GetAccountState(_ context.Context, _ string) (*AccountState, error) {
	return &AccountState{BalanceNano: big.NewInt(0), Status: "active"}, nil
}

func newTestWallet(t *testing.T, chain chainAPI, dryRun bool) *Wallet {
	t.Helper()
	keys, err := DeriveKeys(testPhrase)
	require.NoError(t, err)
	w, err := NewWallet(keys, chain, dryRun, zap.NewNop())
	require.NoError(t, err)
	return w
}

func TestWalletAddressDeterministic(t *testing.T) {
	w1 := newTestWallet(t, &fakeChain{}, false)
	w2 := newTestWallet(t, &fakeChain{}, false)
	assert.Equal(t, w1.Address(), w2.Address())
	assert.NotEmpty(t, w1.Address())
}

func TestDeployEnvelopeParseBack(t *testing.T) {
	chain := &fakeChain{seqno: 5}
	w := newTestWallet(t, chain, false)

	code := testCode()
	data, err := BuildEscrowInitData(testParams(t))
	require.NoError(t, err)

	amount := big.NewInt(150_000_000)
	receipt, err := w.DeployContract(context.Background(), code, data, amount)
	require.NoError(t, err)
	assert.False(t, receipt.Simulated)
	assert.Equal(t, ContractAddress(0, code, data).String(), receipt.ContractAddress)
	require.Len(t, chain.sent, 1)

	ext, err := cell.FromBOC(chain.sent[0])
	require.NoError(t, err)
	s := ext.BeginParse()

	tag, err := s.LoadUInt(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b10), tag, "ext_in_msg_info tag")

	src, err := s.LoadUInt(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), src, "src addr_none")

	dest, err := s.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, w.Address(), dest.String())

	importFee, err := s.LoadBigCoins()
	require.NoError(t, err)
	assert.Zero(t, importFee.Sign())

	hasInit, err := s.LoadBoolBit()
	require.NoError(t, err)
	assert.False(t, hasInit, "wallet itself carries no state-init")

	bodyIsRef, err := s.LoadBoolBit()
	require.NoError(t, err)
	require.True(t, bodyIsRef)

	body, err := s.LoadRef()
	require.NoError(t, err)

	sig, err := body.LoadSlice(512)
	require.NoError(t, err)

	subwallet, err := body.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultSubwallet), subwallet)

	validUntil, err := body.LoadUInt(32)
	require.NoError(t, err)

	seqno, err := body.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seqno)

	mode, err := body.LoadUInt(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(defaultSendMode), mode)

	inner, err := body.LoadRefCell()
	require.NoError(t, err)

	// Signature covers the rebuilt signing payload.
	payload := cell.BeginCell().
		MustStoreUInt(subwallet, 32).
		MustStoreUInt(validUntil, 32).
		MustStoreUInt(seqno, 32).
		MustStoreUInt(mode, 8).
		MustStoreRef(inner).
		EndCell()
	assert.True(t, ed25519.Verify(w.keys.Public, payload.Hash(), sig))

	// Inner message targets the derived contract address with the amount
	// and carries the state-init.
	is := inner.BeginParse()
	head, err := is.LoadUInt(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b0100), head, "int_msg_info, ihr_disabled, no bounce")

	_, err = is.LoadUInt(2) // src addr_none
	require.NoError(t, err)

	target, err := is.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, receipt.ContractAddress, target.String())

	value, err := is.LoadBigCoins()
	require.NoError(t, err)
	assert.Zero(t, amount.Cmp(value))

	_, err = is.LoadBoolBit() // extra currencies
	require.NoError(t, err)
	_, err = is.LoadBigCoins() // ihr_fee
	require.NoError(t, err)
	_, err = is.LoadBigCoins() // fwd_fee
	require.NoError(t, err)
	_, err = is.LoadUInt(64) // created_lt
	require.NoError(t, err)
	_, err = is.LoadUInt(32) // created_at
	require.NoError(t, err)

	initMaybe, err := is.LoadBoolBit()
	require.NoError(t, err)
	assert.True(t, initMaybe, "deploy must carry state-init")
}

func TestTransferCarriesComment(t *testing.T) {
	chain := &fakeChain{seqno: 1}
	w := newTestWallet(t, chain, false)

	to := testAddr(0x55)
	_, err := w.SendTransfer(context.Background(), to, big.NewInt(430_000_000), "deal:42")
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)

	ext, err := cell.FromBOC(chain.sent[0])
	require.NoError(t, err)
	s := ext.BeginParse()
	_, _ = s.LoadUInt(2)
	_, _ = s.LoadUInt(2)
	_, err = s.LoadAddr()
	require.NoError(t, err)
	_, _ = s.LoadBigCoins()
	_, _ = s.LoadBoolBit()
	_, _ = s.LoadBoolBit()
	body, err := s.LoadRef()
	require.NoError(t, err)

	_, err = body.LoadSlice(512)
	require.NoError(t, err)
	_, _ = body.LoadUInt(32) // subwallet
	_, _ = body.LoadUInt(32) // valid until
	_, _ = body.LoadUInt(32) // seqno
	_, _ = body.LoadUInt(8)  // mode
	inner, err := body.LoadRef()
	require.NoError(t, err)

	_, _ = inner.LoadUInt(4)
	_, _ = inner.LoadUInt(2)
	dest, err := inner.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, to, dest.String())

	value, err := inner.LoadBigCoins()
	require.NoError(t, err)
	assert.Equal(t, "430000000", value.String())

	_, _ = inner.LoadBoolBit()
	_, _ = inner.LoadBigCoins()
	_, _ = inner.LoadBigCoins()
	_, _ = inner.LoadUInt(64)
	_, _ = inner.LoadUInt(32)

	initMaybe, err := inner.LoadBoolBit()
	require.NoError(t, err)
	assert.False(t, initMaybe, "plain transfer has no state-init")

	bodyIsRef, err := inner.LoadBoolBit()
	require.NoError(t, err)
	require.True(t, bodyIsRef)

	msgBody, err := inner.LoadRef()
	require.NoError(t, err)
	op, err := msgBody.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), op, "text comment opcode")

	comment, err := msgBody.LoadStringSnake()
	require.NoError(t, err)
	assert.Equal(t, "deal:42", comment)
}

func TestDryRunNeverSubmits(t *testing.T) {
	chain := &fakeChain{}
	w := newTestWallet(t, chain, true)

	code := testCode()
	data, err := BuildEscrowInitData(testParams(t))
	require.NoError(t, err)

	receipt, err := w.DeployContract(context.Background(), code, data, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, receipt.Simulated)
	assert.Equal(t, ContractAddress(0, code, data).String(), receipt.ContractAddress)

	tr, err := w.SendTransfer(context.Background(), testAddr(0x66), big.NewInt(1), "")
	require.NoError(t, err)
	assert.True(t, tr.Simulated)

	assert.Empty(t, chain.sent)
}
