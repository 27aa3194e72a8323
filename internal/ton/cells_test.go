package ton

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// testAddr builds a syntactically valid workchain-0 address from a filler
// byte, so parse-back comparisons survive checksum validation.
func testAddr(b byte) string {
	data := bytes.Repeat([]byte{b}, 32)
	return address.NewAddress(0, 0, data).String()
}

var (
	testCustomerAddr = testAddr(0x11)
	testBuyerAddr    = testAddr(0x22)
	testServiceAddr  = testAddr(0x33)
	testArbiterAddr  = testAddr(0x44)
)

func testParams(t *testing.T) EscrowParams {
	t.Helper()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return EscrowParams{
		CustomerAddress:    testCustomerAddr,
		BuyerAddress:       testBuyerAddr,
		ServiceAddress:     testServiceAddr,
		ArbiterAddress:     testArbiterAddr,
		ItemPriceNano:      big.NewInt(400_000_000),
		BuyerRewardNano:    big.NewInt(80_000_000),
		ShippingBudgetNano: big.NewInt(100_000_000),
		ServiceFeeNano:     big.NewInt(120_000_000),
		InsuranceNano:      big.NewInt(40_000_000),
		PurchaseDeadline:   created.Add(24 * time.Hour),
		ShipDeadline:       created.Add(72 * time.Hour),
		ConfirmDeadline:    created.Add(336 * time.Hour),
		MetadataHash:       MetadataHash(uuid.MustParse("8a2b8a1e-54a8-4c1f-9318-1f0d0c6b8a11"), "camera lens", created),
	}
}

func testCode() *cell.Cell {
	return cell.BeginCell().MustStoreUInt(0xC0DE, 16).EndCell()
}

func TestBuildEscrowInitDataLayout(t *testing.T) {
	data, err := BuildEscrowInitData(testParams(t))
	require.NoError(t, err)

	p := testParams(t)
	root := data.BeginParse()

	deployed, err := root.LoadBoolBit()
	require.NoError(t, err)
	assert.False(t, deployed)

	customer, err := root.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, testCustomerAddr, customer.String())

	buyer, err := root.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, testBuyerAddr, buyer.String())

	service, err := root.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, testServiceAddr, service.String())

	b1, err := root.LoadRef()
	require.NoError(t, err)

	arbiter, err := b1.LoadAddr()
	require.NoError(t, err)
	assert.Equal(t, testArbiterAddr, arbiter.String())

	for i, want := range []*big.Int{p.ItemPriceNano, p.BuyerRewardNano, p.ShippingBudgetNano, p.ServiceFeeNano, p.InsuranceNano} {
		got, err := b1.LoadBigCoins()
		require.NoError(t, err)
		assert.Zerof(t, want.Cmp(got), "coins #%d: want %s got %s", i, want, got)
	}

	purchase, err := b1.LoadUInt(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(p.PurchaseDeadline.Unix()), purchase)

	ship, err := b1.LoadUInt(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(p.ShipDeadline.Unix()), ship)

	b2, err := b1.LoadRef()
	require.NoError(t, err)

	confirm, err := b2.LoadUInt(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(p.ConfirmDeadline.Unix()), confirm)

	hash, err := b2.LoadSlice(256)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(p.MetadataHash, hash))
}

func TestBuildEscrowInitDataValidation(t *testing.T) {
	p := testParams(t)
	p.BuyerAddress = ""
	_, err := BuildEscrowInitData(p)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	p = testParams(t)
	p.ArbiterAddress = "not-an-address"
	_, err = BuildEscrowInitData(p)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	p = testParams(t)
	p.ItemPriceNano = nil
	_, err = BuildEscrowInitData(p)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	p = testParams(t)
	p.MetadataHash = []byte{1, 2, 3}
	_, err = BuildEscrowInitData(p)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestContractAddressDeterministic(t *testing.T) {
	data1, err := BuildEscrowInitData(testParams(t))
	require.NoError(t, err)
	data2, err := BuildEscrowInitData(testParams(t))
	require.NoError(t, err)

	a1 := ContractAddress(0, testCode(), data1)
	a2 := ContractAddress(0, testCode(), data2)
	assert.Equal(t, a1.String(), a2.String())

	// Any parameter change moves the address.
	p := testParams(t)
	p.ItemPriceNano = big.NewInt(400_000_001)
	data3, err := BuildEscrowInitData(p)
	require.NoError(t, err)
	a3 := ContractAddress(0, testCode(), data3)
	assert.NotEqual(t, a1.String(), a3.String())
}

func TestStateInitLayout(t *testing.T) {
	code := testCode()
	data, err := BuildEscrowInitData(testParams(t))
	require.NoError(t, err)

	si := StateInit(code, data).BeginParse()

	splitDepth, err := si.LoadBoolBit()
	require.NoError(t, err)
	assert.False(t, splitDepth)

	special, err := si.LoadBoolBit()
	require.NoError(t, err)
	assert.False(t, special)

	hasCode, err := si.LoadBoolBit()
	require.NoError(t, err)
	assert.True(t, hasCode)

	codeRef, err := si.LoadRef()
	require.NoError(t, err)
	v, err := codeRef.LoadUInt(16)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xC0DE), v)

	hasData, err := si.LoadBoolBit()
	require.NoError(t, err)
	assert.True(t, hasData)

	_, err = si.LoadRef()
	require.NoError(t, err)

	hasLib, err := si.LoadBoolBit()
	require.NoError(t, err)
	assert.False(t, hasLib)
}

func TestMetadataHashStable(t *testing.T) {
	id := uuid.MustParse("8a2b8a1e-54a8-4c1f-9318-1f0d0c6b8a11")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h1 := MetadataHash(id, "camera lens", at)
	h2 := MetadataHash(id, "camera lens", at)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)

	h3 := MetadataHash(id, "other title", at)
	assert.NotEqual(t, h1, h3)
}
