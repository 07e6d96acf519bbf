package config

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticAdmin struct {
	addr [20]byte
}

func (a staticAdmin) Arbiter() [20]byte { return a.addr }

func newTestStore(t *testing.T) (*Store, [20]byte) {
	t.Helper()
	cfg := &Config{}
	cfg.Escrow.Vault = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	cfg.Escrow.FeeSink = "0xffffffffffffffffffffffffffffffffffffffff"
	cfg.Escrow.Arbiter = "0x3333333333333333333333333333333333333333"
	cfg.applyDefaults()
	require.NoError(t, cfg.Validate())

	admin := [20]byte{0x33}
	store, err := NewStore(cfg, staticAdmin{addr: admin})
	require.NoError(t, err)
	return store, admin
}

func TestStoreSeedsFromConfig(t *testing.T) {
	store, _ := newTestStore(t)
	require.Equal(t, uint32(DefaultProtocolFeeBps), store.ProtocolFeeBps())
	require.Equal(t, uint32(DefaultDisputeFeeBps), store.DisputeFeeBps())
	require.Equal(t, DefaultReviewWindowSecs, store.DefaultReviewWindow())
	require.False(t, store.IsPaused("escrow"))
}

func TestSetFeesGated(t *testing.T) {
	store, admin := newTestStore(t)

	err := store.SetFees([20]byte{0x99}, 200, 50)
	require.ErrorIs(t, err, ErrUnauthorizedAdmin)
	require.Equal(t, uint32(DefaultProtocolFeeBps), store.ProtocolFeeBps())

	require.NoError(t, store.SetFees(admin, 200, 50))
	require.Equal(t, uint32(200), store.ProtocolFeeBps())
	require.Equal(t, uint32(50), store.DisputeFeeBps())

	require.Error(t, store.SetFees(admin, 10_001, 50))
}

func TestSetAmountBounds(t *testing.T) {
	store, admin := newTestStore(t)

	require.NoError(t, store.SetAmountBounds(admin, big.NewInt(10), big.NewInt(1000)))
	minAmount, maxAmount := store.AmountBounds()
	require.Zero(t, minAmount.Cmp(big.NewInt(10)))
	require.Zero(t, maxAmount.Cmp(big.NewInt(1000)))

	// Returned bounds are copies.
	minAmount.SetInt64(999)
	freshMin, _ := store.AmountBounds()
	require.Zero(t, freshMin.Cmp(big.NewInt(10)))

	require.Error(t, store.SetAmountBounds(admin, big.NewInt(0), big.NewInt(1000)))
	require.Error(t, store.SetAmountBounds(admin, big.NewInt(100), big.NewInt(10)))
	require.ErrorIs(t, store.SetAmountBounds([20]byte{0x99}, big.NewInt(10), big.NewInt(1000)), ErrUnauthorizedAdmin)
}

func TestSetDefaultReviewWindow(t *testing.T) {
	store, admin := newTestStore(t)
	require.NoError(t, store.SetDefaultReviewWindow(admin, 7200))
	require.Equal(t, int64(7200), store.DefaultReviewWindow())
	require.Error(t, store.SetDefaultReviewWindow(admin, 0))
	require.ErrorIs(t, store.SetDefaultReviewWindow([20]byte{0x99}, 3600), ErrUnauthorizedAdmin)
}

func TestSetPaused(t *testing.T) {
	store, admin := newTestStore(t)
	require.ErrorIs(t, store.SetPaused([20]byte{0x99}, "escrow", true), ErrUnauthorizedAdmin)

	require.NoError(t, store.SetPaused(admin, "escrow", true))
	require.True(t, store.IsPaused("escrow"))
	require.NoError(t, store.SetPaused(admin, "escrow", false))
	require.False(t, store.IsPaused("escrow"))
}
