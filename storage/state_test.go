package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"paylock/native/escrow"
)

func TestEscrowRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())
	record := &escrow.Escrow{
		ID:           [32]byte{0x01},
		Requester:    [20]byte{0x11},
		Fulfiller:    [20]byte{0x22},
		Asset:        "PAY",
		Amount:       big.NewInt(1000),
		Deadline:     2000,
		ReviewWindow: 3600,
		CriteriaRef:  [32]byte{0x03},
		EvidenceRef:  [32]byte{0x04},
		DisputeFee:   big.NewInt(10),
		Status:       escrow.StatusDisputed,
		CreatedAt:    100,
		SubmittedAt:  200,
	}
	require.NoError(t, state.EscrowPut(record))

	loaded, ok := state.EscrowGet(record.ID)
	require.True(t, ok)
	require.Equal(t, record.Requester, loaded.Requester)
	require.Equal(t, record.Asset, loaded.Asset)
	require.Zero(t, record.Amount.Cmp(loaded.Amount))
	require.Zero(t, record.DisputeFee.Cmp(loaded.DisputeFee))
	require.Equal(t, record.Status, loaded.Status)
	require.Equal(t, record.ReviewWindow, loaded.ReviewWindow)
	require.Equal(t, record.EvidenceRef, loaded.EvidenceRef)

	// Reads decode into fresh values; mutating one must not leak into the next.
	loaded.Amount.SetInt64(1)
	again, ok := state.EscrowGet(record.ID)
	require.True(t, ok)
	require.Zero(t, again.Amount.Cmp(big.NewInt(1000)))
}

func TestEscrowPutRejectsInvalidRecord(t *testing.T) {
	state := NewState(NewMemDB())
	require.Error(t, state.EscrowPut(nil))
	require.Error(t, state.EscrowPut(&escrow.Escrow{Asset: "BTC"}))
}

func TestEscrowDelete(t *testing.T) {
	state := NewState(NewMemDB())
	record := &escrow.Escrow{ID: [32]byte{0x02}, Asset: "PAY", Amount: big.NewInt(1)}
	require.NoError(t, state.EscrowPut(record))
	require.NoError(t, state.EscrowDelete(record.ID))
	_, ok := state.EscrowGet(record.ID)
	require.False(t, ok)
}

func TestEscrowGetMissing(t *testing.T) {
	state := NewState(NewMemDB())
	_, ok := state.EscrowGet([32]byte{0xFF})
	require.False(t, ok)
}

func TestAccountRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())
	addr := [20]byte{0x11}

	account, err := state.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, account.Balance("PAY").Sign())

	account.SetBalance("PAY", big.NewInt(500))
	account.SetBalance("USDP", big.NewInt(9))
	require.NoError(t, state.PutAccount(addr, account))

	loaded, err := state.GetAccount(addr)
	require.NoError(t, err)
	require.Zero(t, loaded.Balance("PAY").Cmp(big.NewInt(500)))
	require.Zero(t, loaded.Balance("USDP").Cmp(big.NewInt(9)))
}

func TestPutAccountNil(t *testing.T) {
	state := NewState(NewMemDB())
	addr := [20]byte{0x12}
	require.NoError(t, state.PutAccount(addr, nil))
	loaded, err := state.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Zero(t, loaded.Balance("PAY").Sign())
}

func TestAuthorityRecordRoundTrip(t *testing.T) {
	state := NewState(NewMemDB())

	_, _, ok, err := state.AuthorityGet()
	require.NoError(t, err)
	require.False(t, ok)

	arbiter := [20]byte{0x33}
	nominee := [20]byte{0x44}
	require.NoError(t, state.AuthorityPut(arbiter, nominee))

	gotArbiter, gotNominee, ok, err := state.AuthorityGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, arbiter, gotArbiter)
	require.Equal(t, nominee, gotNominee)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	key := []byte("k")
	value := []byte("original")
	require.NoError(t, db.Put(key, value))
	value[0] = 'X'

	got, err := db.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := db.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}

func TestMemDBDelete(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Delete([]byte("k")))
	_, err := db.Get([]byte("k"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestNilStateRejectsOperations(t *testing.T) {
	var state *State
	require.Error(t, state.EscrowPut(&escrow.Escrow{}))
	_, ok := state.EscrowGet([32]byte{})
	require.False(t, ok)
	_, err := state.GetAccount([20]byte{})
	require.Error(t, err)
}
