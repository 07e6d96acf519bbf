package bank

import (
	"errors"
	"fmt"
	"math/big"

	"paylock/core/types"
)

var (
	ErrNilState            = errors.New("bank: state not configured")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
)

// Transfer describes a single balance movement of one asset between two
// addresses.
type Transfer struct {
	Asset  string
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// Settler applies a batch of transfers as one atomic unit: either every
// transfer in the batch commits or none does.
type Settler interface {
	Apply(transfers []Transfer) error
}

// AccountState is the subset of state capabilities the ledger requires.
type AccountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Ledger moves asset balances between accounts held in a state backend. All
// balance checks run against staged copies before anything is persisted, so a
// failed batch leaves every account untouched.
type Ledger struct {
	state AccountState
}

// NewLedger constructs a ledger over the supplied account state.
func NewLedger(state AccountState) *Ledger {
	return &Ledger{state: state}
}

// Transfer moves a single amount. Zero amounts are no-ops, never errors.
func (l *Ledger) Transfer(asset string, from, to [20]byte, amount *big.Int) error {
	return l.Apply([]Transfer{{Asset: asset, From: from, To: to, Amount: amount}})
}

// Apply stages every transfer in the batch against cloned accounts, then
// persists the staged accounts only once the whole batch has cleared. Zero
// amounts are skipped; negative amounts reject the batch.
func (l *Ledger) Apply(transfers []Transfer) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	staged := make(map[[20]byte]*types.Account)
	load := func(addr [20]byte) (*types.Account, error) {
		if acc, ok := staged[addr]; ok {
			return acc, nil
		}
		acc, err := l.state.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = types.NewAccount()
		} else {
			acc = acc.Clone()
		}
		staged[addr] = acc
		return acc, nil
	}

	touched := make([][20]byte, 0, len(transfers)*2)
	for _, tr := range transfers {
		if tr.Amount == nil || tr.Amount.Sign() == 0 {
			continue
		}
		if tr.Amount.Sign() < 0 {
			return fmt.Errorf("bank: negative transfer amount")
		}
		fromAcc, err := load(tr.From)
		if err != nil {
			return err
		}
		toAcc, err := load(tr.To)
		if err != nil {
			return err
		}
		balance := fromAcc.Balance(tr.Asset)
		if balance.Cmp(tr.Amount) < 0 {
			return fmt.Errorf("%w: asset %s", ErrInsufficientBalance, tr.Asset)
		}
		fromAcc.SetBalance(tr.Asset, balance.Sub(balance, tr.Amount))
		toAcc.SetBalance(tr.Asset, new(big.Int).Add(toAcc.Balance(tr.Asset), tr.Amount))
		touched = append(touched, tr.From, tr.To)
	}

	seen := make(map[[20]byte]bool, len(touched))
	for _, addr := range touched {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		if err := l.state.PutAccount(addr, staged[addr]); err != nil {
			return err
		}
	}
	return nil
}
