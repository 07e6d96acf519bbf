package types

import "math/big"

// Account tracks the asset balances held by a single address. Balances are
// keyed by the canonical upper-case asset symbol.
type Account struct {
	Nonce    uint64              `json:"nonce"`
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the balance held for the supplied asset. Missing entries
// read as zero; the returned value is a copy.
func (a *Account) Balance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[asset]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// SetBalance records the balance for the supplied asset, cloning the value so
// callers cannot alias stored state.
func (a *Account) SetBalance(asset string, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[asset] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[string]*big.Int, len(a.Balances))}
	for asset, bal := range a.Balances {
		if bal == nil {
			clone.Balances[asset] = big.NewInt(0)
			continue
		}
		clone.Balances[asset] = new(big.Int).Set(bal)
	}
	return clone
}
