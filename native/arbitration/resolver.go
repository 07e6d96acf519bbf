package arbitration

import "errors"

// Ledger is the escrow operation the resolver is entitled to invoke.
type Ledger interface {
	Resolve(id [32]byte, caller [20]byte, completionPct uint8) error
}

// Resolver is the authority-gated entrypoint for dispute rulings. It carries
// no escrow-specific state of its own; its only state-changing action is
// invoking the ledger's resolve operation on behalf of the current arbiter.
type Resolver struct {
	authority *Authority
	ledger    Ledger
}

// NewResolver binds the authority to the ledger it may rule on.
func NewResolver(authority *Authority, ledger Ledger) *Resolver {
	return &Resolver{authority: authority, ledger: ledger}
}

// Resolve applies the arbiter's completion percentage to the disputed escrow.
// Callers other than the current arbiter are rejected before the ledger is
// touched.
func (r *Resolver) Resolve(id [32]byte, caller [20]byte, completionPct uint8) error {
	if r == nil || r.authority == nil || r.ledger == nil {
		return errors.New("arbitration: resolver not configured")
	}
	if caller != r.authority.Arbiter() {
		return ErrNotArbiter
	}
	return r.ledger.Resolve(id, caller, completionPct)
}
