package escrow

import (
	"fmt"
	"math/big"
	"strings"
)

// Status represents the lifecycle states of an escrow record. Transitions are
// strictly forward: Pending -> Active -> Submitted -> {Disputed -> Resolved |
// Resolved}, plus Pending -> Cancelled. Resolved and Cancelled are terminal.
type Status uint8

const (
	StatusPending Status = iota
	StatusActive
	StatusSubmitted
	StatusDisputed
	StatusResolved
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusCancelled
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// String returns the canonical lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusSubmitted:
		return "submitted"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Outcome records how a resolved escrow settled.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeFullRelease
	OutcomeFullRefund
	OutcomePartial
)

// String returns the canonical lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeFullRelease:
		return "full_release"
	case OutcomeFullRefund:
		return "full_refund"
	case OutcomePartial:
		return "partial"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Escrow captures the metadata and runtime status of a single fund-custody
// record. Amount, deadline, review window and criteria reference are fixed at
// creation; the fulfiller is assigned exactly once on accept and the evidence
// reference set at most once on submit.
type Escrow struct {
	ID            [32]byte
	Requester     [20]byte
	Fulfiller     [20]byte
	Asset         string
	Amount        *big.Int
	Deadline      int64
	ReviewWindow  int64
	CriteriaRef   [32]byte
	EvidenceRef   [32]byte
	DisputeFee    *big.Int
	Status        Status
	Outcome       Outcome
	CompletionPct uint8
	CreatedAt     int64
	SubmittedAt   int64
}

// HasFulfiller reports whether a fulfiller has been assigned.
func (e *Escrow) HasFulfiller() bool {
	return e != nil && e.Fulfiller != ([20]byte{})
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if e.DisputeFee != nil {
		clone.DisputeFee = new(big.Int).Set(e.DisputeFee)
	}
	return &clone
}

// NormalizeAsset ensures the provided asset symbol matches a supported value
// ("PAY" native or "USDP" fungible token) and returns the canonical
// upper-case form.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case "PAY", "USDP":
		return trimmed, nil
	default:
		return "", fmt.Errorf("unsupported escrow asset: %s", symbol)
	}
}

// SanitizeEscrow validates and normalises the supplied escrow definition,
// returning a cloned instance with canonical asset casing and a non-nil
// amount field. The function does not mutate the original value.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	asset, err := NormalizeAsset(clone.Asset)
	if err != nil {
		return nil, err
	}
	clone.Asset = asset
	if clone.Amount == nil {
		clone.Amount = big.NewInt(0)
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow amount must be non-negative")
	}
	if clone.ReviewWindow < 0 {
		return nil, fmt.Errorf("escrow review window must be non-negative")
	}
	if clone.DisputeFee != nil && clone.DisputeFee.Sign() < 0 {
		return nil, fmt.Errorf("escrow dispute fee must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid escrow status: %d", clone.Status)
	}
	if clone.CompletionPct > 100 {
		return nil, fmt.Errorf("invalid completion percentage: %d", clone.CompletionPct)
	}
	return clone, nil
}
