package fees

import (
	"fmt"
	"math/big"
)

const (
	// BpsDenominator is the basis-point scale used for all rate arithmetic.
	BpsDenominator = 10_000
	// MaxCompletionPct is the upper bound of the arbiter completion scale.
	MaxCompletionPct = 100
	// DisputeFeeThresholdPct is the completion percentage at or above which
	// the collected dispute fee is awarded to the fulfiller. Below it the fee
	// returns to the requester. The threshold is fixed, not derived.
	DisputeFeeThresholdPct = 50
)

// SplitInput captures the parameters required to settle a single escrow.
type SplitInput struct {
	Amount         *big.Int
	ProtocolFeeBps uint32
	DisputeFeeBps  uint32
	CompletionPct  uint8
}

// SplitResult summarises the settlement amounts for one escrow. All values
// are freshly allocated; callers may mutate them freely.
type SplitResult struct {
	ProtocolFee     *big.Int
	FulfillerAmount *big.Int
	RequesterAmount *big.Int
}

// ProtocolFee computes floor(amount * feeBps / 10000). A nil or negative
// amount yields zero.
func ProtocolFee(amount *big.Int, feeBps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feeBps)))
	return fee.Div(fee, big.NewInt(BpsDenominator))
}

// DisputeFee computes the fee charged to open a dispute against an escrow of
// the supplied amount: floor(amount * disputeFeeBps / 10000).
func DisputeFee(amount *big.Int, disputeFeeBps uint32) *big.Int {
	return ProtocolFee(amount, disputeFeeBps)
}

// FulfillerWinsDisputeFee reports whether the collected dispute fee is
// awarded to the fulfiller for the supplied completion percentage.
func FulfillerWinsDisputeFee(completionPct uint8) bool {
	return completionPct >= DisputeFeeThresholdPct
}

// Split settles the escrow amount between the fulfiller, the requester and
// the protocol. The distributable remainder after the protocol fee is split
// by completion percentage with the fulfiller share rounded down, so any
// truncation remainder accrues to the requester. The invariant
//
//	ProtocolFee + FulfillerAmount + RequesterAmount == Amount
//
// holds exactly for every input.
func Split(input SplitInput) (SplitResult, error) {
	if input.Amount == nil || input.Amount.Sign() < 0 {
		return SplitResult{}, fmt.Errorf("fees: amount must be non-negative")
	}
	if input.ProtocolFeeBps > BpsDenominator {
		return SplitResult{}, fmt.Errorf("fees: protocol fee bps out of range: %d", input.ProtocolFeeBps)
	}
	if input.CompletionPct > MaxCompletionPct {
		return SplitResult{}, fmt.Errorf("fees: completion pct out of range: %d", input.CompletionPct)
	}
	fee := ProtocolFee(input.Amount, input.ProtocolFeeBps)
	distributable := new(big.Int).Sub(input.Amount, fee)
	fulfiller := new(big.Int).Mul(distributable, big.NewInt(int64(input.CompletionPct)))
	fulfiller.Div(fulfiller, big.NewInt(MaxCompletionPct))
	requester := new(big.Int).Sub(distributable, fulfiller)
	return SplitResult{
		ProtocolFee:     fee,
		FulfillerAmount: fulfiller,
		RequesterAmount: requester,
	}, nil
}

// FullRelease settles an undisputed escrow: the fulfiller receives the entire
// distributable amount and the requester nothing.
func FullRelease(amount *big.Int, protocolFeeBps uint32) (SplitResult, error) {
	return Split(SplitInput{Amount: amount, ProtocolFeeBps: protocolFeeBps, CompletionPct: MaxCompletionPct})
}
