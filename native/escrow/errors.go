package escrow

import "errors"

// Failure taxonomy for ledger operations. Every failure leaves the escrow
// record and all balances unchanged; callers classify with errors.Is and
// decide their own retry policy.
var (
	// ErrNotFound marks lookups against an unknown escrow identifier.
	ErrNotFound = errors.New("escrow not found")
	// ErrAmountOutOfRange marks creation amounts outside the configured bounds.
	ErrAmountOutOfRange = errors.New("amount out of range")
	// ErrDeadlinePassed marks operations attempted after the acceptance cutoff.
	ErrDeadlinePassed = errors.New("deadline passed")
	// ErrInvalidState marks operations invalid for the current record state.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrUnauthorized marks callers lacking the role an operation requires.
	ErrUnauthorized = errors.New("unauthorized caller")
	// ErrReviewWindowActive marks forced release attempted before the review
	// window has elapsed.
	ErrReviewWindowActive = errors.New("review window still active")
	// ErrReviewWindowElapsed marks disputes raised after the review window.
	ErrReviewWindowElapsed = errors.New("review window elapsed")
	// ErrWrongFeeAmount marks dispute fee payments that do not match the
	// required fee exactly.
	ErrWrongFeeAmount = errors.New("wrong dispute fee amount")
	// ErrPercentageOutOfRange marks resolutions outside the 0-100 scale.
	ErrPercentageOutOfRange = errors.New("completion percentage out of range")
	// ErrTransferFailed marks asset movement rejected by the settlement
	// capability. The enclosing operation rolls back as a unit.
	ErrTransferFailed = errors.New("transfer failed")
)
