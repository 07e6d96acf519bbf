package escrow

import (
	"encoding/hex"
	"strconv"

	"paylock/core/types"
)

const (
	EventTypeCreated       = "escrow.created"
	EventTypeAccepted      = "escrow.accepted"
	EventTypeSubmitted     = "escrow.submitted"
	EventTypeApproved      = "escrow.approved"
	EventTypeForceReleased = "escrow.force_released"
	EventTypeDisputed      = "escrow.disputed"
	EventTypeResolved      = "escrow.resolved"
	EventTypeCancelled     = "escrow.cancelled"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeCreated, e) }

// NewAcceptedEvent returns the canonical event payload emitted when a
// fulfiller accepts the engagement.
func NewAcceptedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeAccepted, e) }

// NewSubmittedEvent returns the canonical event payload emitted when work is
// submitted for review.
func NewSubmittedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeSubmitted, e) }

// NewApprovedEvent returns the canonical event payload for a requester
// approval releasing funds to the fulfiller.
func NewApprovedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeApproved, e) }

// NewForceReleasedEvent returns the canonical event payload for a release
// triggered after the review window elapsed.
func NewForceReleasedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeForceReleased, e) }

// NewDisputedEvent returns the canonical event payload emitted when the
// requester raises a dispute.
func NewDisputedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeDisputed, e) }

// NewResolvedEvent returns the canonical event payload emitted when the
// arbiter rules on a dispute.
func NewResolvedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeResolved, e) }

// NewCancelledEvent returns the canonical event payload for a pending escrow
// cancelled by its requester.
func NewCancelledEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeCancelled, e) }

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeEscrow(e)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(sanitized.ID[:])
	attrs["requester"] = hex.EncodeToString(sanitized.Requester[:])
	attrs["asset"] = sanitized.Asset
	attrs["amount"] = sanitized.Amount.String()
	attrs["status"] = sanitized.Status.String()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	if sanitized.HasFulfiller() {
		attrs["fulfiller"] = hex.EncodeToString(sanitized.Fulfiller[:])
	}
	if sanitized.SubmittedAt != 0 {
		attrs["submittedAt"] = strconv.FormatInt(sanitized.SubmittedAt, 10)
	}
	if sanitized.Status == StatusResolved {
		attrs["outcome"] = sanitized.Outcome.String()
		attrs["completionPct"] = strconv.FormatUint(uint64(sanitized.CompletionPct), 10)
	}
	if sanitized.DisputeFee != nil && sanitized.DisputeFee.Sign() > 0 {
		attrs["disputeFee"] = sanitized.DisputeFee.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
