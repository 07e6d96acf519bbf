package escrow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"paylock/core/events"
	"paylock/core/types"
	"paylock/native/bank"
	nativecommon "paylock/native/common"
	"paylock/native/fees"
)

const moduleName = "escrow"

var (
	errNilState   = errors.New("escrow engine: state not configured")
	errNilSettler = errors.New("escrow engine: settlement capability not configured")
	errNilParams  = errors.New("escrow engine: parameter source not configured")
	errNilVault   = errors.New("escrow engine: custody vault not configured")
	errNilSink    = errors.New("escrow engine: fee sink not configured")
)

// State is the record store owned by the engine. Implementations must return
// defensive copies from EscrowGet so a failed operation cannot leak partial
// field writes.
type State interface {
	EscrowPut(*Escrow) error
	EscrowGet(id [32]byte) (*Escrow, bool)
	EscrowDelete(id [32]byte) error
}

// Params supplies the process-wide rate and limit parameters. Values are read
// at operation time; the per-escrow review window is the one parameter frozen
// at creation.
type Params interface {
	ProtocolFeeBps() uint32
	DisputeFeeBps() uint32
	AmountBounds() (min, max *big.Int)
	DefaultReviewWindow() int64
}

// ArbiterView resolves the identity currently authorised to rule on disputes.
type ArbiterView interface {
	Arbiter() [20]byte
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine sequences all operations against escrow records: it validates
// callers and states, computes settlement amounts, commits the state
// transition and then moves funds through the settlement capability. Every
// state-changing operation either fully commits or fails with the record
// unchanged. Operations on the same identifier are mutually exclusive;
// distinct identifiers proceed concurrently.
type Engine struct {
	state    State
	settler  bank.Settler
	params   Params
	arbiter  ArbiterView
	vault    [20]byte
	feeSink  [20]byte
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() int64
	locks    *nativecommon.KeyedMutex
	inflight *nativecommon.InflightGuard
}

// NewEngine creates an escrow engine with a no-op emitter. Callers configure
// the state backend, settlement capability and parameter source before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		locks:    nativecommon.NewKeyedMutex(),
		inflight: nativecommon.NewInflightGuard(),
	}
}

// SetState configures the record store used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetSettler configures the settlement capability funds move through.
func (e *Engine) SetSettler(settler bank.Settler) { e.settler = settler }

// SetParams configures the live parameter source.
func (e *Engine) SetParams(params Params) { e.params = params }

// SetArbiter configures the authority consulted for dispute rulings.
func (e *Engine) SetArbiter(view ArbiterView) { e.arbiter = view }

// SetVault configures the custody address that holds escrowed funds.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetFeeSink configures the address that receives protocol fees.
func (e *Engine) SetFeeSink(addr [20]byte) { e.feeSink = addr }

// SetPauses configures the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.settler == nil:
		return errNilSettler
	case e.params == nil:
		return errNilParams
	case e.vault == ([20]byte{}):
		return errNilVault
	case e.feeSink == ([20]byte{}):
		return errNilSink
	}
	return nil
}

func (e *Engine) loadEscrow(id [32]byte) (*Escrow, error) {
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, fmt.Errorf("escrow: %x: %w", id, ErrNotFound)
	}
	return esc, nil
}

// ComputeID derives the deterministic identifier for an escrow definition.
func ComputeID(requester [20]byte, criteriaRef [32]byte, nonce uint64) [32]byte {
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	return ethcrypto.Keccak256Hash(requester[:], criteriaRef[:], nonceBytes[:])
}

// Create validates the definition, custodies the amount in the vault and
// persists the record, both atomically: a failed custody transfer leaves no
// record behind and a rejected definition takes no funds.
func (e *Engine) Create(requester [20]byte, asset string, amount *big.Int, deadline, reviewWindow int64, criteriaRef [32]byte, nonce uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive: %w", ErrAmountOutOfRange)
	}
	minAmount, maxAmount := e.params.AmountBounds()
	if minAmount != nil && amount.Cmp(minAmount) < 0 {
		return nil, fmt.Errorf("escrow: amount below minimum %s: %w", minAmount, ErrAmountOutOfRange)
	}
	if maxAmount != nil && maxAmount.Sign() > 0 && amount.Cmp(maxAmount) > 0 {
		return nil, fmt.Errorf("escrow: amount above maximum %s: %w", maxAmount, ErrAmountOutOfRange)
	}
	now := e.now()
	if deadline <= now {
		return nil, fmt.Errorf("escrow: deadline before creation time: %w", ErrDeadlinePassed)
	}
	if reviewWindow < 0 {
		return nil, fmt.Errorf("escrow: review window must be non-negative")
	}
	if reviewWindow == 0 {
		reviewWindow = e.params.DefaultReviewWindow()
	}

	id := ComputeID(requester, criteriaRef, nonce)
	unlock := e.locks.Lock(id)
	defer unlock()
	if _, ok := e.state.EscrowGet(id); ok {
		return nil, fmt.Errorf("escrow: identifier already exists: %w", ErrInvalidState)
	}
	esc := &Escrow{
		ID:           id,
		Requester:    requester,
		Asset:        normalized,
		Amount:       new(big.Int).Set(amount),
		Deadline:     deadline,
		ReviewWindow: reviewWindow,
		CriteriaRef:  criteriaRef,
		Status:       StatusPending,
		Outcome:      OutcomeNone,
		CreatedAt:    now,
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	custody := []bank.Transfer{{Asset: normalized, From: requester, To: e.vault, Amount: esc.Amount}}
	if err := e.applyTransfers(id, custody); err != nil {
		if delErr := e.state.EscrowDelete(id); delErr != nil {
			return nil, fmt.Errorf("escrow: undo record after failed custody: %v: %w", delErr, ErrTransferFailed)
		}
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Accept assigns the caller as fulfiller of a pending escrow. The requester
// cannot accept their own engagement and the acceptance deadline is enforced.
func (e *Engine) Accept(id [32]byte, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusPending {
		return fmt.Errorf("escrow: cannot accept in status %s: %w", esc.Status, ErrInvalidState)
	}
	if caller == esc.Requester {
		return fmt.Errorf("escrow: requester cannot accept own escrow: %w", ErrUnauthorized)
	}
	if e.now() >= esc.Deadline {
		return fmt.Errorf("escrow: acceptance deadline elapsed: %w", ErrDeadlinePassed)
	}
	esc.Fulfiller = caller
	esc.Status = StatusActive
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewAcceptedEvent(esc))
	return nil
}

// Submit records the evidence reference for the delivered work and opens the
// review window.
func (e *Engine) Submit(id [32]byte, caller [20]byte, evidenceRef [32]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusActive {
		return fmt.Errorf("escrow: cannot submit in status %s: %w", esc.Status, ErrInvalidState)
	}
	if caller != esc.Fulfiller {
		return fmt.Errorf("escrow: only the fulfiller may submit: %w", ErrUnauthorized)
	}
	esc.EvidenceRef = evidenceRef
	esc.SubmittedAt = e.now()
	esc.Status = StatusSubmitted
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewSubmittedEvent(esc))
	return nil
}

// Approve releases the escrowed amount to the fulfiller less the protocol
// fee. Only the requester may approve, and only while submitted.
func (e *Engine) Approve(id [32]byte, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusSubmitted {
		return fmt.Errorf("escrow: cannot approve in status %s: %w", esc.Status, ErrInvalidState)
	}
	if caller != esc.Requester {
		return fmt.Errorf("escrow: only the requester may approve: %w", ErrUnauthorized)
	}
	if err := e.releaseSubmitted(esc); err != nil {
		return err
	}
	e.emit(NewApprovedEvent(esc))
	return nil
}

// ForceRelease settles a submitted escrow in favour of the fulfiller once the
// review window has elapsed. Eligibility is permissionless: any caller may
// trigger the transition.
func (e *Engine) ForceRelease(id [32]byte, caller [20]byte) error {
	_ = caller
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusSubmitted {
		return fmt.Errorf("escrow: cannot force release in status %s: %w", esc.Status, ErrInvalidState)
	}
	if !ReviewWindowElapsed(esc.SubmittedAt, e.now(), esc.ReviewWindow) {
		return fmt.Errorf("escrow: review window open until %d: %w", esc.SubmittedAt+esc.ReviewWindow, ErrReviewWindowActive)
	}
	if err := e.releaseSubmitted(esc); err != nil {
		return err
	}
	e.emit(NewForceReleasedEvent(esc))
	return nil
}

// Dispute escalates a submitted escrow to arbitration. Only the requester may
// dispute, only inside the review window, and the dispute fee must be paid
// exactly. The fee is custodied with the escrow until resolution.
func (e *Engine) Dispute(id [32]byte, caller [20]byte, feePaid *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusSubmitted {
		return fmt.Errorf("escrow: cannot dispute in status %s: %w", esc.Status, ErrInvalidState)
	}
	if caller != esc.Requester {
		return fmt.Errorf("escrow: only the requester may dispute: %w", ErrUnauthorized)
	}
	if ReviewWindowElapsed(esc.SubmittedAt, e.now(), esc.ReviewWindow) {
		return fmt.Errorf("escrow: review window closed at %d: %w", esc.SubmittedAt+esc.ReviewWindow, ErrReviewWindowElapsed)
	}
	required := fees.DisputeFee(esc.Amount, e.params.DisputeFeeBps())
	if feePaid == nil || feePaid.Cmp(required) != 0 {
		return fmt.Errorf("escrow: dispute fee must be exactly %s: %w", required, ErrWrongFeeAmount)
	}
	prev := esc.Clone()
	esc.Status = StatusDisputed
	esc.DisputeFee = new(big.Int).Set(required)
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	custody := []bank.Transfer{{Asset: esc.Asset, From: esc.Requester, To: e.vault, Amount: required}}
	if err := e.applyTransfers(id, custody); err != nil {
		if restoreErr := e.state.EscrowPut(prev); restoreErr != nil {
			return fmt.Errorf("escrow: restore after failed fee custody: %v: %w", restoreErr, ErrTransferFailed)
		}
		return err
	}
	e.emit(NewDisputedEvent(esc))
	return nil
}

// Resolve settles a disputed escrow according to the arbiter's completion
// percentage. The distributable amount splits proportionally, the protocol
// fee goes to the fee sink, and the custodied dispute fee is awarded wholly
// to the fulfiller at fifty percent or above, otherwise wholly to the
// requester. All transfers commit as one unit.
func (e *Engine) Resolve(id [32]byte, caller [20]byte, completionPct uint8) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.arbiter == nil {
		return fmt.Errorf("escrow: arbiter authority not configured")
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusDisputed {
		return fmt.Errorf("escrow: cannot resolve in status %s: %w", esc.Status, ErrInvalidState)
	}
	if caller != e.arbiter.Arbiter() {
		return fmt.Errorf("escrow: only the arbiter may resolve: %w", ErrUnauthorized)
	}
	if completionPct > fees.MaxCompletionPct {
		return fmt.Errorf("escrow: completion percentage %d: %w", completionPct, ErrPercentageOutOfRange)
	}
	split, err := fees.Split(fees.SplitInput{
		Amount:         esc.Amount,
		ProtocolFeeBps: e.params.ProtocolFeeBps(),
		CompletionPct:  completionPct,
	})
	if err != nil {
		return err
	}
	fulfillerAmount := split.FulfillerAmount
	requesterAmount := split.RequesterAmount
	if esc.DisputeFee != nil && esc.DisputeFee.Sign() > 0 {
		if fees.FulfillerWinsDisputeFee(completionPct) {
			fulfillerAmount = new(big.Int).Add(fulfillerAmount, esc.DisputeFee)
		} else {
			requesterAmount = new(big.Int).Add(requesterAmount, esc.DisputeFee)
		}
	}

	prev := esc.Clone()
	esc.Status = StatusResolved
	esc.CompletionPct = completionPct
	switch completionPct {
	case fees.MaxCompletionPct:
		esc.Outcome = OutcomeFullRelease
	case 0:
		esc.Outcome = OutcomeFullRefund
	default:
		esc.Outcome = OutcomePartial
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	payout := []bank.Transfer{
		{Asset: esc.Asset, From: e.vault, To: esc.Fulfiller, Amount: fulfillerAmount},
		{Asset: esc.Asset, From: e.vault, To: esc.Requester, Amount: requesterAmount},
		{Asset: esc.Asset, From: e.vault, To: e.feeSink, Amount: split.ProtocolFee},
	}
	if err := e.applyTransfers(id, payout); err != nil {
		if restoreErr := e.state.EscrowPut(prev); restoreErr != nil {
			return fmt.Errorf("escrow: restore after failed resolution: %v: %w", restoreErr, ErrTransferFailed)
		}
		return err
	}
	e.emit(NewResolvedEvent(esc))
	return nil
}

// Cancel refunds a pending escrow in full to its requester.
func (e *Engine) Cancel(id [32]byte, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.inflight.InFlight(id) {
		return nativecommon.ErrReentrantCall
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Status != StatusPending {
		return fmt.Errorf("escrow: cannot cancel in status %s: %w", esc.Status, ErrInvalidState)
	}
	if caller != esc.Requester {
		return fmt.Errorf("escrow: only the requester may cancel: %w", ErrUnauthorized)
	}
	prev := esc.Clone()
	esc.Status = StatusCancelled
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	refund := []bank.Transfer{{Asset: esc.Asset, From: e.vault, To: esc.Requester, Amount: esc.Amount}}
	if err := e.applyTransfers(id, refund); err != nil {
		if restoreErr := e.state.EscrowPut(prev); restoreErr != nil {
			return fmt.Errorf("escrow: restore after failed refund: %v: %w", restoreErr, ErrTransferFailed)
		}
		return err
	}
	e.emit(NewCancelledEvent(esc))
	return nil
}

// releaseSubmitted settles a submitted escrow in favour of the fulfiller:
// protocol fee to the sink, remainder to the fulfiller, full release outcome.
// The caller holds the record lock and emits the operation-specific event.
func (e *Engine) releaseSubmitted(esc *Escrow) error {
	split, err := fees.FullRelease(esc.Amount, e.params.ProtocolFeeBps())
	if err != nil {
		return err
	}
	prev := esc.Clone()
	esc.Status = StatusResolved
	esc.Outcome = OutcomeFullRelease
	esc.CompletionPct = fees.MaxCompletionPct
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	payout := []bank.Transfer{
		{Asset: esc.Asset, From: e.vault, To: esc.Fulfiller, Amount: split.FulfillerAmount},
		{Asset: esc.Asset, From: e.vault, To: e.feeSink, Amount: split.ProtocolFee},
	}
	if err := e.applyTransfers(esc.ID, payout); err != nil {
		if restoreErr := e.state.EscrowPut(prev); restoreErr != nil {
			return fmt.Errorf("escrow: restore after failed release: %v: %w", restoreErr, ErrTransferFailed)
		}
		return err
	}
	return nil
}

// applyTransfers marks the record in flight for the duration of the external
// settlement call and maps adapter failures onto ErrTransferFailed.
func (e *Engine) applyTransfers(id [32]byte, transfers []bank.Transfer) error {
	release, err := e.inflight.Mark(id)
	if err != nil {
		return err
	}
	defer release()
	if err := e.settler.Apply(transfers); err != nil {
		return fmt.Errorf("escrow: %v: %w", err, ErrTransferFailed)
	}
	return nil
}
