package arbitration

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"paylock/core/events"
	"paylock/core/types"
)

var (
	// ErrNotArbiter marks calls that require the incumbent arbiter.
	ErrNotArbiter = errors.New("arbitration: caller is not the arbiter")
	// ErrNotNominee marks handover acceptance by anyone but the nominee.
	ErrNotNominee = errors.New("arbitration: caller is not the nominated successor")
	// ErrNoNomination marks acceptance attempts with no nomination pending.
	ErrNoNomination = errors.New("arbitration: no successor nominated")
)

const (
	EventTypeNominated = "arbiter.nominated"
	EventTypeAccepted  = "arbiter.accepted"
)

// AuthorityStore persists the arbiter identity and any pending nomination so
// a restart cannot silently revert a completed handover.
type AuthorityStore interface {
	AuthorityPut(arbiter, nominee [20]byte) error
	AuthorityGet() (arbiter, nominee [20]byte, ok bool, err error)
}

// Authority tracks the single identity entitled to rule on disputes. Rotation
// is a two-phase handover: the incumbent nominates a successor and authority
// transfers only once the successor explicitly accepts. A nomination can be
// replaced or withdrawn by the incumbent at any time before acceptance.
type Authority struct {
	mu      sync.RWMutex
	arbiter [20]byte
	nominee [20]byte
	store   AuthorityStore
	emitter events.Emitter
}

// NewAuthority seeds the authority with the configured arbiter identity.
func NewAuthority(arbiter [20]byte) *Authority {
	return &Authority{arbiter: arbiter, emitter: events.NoopEmitter{}}
}

// SetStore configures optional persistence for the authority record. When the
// store already holds a record it takes precedence over the seeded identity.
func (a *Authority) SetStore(store AuthorityStore) error {
	if a == nil {
		return errors.New("arbitration: nil authority")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = store
	if store == nil {
		return nil
	}
	arbiter, nominee, ok, err := store.AuthorityGet()
	if err != nil {
		return fmt.Errorf("arbitration: load authority record: %w", err)
	}
	if ok {
		a.arbiter = arbiter
		a.nominee = nominee
		return nil
	}
	return store.AuthorityPut(a.arbiter, a.nominee)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (a *Authority) SetEmitter(emitter events.Emitter) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

// Arbiter returns the identity currently entitled to resolve disputes.
func (a *Authority) Arbiter() [20]byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.arbiter
}

// Nominee returns the pending successor, if any.
func (a *Authority) Nominee() ([20]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nominee, a.nominee != [20]byte{}
}

// Nominate records a successor. Only the incumbent may nominate; nominating
// the zero address withdraws a pending nomination. Authority does not move
// until the successor accepts.
func (a *Authority) Nominate(caller, successor [20]byte) error {
	if a == nil {
		return errors.New("arbitration: nil authority")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.arbiter {
		return ErrNotArbiter
	}
	if successor == a.arbiter {
		return fmt.Errorf("arbitration: successor already holds authority")
	}
	a.nominee = successor
	if err := a.persistLocked(); err != nil {
		return err
	}
	a.emitLocked(newAuthorityEvent(EventTypeNominated, a.arbiter, a.nominee))
	return nil
}

// Accept completes the handover. Only the nominated successor may accept.
func (a *Authority) Accept(caller [20]byte) error {
	if a == nil {
		return errors.New("arbitration: nil authority")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.nominee == ([20]byte{}) {
		return ErrNoNomination
	}
	if caller != a.nominee {
		return ErrNotNominee
	}
	a.arbiter = a.nominee
	a.nominee = [20]byte{}
	if err := a.persistLocked(); err != nil {
		return err
	}
	a.emitLocked(newAuthorityEvent(EventTypeAccepted, a.arbiter, [20]byte{}))
	return nil
}

func (a *Authority) persistLocked() error {
	if a.store == nil {
		return nil
	}
	return a.store.AuthorityPut(a.arbiter, a.nominee)
}

func (a *Authority) emitLocked(evt *types.Event) {
	if a.emitter == nil || evt == nil {
		return
	}
	a.emitter.Emit(authorityEvent{evt: evt})
}

type authorityEvent struct {
	evt *types.Event
}

func (e authorityEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e authorityEvent) Event() *types.Event { return e.evt }

func newAuthorityEvent(eventType string, arbiter, nominee [20]byte) *types.Event {
	attrs := map[string]string{
		"arbiter": hex.EncodeToString(arbiter[:]),
	}
	if nominee != ([20]byte{}) {
		attrs["nominee"] = hex.EncodeToString(nominee[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
