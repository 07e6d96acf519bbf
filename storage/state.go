package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"paylock/core/types"
	"paylock/native/escrow"
)

const (
	escrowKeyPrefix  = "escrow/"
	accountKeyPrefix = "account/"
	authorityKey     = "authority"
)

// State persists escrow records, account balances and the arbitration
// authority record in a key-value backend. Records are JSON encoded; reads
// decode into fresh values, so callers always receive defensive copies.
type State struct {
	db Database
}

// NewState wraps the supplied database.
func NewState(db Database) *State {
	return &State{db: db}
}

func escrowKey(id [32]byte) []byte {
	return []byte(escrowKeyPrefix + hex.EncodeToString(id[:]))
}

func accountKey(addr [20]byte) []byte {
	return []byte(accountKeyPrefix + hex.EncodeToString(addr[:]))
}

// EscrowPut validates and stores the escrow record.
func (s *State) EscrowPut(e *escrow.Escrow) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: database not configured")
	}
	sanitized, err := escrow.SanitizeEscrow(e)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("storage: encode escrow: %w", err)
	}
	return s.db.Put(escrowKey(sanitized.ID), encoded)
}

// EscrowGet loads the escrow record for the supplied identifier.
func (s *State) EscrowGet(id [32]byte) (*escrow.Escrow, bool) {
	if s == nil || s.db == nil {
		return nil, false
	}
	raw, err := s.db.Get(escrowKey(id))
	if err != nil {
		return nil, false
	}
	var record escrow.Escrow
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false
	}
	return &record, true
}

// EscrowDelete removes the escrow record. Used to undo a record whose custody
// transfer failed.
func (s *State) EscrowDelete(id [32]byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: database not configured")
	}
	return s.db.Delete(escrowKey(id))
}

// GetAccount loads the account for the supplied address. Unknown addresses
// read as empty accounts.
func (s *State) GetAccount(addr [20]byte) (*types.Account, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage: database not configured")
	}
	raw, err := s.db.Get(accountKey(addr))
	if errors.Is(err, ErrKeyNotFound) {
		return types.NewAccount(), nil
	}
	if err != nil {
		return nil, err
	}
	account := types.NewAccount()
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("storage: decode account: %w", err)
	}
	return account, nil
}

// PutAccount stores the account for the supplied address.
func (s *State) PutAccount(addr [20]byte, account *types.Account) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: database not configured")
	}
	if account == nil {
		account = types.NewAccount()
	}
	encoded, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("storage: encode account: %w", err)
	}
	return s.db.Put(accountKey(addr), encoded)
}

type authorityRecord struct {
	Arbiter [20]byte `json:"arbiter"`
	Nominee [20]byte `json:"nominee"`
}

// AuthorityPut persists the arbiter identity and pending nomination.
func (s *State) AuthorityPut(arbiter, nominee [20]byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: database not configured")
	}
	encoded, err := json.Marshal(authorityRecord{Arbiter: arbiter, Nominee: nominee})
	if err != nil {
		return fmt.Errorf("storage: encode authority record: %w", err)
	}
	return s.db.Put([]byte(authorityKey), encoded)
}

// AuthorityGet loads the persisted authority record if one exists.
func (s *State) AuthorityGet() (arbiter, nominee [20]byte, ok bool, err error) {
	if s == nil || s.db == nil {
		return arbiter, nominee, false, fmt.Errorf("storage: database not configured")
	}
	raw, getErr := s.db.Get([]byte(authorityKey))
	if errors.Is(getErr, ErrKeyNotFound) {
		return arbiter, nominee, false, nil
	}
	if getErr != nil {
		return arbiter, nominee, false, getErr
	}
	var record authorityRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return arbiter, nominee, false, fmt.Errorf("storage: decode authority record: %w", err)
	}
	return record.Arbiter, record.Nominee, true, nil
}
