package config

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// ErrUnauthorizedAdmin marks parameter updates attempted by anyone but the
// current arbiter.
var ErrUnauthorizedAdmin = errors.New("config: caller is not the administrator")

// AdminView resolves the identity entitled to change runtime parameters.
type AdminView interface {
	Arbiter() [20]byte
}

// Store holds the process-wide mutable escrow parameters. Reads happen at
// operation time, so a rate change applies to every subsequent operation
// including escrows already in flight; the per-escrow review window is frozen
// at creation and unaffected. Updates are gated on the arbiter identity.
type Store struct {
	mu                  sync.RWMutex
	protocolFeeBps      uint32
	disputeFeeBps       uint32
	minAmount           *big.Int
	maxAmount           *big.Int
	defaultReviewWindow int64
	paused              map[string]bool
	admin               AdminView
}

// NewStore seeds a runtime parameter store from the loaded configuration.
func NewStore(cfg *Config, admin AdminView) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config: nil config")
	}
	minAmount, maxAmount, err := cfg.AmountBounds()
	if err != nil {
		return nil, err
	}
	return &Store{
		protocolFeeBps:      cfg.Escrow.ProtocolFeeBps,
		disputeFeeBps:       cfg.Escrow.DisputeFeeBps,
		minAmount:           minAmount,
		maxAmount:           maxAmount,
		defaultReviewWindow: cfg.Escrow.DefaultReviewWindowSecs,
		paused:              make(map[string]bool),
		admin:               admin,
	}, nil
}

// ProtocolFeeBps returns the current protocol fee rate.
func (s *Store) ProtocolFeeBps() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolFeeBps
}

// DisputeFeeBps returns the current dispute fee rate.
func (s *Store) DisputeFeeBps() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disputeFeeBps
}

// AmountBounds returns copies of the current [min,max] escrow amount bounds.
func (s *Store) AmountBounds() (minAmount, maxAmount *big.Int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.minAmount), new(big.Int).Set(s.maxAmount)
}

// DefaultReviewWindow returns the review window applied when an escrow is
// created without one.
func (s *Store) DefaultReviewWindow() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultReviewWindow
}

// IsPaused reports whether the named module is administratively paused.
func (s *Store) IsPaused(module string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[module]
}

func (s *Store) authorize(caller [20]byte) error {
	if s.admin == nil {
		return fmt.Errorf("config: administrator not configured")
	}
	if caller != s.admin.Arbiter() {
		return ErrUnauthorizedAdmin
	}
	return nil
}

// SetFees updates the protocol and dispute fee rates.
func (s *Store) SetFees(caller [20]byte, protocolFeeBps, disputeFeeBps uint32) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if protocolFeeBps > 10_000 || disputeFeeBps > 10_000 {
		return fmt.Errorf("config: fee bps out of range")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolFeeBps = protocolFeeBps
	s.disputeFeeBps = disputeFeeBps
	return nil
}

// SetAmountBounds updates the [min,max] escrow amount bounds.
func (s *Store) SetAmountBounds(caller [20]byte, minAmount, maxAmount *big.Int) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if minAmount == nil || minAmount.Sign() <= 0 {
		return fmt.Errorf("config: minimum amount must be positive")
	}
	if maxAmount == nil || maxAmount.Cmp(minAmount) < 0 {
		return fmt.Errorf("config: maximum amount below minimum")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minAmount = new(big.Int).Set(minAmount)
	s.maxAmount = new(big.Int).Set(maxAmount)
	return nil
}

// SetDefaultReviewWindow updates the review window applied to new escrows
// created without an explicit one. In-flight escrows keep their frozen value.
func (s *Store) SetDefaultReviewWindow(caller [20]byte, windowSecs int64) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if windowSecs <= 0 {
		return fmt.Errorf("config: review window must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultReviewWindow = windowSecs
	return nil
}

// SetPaused toggles the administrative pause for a module.
func (s *Store) SetPaused(caller [20]byte, module string, paused bool) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[module] = paused
	return nil
}
