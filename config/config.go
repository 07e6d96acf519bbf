package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default parameter values applied when the configuration file leaves a field
// unset.
const (
	DefaultProtocolFeeBps          = 100
	DefaultDisputeFeeBps           = 100
	DefaultReviewWindowSecs  int64 = 4 * 60 * 60
	defaultMinAmount               = "1"
	defaultMaxAmount               = "1000000000000000000000000"
)

// Config is the on-disk configuration for a paylock deployment.
type Config struct {
	DataDir        string       `toml:"DataDir"`
	Environment    string       `toml:"Environment"`
	MetricsAddress string       `toml:"MetricsAddress"`
	Escrow         EscrowConfig `toml:"escrow"`
}

// EscrowConfig carries the escrow module parameters. Amounts are decimal
// strings so token quantities beyond uint64 remain exact.
type EscrowConfig struct {
	ProtocolFeeBps          uint32 `toml:"ProtocolFeeBps"`
	DisputeFeeBps           uint32 `toml:"DisputeFeeBps"`
	MinAmount               string `toml:"MinAmount"`
	MaxAmount               string `toml:"MaxAmount"`
	DefaultReviewWindowSecs int64  `toml:"DefaultReviewWindowSecs"`
	Vault                   string `toml:"Vault"`
	FeeSink                 string `toml:"FeeSink"`
	Arbiter                 string `toml:"Arbiter"`
}

// Load reads the configuration from the given path, applying defaults for
// unset fields and validating the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if strings.TrimSpace(c.MetricsAddress) == "" {
		c.MetricsAddress = ":9090"
	}
	if c.Escrow.ProtocolFeeBps == 0 {
		c.Escrow.ProtocolFeeBps = DefaultProtocolFeeBps
	}
	if c.Escrow.DisputeFeeBps == 0 {
		c.Escrow.DisputeFeeBps = DefaultDisputeFeeBps
	}
	if strings.TrimSpace(c.Escrow.MinAmount) == "" {
		c.Escrow.MinAmount = defaultMinAmount
	}
	if strings.TrimSpace(c.Escrow.MaxAmount) == "" {
		c.Escrow.MaxAmount = defaultMaxAmount
	}
	if c.Escrow.DefaultReviewWindowSecs == 0 {
		c.Escrow.DefaultReviewWindowSecs = DefaultReviewWindowSecs
	}
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Escrow.ProtocolFeeBps > 10_000 {
		return fmt.Errorf("config: escrow.ProtocolFeeBps out of range: %d", c.Escrow.ProtocolFeeBps)
	}
	if c.Escrow.DisputeFeeBps > 10_000 {
		return fmt.Errorf("config: escrow.DisputeFeeBps out of range: %d", c.Escrow.DisputeFeeBps)
	}
	if c.Escrow.DefaultReviewWindowSecs <= 0 {
		return fmt.Errorf("config: escrow.DefaultReviewWindowSecs must be positive")
	}
	minAmount, err := ParseAmount(c.Escrow.MinAmount)
	if err != nil {
		return fmt.Errorf("config: escrow.MinAmount: %w", err)
	}
	maxAmount, err := ParseAmount(c.Escrow.MaxAmount)
	if err != nil {
		return fmt.Errorf("config: escrow.MaxAmount: %w", err)
	}
	if minAmount.Sign() <= 0 {
		return fmt.Errorf("config: escrow.MinAmount must be positive")
	}
	if maxAmount.Cmp(minAmount) < 0 {
		return fmt.Errorf("config: escrow.MaxAmount below MinAmount")
	}
	for field, value := range map[string]string{
		"escrow.Vault":   c.Escrow.Vault,
		"escrow.FeeSink": c.Escrow.FeeSink,
		"escrow.Arbiter": c.Escrow.Arbiter,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s is required", field)
		}
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	return nil
}

// AmountBounds returns the parsed [min,max] escrow amount bounds. Validate
// must have succeeded first.
func (c *Config) AmountBounds() (minAmount, maxAmount *big.Int, err error) {
	minAmount, err = ParseAmount(c.Escrow.MinAmount)
	if err != nil {
		return nil, nil, err
	}
	maxAmount, err = ParseAmount(c.Escrow.MaxAmount)
	if err != nil {
		return nil, nil, err
	}
	return minAmount, maxAmount, nil
}

// ParseAmount parses a non-negative decimal token amount.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return value, nil
}

// ParseAddress decodes a 20-byte hex address, with or without 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	copy(addr[:], decoded)
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("address must not be zero")
	}
	return addr, nil
}
