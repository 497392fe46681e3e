// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luxfi/confidential/crypto/elgamal"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/geth/common"
	"go.uber.org/zap/zapcore"
)

const (
	EngineElGamal = elgamal.Name
	EngineMock    = mock.Name

	defaultLogLevel           = "info"
	defaultAPIPort            = uint16(8080)
	defaultMetricsPort        = uint16(9090)
	defaultName               = "Confidential Token"
	defaultSymbol             = "CONF"
	defaultOracleFulfillDelay = 2 * time.Second
	defaultEntropyBound       = uint64(1 << 16)
	defaultFeeCacheTTL        = 30 * time.Second
	defaultPruneInterval      = time.Minute
)

var (
	errInvalidAddress = errors.New("invalid address")
	errInvalidEngine  = errors.New("invalid engine")
)

// Config is the ledgerd configuration. Exported fields are read from the
// config file, environment and flags; the unexported ones are derived by
// Validate.
type Config struct {
	LogLevel    string `mapstructure:"log-level" json:"log-level"`
	APIPort     uint16 `mapstructure:"api-port" json:"api-port"`
	MetricsPort uint16 `mapstructure:"metrics-port" json:"metrics-port"`
	// DBPath selects a leveldb directory. Empty keeps state in memory.
	DBPath string `mapstructure:"db-path" json:"db-path"`

	Name              string        `mapstructure:"name" json:"name"`
	Symbol            string        `mapstructure:"symbol" json:"symbol"`
	LedgerAddress     string        `mapstructure:"ledger-address" json:"ledger-address"`
	SufficiencyPolicy string        `mapstructure:"sufficiency-policy" json:"sufficiency-policy"`
	RequestTTL        time.Duration `mapstructure:"request-ttl" json:"request-ttl"`
	PruneInterval     time.Duration `mapstructure:"prune-interval" json:"prune-interval"`

	OracleAddress      string        `mapstructure:"oracle-address" json:"oracle-address"`
	OracleFee          uint64        `mapstructure:"oracle-fee" json:"oracle-fee"`
	OracleFulfillDelay time.Duration `mapstructure:"oracle-fulfill-delay" json:"oracle-fulfill-delay"`
	OracleUniqueTags   bool          `mapstructure:"oracle-unique-tags" json:"oracle-unique-tags"`
	EntropyBound       uint64        `mapstructure:"entropy-bound" json:"entropy-bound"`
	FeeCacheTTL        time.Duration `mapstructure:"fee-cache-ttl" json:"fee-cache-ttl"`

	Engine              string   `mapstructure:"engine" json:"engine"`
	EngineKeyFile       string   `mapstructure:"engine-key-file" json:"engine-key-file"`
	InputSigners        []string `mapstructure:"input-signers" json:"input-signers"`
	CiphertextCacheSize int      `mapstructure:"ciphertext-cache-size" json:"ciphertext-cache-size"`
	DecryptCacheSize    int      `mapstructure:"decrypt-cache-size" json:"decrypt-cache-size"`
	MaxDecryptable      uint64   `mapstructure:"max-decryptable" json:"max-decryptable"`
	MaxInput            uint64   `mapstructure:"max-input" json:"max-input"`

	// derived
	logLevel      zapcore.Level
	ledgerAddress common.Address
	oracleAddress common.Address
	inputSigners  []common.Address
	policy        ledger.SufficiencyPolicy
}

// Validate checks the configuration and derives the parsed values.
func (c *Config) Validate() error {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", LogLevelKey, err)
	}
	c.logLevel = level

	if c.ledgerAddress, err = parseAddress(LedgerAddressKey, c.LedgerAddress); err != nil {
		return err
	}
	if c.oracleAddress, err = parseAddress(OracleAddressKey, c.OracleAddress); err != nil {
		return err
	}
	if c.ledgerAddress == c.oracleAddress {
		return fmt.Errorf("%w: %s and %s must differ", errInvalidAddress, LedgerAddressKey, OracleAddressKey)
	}
	if c.policy, err = ledger.ParsePolicy(c.SufficiencyPolicy); err != nil {
		return err
	}

	c.inputSigners = c.inputSigners[:0]
	for _, s := range c.InputSigners {
		signer, err := parseAddress(InputSignersKey, s)
		if err != nil {
			return err
		}
		c.inputSigners = append(c.inputSigners, signer)
	}
	if len(c.inputSigners) == 0 {
		return fmt.Errorf("at least one of %s is required", InputSignersKey)
	}

	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	switch c.Engine {
	case EngineElGamal:
		if c.MaxDecryptable > elgamal.DefaultMaxDecryptable {
			return fmt.Errorf("%s must be at most %d", MaxDecryptableKey, uint64(elgamal.DefaultMaxDecryptable))
		}
		if c.EntropyBound == 0 {
			return fmt.Errorf("%s is required with the %s engine", EntropyBoundKey, EngineElGamal)
		}
		if c.policy == ledger.PolicyUnchecked {
			return fmt.Errorf("%s %s underflows out of range with the %s engine", SufficiencyPolicyKey, c.policy, EngineElGamal)
		}
		maxDecryptable := c.MaxDecryptable
		if maxDecryptable == 0 {
			maxDecryptable = elgamal.DefaultMaxDecryptable
		}
		maxInput := c.MaxInput
		if maxInput == 0 {
			maxInput = maxDecryptable / 2
		}
		// a minted amount is an input plus entropy and must stay decryptable
		if maxInput > maxDecryptable || c.EntropyBound-1 > maxDecryptable-maxInput {
			return fmt.Errorf("%s plus %s must not exceed %s", MaxInputKey, EntropyBoundKey, MaxDecryptableKey)
		}
	case EngineMock:
	default:
		return fmt.Errorf("%w: %q", errInvalidEngine, c.Engine)
	}

	if c.APIPort == c.MetricsPort {
		return fmt.Errorf("%s and %s must differ", APIPortKey, MetricsPortKey)
	}
	if c.OracleFulfillDelay <= 0 {
		return fmt.Errorf("%s must be positive", OracleFulfillDelayKey)
	}
	if c.RequestTTL < 0 || c.FeeCacheTTL < 0 || c.PruneInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func (c *Config) GetLogLevel() zapcore.Level {
	return c.logLevel
}

func (c *Config) GetLedgerAddress() common.Address {
	return c.ledgerAddress
}

func (c *Config) GetOracleAddress() common.Address {
	return c.oracleAddress
}

func (c *Config) GetInputSigners() []common.Address {
	return c.inputSigners
}

func (c *Config) GetPolicy() ledger.SufficiencyPolicy {
	return c.policy
}

func parseAddress(key, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s %q", errInvalidAddress, key, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s is the zero address", errInvalidAddress, key)
	}
	return addr, nil
}
