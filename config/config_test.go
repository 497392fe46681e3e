// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const (
	testLedger = "0x1000000000000000000000000000000000000001"
	testOracle = "0x2000000000000000000000000000000000000002"
	testSigner = "0x3000000000000000000000000000000000000003"
)

func validConfig() Config {
	return Config{
		LogLevel:           "info",
		APIPort:            defaultAPIPort,
		MetricsPort:        defaultMetricsPort,
		LedgerAddress:      testLedger,
		OracleAddress:      testOracle,
		InputSigners:       []string{testSigner},
		Engine:             EngineElGamal,
		EntropyBound:       defaultEntropyBound,
		OracleFulfillDelay: time.Second,
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
			valid:  true,
		},
		{
			name:   "mock engine",
			modify: func(c *Config) { c.Engine = EngineMock; c.EntropyBound = 0 },
			valid:  true,
		},
		{
			name:   "bad log level",
			modify: func(c *Config) { c.LogLevel = "loud" },
		},
		{
			name:   "bad ledger address",
			modify: func(c *Config) { c.LedgerAddress = "0x12" },
		},
		{
			name:   "zero oracle address",
			modify: func(c *Config) { c.OracleAddress = "0x0000000000000000000000000000000000000000" },
		},
		{
			name:   "same ledger and oracle",
			modify: func(c *Config) { c.OracleAddress = testLedger },
		},
		{
			name:   "unknown policy",
			modify: func(c *Config) { c.SufficiencyPolicy = "optimistic" },
		},
		{
			name:   "no signers",
			modify: func(c *Config) { c.InputSigners = nil },
		},
		{
			name:   "bad signer",
			modify: func(c *Config) { c.InputSigners = []string{"signer"} },
		},
		{
			name:   "unknown engine",
			modify: func(c *Config) { c.Engine = "tfhe" },
		},
		{
			name:   "elgamal without entropy bound",
			modify: func(c *Config) { c.EntropyBound = 0 },
		},
		{
			name:   "elgamal decrypt bound too large",
			modify: func(c *Config) { c.MaxDecryptable = 1 << 40 },
		},
		{
			name:   "elgamal unchecked",
			modify: func(c *Config) { c.SufficiencyPolicy = "unchecked" },
		},
		{
			name:   "input above decrypt bound",
			modify: func(c *Config) { c.MaxDecryptable = 1000; c.MaxInput = 1001 },
		},
		{
			name:   "input plus entropy above decrypt bound",
			modify: func(c *Config) { c.MaxDecryptable = 1000; c.MaxInput = 990; c.EntropyBound = 12 },
		},
		{
			name:   "input plus entropy at decrypt bound",
			modify: func(c *Config) { c.MaxDecryptable = 1000; c.MaxInput = 990; c.EntropyBound = 11 },
			valid:  true,
		},
		{
			name:   "shared ports",
			modify: func(c *Config) { c.MetricsPort = c.APIPort },
		},
		{
			name:   "no fulfil delay",
			modify: func(c *Config) { c.OracleFulfillDelay = 0 },
		},
		{
			name:   "negative ttl",
			modify: func(c *Config) { c.RequestTTL = -time.Second },
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cfg := validConfig()
			test.modify(&cfg)
			err := cfg.Validate()
			if test.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestValidateDerivesValues(t *testing.T) {
	require := require.New(t)

	cfg := validConfig()
	cfg.LogLevel = "debug"
	cfg.SufficiencyPolicy = "unchecked"
	cfg.Engine = " Mock "
	require.NoError(cfg.Validate())

	require.Equal(EngineMock, cfg.Engine)

	require.Equal(zapcore.DebugLevel, cfg.GetLogLevel())
	require.Equal(common.HexToAddress(testLedger), cfg.GetLedgerAddress())
	require.Equal(common.HexToAddress(testOracle), cfg.GetOracleAddress())
	require.Equal([]common.Address{common.HexToAddress(testSigner)}, cfg.GetInputSigners())
	require.Equal(ledger.PolicyUnchecked, cfg.GetPolicy())
}

func TestNewConfigFromFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(os.WriteFile(path, []byte(`{
		"ledger-address": "`+testLedger+`",
		"oracle-address": "`+testOracle+`",
		"input-signers": ["`+testSigner+`"],
		"oracle-fee": 7,
		"request-ttl": "90s"
	}`), 0o600))

	fs := BuildFlagSet()
	require.NoError(fs.Parse([]string{"--" + ConfigFileKey, path, "--" + SymbolKey, "TST"}))
	v, err := BuildViper(fs)
	require.NoError(err)
	cfg, err := NewConfig(v)
	require.NoError(err)

	require.Equal("TST", cfg.Symbol)
	require.Equal(defaultName, cfg.Name)
	require.Equal(uint64(7), cfg.OracleFee)
	require.Equal(90*time.Second, cfg.RequestTTL)
	require.Equal(EngineElGamal, cfg.Engine)
	require.Equal(defaultEntropyBound, cfg.EntropyBound)
	require.Equal(ledger.PolicyGuarded, cfg.GetPolicy())
}

func TestBuildViperRequiresConfigFile(t *testing.T) {
	fs := BuildFlagSet()
	require.NoError(t, fs.Parse(nil))
	_, err := BuildViper(fs)
	require.ErrorIs(t, err, errConfigFileNotSet)
}
