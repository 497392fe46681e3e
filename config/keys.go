// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable keys
	ConfigFileEnvKey = "CONFIG_FILE"

	// Top-level configuration keys
	LogLevelKey    = "log-level"
	APIPortKey     = "api-port"
	MetricsPortKey = "metrics-port"
	DBPathKey      = "db-path"

	// Ledger keys
	NameKey              = "name"
	SymbolKey            = "symbol"
	LedgerAddressKey     = "ledger-address"
	SufficiencyPolicyKey = "sufficiency-policy"
	RequestTTLKey        = "request-ttl"
	PruneIntervalKey     = "prune-interval"

	// Oracle keys
	OracleAddressKey      = "oracle-address"
	OracleFeeKey          = "oracle-fee"
	OracleFulfillDelayKey = "oracle-fulfill-delay"
	OracleUniqueTagsKey   = "oracle-unique-tags"
	EntropyBoundKey       = "entropy-bound"
	FeeCacheTTLKey        = "fee-cache-ttl"

	// Engine keys
	EngineKey              = "engine"
	EngineKeyFileKey       = "engine-key-file"
	InputSignersKey        = "input-signers"
	CiphertextCacheSizeKey = "ciphertext-cache-size"
	DecryptCacheSizeKey    = "decrypt-cache-size"
	MaxDecryptableKey      = "max-decryptable"
	MaxInputKey            = "max-input"
)
