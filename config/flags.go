// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

const usageText = `Usage:
ledgerd --config-file path-to-config            Specifies the config file and starts the ledger daemon.
ledgerd --version                               Display ledgerd version and exit.
ledgerd --help                                  Display ledgerd usage and exit.

Every config key may also be set with a flag of the same name or an
environment variable (upper case, hyphens replaced by underscores).
`

// DisplayUsageText prints the daemon usage.
func DisplayUsageText() {
	fmt.Print(usageText)
}

// BuildFlagSet returns the daemon flags.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ledgerd", pflag.ContinueOnError)
	fs.String(ConfigFileKey, "", "Specifies the config file")
	fs.Bool(VersionKey, false, "Display version")
	fs.Bool(HelpKey, false, "Display help")

	fs.String(LogLevelKey, defaultLogLevel, "Log level")
	fs.Uint16(APIPortKey, defaultAPIPort, "Port the ledger API listens on")
	fs.Uint16(MetricsPortKey, defaultMetricsPort, "Port the metrics server listens on")
	fs.String(DBPathKey, "", "leveldb directory; empty keeps state in memory")
	fs.String(NameKey, defaultName, "Token name")
	fs.String(SymbolKey, defaultSymbol, "Token symbol")
	fs.String(LedgerAddressKey, "", "Address of the ledger")
	fs.String(SufficiencyPolicyKey, "guarded", "guarded or unchecked")
	fs.Duration(RequestTTLKey, 0, "Expire unclaimed mint requests after this long; 0 never expires")
	fs.Duration(PruneIntervalKey, defaultPruneInterval, "How often expired mint requests are pruned")
	fs.String(OracleAddressKey, "", "Address of the entropy oracle")
	fs.Uint64(OracleFeeKey, 0, "Fee charged per entropy request")
	fs.Duration(OracleFulfillDelayKey, defaultOracleFulfillDelay, "How often the oracle fulfils pending requests")
	fs.Bool(OracleUniqueTagsKey, false, "Reject reused request tags")
	fs.Uint64(EntropyBoundKey, defaultEntropyBound, "Entropy is drawn from [0, bound)")
	fs.Duration(FeeCacheTTLKey, defaultFeeCacheTTL, "How long the oracle fee is cached")
	fs.String(EngineKey, EngineElGamal, "Arithmetic engine: elgamal or mock")
	fs.String(EngineKeyFileKey, "", "ElGamal key file, created if missing; empty uses an ephemeral key")
	fs.StringSlice(InputSignersKey, nil, "Addresses trusted to sign encrypted inputs")
	fs.Int(CiphertextCacheSizeKey, 0, "Ciphertext cache entries")
	fs.Int(DecryptCacheSizeKey, 0, "Decryption cache entries")
	fs.Uint64(MaxDecryptableKey, 0, "Largest value the ElGamal engine decrypts")
	fs.Uint64(MaxInputKey, 0, "Largest amount the ElGamal engine imports; 0 is half of max-decryptable")
	return fs
}
