// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/luxfi/confidential/client"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/ids"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	apiFlag       = "api"
	timeoutFlag   = "timeout"
	fromFlag      = "from"
	valueFlag     = "value"
	signerKeyFlag = "signer-key"
	externalFlag  = "external"
	proofFlag     = "proof"
)

var errMissingInput = errors.New("either --value with --signer-key or --external with --proof is required")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Command line client for a confidential ledger",
	Long: `ledgerctl talks to a ledgerd API. Amounts are encrypted locally to the
ledger engine and signed with an input signer key before they are sent.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String(apiFlag, "http://localhost:8080", "ledgerd API URL")
	rootCmd.PersistentFlags().Duration(timeoutFlag, 30*time.Second, "Request timeout")

	rootCmd.AddCommand(
		infoCmd,
		requestMintCmd,
		mintCmd,
		transferCmd,
		burnCmd,
		balanceCmd,
		supplyCmd,
		statusCmd,
		pruneCmd,
		grantCmd,
		revealCmd,
		encryptCmd,
		watchCmd,
		keygenCmd,
	)
}

func newClient(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc, error) {
	url, err := cmd.Flags().GetString(apiFlag)
	if err != nil {
		return nil, nil, nil, err
	}
	timeout, err := cmd.Flags().GetDuration(timeoutFlag)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return client.New(url, nil, nil), ctx, cancel, nil
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return common.Address{}, err
	}
	return parseAddress(s)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHandle(s string) (ids.ID, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return ids.Empty, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	if len(raw) != ids.IDLen {
		return ids.Empty, fmt.Errorf("invalid handle %q: want %d bytes", s, ids.IDLen)
	}
	var h ids.ID
	copy(h[:], raw)
	return h, nil
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64(valueFlag, 0, "Plaintext amount to encrypt")
	cmd.Flags().String(signerKeyFlag, "", "Input signer key file")
	cmd.Flags().String(externalFlag, "", "Pre-encrypted external input (hex)")
	cmd.Flags().String(proofFlag, "", "Proof for --external (hex)")
}

// readInput returns the external input and proof for user, encrypting
// --value locally when no pre-encrypted input is given.
func readInput(ctx context.Context, cmd *cobra.Command, c *client.Client, user common.Address) ([]byte, []byte, error) {
	externalHex, _ := cmd.Flags().GetString(externalFlag)
	proofHex, _ := cmd.Flags().GetString(proofFlag)
	if externalHex != "" || proofHex != "" {
		external, err := hexutil.Decode(externalHex)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --%s: %w", externalFlag, err)
		}
		proof, err := hexutil.Decode(proofHex)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --%s: %w", proofFlag, err)
		}
		return external, proof, nil
	}

	keyFile, _ := cmd.Flags().GetString(signerKeyFlag)
	if keyFile == "" || !cmd.Flags().Changed(valueFlag) {
		return nil, nil, errMissingInput
	}
	value, err := cmd.Flags().GetUint64(valueFlag)
	if err != nil {
		return nil, nil, err
	}
	key, err := crypto.LoadECDSA(keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signer key: %w", err)
	}
	info, err := c.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client.EncryptInput(info, key, user, value)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
