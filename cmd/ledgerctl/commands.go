// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential/api"
	"github.com/luxfi/confidential/client"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/ids"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show ledger metadata and the current oracle fee",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		info, err := c.Info(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, info)
	},
}

var requestMintCmd = &cobra.Command{
	Use:   "request-mint",
	Short: "Request oracle entropy for a mint",
	Long: `Register a mint request with the oracle. The payment defaults to the
current oracle fee. The printed request id is passed to mint.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		from, err := addressFlag(cmd, fromFlag)
		if err != nil {
			return err
		}
		tag, err := tagFlag(cmd)
		if err != nil {
			return err
		}
		var payment *uint256.Int
		if s, _ := cmd.Flags().GetString("payment"); s != "" {
			if payment, err = uint256.FromDecimal(s); err != nil {
				return fmt.Errorf("invalid --payment: %w", err)
			}
		} else {
			info, err := c.Info(ctx)
			if err != nil {
				return err
			}
			if payment, err = uint256.FromDecimal(info.Fee); err != nil {
				return fmt.Errorf("invalid fee %q: %w", info.Fee, err)
			}
		}

		id, err := c.RequestMint(ctx, from, tag, payment)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Claim a fulfilled mint request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		from, err := addressFlag(cmd, fromFlag)
		if err != nil {
			return err
		}
		id, err := cmd.Flags().GetUint64("request-id")
		if err != nil {
			return err
		}
		external, proof, err := readInput(ctx, cmd, c, from)
		if err != nil {
			return err
		}

		wait, _ := cmd.Flags().GetBool("wait")
		if !wait {
			return c.Mint(ctx, from, id, external, proof)
		}
		waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")
		return c.MintWithEntropyWait(ctx, from, id, external, proof, waitTimeout)
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Transfer an encrypted amount",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		from, err := addressFlag(cmd, fromFlag)
		if err != nil {
			return err
		}
		to, err := addressFlag(cmd, "to")
		if err != nil {
			return err
		}
		external, proof, err := readInput(ctx, cmd, c, from)
		if err != nil {
			return err
		}
		ok, err := c.Transfer(ctx, from, to, external, proof)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ok)
		return nil
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn",
	Short: "Burn an encrypted amount",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		from, err := addressFlag(cmd, fromFlag)
		if err != nil {
			return err
		}
		external, proof, err := readInput(ctx, cmd, c, from)
		if err != nil {
			return err
		}
		return c.Burn(ctx, from, external, proof)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Print the balance handle of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		account, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		h, err := c.BalanceOf(ctx, account)
		if err != nil {
			return err
		}
		printHandle(cmd, h)
		return nil
	},
}

var supplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Print the total supply handle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		h, err := c.TotalSupply(ctx)
		if err != nil {
			return err
		}
		printHandle(cmd, h)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [request-id]",
	Short: "Show a mint request, or every unclaimed request",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		if len(args) == 0 {
			pending, err := c.PendingRequests(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, pending)
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid request id %q: %w", args[0], err)
		}
		status, err := c.RequestStatus(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, status)
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired mint requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		n, err := c.PruneExpiredRequests(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Let a reader decrypt the current balance of --from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		from, err := addressFlag(cmd, fromFlag)
		if err != nil {
			return err
		}
		reader, err := addressFlag(cmd, "reader")
		if err != nil {
			return err
		}
		h, err := c.GrantBalanceAccess(ctx, from, reader)
		if err != nil {
			return err
		}
		printHandle(cmd, h)
		return nil
	},
}

var revealCmd = &cobra.Command{
	Use:   "reveal <handle>",
	Short: "Decrypt a handle the principal was granted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		h, err := parseHandle(args[0])
		if err != nil {
			return err
		}
		principal, err := addressFlag(cmd, "principal")
		if err != nil {
			return err
		}
		v, err := c.Reveal(ctx, h, principal)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt and sign an amount without submitting it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, ctx, cancel, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer cancel()

		user, err := addressFlag(cmd, "user")
		if err != nil {
			return err
		}
		external, proof, err := readInput(ctx, cmd, c, user)
		if err != nil {
			return err
		}
		return printJSON(cmd, struct {
			External hexutil.Bytes `json:"external"`
			Proof    hexutil.Bytes `json:"proof"`
		}{external, proof})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream ledger events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		url, err := cmd.Flags().GetString(apiFlag)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		return client.New(url, nil, nil).SubscribeEvents(cmd.Context(), nil, func(msg api.EventMessage) error {
			return enc.Encode(msg)
		})
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen <file>",
	Short: "Generate an input signer key",
	Long: `Write a new secp256k1 key to file and print its address. Add the address
to the ledgerd input-signers to trust inputs it signs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		if err := crypto.SaveECDSA(args[0], key); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), crypto.PubkeyToAddress(key.PublicKey).Hex())
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{requestMintCmd, mintCmd, transferCmd, burnCmd, grantCmd} {
		cmd.Flags().String(fromFlag, "", "Calling account")
		_ = cmd.MarkFlagRequired(fromFlag)
	}
	for _, cmd := range []*cobra.Command{mintCmd, transferCmd, burnCmd, encryptCmd} {
		addInputFlags(cmd)
	}

	requestMintCmd.Flags().String("tag", "", "Request tag (hex), random if empty")
	requestMintCmd.Flags().String("payment", "", "Payment in decimal, the oracle fee if empty")

	mintCmd.Flags().Uint64("request-id", 0, "Mint request id")
	mintCmd.Flags().Bool("wait", false, "Retry until the oracle fulfils the request")
	mintCmd.Flags().Duration("wait-timeout", 20*time.Second, "How long --wait retries, bounded by --timeout")
	_ = mintCmd.MarkFlagRequired("request-id")

	transferCmd.Flags().String("to", "", "Recipient")
	_ = transferCmd.MarkFlagRequired("to")

	grantCmd.Flags().String("reader", "", "Account to grant")
	_ = grantCmd.MarkFlagRequired("reader")

	revealCmd.Flags().String("principal", "", "Account decrypting the handle")
	_ = revealCmd.MarkFlagRequired("principal")

	encryptCmd.Flags().String("user", "", "Account the input is bound to")
	_ = encryptCmd.MarkFlagRequired("user")
}

func tagFlag(cmd *cobra.Command) (common.Hash, error) {
	s, _ := cmd.Flags().GetString("tag")
	if s == "" {
		var tag common.Hash
		_, err := rand.Read(tag[:])
		return tag, err
	}
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) > common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid --tag %q", s)
	}
	return common.BytesToHash(raw), nil
}

func printHandle(cmd *cobra.Command, h ids.ID) {
	if h == ids.Empty {
		fmt.Fprintln(cmd.OutOrStdout(), "none")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(h[:]))
}
