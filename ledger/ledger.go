// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements the confidential balance ledger. Balances and
// the total supply are ciphertext handles; the ledger never sees a
// plaintext amount. Every mutating operation runs alone and either commits
// all of its state changes or none of them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/acl"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/confidential/entropy"
	"github.com/luxfi/confidential/store"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"go.uber.org/zap"
)

// Decimals is the display precision of amounts.
const Decimals = 18

var (
	balancePrefix = []byte("b") // balancePrefix + account -> handle
	supplyKey     = []byte("s")
	epochKey      = []byte("m/epoch")

	errUnknownPolicy = errors.New("unknown sufficiency policy")
)

// SufficiencyPolicy decides what transfer and burn do when the balance is
// smaller than the amount.
type SufficiencyPolicy uint8

const (
	// PolicyGuarded compares and selects, so an insufficient transfer or
	// burn leaves every balance unchanged.
	PolicyGuarded SufficiencyPolicy = iota
	// PolicyUnchecked subtracts unconditionally and wraps on underflow.
	PolicyUnchecked
)

func (p SufficiencyPolicy) String() string {
	switch p {
	case PolicyGuarded:
		return "guarded"
	case PolicyUnchecked:
		return "unchecked"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the String form of a policy.
func ParsePolicy(s string) (SufficiencyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "guarded":
		return PolicyGuarded, nil
	case "unchecked":
		return PolicyUnchecked, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownPolicy, s)
	}
}

type Config struct {
	Name    string
	Symbol  string
	Address common.Address
	Oracle  entropy.Oracle
	Policy  SufficiencyPolicy
	// RequestTTL expires unclaimed mint requests. Zero keeps them forever.
	RequestTTL  time.Duration
	FeeCacheTTL time.Duration
	Clock       func() time.Time
}

// Ledger is the BalanceLedger.
type Ledger struct {
	lock   sync.Mutex
	cfg    Config
	kv     db.KeyValueStore
	engine fhe.Engine
	fees   *entropy.FeeCache
	log    *zap.Logger
	feeds  feeds
}

func New(cfg Config, kv db.KeyValueStore, engine fhe.Engine, logger *zap.Logger) (*Ledger, error) {
	if cfg.Oracle == nil || cfg.Oracle.Address() == (common.Address{}) {
		return nil, confidential.ErrInvalidOracle
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: ledger address", confidential.ErrZeroAddress)
	}
	switch cfg.Policy {
	case PolicyGuarded:
		if _, ok := engine.(fhe.Comparator); !ok {
			return nil, fmt.Errorf("%w: %s requires an engine that can compare", confidential.ErrUnsupportedPolicy, cfg.Policy)
		}
	case PolicyUnchecked:
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownPolicy, cfg.Policy)
	}
	if _, ok := engine.(fhe.Bounded); ok && cfg.Policy != PolicyGuarded {
		return nil, fmt.Errorf("%w: %s on an engine with a bounded range", confidential.ErrUnsupportedPolicy, cfg.Policy)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		cfg:    cfg,
		kv:     kv,
		engine: engine,
		fees:   entropy.NewFeeCache(cfg.Oracle, cfg.FeeCacheTTL, cfg.Clock),
		log: logger.With(
			zap.String("symbol", cfg.Symbol),
			zap.Stringer("ledger", cfg.Address),
		),
	}, nil
}

func (l *Ledger) Name() string                  { return l.cfg.Name }
func (l *Ledger) Symbol() string                { return l.cfg.Symbol }
func (l *Ledger) Decimals() uint8               { return Decimals }
func (l *Ledger) Address() common.Address       { return l.cfg.Address }
func (l *Ledger) OracleAddress() common.Address { return l.cfg.Oracle.Address() }
func (l *Ledger) Policy() SufficiencyPolicy     { return l.cfg.Policy }

// Fee returns the payment a mint request currently requires.
func (l *Ledger) Fee(ctx context.Context) (*uint256.Int, error) {
	return l.fees.Fee(ctx)
}

// RequestMintWithEntropy pays the oracle and registers a mint request for
// caller. The returned id is claimed by MintWithEntropy.
func (l *Ledger) RequestMintWithEntropy(ctx context.Context, caller common.Address, tag common.Hash, payment *uint256.Int) (uint64, error) {
	if caller == (common.Address{}) {
		return 0, fmt.Errorf("%w: caller", confidential.ErrZeroAddress)
	}
	var id uint64
	err := l.update(ctx, "requestMint", func(s *state) error {
		var err error
		id, err = s.entropy.Request(ctx, tag, caller, payment)
		return err
	})
	if err != nil {
		return 0, err
	}

	l.log.Info("Mint requested",
		zap.Stringer("to", caller),
		zap.Uint64("requestID", id),
	)
	l.feeds.mintRequested.Send(MintRequestedEvent{To: caller, RequestID: id})
	return id, nil
}

// MintWithEntropy claims request requestID and credits caller with the
// imported amount plus the claimed entropy.
func (l *Ledger) MintWithEntropy(ctx context.Context, caller common.Address, requestID uint64, external, proof []byte) error {
	err := l.update(ctx, "mint", func(s *state) error {
		entropyHandle, err := s.entropy.Claim(ctx, requestID, caller)
		if err != nil {
			return err
		}
		amount, err := s.importAmount(caller, external, proof)
		if err != nil {
			return err
		}
		if err := s.acl.Grant(entropyHandle, l.cfg.Address); err != nil {
			return err
		}
		if err := s.acl.Grant(amount, l.cfg.Address); err != nil {
			return err
		}
		minted, err := s.acl.Add(l.cfg.Address, amount, entropyHandle)
		if err != nil {
			return err
		}

		balance, err := s.balanceOrZero(caller)
		if err != nil {
			return err
		}
		supply, err := s.supplyOrZero()
		if err != nil {
			return err
		}
		nextBalance, err := s.acl.Add(l.cfg.Address, balance, minted)
		if err != nil {
			return err
		}
		nextSupply, err := s.acl.Add(l.cfg.Address, supply, minted)
		if err != nil {
			return err
		}
		if s.bounded {
			// a mint that would carry the balance past the engine range
			// credits nothing
			fits, err := s.headroom(balance, minted)
			if err != nil {
				return err
			}
			nextBalance, err = s.acl.Select(l.cfg.Address, fits, nextBalance, balance)
			if err != nil {
				return err
			}
			nextSupply, err = s.acl.Select(l.cfg.Address, fits, nextSupply, supply)
			if err != nil {
				return err
			}
		}
		if err := s.setBalance(caller, nextBalance); err != nil {
			return err
		}
		return s.setSupply(nextSupply)
	})
	if err != nil {
		return err
	}

	l.log.Info("Minted",
		zap.Stringer("to", caller),
		zap.Uint64("requestID", requestID),
	)
	l.feeds.minted.Send(MintedEvent{To: caller, RequestID: requestID})
	return nil
}

// Transfer moves an encrypted amount from caller to to. Under
// PolicyGuarded an insufficient balance turns the transfer into a no-op
// that still succeeds, so the outcome is not revealed. On a bounded engine
// the same happens when the credit would exceed the recipient's headroom.
func (l *Ledger) Transfer(ctx context.Context, caller, to common.Address, external, proof []byte) (bool, error) {
	if to == (common.Address{}) {
		return false, fmt.Errorf("%w: recipient", confidential.ErrZeroAddress)
	}
	var amount ids.ID
	err := l.update(ctx, "transfer", func(s *state) error {
		var err error
		amount, err = s.importAmount(caller, external, proof)
		if err != nil {
			return err
		}

		sender, err := s.balanceOrZero(caller)
		if err != nil {
			return err
		}
		recipient := sender
		if to != caller {
			recipient, err = s.balanceOrZero(to)
			if err != nil {
				return err
			}
		}
		debited, err := s.acl.Sub(l.cfg.Address, sender, amount)
		if err != nil {
			return err
		}
		var ok ids.ID
		if l.cfg.Policy == PolicyGuarded {
			ok, err = s.acl.Ge(l.cfg.Address, sender, amount)
			if err != nil {
				return err
			}
			if s.bounded {
				fits, err := s.headroom(recipient, amount)
				if err != nil {
					return err
				}
				if ok, err = s.and(ok, fits); err != nil {
					return err
				}
			}
			debited, err = s.acl.Select(l.cfg.Address, ok, debited, sender)
			if err != nil {
				return err
			}
		}
		if err := s.setBalance(caller, debited); err != nil {
			return err
		}

		// a self-transfer credits the debited balance so it nets out
		if to == caller {
			recipient = debited
		}
		credited, err := s.acl.Add(l.cfg.Address, recipient, amount)
		if err != nil {
			return err
		}
		if l.cfg.Policy == PolicyGuarded {
			credited, err = s.acl.Select(l.cfg.Address, ok, credited, recipient)
			if err != nil {
				return err
			}
		}
		return s.setBalance(to, credited)
	})
	if err != nil {
		return false, err
	}

	l.log.Info("Transferred",
		zap.Stringer("from", caller),
		zap.Stringer("to", to),
		zap.Stringer("amount", amount),
	)
	l.feeds.transfer.Send(TransferEvent{From: caller, To: to, Amount: amount})
	return true, nil
}

// Burn destroys an encrypted amount of caller's balance and supply.
func (l *Ledger) Burn(ctx context.Context, caller common.Address, external, proof []byte) error {
	var amount ids.ID
	err := l.update(ctx, "burn", func(s *state) error {
		var err error
		amount, err = s.importAmount(caller, external, proof)
		if err != nil {
			return err
		}
		balance, err := s.balanceOrZero(caller)
		if err != nil {
			return err
		}
		supply, err := s.supplyOrZero()
		if err != nil {
			return err
		}
		nextBalance, err := s.acl.Sub(l.cfg.Address, balance, amount)
		if err != nil {
			return err
		}
		nextSupply, err := s.acl.Sub(l.cfg.Address, supply, amount)
		if err != nil {
			return err
		}
		if l.cfg.Policy == PolicyGuarded {
			ok, err := s.acl.Ge(l.cfg.Address, balance, amount)
			if err != nil {
				return err
			}
			nextBalance, err = s.acl.Select(l.cfg.Address, ok, nextBalance, balance)
			if err != nil {
				return err
			}
			nextSupply, err = s.acl.Select(l.cfg.Address, ok, nextSupply, supply)
			if err != nil {
				return err
			}
		}
		if err := s.setBalance(caller, nextBalance); err != nil {
			return err
		}
		return s.setSupply(nextSupply)
	})
	if err != nil {
		return err
	}

	l.log.Info("Burned",
		zap.Stringer("from", caller),
		zap.Stringer("amount", amount),
	)
	l.feeds.burned.Send(BurnedEvent{From: caller, Amount: amount})
	return nil
}

// GrantBalanceAccess lets reader use and decrypt caller's current balance
// handle. The grant does not carry over to the handle the next operation
// produces.
func (l *Ledger) GrantBalanceAccess(ctx context.Context, caller, reader common.Address) (ids.ID, error) {
	if reader == (common.Address{}) {
		return ids.Empty, fmt.Errorf("%w: reader", confidential.ErrZeroAddress)
	}
	var balance ids.ID
	err := l.update(ctx, "grant", func(s *state) error {
		var err error
		balance, err = s.balance(caller)
		if err != nil {
			return err
		}
		if balance == ids.Empty {
			return fmt.Errorf("%w: no balance for %s", confidential.ErrUnknownHandle, caller)
		}
		return s.acl.Grant(balance, reader)
	})
	if err != nil {
		return ids.Empty, err
	}
	l.log.Debug("Balance access granted",
		zap.Stringer("holder", caller),
		zap.Stringer("reader", reader),
		zap.Stringer("handle", balance),
	)
	return balance, nil
}

// Reveal decrypts h for principal. The engine enforces its own ACL; no
// mutating operation ever calls this.
func (l *Ledger) Reveal(h ids.ID, principal common.Address) (uint64, error) {
	v, err := l.engine.Decrypt(h, principal)
	switch {
	case errors.Is(err, fhe.ErrAccessDenied):
		return 0, fmt.Errorf("%w: %v", confidential.ErrUnauthorized, err)
	case errors.Is(err, fhe.ErrUnknownHandle):
		return 0, fmt.Errorf("%w: %v", confidential.ErrUnknownHandle, err)
	case errors.Is(err, fhe.ErrOutOfRange):
		return 0, fmt.Errorf("%w: %v", confidential.ErrOutOfRange, err)
	case err != nil:
		return 0, err
	}
	return v, nil
}

// PruneExpiredRequests drops mint requests older than the request ttl.
func (l *Ledger) PruneExpiredRequests(ctx context.Context) (int, error) {
	var pruned int
	err := l.update(ctx, "prune", func(s *state) error {
		var err error
		pruned, err = s.entropy.PruneExpired()
		return err
	})
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		l.log.Info("Pruned expired mint requests", zap.Int("count", pruned))
	}
	return pruned, nil
}

// BalanceOf returns the balance handle of account, or ids.Empty.
func (l *Ledger) BalanceOf(account common.Address) (ids.ID, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.view().balance(account)
}

// TotalSupply returns the supply handle, or ids.Empty before the first mint.
func (l *Ledger) TotalSupply() (ids.ID, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.view().supply()
}

// MintRequestCount returns the number of mint requests ever registered.
func (l *Ledger) MintRequestCount() (uint64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.view().entropy.Count()
}

// RequestStatus reports the state of a mint request.
func (l *Ledger) RequestStatus(ctx context.Context, id uint64) (entropy.RequestState, *entropy.Request, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.view().entropy.Status(ctx, id)
}

// PendingRequests returns every unclaimed mint request.
func (l *Ledger) PendingRequests() ([]*entropy.Request, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.view().entropy.Requests()
}

// Readers returns the ACL of a handle.
func (l *Ledger) Readers(h ids.ID) ([]common.Address, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.view().acl.Readers(h)
}

// Epoch returns the number of committed mutating operations.
func (l *Ledger) Epoch() (uint64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return readUint64(l.kv, epochKey)
}

// Close ends every subscription.
func (l *Ledger) Close() {
	l.feeds.scope.Close()
}

// update runs fn against staged state and commits it only if fn succeeds.
func (l *Ledger) update(ctx context.Context, op string, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	epoch, err := readUint64(l.kv, epochKey)
	if err != nil {
		return err
	}
	epoch++

	ov := db.NewOverlay(l.kv)
	s := l.newState(ov, epoch)
	if err := fn(s); err != nil {
		ov.Discard()
		l.log.Debug("Operation reverted",
			zap.String("op", op),
			zap.Error(err),
		)
		return err
	}
	if err := putUint64(ov, epochKey, epoch); err != nil {
		ov.Discard()
		return err
	}
	if err := ov.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op, err)
	}
	return nil
}

// view is state over the committed store. Callers hold the lock and only
// read from it.
func (l *Ledger) view() *state {
	return l.newState(l.kv, 0)
}

func (l *Ledger) newState(kv db.ReadWriter, epoch uint64) *state {
	var bound uint64
	bounded, ok := l.engine.(fhe.Bounded)
	if ok {
		bound = bounded.MaxValue()
	}
	return &state{
		kv:      kv,
		ledger:  l.cfg.Address,
		bounded: ok,
		bound:   bound,
		acl:    acl.New(store.New(kv), l.engine, epoch),
		entropy: entropy.New(kv, l.cfg.Oracle, l.fees, entropy.Config{
			Consumer:   l.cfg.Address,
			RequestTTL: l.cfg.RequestTTL,
			Clock:      l.cfg.Clock,
		}),
	}
}
