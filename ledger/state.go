// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/confidential/acl"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/confidential/entropy"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// state is the view one operation works on.
type state struct {
	kv      db.ReadWriter
	ledger  common.Address
	acl     *acl.Ledger
	entropy *entropy.Workflow

	// bounded engines compare values up to bound only
	bounded bool
	bound   uint64
}

func (s *state) balance(account common.Address) (ids.ID, error) {
	return readHandle(s.kv, balanceKey(account))
}

func (s *state) supply() (ids.ID, error) {
	return readHandle(s.kv, supplyKey)
}

// balanceOrZero returns the balance handle of account, materialising an
// encrypted zero for accounts that never held one.
func (s *state) balanceOrZero(account common.Address) (ids.ID, error) {
	h, err := s.balance(account)
	if err != nil || h != ids.Empty {
		return h, err
	}
	return s.acl.Constant(s.ledger, fhe.Uint64, 0)
}

func (s *state) supplyOrZero() (ids.ID, error) {
	h, err := s.supply()
	if err != nil || h != ids.Empty {
		return h, err
	}
	return s.acl.Constant(s.ledger, fhe.Uint64, 0)
}

func (s *state) setBalance(account common.Address, h ids.ID) error {
	return s.kv.Put(balanceKey(account), h[:])
}

func (s *state) setSupply(h ids.ID) error {
	return s.kv.Put(supplyKey, h[:])
}

// headroom returns an encrypted boolean that holds when balance + amount
// stays within the engine bound. balance must already be within it.
func (s *state) headroom(balance, amount ids.ID) (ids.ID, error) {
	limit, err := s.acl.Constant(s.ledger, fhe.Uint64, s.bound)
	if err != nil {
		return ids.Empty, err
	}
	room, err := s.acl.Sub(s.ledger, limit, balance)
	if err != nil {
		return ids.Empty, err
	}
	return s.acl.Ge(s.ledger, room, amount)
}

// and returns the encrypted conjunction of two booleans.
func (s *state) and(a, b ids.ID) (ids.ID, error) {
	return s.acl.Select(s.ledger, a, b, a)
}

// importAmount imports an external amount submitted by user to this ledger.
func (s *state) importAmount(user common.Address, external, proof []byte) (ids.ID, error) {
	return s.acl.Import(s.ledger, external, proof, fhe.InputContext{
		Contract: s.ledger,
		User:     user,
	})
}

func balanceKey(account common.Address) []byte {
	return append(append([]byte{}, balancePrefix...), account.Bytes()...)
}

func readHandle(kv db.KeyValueReader, key []byte) (ids.ID, error) {
	raw, err := kv.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		return ids.Empty, nil
	}
	if err != nil {
		return ids.Empty, err
	}
	if len(raw) != ids.IDLen {
		return ids.Empty, fmt.Errorf("corrupt handle %q: %d bytes", key, len(raw))
	}
	var h ids.ID
	copy(h[:], raw)
	return h, nil
}

func readUint64(kv db.KeyValueReader, key []byte) (uint64, error) {
	raw, err := kv.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt %q: %d bytes", key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func putUint64(kv db.KeyValueWriter, key []byte, v uint64) error {
	return kv.Put(key, binary.BigEndian.AppendUint64(nil, v))
}
