// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package fhe defines the encrypted arithmetic engine the ledger computes
// with. The ledger only ever holds handles; ciphertexts and keys stay inside
// the engine.
package fhe

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// ValueType is the logical type of an encrypted value.
type ValueType uint8

const (
	Uint64 ValueType = iota + 1
	Bool
)

func (t ValueType) String() string {
	switch t {
	case Uint64:
		return "euint64"
	case Bool:
		return "ebool"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a known value type.
func (t ValueType) Valid() bool {
	return t == Uint64 || t == Bool
}

// Operation represents a homomorphic operation
type Operation int

const (
	OpAdd Operation = iota
	OpSub
	OpGe
	OpEq
	OpSelect
	OpConstant
	OpImport
)

func (o Operation) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpGe:
		return "ge"
	case OpEq:
		return "eq"
	case OpSelect:
		return "select"
	case OpConstant:
		return "constant"
	case OpImport:
		return "import"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// InputContext binds an external ciphertext to the contract that imports it
// and the user that submitted it.
type InputContext struct {
	Contract common.Address
	User     common.Address
}

// Engine evaluates arithmetic over ciphertext handles.
type Engine interface {
	// ImportExternal verifies proof for external and registers the
	// ciphertext under a new handle.
	ImportExternal(external []byte, proof []byte, input InputContext) (ids.ID, error)

	// Add returns a handle to a+b. Uint64 arithmetic wraps modulo 2^64.
	Add(a, b ids.ID) (ids.ID, error)

	// Sub returns a handle to a-b.
	Sub(a, b ids.ID) (ids.ID, error)

	// Constant returns a handle to a trivially encrypted value.
	Constant(t ValueType, value uint64) (ids.ID, error)

	// TypeOf returns the value type of a handle, or ErrUnknownHandle.
	TypeOf(h ids.ID) (ValueType, error)

	// GrantUse lets principal decrypt h.
	GrantUse(h ids.ID, principal common.Address) error

	// Decrypt returns the plaintext of h if principal was granted it.
	Decrypt(h ids.ID, principal common.Address) (uint64, error)
}

// Comparator is implemented by engines that can compare and select.
type Comparator interface {
	// Ge returns an encrypted boolean a >= b.
	Ge(a, b ids.ID) (ids.ID, error)

	// Eq returns an encrypted boolean a == b.
	Eq(a, b ids.ID) (ids.ID, error)

	// Select returns a copy of a if cond is true and of b otherwise.
	Select(cond, a, b ids.ID) (ids.ID, error)
}

// Encrypter is implemented by engines that can encrypt a value with fresh
// randomness, so the resulting ciphertext does not reveal it.
type Encrypter interface {
	Encrypt(t ValueType, value uint64) (ids.ID, error)
}

// Bounded is implemented by engines that can only evaluate comparisons on
// values up to MaxValue. Ledgers keep every balance at or below it.
type Bounded interface {
	MaxValue() uint64
}

var (
	// ErrInvalidCiphertext is returned when ciphertext is malformed
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrIncompatibleCiphertexts is returned when ciphertexts can't be combined
	ErrIncompatibleCiphertexts = errors.New("incompatible ciphertexts")

	// ErrUnknownHandle is returned for handles the engine never produced
	ErrUnknownHandle = errors.New("unknown ciphertext handle")

	// ErrAccessDenied is returned when decrypting without a grant
	ErrAccessDenied = errors.New("decryption not granted")

	// ErrInvalidProof is returned when an input proof does not verify
	ErrInvalidProof = errors.New("invalid input proof")

	// ErrOutOfRange is returned when a value exceeds what the engine can
	// evaluate
	ErrOutOfRange = errors.New("value out of range")
)

// CheckTypes verifies that every handle type equals want.
func CheckTypes(want ValueType, got ...ValueType) error {
	for _, t := range got {
		if t != want {
			return fmt.Errorf("%w: want %s, got %s", ErrIncompatibleCiphertexts, want, t)
		}
	}
	return nil
}
