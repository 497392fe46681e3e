// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package mock provides a plaintext-backed fhe.Engine. Values are kept in
// the clear inside the engine, which makes it suitable for tests that need
// to inspect results through Plaintext.
package mock

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

const (
	// Name identifies the engine in configuration and to API clients.
	Name = "mock"
	// ExternalSize is the length of an encoded external input.
	ExternalSize = 9
)

var (
	_ fhe.Engine     = (*Engine)(nil)
	_ fhe.Comparator = (*Engine)(nil)
	_ fhe.Encrypter  = (*Engine)(nil)
)

type value struct {
	typ fhe.ValueType
	v   uint64
}

// Engine is a plaintext-backed engine.
type Engine struct {
	lock     sync.RWMutex
	values   map[ids.ID]value
	nonce    uint64
	verifier fhe.InputVerifier
	acl      *fhe.ACL
}

// New returns an engine that checks input proofs with verifier. A nil
// verifier accepts every proof.
func New(verifier fhe.InputVerifier) *Engine {
	return &Engine{
		values:   make(map[ids.ID]value),
		verifier: verifier,
		acl:      fhe.NewACL(),
	}
}

// Encode builds the external input for a value.
func Encode(t fhe.ValueType, v uint64) []byte {
	out := make([]byte, ExternalSize)
	out[0] = byte(t)
	binary.BigEndian.PutUint64(out[1:], v)
	return out
}

func (e *Engine) ImportExternal(external []byte, proof []byte, input fhe.InputContext) (ids.ID, error) {
	if len(external) != ExternalSize {
		return ids.Empty, fmt.Errorf("%w: length %d", fhe.ErrInvalidCiphertext, len(external))
	}
	t := fhe.ValueType(external[0])
	if !t.Valid() {
		return ids.Empty, fmt.Errorf("%w: type %d", fhe.ErrInvalidCiphertext, external[0])
	}
	if e.verifier != nil {
		if err := e.verifier.Verify(external, proof, input); err != nil {
			return ids.Empty, err
		}
	}
	v := binary.BigEndian.Uint64(external[1:])
	if t == fhe.Bool && v > 1 {
		return ids.Empty, fmt.Errorf("%w: bool value %d", fhe.ErrInvalidCiphertext, v)
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	return e.store(t, v), nil
}

func (e *Engine) Add(a, b ids.ID) (ids.ID, error) {
	return e.binary(a, b, func(x, y uint64) uint64 { return x + y })
}

func (e *Engine) Sub(a, b ids.ID) (ids.ID, error) {
	return e.binary(a, b, func(x, y uint64) uint64 { return x - y })
}

func (e *Engine) Constant(t fhe.ValueType, v uint64) (ids.ID, error) {
	if !t.Valid() {
		return ids.Empty, fmt.Errorf("%w: type %d", fhe.ErrInvalidCiphertext, t)
	}
	if t == fhe.Bool && v > 1 {
		return ids.Empty, fmt.Errorf("%w: bool value %d", fhe.ErrInvalidCiphertext, v)
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	return e.store(t, v), nil
}

// Encrypt is Constant; the mock has no ciphertexts to randomise.
func (e *Engine) Encrypt(t fhe.ValueType, v uint64) (ids.ID, error) {
	return e.Constant(t, v)
}

func (e *Engine) Ge(a, b ids.ID) (ids.ID, error) {
	return e.compare(a, b, func(x, y uint64) bool { return x >= y })
}

func (e *Engine) Eq(a, b ids.ID) (ids.ID, error) {
	return e.compare(a, b, func(x, y uint64) bool { return x == y })
}

func (e *Engine) Select(cond, a, b ids.ID) (ids.ID, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	c, err := e.load(cond)
	if err != nil {
		return ids.Empty, err
	}
	if err := fhe.CheckTypes(fhe.Bool, c.typ); err != nil {
		return ids.Empty, err
	}
	x, err := e.load(a)
	if err != nil {
		return ids.Empty, err
	}
	y, err := e.load(b)
	if err != nil {
		return ids.Empty, err
	}
	if err := fhe.CheckTypes(x.typ, y.typ); err != nil {
		return ids.Empty, err
	}
	if c.v == 1 {
		return e.store(x.typ, x.v), nil
	}
	return e.store(y.typ, y.v), nil
}

func (e *Engine) TypeOf(h ids.ID) (fhe.ValueType, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	v, err := e.load(h)
	if err != nil {
		return 0, err
	}
	return v.typ, nil
}

func (e *Engine) GrantUse(h ids.ID, principal common.Address) error {
	if _, err := e.TypeOf(h); err != nil {
		return err
	}
	e.acl.Allow(h, principal)
	return nil
}

func (e *Engine) Decrypt(h ids.ID, principal common.Address) (uint64, error) {
	if !e.acl.Allowed(h, principal) {
		return 0, fmt.Errorf("%w: %s for %s", fhe.ErrAccessDenied, h, principal)
	}
	return e.Plaintext(h)
}

// Plaintext returns the value behind h without an access check.
func (e *Engine) Plaintext(h ids.ID) (uint64, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	v, err := e.load(h)
	if err != nil {
		return 0, err
	}
	return v.v, nil
}

// Len returns the number of handles the engine holds.
func (e *Engine) Len() int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return len(e.values)
}

func (e *Engine) binary(a, b ids.ID, op func(x, y uint64) uint64) (ids.ID, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	x, err := e.load(a)
	if err != nil {
		return ids.Empty, err
	}
	y, err := e.load(b)
	if err != nil {
		return ids.Empty, err
	}
	if err := fhe.CheckTypes(fhe.Uint64, x.typ, y.typ); err != nil {
		return ids.Empty, err
	}
	return e.store(fhe.Uint64, op(x.v, y.v)), nil
}

func (e *Engine) compare(a, b ids.ID, op func(x, y uint64) bool) (ids.ID, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	x, err := e.load(a)
	if err != nil {
		return ids.Empty, err
	}
	y, err := e.load(b)
	if err != nil {
		return ids.Empty, err
	}
	if err := fhe.CheckTypes(x.typ, y.typ); err != nil {
		return ids.Empty, err
	}
	var out uint64
	if op(x.v, y.v) {
		out = 1
	}
	return e.store(fhe.Bool, out), nil
}

// load must be called with the lock held.
func (e *Engine) load(h ids.ID) (value, error) {
	v, ok := e.values[h]
	if !ok {
		return value{}, fmt.Errorf("%w: %s", fhe.ErrUnknownHandle, h)
	}
	return v, nil
}

// store must be called with the write lock held.
func (e *Engine) store(t fhe.ValueType, v uint64) ids.ID {
	e.nonce++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], e.nonce)
	h := ids.ID(crypto.Keccak256Hash([]byte("mock-handle"), seed[:]))
	e.values[h] = value{typ: t, v: v}
	return h
}
