// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package elgamal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/luxfi/confidential/cache"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

const (
	// Name identifies the engine in configuration and to API clients.
	Name = "elgamal"

	DefaultMaxDecryptable      = 1 << 32
	DefaultCiphertextCacheSize = 4096
	DefaultDecryptCacheSize    = 1024

	// external inputs are the value type followed by the ciphertext
	ExternalSize = 1 + CiphertextSize
)

var (
	ciphertextPrefix = []byte("ec") // ciphertextPrefix + handle -> type || ciphertext
	grantPrefix      = []byte("eg") // grantPrefix + handle + principal -> nil

	_ fhe.Engine     = (*Engine)(nil)
	_ fhe.Comparator = (*Engine)(nil)
	_ fhe.Encrypter  = (*Engine)(nil)
	_ fhe.Bounded    = (*Engine)(nil)

	errInvalidMaxInput = errors.New("max input must not exceed max decryptable")
)

// Config tunes an Engine.
type Config struct {
	MaxDecryptable uint64
	// MaxInput caps imported amounts. Zero defaults to half of
	// MaxDecryptable.
	MaxInput            uint64
	CiphertextCacheSize int
	DecryptCacheSize    int
	Random              io.Reader
}

type entry struct {
	typ fhe.ValueType
	ct  *Ciphertext
}

// Engine is an fhe.Engine backed by exponential ElGamal. It keeps the
// decryption key, so comparisons and selects are evaluated by decrypting
// inside the engine; the values never leave it except through Decrypt,
// which honours the engine ACL.
type Engine struct {
	key      *PrivateKey
	kv       db.KeyValueStore
	verifier fhe.InputVerifier
	random   io.Reader

	acl      *fhe.ACL
	entries  *cache.LRUCache[ids.ID, *entry]
	plain    *cache.FIFOCache[ids.ID, uint64]
	maxValue uint64
	maxInput uint64

	solverOnce sync.Once
	solver     *Solver
}

// NewEngine returns an engine persisting ciphertexts and grants in kv.
func NewEngine(key *PrivateKey, kv db.KeyValueStore, verifier fhe.InputVerifier, cfg Config) (*Engine, error) {
	if key == nil {
		return nil, errInvalidPrivateKey
	}
	if cfg.MaxDecryptable == 0 {
		cfg.MaxDecryptable = DefaultMaxDecryptable
	}
	if cfg.MaxInput == 0 {
		cfg.MaxInput = cfg.MaxDecryptable / 2
	}
	if cfg.MaxInput > cfg.MaxDecryptable {
		return nil, fmt.Errorf("%w: %d > %d", errInvalidMaxInput, cfg.MaxInput, cfg.MaxDecryptable)
	}
	if cfg.CiphertextCacheSize <= 0 {
		cfg.CiphertextCacheSize = DefaultCiphertextCacheSize
	}
	if cfg.DecryptCacheSize <= 0 {
		cfg.DecryptCacheSize = DefaultDecryptCacheSize
	}
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	entries, err := cache.NewLRUCache[ids.ID, *entry](cfg.CiphertextCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		key:      key,
		kv:       kv,
		verifier: verifier,
		random:   cfg.Random,
		acl:      fhe.NewACL(),
		entries:  entries,
		plain:    cache.NewFIFOCache[ids.ID, uint64](cfg.DecryptCacheSize),
		maxValue: cfg.MaxDecryptable,
		maxInput: cfg.MaxInput,
	}, nil
}

// MaxValue is the largest plaintext the engine can decrypt, and so the
// largest operand Ge, Eq and Select accept.
func (e *Engine) MaxValue() uint64 {
	return e.maxValue
}

// MaxInput is the largest amount ImportExternal accepts.
func (e *Engine) MaxInput() uint64 {
	return e.maxInput
}

// PublicKey returns the key clients encrypt inputs to.
func (e *Engine) PublicKey() *PublicKey {
	return e.key.Public()
}

// EncryptExternal builds an external input for value under pub.
func EncryptExternal(random io.Reader, pub *PublicKey, t fhe.ValueType, value uint64) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: type %d", fhe.ErrInvalidCiphertext, t)
	}
	ct, err := Encrypt(random, pub, value)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(t)}, ct.Bytes()...), nil
}

func (e *Engine) ImportExternal(external []byte, proof []byte, input fhe.InputContext) (ids.ID, error) {
	if len(external) != ExternalSize {
		return ids.Empty, fmt.Errorf("%w: length %d", fhe.ErrInvalidCiphertext, len(external))
	}
	t := fhe.ValueType(external[0])
	if !t.Valid() {
		return ids.Empty, fmt.Errorf("%w: type %d", fhe.ErrInvalidCiphertext, external[0])
	}
	ct, err := ParseCiphertext(external[1:])
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: %v", fhe.ErrInvalidCiphertext, err)
	}
	if e.verifier != nil {
		if err := e.verifier.Verify(external, proof, input); err != nil {
			return ids.Empty, err
		}
	}
	m, err := e.solve(ct)
	if err != nil {
		return ids.Empty, fmt.Errorf("import: %w", err)
	}
	if m > e.maxInput || (t == fhe.Bool && m > 1) {
		return ids.Empty, fmt.Errorf("%w: %s input %d exceeds %d", fhe.ErrOutOfRange, t, m, e.maxInput)
	}
	return e.put(t, ct)
}

func (e *Engine) Add(a, b ids.ID) (ids.ID, error) {
	x, y, err := e.loadPair(a, b, fhe.Uint64)
	if err != nil {
		return ids.Empty, err
	}
	return e.put(fhe.Uint64, Add(x.ct, y.ct))
}

func (e *Engine) Sub(a, b ids.ID) (ids.ID, error) {
	x, y, err := e.loadPair(a, b, fhe.Uint64)
	if err != nil {
		return ids.Empty, err
	}
	return e.put(fhe.Uint64, Sub(x.ct, y.ct))
}

func (e *Engine) Constant(t fhe.ValueType, value uint64) (ids.ID, error) {
	if !t.Valid() || (t == fhe.Bool && value > 1) {
		return ids.Empty, fmt.Errorf("%w: %s constant %d", fhe.ErrInvalidCiphertext, t, value)
	}
	return e.put(t, Trivial(value))
}

// Encrypt returns a handle to value encrypted under the engine key.
func (e *Engine) Encrypt(t fhe.ValueType, value uint64) (ids.ID, error) {
	if !t.Valid() || (t == fhe.Bool && value > 1) {
		return ids.Empty, fmt.Errorf("%w: %s value %d", fhe.ErrInvalidCiphertext, t, value)
	}
	ct, err := Encrypt(e.random, e.key.Public(), value)
	if err != nil {
		return ids.Empty, err
	}
	return e.put(t, ct)
}

func (e *Engine) Ge(a, b ids.ID) (ids.ID, error) {
	return e.compare(a, b, func(x, y uint64) bool { return x >= y })
}

func (e *Engine) Eq(a, b ids.ID) (ids.ID, error) {
	return e.compare(a, b, func(x, y uint64) bool { return x == y })
}

func (e *Engine) Select(cond, a, b ids.ID) (ids.ID, error) {
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
	bit, err := e.plaintext(cond, c)
	if err != nil {
		return ids.Empty, err
	}
	chosen := y
	if bit == 1 {
		chosen = x
	}
	ct, err := Rerandomize(e.random, e.key.Public(), chosen.ct)
	if err != nil {
		return ids.Empty, err
	}
	return e.put(chosen.typ, ct)
}

func (e *Engine) TypeOf(h ids.ID) (fhe.ValueType, error) {
	ent, err := e.load(h)
	if err != nil {
		return 0, err
	}
	return ent.typ, nil
}

func (e *Engine) GrantUse(h ids.ID, principal common.Address) error {
	if _, err := e.load(h); err != nil {
		return err
	}
	if err := e.kv.Put(grantKey(h, principal), nil); err != nil {
		return err
	}
	e.acl.Allow(h, principal)
	return nil
}

func (e *Engine) Decrypt(h ids.ID, principal common.Address) (uint64, error) {
	allowed, err := e.allowed(h, principal)
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, fmt.Errorf("%w: %s for %s", fhe.ErrAccessDenied, h, principal)
	}
	ent, err := e.load(h)
	if err != nil {
		return 0, err
	}
	return e.plaintext(h, ent)
}

func (e *Engine) allowed(h ids.ID, principal common.Address) (bool, error) {
	if e.acl.Allowed(h, principal) {
		return true, nil
	}
	ok, err := e.kv.Has(grantKey(h, principal))
	if err != nil || !ok {
		return false, err
	}
	e.acl.Allow(h, principal)
	return true, nil
}

func (e *Engine) compare(a, b ids.ID, op func(x, y uint64) bool) (ids.ID, error) {
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
	xv, err := e.plaintext(a, x)
	if err != nil {
		return ids.Empty, err
	}
	yv, err := e.plaintext(b, y)
	if err != nil {
		return ids.Empty, err
	}
	var bit uint64
	if op(xv, yv) {
		bit = 1
	}
	ct, err := Encrypt(e.random, e.key.Public(), bit)
	if err != nil {
		return ids.Empty, err
	}
	return e.put(fhe.Bool, ct)
}

func (e *Engine) plaintext(h ids.ID, ent *entry) (uint64, error) {
	return e.plain.Get(h, func(ids.ID) (uint64, error) {
		m, err := e.solve(ent.ct)
		if err != nil {
			return 0, fmt.Errorf("decrypt %s: %w", h, err)
		}
		return m, nil
	})
}

func (e *Engine) solve(ct *Ciphertext) (uint64, error) {
	e.solverOnce.Do(func() {
		e.solver = NewSolver(e.maxValue)
	})
	return e.solver.Solve(DecryptToPoint(e.key, ct))
}

func (e *Engine) loadPair(a, b ids.ID, want fhe.ValueType) (*entry, *entry, error) {
	x, err := e.load(a)
	if err != nil {
		return nil, nil, err
	}
	y, err := e.load(b)
	if err != nil {
		return nil, nil, err
	}
	if err := fhe.CheckTypes(want, x.typ, y.typ); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func (e *Engine) load(h ids.ID) (*entry, error) {
	return e.entries.Get(h, func(h ids.ID) (*entry, error) {
		raw, err := e.kv.Get(ciphertextKey(h))
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", fhe.ErrUnknownHandle, h)
		}
		if err != nil {
			return nil, err
		}
		if len(raw) != ExternalSize {
			return nil, fmt.Errorf("%w: stored length %d", fhe.ErrInvalidCiphertext, len(raw))
		}
		ct, err := ParseCiphertext(raw[1:])
		if err != nil {
			return nil, err
		}
		return &entry{typ: fhe.ValueType(raw[0]), ct: ct}, nil
	}, false)
}

// put stores ct under a handle derived from its encoding. Identical
// ciphertexts share a handle, which is harmless because they decrypt to the
// same value.
func (e *Engine) put(t fhe.ValueType, ct *Ciphertext) (ids.ID, error) {
	raw := append([]byte{byte(t)}, ct.Bytes()...)
	h := ids.ID(crypto.Keccak256Hash(raw))
	if err := e.kv.Put(ciphertextKey(h), raw); err != nil {
		return ids.Empty, err
	}
	e.entries.Add(h, &entry{typ: t, ct: ct})
	return h, nil
}

func ciphertextKey(h ids.ID) []byte {
	return append(append([]byte{}, ciphertextPrefix...), h[:]...)
}

func grantKey(h ids.ID, principal common.Address) []byte {
	key := make([]byte, 0, len(grantPrefix)+len(h)+common.AddressLength)
	key = append(key, grantPrefix...)
	key = append(key, h[:]...)
	return append(key, principal.Bytes()...)
}
