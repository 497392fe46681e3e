// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package elgamal implements additively homomorphic (exponential) ElGamal
// over edwards25519. A value m is encrypted as (rG, mG + rP); adding two
// ciphertexts adds their plaintexts. Decryption recovers mG and solves the
// discrete log for m within a bounded range.
package elgamal

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/edwards25519"
	"github.com/luxfi/geth/common/hexutil"
)

const (
	// PointSize is the size of a compressed point.
	PointSize = 32
	// CiphertextSize is the size of an encoded ciphertext.
	CiphertextSize = 2 * PointSize
	// PrivateKeySize is the size of an encoded private key.
	PrivateKeySize = 32
)

var (
	errInvalidPoint      = errors.New("elgamal: invalid point encoding")
	errInvalidPrivateKey = errors.New("elgamal: invalid private key")
)

// PrivateKey is an ElGamal decryption key.
type PrivateKey struct {
	s   *edwards25519.Scalar
	pub *PublicKey
}

// PublicKey is an ElGamal encryption key.
type PublicKey struct {
	p *edwards25519.Point
}

// GenerateKey draws a new key pair from random.
func GenerateKey(random io.Reader) (*PrivateKey, error) {
	s, err := randomScalar(random)
	if err != nil {
		return nil, err
	}
	return newPrivateKey(s), nil
}

// PrivateKeyFromBytes parses a canonical scalar encoding.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: length %d", errInvalidPrivateKey, len(b))
	}
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPrivateKey, err)
	}
	return newPrivateKey(s), nil
}

func newPrivateKey(s *edwards25519.Scalar) *PrivateKey {
	return &PrivateKey{
		s:   s,
		pub: &PublicKey{p: new(edwards25519.Point).ScalarBaseMult(s)},
	}
}

// Public returns the matching encryption key.
func (k *PrivateKey) Public() *PublicKey {
	return k.pub
}

// Bytes returns the canonical scalar encoding.
func (k *PrivateKey) Bytes() []byte {
	return k.s.Bytes()
}

// Bytes returns the compressed point encoding.
func (k *PublicKey) Bytes() []byte {
	return k.p.Bytes()
}

// PublicKeyFromBytes parses a compressed point.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPoint, err)
	}
	return &PublicKey{p: p}, nil
}

// LoadOrGenerateKey reads a hex encoded key from path, creating the file
// with a fresh key when it does not exist.
func LoadOrGenerateKey(path string) (*PrivateKey, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		b, err := hexutil.Decode(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode key file %s: %w", path, err)
		}
		return PrivateKeyFromBytes(b)
	case errors.Is(err, os.ErrNotExist):
		key, err := GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(hexutil.Encode(key.Bytes())), 0o600); err != nil {
			return nil, fmt.Errorf("write key file %s: %w", path, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}
}

// Ciphertext is an exponential ElGamal ciphertext.
type Ciphertext struct {
	C1 *edwards25519.Point // rG
	C2 *edwards25519.Point // mG + rP
}

// Encrypt encrypts m under pub with fresh randomness.
func Encrypt(random io.Reader, pub *PublicKey, m uint64) (*Ciphertext, error) {
	r, err := randomScalar(random)
	if err != nil {
		return nil, err
	}
	c1 := new(edwards25519.Point).ScalarBaseMult(r)
	c2 := new(edwards25519.Point).ScalarMult(r, pub.p)
	c2.Add(c2, messagePoint(m))
	return &Ciphertext{C1: c1, C2: c2}, nil
}

// Trivial returns the randomness-free encryption of m, readable by anyone.
func Trivial(m uint64) *Ciphertext {
	return &Ciphertext{
		C1: edwards25519.NewIdentityPoint(),
		C2: messagePoint(m),
	}
}

// Add returns a ciphertext of the sum of the plaintexts.
func Add(a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{
		C1: new(edwards25519.Point).Add(a.C1, b.C1),
		C2: new(edwards25519.Point).Add(a.C2, b.C2),
	}
}

// Sub returns a ciphertext of the difference of the plaintexts.
func Sub(a, b *Ciphertext) *Ciphertext {
	return &Ciphertext{
		C1: new(edwards25519.Point).Subtract(a.C1, b.C1),
		C2: new(edwards25519.Point).Subtract(a.C2, b.C2),
	}
}

// Rerandomize returns a fresh-looking ciphertext of the same plaintext.
func Rerandomize(random io.Reader, pub *PublicKey, c *Ciphertext) (*Ciphertext, error) {
	zero, err := Encrypt(random, pub, 0)
	if err != nil {
		return nil, err
	}
	return Add(c, zero), nil
}

// DecryptToPoint returns mG.
func DecryptToPoint(k *PrivateKey, c *Ciphertext) *edwards25519.Point {
	shared := new(edwards25519.Point).ScalarMult(k.s, c.C1)
	return new(edwards25519.Point).Subtract(c.C2, shared)
}

// Bytes returns C1 || C2.
func (c *Ciphertext) Bytes() []byte {
	out := make([]byte, 0, CiphertextSize)
	out = append(out, c.C1.Bytes()...)
	return append(out, c.C2.Bytes()...)
}

// ParseCiphertext decodes C1 || C2.
func ParseCiphertext(b []byte) (*Ciphertext, error) {
	if len(b) != CiphertextSize {
		return nil, fmt.Errorf("%w: length %d", errInvalidPoint, len(b))
	}
	c1, err := new(edwards25519.Point).SetBytes(b[:PointSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPoint, err)
	}
	c2, err := new(edwards25519.Point).SetBytes(b[PointSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPoint, err)
	}
	return &Ciphertext{C1: c1, C2: c2}, nil
}

func messagePoint(m uint64) *edwards25519.Point {
	return new(edwards25519.Point).ScalarBaseMult(scalarFromUint64(m))
}

func scalarFromUint64(m uint64) *edwards25519.Scalar {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[:8], m)
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		// every 64-bit value is below the group order
		panic(err)
	}
	return s
}

func randomScalar(random io.Reader) (*edwards25519.Scalar, error) {
	var seed [64]byte
	if _, err := io.ReadFull(random, seed[:]); err != nil {
		return nil, fmt.Errorf("elgamal: read randomness: %w", err)
	}
	return edwards25519.NewScalar().SetUniformBytes(seed[:])
}
