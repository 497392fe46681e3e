// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package elgamal

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMax = 1 << 16

func TestEncryptDecrypt(t *testing.T) {
	require := require.New(t)

	key, err := GenerateKey(rand.Reader)
	require.NoError(err)
	solver := NewSolver(testMax)

	for _, m := range []uint64{0, 1, 255, 256, 40_000, testMax} {
		ct, err := Encrypt(rand.Reader, key.Public(), m)
		require.NoError(err)
		got, err := solver.Solve(DecryptToPoint(key, ct))
		require.NoError(err)
		require.Equal(m, got)
	}

	ct, err := Encrypt(rand.Reader, key.Public(), testMax+1)
	require.NoError(err)
	_, err = solver.Solve(DecryptToPoint(key, ct))
	require.ErrorIs(err, ErrOutOfRange)
}

func TestHomomorphism(t *testing.T) {
	require := require.New(t)

	key, err := GenerateKey(rand.Reader)
	require.NoError(err)
	solver := NewSolver(testMax)

	a, err := Encrypt(rand.Reader, key.Public(), 700)
	require.NoError(err)
	b, err := Encrypt(rand.Reader, key.Public(), 300)
	require.NoError(err)

	sum, err := solver.Solve(DecryptToPoint(key, Add(a, b)))
	require.NoError(err)
	require.Equal(uint64(1000), sum)

	diff, err := solver.Solve(DecryptToPoint(key, Sub(a, b)))
	require.NoError(err)
	require.Equal(uint64(400), diff)

	mixed, err := solver.Solve(DecryptToPoint(key, Add(a, Trivial(5))))
	require.NoError(err)
	require.Equal(uint64(705), mixed)

	// a negative result is outside the decryptable range
	_, err = solver.Solve(DecryptToPoint(key, Sub(b, a)))
	require.ErrorIs(err, ErrOutOfRange)

	fresh, err := Rerandomize(rand.Reader, key.Public(), a)
	require.NoError(err)
	require.NotEqual(a.Bytes(), fresh.Bytes())
	same, err := solver.Solve(DecryptToPoint(key, fresh))
	require.NoError(err)
	require.Equal(uint64(700), same)
}

func TestEncoding(t *testing.T) {
	require := require.New(t)

	key, err := GenerateKey(rand.Reader)
	require.NoError(err)
	ct, err := Encrypt(rand.Reader, key.Public(), 9)
	require.NoError(err)

	parsed, err := ParseCiphertext(ct.Bytes())
	require.NoError(err)
	require.Equal(ct.Bytes(), parsed.Bytes())

	_, err = ParseCiphertext(ct.Bytes()[:10])
	require.ErrorIs(err, errInvalidPoint)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(err)
	require.Equal(key.Public().Bytes(), restored.Public().Bytes())

	pub, err := PublicKeyFromBytes(key.Public().Bytes())
	require.NoError(err)
	require.Equal(key.Public().Bytes(), pub.Bytes())
}

func TestLoadOrGenerateKey(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "engine.key")
	first, err := LoadOrGenerateKey(path)
	require.NoError(err)
	second, err := LoadOrGenerateKey(path)
	require.NoError(err)
	require.Equal(first.Bytes(), second.Bytes())
}
