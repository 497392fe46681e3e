// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package elgamal

import (
	"crypto/rand"
	"testing"

	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/db/memorydb"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testUser     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newTestEngine(t *testing.T, verifier fhe.InputVerifier) (*Engine, *memorydb.Database) {
	t.Helper()
	key, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	kv := memorydb.New()
	e, err := NewEngine(key, kv, verifier, Config{MaxDecryptable: testMax})
	require.NoError(t, err)
	return e, kv
}

func TestEngineImport(t *testing.T) {
	require := require.New(t)

	signer, err := crypto.GenerateKey()
	require.NoError(err)
	e, _ := newTestEngine(t, fhe.NewSignerSet(common.Address(crypto.PubkeyToAddress(signer.PublicKey))))

	input := fhe.InputContext{Contract: testContract, User: testUser}
	external, err := EncryptExternal(rand.Reader, e.PublicKey(), fhe.Uint64, 1234)
	require.NoError(err)
	proof, err := fhe.SignInput(signer, external, input)
	require.NoError(err)

	h, err := e.ImportExternal(external, proof, input)
	require.NoError(err)
	require.NoError(e.GrantUse(h, testUser))
	v, err := e.Decrypt(h, testUser)
	require.NoError(err)
	require.Equal(uint64(1234), v)

	_, err = e.ImportExternal(external, proof, fhe.InputContext{Contract: testContract})
	require.ErrorIs(err, fhe.ErrInvalidProof)

	bad := append([]byte{}, external...)
	bad[0] = 7
	_, err = e.ImportExternal(bad, proof, input)
	require.ErrorIs(err, fhe.ErrInvalidCiphertext)
}

func TestEngineArithmetic(t *testing.T) {
	require := require.New(t)
	e, _ := newTestEngine(t, nil)

	balance, err := e.Constant(fhe.Uint64, 500)
	require.NoError(err)
	amount, err := e.Constant(fhe.Uint64, 200)
	require.NoError(err)

	sum, err := e.Add(balance, amount)
	require.NoError(err)
	diff, err := e.Sub(balance, amount)
	require.NoError(err)
	ok, err := e.Ge(amount, balance)
	require.NoError(err)
	eq, err := e.Eq(amount, amount)
	require.NoError(err)
	kept, err := e.Select(ok, diff, balance)
	require.NoError(err)
	taken, err := e.Select(eq, diff, balance)
	require.NoError(err)

	for h, want := range map[ids.ID]uint64{
		sum:   700,
		diff:  300,
		ok:    0,
		eq:    1,
		kept:  500,
		taken: 300,
	} {
		require.NoError(e.GrantUse(h, testUser))
		got, err := e.Decrypt(h, testUser)
		require.NoError(err)
		require.Equal(want, got)
	}

	typ, err := e.TypeOf(ok)
	require.NoError(err)
	require.Equal(fhe.Bool, typ)
}

func TestEngineDecryptRequiresGrant(t *testing.T) {
	require := require.New(t)
	e, kv := newTestEngine(t, nil)

	h, err := e.Constant(fhe.Uint64, 5)
	require.NoError(err)
	_, err = e.Decrypt(h, testUser)
	require.ErrorIs(err, fhe.ErrAccessDenied)
	require.ErrorIs(e.GrantUse(ids.ID{1}, testUser), fhe.ErrUnknownHandle)

	require.NoError(e.GrantUse(h, testUser))

	// a second engine over the same store sees the persisted grant
	restarted, err := NewEngine(e.key, kv, nil, Config{MaxDecryptable: testMax})
	require.NoError(err)
	v, err := restarted.Decrypt(h, testUser)
	require.NoError(err)
	require.Equal(uint64(5), v)
}

func TestEngineImportRange(t *testing.T) {
	key, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	e, err := NewEngine(key, memorydb.New(), nil, Config{MaxDecryptable: 1000, MaxInput: 400})
	require.NoError(t, err)
	require.Equal(t, uint64(1000), e.MaxValue())
	require.Equal(t, uint64(400), e.MaxInput())

	tests := []struct {
		name        string
		typ         fhe.ValueType
		value       uint64
		expectedErr error
	}{
		{
			name:  "at limit",
			typ:   fhe.Uint64,
			value: 400,
		},
		{
			name:        "above limit",
			typ:         fhe.Uint64,
			value:       401,
			expectedErr: fhe.ErrOutOfRange,
		},
		{
			name:        "not decryptable",
			typ:         fhe.Uint64,
			value:       5000,
			expectedErr: fhe.ErrOutOfRange,
		},
		{
			name:        "bool above one",
			typ:         fhe.Bool,
			value:       2,
			expectedErr: fhe.ErrOutOfRange,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			external, err := EncryptExternal(rand.Reader, e.PublicKey(), test.typ, test.value)
			require.NoError(t, err)
			_, err = e.ImportExternal(external, nil, fhe.InputContext{Contract: testContract, User: testUser})
			require.ErrorIs(t, err, test.expectedErr)
		})
	}

	_, err = NewEngine(key, memorydb.New(), nil, Config{MaxDecryptable: 1000, MaxInput: 1001})
	require.ErrorIs(t, err, errInvalidMaxInput)
}
