// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestSignerSetVerify(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	stranger, err := crypto.GenerateKey()
	require.NoError(t, err)

	verifier := NewSignerSet(common.Address(crypto.PubkeyToAddress(signer.PublicKey)))
	external := []byte("ciphertext")
	input := InputContext{
		Contract: common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		User:     common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}
	proof, err := SignInput(signer, external, input)
	require.NoError(t, err)

	tests := []struct {
		name     string
		external []byte
		proof    func() []byte
		input    InputContext
		wantErr  bool
	}{
		{
			name:     "valid proof",
			external: external,
			proof:    func() []byte { return proof },
			input:    input,
		},
		{
			name:     "tampered ciphertext",
			external: []byte("ciphertexT"),
			proof:    func() []byte { return proof },
			input:    input,
			wantErr:  true,
		},
		{
			name:     "replayed for another user",
			external: external,
			proof:    func() []byte { return proof },
			input:    InputContext{Contract: input.Contract, User: common.HexToAddress("0xb0b")},
			wantErr:  true,
		},
		{
			name:     "untrusted signer",
			external: external,
			proof: func() []byte {
				p, err := SignInput(stranger, external, input)
				require.NoError(t, err)
				return p
			},
			input:   input,
			wantErr: true,
		},
		{
			name:     "truncated proof",
			external: external,
			proof:    func() []byte { return proof[:10] },
			input:    input,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(tt.external, tt.proof(), tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidProof)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestACL(t *testing.T) {
	require := require.New(t)

	acl := NewACL()
	h := ids.ID{0x01}
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")

	require.False(acl.Allowed(h, alice))
	acl.Allow(h, alice)
	acl.Allow(h, alice)
	require.True(acl.Allowed(h, alice))
	require.False(acl.Allowed(h, bob))
	require.Len(acl.Principals(h), 1)
	require.False(acl.Allowed(ids.ID{0x02}, alice))
}

func TestCheckTypes(t *testing.T) {
	require.NoError(t, CheckTypes(Uint64, Uint64, Uint64))
	require.ErrorIs(t, CheckTypes(Uint64, Uint64, Bool), ErrIncompatibleCiphertexts)
	require.Equal(t, "euint64", Uint64.String())
	require.False(t, ValueType(9).Valid())
}
