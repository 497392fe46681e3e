// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package fhe

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/math/set"
)

const inputDomain = "confidential-input"

// InputVerifier checks the proof attached to an external ciphertext.
type InputVerifier interface {
	Verify(external []byte, proof []byte, input InputContext) error
}

var _ InputVerifier = (*SignerSet)(nil)

// SignerSet accepts inputs signed by any of a fixed set of secp256k1 keys.
// The signature covers the ciphertext digest and the input context, so a
// proof cannot be replayed for another contract or user.
type SignerSet struct {
	signers set.Set[common.Address]
}

// NewSignerSet returns a verifier trusting signers.
func NewSignerSet(signers ...common.Address) *SignerSet {
	return &SignerSet{signers: set.Of(signers...)}
}

// Signers returns the trusted signer addresses.
func (s *SignerSet) Signers() []common.Address {
	return s.signers.List()
}

// InputDigest is the hash an input signer signs.
func InputDigest(external []byte, input InputContext) common.Hash {
	return common.Hash(crypto.Keccak256Hash(
		[]byte(inputDomain),
		crypto.Keccak256(external),
		input.Contract.Bytes(),
		input.User.Bytes(),
	))
}

func (s *SignerSet) Verify(external []byte, proof []byte, input InputContext) error {
	if len(proof) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature length %d", ErrInvalidProof, len(proof))
	}
	digest := InputDigest(external, input)
	pub, err := crypto.SigToPub(digest[:], proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	signer := common.Address(crypto.PubkeyToAddress(*pub))
	if !s.signers.Contains(signer) {
		return fmt.Errorf("%w: untrusted signer %s", ErrInvalidProof, signer)
	}
	return nil
}

// SignInput produces the proof SignerSet expects.
func SignInput(key *ecdsa.PrivateKey, external []byte, input InputContext) ([]byte, error) {
	digest := InputDigest(external, input)
	return crypto.Sign(digest[:], key)
}
