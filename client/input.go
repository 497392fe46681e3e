// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/luxfi/confidential/api"
	"github.com/luxfi/confidential/crypto/elgamal"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/geth/common"
)

var errUnknownEngine = errors.New("unknown engine")

// EncryptInput encrypts value for the engine described by info and signs it
// with signer for user, producing the external input and proof the ledger
// expects from user.
func EncryptInput(info *api.InfoResponse, signer *ecdsa.PrivateKey, user common.Address, value uint64) ([]byte, []byte, error) {
	var (
		external []byte
		err      error
	)
	switch info.Engine {
	case elgamal.Name:
		pub, perr := elgamal.PublicKeyFromBytes(info.EnginePublicKey)
		if perr != nil {
			return nil, nil, fmt.Errorf("invalid engine public key: %w", perr)
		}
		external, err = elgamal.EncryptExternal(rand.Reader, pub, fhe.Uint64, value)
	case mock.Name:
		external = mock.Encode(fhe.Uint64, value)
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownEngine, info.Engine)
	}
	if err != nil {
		return nil, nil, err
	}

	proof, err := fhe.SignInput(signer, external, fhe.InputContext{
		Contract: info.Address,
		User:     user,
	})
	if err != nil {
		return nil, nil, err
	}
	return external, proof, nil
}
