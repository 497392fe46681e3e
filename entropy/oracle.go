// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

//go:generate go run go.uber.org/mock/mockgen -source=$GOFILE -destination=./mocks/mock_oracle.go -package=mocks

package entropy

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Oracle issues encrypted random values. Requests are fulfilled
// asynchronously; consumers poll IsRequestFulfilled and then fetch the
// handle, which the oracle has granted to the consumer named in the request.
type Oracle interface {
	// Address identifies the oracle.
	Address() common.Address

	// GetFee returns the payment RequestEntropy currently requires.
	GetFee(ctx context.Context) (*uint256.Int, error)

	// RequestEntropy registers a request and returns its id. Ids are
	// allocated monotonically starting at 1.
	RequestEntropy(ctx context.Context, tag common.Hash, payment *uint256.Int, consumer common.Address) (uint64, error)

	// IsRequestFulfilled reports whether the entropy for id is available.
	IsRequestFulfilled(ctx context.Context, id uint64) (bool, error)

	// GetEncryptedEntropy returns the entropy handle of a fulfilled request.
	GetEncryptedEntropy(ctx context.Context, id uint64) (ids.ID, error)
}
