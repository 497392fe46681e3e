// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package entropy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/confidential/db/memorydb"
	"github.com/luxfi/confidential/entropy/mocks"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	oracleAddr = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	consumer   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	testTag    = common.HexToHash("0x7a67")
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newMockOracle(t *testing.T, fee uint64) *mocks.MockOracle {
	oracle := mocks.NewMockOracle(gomock.NewController(t))
	oracle.EXPECT().Address().Return(oracleAddr).AnyTimes()
	oracle.EXPECT().GetFee(gomock.Any()).Return(uint256.NewInt(fee), nil).AnyTimes()
	return oracle
}

func newWorkflow(kv db.ReadWriter, oracle Oracle, ttl time.Duration, clock *fakeClock) *Workflow {
	return New(kv, oracle, NewFeeCache(oracle, time.Minute, clock.Now), Config{
		Consumer:   consumer,
		RequestTTL: ttl,
		Clock:      clock.Now,
	})
}

func TestRequestAndClaim(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	oracle := newMockOracle(t, 10)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	w := newWorkflow(memorydb.New(), oracle, 0, clock)
	entropy := ids.ID{0xee}

	oracle.EXPECT().RequestEntropy(gomock.Any(), testTag, uint256.NewInt(10), consumer).Return(uint64(1), nil)
	id, err := w.Request(ctx, testTag, alice, uint256.NewInt(10))
	require.NoError(err)
	require.Equal(uint64(1), id)

	count, err := w.Count()
	require.NoError(err)
	require.Equal(uint64(1), count)

	// not yet fulfilled
	oracle.EXPECT().IsRequestFulfilled(gomock.Any(), uint64(1)).Return(false, nil).Times(2)
	state, req, err := w.Status(ctx, 1)
	require.NoError(err)
	require.Equal(StatePending, state)
	require.Equal(alice, req.Requester)
	require.Equal(uint64(10), req.Fee.Uint64())
	_, err = w.Claim(ctx, 1, alice)
	require.ErrorIs(err, confidential.ErrNotReady)

	// wrong claimant, whatever the fulfilment state
	_, err = w.Claim(ctx, 1, bob)
	require.ErrorIs(err, confidential.ErrRequestMismatch)

	oracle.EXPECT().IsRequestFulfilled(gomock.Any(), uint64(1)).Return(true, nil).Times(2)
	oracle.EXPECT().GetEncryptedEntropy(gomock.Any(), uint64(1)).Return(entropy, nil)
	state, _, err = w.Status(ctx, 1)
	require.NoError(err)
	require.Equal(StateFulfilled, state)
	_, err = w.Claim(ctx, 1, bob)
	require.ErrorIs(err, confidential.ErrRequestMismatch)

	got, err := w.Claim(ctx, 1, alice)
	require.NoError(err)
	require.Equal(entropy, got)

	// claimed requests are gone
	_, err = w.Claim(ctx, 1, alice)
	require.ErrorIs(err, confidential.ErrNotReady)
	state, req, err = w.Status(ctx, 1)
	require.NoError(err)
	require.Equal(StateNone, state)
	require.Nil(req)

	count, err = w.Count()
	require.NoError(err)
	require.Equal(uint64(1), count)
}

func TestRequestFee(t *testing.T) {
	tests := []struct {
		name        string
		paid        *uint256.Int
		oracleErr   error
		expectedErr error
	}{
		{
			name:        "nothing paid",
			expectedErr: confidential.ErrInsufficientFee,
		},
		{
			name:        "underpaid",
			paid:        uint256.NewInt(9),
			expectedErr: confidential.ErrInsufficientFee,
		},
		{
			name: "exact fee",
			paid: uint256.NewInt(10),
		},
		{
			name: "overpaid",
			paid: uint256.NewInt(11),
		},
		{
			name:        "oracle rejects tag",
			paid:        uint256.NewInt(10),
			oracleErr:   confidential.ErrDuplicateTag,
			expectedErr: confidential.ErrDuplicateTag,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			oracle := newMockOracle(t, 10)
			w := newWorkflow(memorydb.New(), oracle, 0, &fakeClock{now: time.Unix(0, 0)})
			if test.paid != nil && !test.paid.Lt(uint256.NewInt(10)) {
				oracle.EXPECT().RequestEntropy(gomock.Any(), testTag, test.paid, consumer).Return(uint64(7), test.oracleErr)
			}

			_, err := w.Request(context.Background(), testTag, alice, test.paid)
			require.ErrorIs(err, test.expectedErr)

			count, err := w.Count()
			require.NoError(err)
			if test.expectedErr == nil {
				require.Equal(uint64(1), count)
			} else {
				require.Zero(count)
			}
		})
	}
}

func TestFeeCached(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	oracle := mocks.NewMockOracle(gomock.NewController(t))
	oracle.EXPECT().Address().Return(oracleAddr).AnyTimes()
	oracle.EXPECT().GetFee(gomock.Any()).Return(uint256.NewInt(5), nil).Times(2)

	clock := &fakeClock{now: time.Unix(0, 0)}
	fees := NewFeeCache(oracle, time.Minute, clock.Now)
	for range 3 {
		fee, err := fees.Fee(ctx)
		require.NoError(err)
		require.Equal(uint64(5), fee.Uint64())
	}
	clock.now = clock.now.Add(time.Minute)
	_, err := fees.Fee(ctx)
	require.NoError(err)

	failing := mocks.NewMockOracle(gomock.NewController(t))
	failing.EXPECT().Address().Return(oracleAddr).AnyTimes()
	failing.EXPECT().GetFee(gomock.Any()).Return(nil, errors.New("oracle down"))
	_, err = NewFeeCache(failing, time.Minute, nil).Fee(ctx)
	require.ErrorContains(err, "oracle down")
}

func TestExpiry(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	oracle := newMockOracle(t, 0)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	kv := memorydb.New()
	w := newWorkflow(kv, oracle, time.Hour, clock)

	oracle.EXPECT().RequestEntropy(gomock.Any(), gomock.Any(), gomock.Any(), consumer).Return(uint64(1), nil)
	oracle.EXPECT().RequestEntropy(gomock.Any(), gomock.Any(), gomock.Any(), consumer).Return(uint64(2), nil)
	_, err := w.Request(ctx, testTag, alice, uint256.NewInt(0))
	require.NoError(err)
	clock.now = clock.now.Add(30 * time.Minute)
	_, err = w.Request(ctx, testTag, bob, uint256.NewInt(0))
	require.NoError(err)

	clock.now = clock.now.Add(30 * time.Minute)
	state, _, err := w.Status(ctx, 1)
	require.NoError(err)
	require.Equal(StateExpired, state)
	_, err = w.Claim(ctx, 1, alice)
	require.ErrorIs(err, confidential.ErrRequestExpired)

	pruned, err := w.PruneExpired()
	require.NoError(err)
	require.Equal(1, pruned)

	reqs, err := w.Requests()
	require.NoError(err)
	require.Len(reqs, 1)
	require.Equal(uint64(2), reqs[0].ID)

	count, err := w.Count()
	require.NoError(err)
	require.Equal(uint64(2), count)

	// without a ttl nothing expires
	forever := newWorkflow(kv, oracle, 0, clock)
	clock.now = clock.now.Add(24 * time.Hour)
	pruned, err = forever.PruneExpired()
	require.NoError(err)
	require.Zero(pruned)
}

func TestReissuedID(t *testing.T) {
	require := require.New(t)

	oracle := newMockOracle(t, 0)
	w := newWorkflow(memorydb.New(), oracle, 0, &fakeClock{now: time.Unix(0, 0)})
	oracle.EXPECT().RequestEntropy(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(uint64(3), nil).Times(2)

	_, err := w.Request(context.Background(), testTag, alice, uint256.NewInt(0))
	require.NoError(err)
	_, err = w.Request(context.Background(), testTag, bob, uint256.NewInt(0))
	require.ErrorIs(err, errDuplicateRequest)
}

func TestRequestStateString(t *testing.T) {
	tests := []struct {
		state    RequestState
		expected string
	}{
		{StateNone, "none"},
		{StatePending, "pending"},
		{StateFulfilled, "fulfilled"},
		{StateExpired, "expired"},
		{RequestState(99), "unknown"},
	}
	for _, test := range tests {
		require.Equal(t, test.expected, test.state.String())
	}
}
