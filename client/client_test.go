// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/api"
	"github.com/luxfi/confidential/crypto/elgamal"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/db/memorydb"
	"github.com/luxfi/confidential/entropy"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/metrics"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	ledgerAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	oracleAddr = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	testTag    = common.HexToHash("0x7a67")
)

type testEnv struct {
	client *Client
	oracle *entropy.LocalOracle
	signer *ecdsa.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require := require.New(t)

	signer, err := crypto.GenerateKey()
	require.NoError(err)
	engine := mock.New(fhe.NewSignerSet(common.Address(crypto.PubkeyToAddress(signer.PublicKey))))
	kv := memorydb.New()
	oracle, err := entropy.NewLocalOracle(entropy.LocalConfig{
		Address:      oracleAddr,
		Fee:          uint256.NewInt(1),
		EntropyBound: 1,
	}, kv, engine, zap.NewNop())
	require.NoError(err)
	l, err := ledger.New(ledger.Config{
		Name:    "Test Token",
		Symbol:  "TEST",
		Address: ledgerAddr,
		Oracle:  oracle,
	}, kv, engine, zap.NewNop())
	require.NoError(err)
	t.Cleanup(l.Close)

	server := httptest.NewServer(api.NewHandler(
		zap.NewNop(),
		metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		l,
		api.EngineInfo{Name: mock.Name},
	))
	t.Cleanup(server.Close)

	return &testEnv{
		client: New(server.URL+"/", server.Client(), zap.NewNop()),
		oracle: oracle,
		signer: signer,
	}
}

func (e *testEnv) input(t *testing.T, user common.Address, v uint64) ([]byte, []byte) {
	t.Helper()
	info, err := e.client.Info(context.Background())
	require.NoError(t, err)
	external, proof, err := EncryptInput(info, e.signer, user, v)
	require.NoError(t, err)
	return external, proof
}

func TestClientRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.client

	info, err := c.Info(ctx)
	require.NoError(err)
	require.Equal("TEST", info.Symbol)
	require.Equal(ledgerAddr, info.Address)

	h, err := c.BalanceOf(ctx, alice)
	require.NoError(err)
	require.Equal(ids.Empty, h)

	_, err = c.RequestMint(ctx, alice, testTag, nil)
	require.ErrorIs(err, confidential.ErrInsufficientFee)

	id, err := c.RequestMint(ctx, alice, testTag, uint256.NewInt(1))
	require.NoError(err)
	require.Equal(uint64(1), id)

	pending, err := c.PendingRequests(ctx)
	require.NoError(err)
	require.Len(pending, 1)

	external, proof := env.input(t, alice, 40)
	require.ErrorIs(c.Mint(ctx, alice, id, external, proof), confidential.ErrNotReady)

	require.NoError(env.oracle.Fulfill(id))
	status, err := c.RequestStatus(ctx, id)
	require.NoError(err)
	require.Equal(entropy.StateFulfilled.String(), status.State)

	require.NoError(c.Mint(ctx, alice, id, external, proof))

	external, proof = env.input(t, alice, 15)
	ok, err := c.Transfer(ctx, alice, bob, external, proof)
	require.NoError(err)
	require.True(ok)

	external, proof = env.input(t, bob, 5)
	require.NoError(c.Burn(ctx, bob, external, proof))

	h, err = c.GrantBalanceAccess(ctx, bob, bob)
	require.NoError(err)
	v, err := c.Reveal(ctx, h, bob)
	require.NoError(err)
	require.Equal(uint64(10), v)

	readers, err := c.Readers(ctx, h)
	require.NoError(err)
	require.Contains(readers, bob)

	_, err = c.Reveal(ctx, h, alice)
	require.ErrorIs(err, confidential.ErrUnauthorized)

	supply, err := c.TotalSupply(ctx)
	require.NoError(err)
	require.NotEqual(ids.Empty, supply)

	n, err := c.PruneExpiredRequests(ctx)
	require.NoError(err)
	require.Zero(n)
}

func TestMintWithEntropyWait(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	c := env.client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- env.oracle.Run(ctx, 50*time.Millisecond)
	}()

	id, err := c.RequestMint(ctx, alice, testTag, uint256.NewInt(1))
	require.NoError(err)
	external, proof := env.input(t, alice, 7)
	require.NoError(c.MintWithEntropyWait(ctx, alice, id, external, proof, 10*time.Second))

	// a claimed request reads as not ready until the wait times out
	err = c.MintWithEntropyWait(ctx, alice, id, external, proof, 200*time.Millisecond)
	require.ErrorIs(err, confidential.ErrNotReady)
	cancel()
	require.NoError(<-done)
}

func TestMintWithEntropyWaitPermanent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.client.RequestMint(ctx, alice, testTag, uint256.NewInt(1))
	require.NoError(t, err)
	require.NoError(t, env.oracle.Fulfill(id))

	external, proof := env.input(t, alice, 7)
	start := time.Now()
	err = env.client.MintWithEntropyWait(ctx, bob, id, external, proof, 10*time.Second)
	require.ErrorIs(t, err, confidential.ErrRequestMismatch)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := New(server.URL, nil, nil).Info(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestEncryptInput(t *testing.T) {
	require := require.New(t)

	signer, err := crypto.GenerateKey()
	require.NoError(err)
	key, err := elgamal.GenerateKey(rand.Reader)
	require.NoError(err)
	engine, err := elgamal.NewEngine(
		key,
		memorydb.New(),
		fhe.NewSignerSet(common.Address(crypto.PubkeyToAddress(signer.PublicKey))),
		elgamal.Config{},
	)
	require.NoError(err)

	info := &api.InfoResponse{
		Address:         ledgerAddr,
		Engine:          elgamal.Name,
		EnginePublicKey: key.Public().Bytes(),
	}
	external, proof, err := EncryptInput(info, signer, alice, 12)
	require.NoError(err)

	h, err := engine.ImportExternal(external, proof, fhe.InputContext{Contract: ledgerAddr, User: alice})
	require.NoError(err)
	require.NoError(engine.GrantUse(h, alice))
	v, err := engine.Decrypt(h, alice)
	require.NoError(err)
	require.Equal(uint64(12), v)

	info.Engine = "paillier"
	_, _, err = EncryptInput(info, signer, alice, 12)
	require.ErrorIs(err, errUnknownEngine)

	info.Engine = elgamal.Name
	info.EnginePublicKey = []byte{1, 2, 3}
	_, _, err = EncryptInput(info, signer, alice, 12)
	require.Error(err)
}

func TestSubscribeEvents(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	c := env.client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	events := make(chan api.EventMessage, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeEvents(ctx, ready, func(msg api.EventMessage) error {
			events <- msg
			return nil
		})
	}()
	<-ready

	id, err := c.RequestMint(ctx, alice, testTag, uint256.NewInt(1))
	require.NoError(err)
	require.NoError(env.oracle.Fulfill(id))
	external, proof := env.input(t, alice, 3)
	require.NoError(c.Mint(ctx, alice, id, external, proof))

	// each event type has its own feed, so delivery order across types is
	// not fixed
	byType := make(map[string]api.EventMessage)
	for range 2 {
		msg := <-events
		byType[msg.Type] = msg
	}
	require.Contains(byType, api.EventMintRequested)
	require.Contains(byType, api.EventMinted)
	require.Equal(alice, *byType[api.EventMintRequested].To)
	require.Equal(id, byType[api.EventMintRequested].RequestID)
	require.Equal(id, byType[api.EventMinted].RequestID)

	cancel()
	require.ErrorIs(<-done, context.Canceled)
}
