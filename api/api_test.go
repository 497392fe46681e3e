// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/db/memorydb"
	"github.com/luxfi/confidential/entropy"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/metrics"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
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

type testServer struct {
	*httptest.Server
	ledger *ledger.Ledger
	oracle *entropy.LocalOracle
	signer *ecdsa.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require := require.New(t)

	signer, err := crypto.GenerateKey()
	require.NoError(err)
	engine := mock.New(fhe.NewSignerSet(common.Address(crypto.PubkeyToAddress(signer.PublicKey))))
	kv := memorydb.New()
	oracle, err := entropy.NewLocalOracle(entropy.LocalConfig{
		Address:      oracleAddr,
		Fee:          uint256.NewInt(5),
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

	handler := NewHandler(
		zap.NewNop(),
		metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		l,
		EngineInfo{Name: "mock"},
	)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testServer{
		Server: server,
		ledger: l,
		oracle: oracle,
		signer: signer,
	}
}

func (s *testServer) input(t *testing.T, user common.Address, v uint64) (hexutil.Bytes, hexutil.Bytes) {
	t.Helper()
	external := mock.Encode(fhe.Uint64, v)
	proof, err := fhe.SignInput(s.signer, external, fhe.InputContext{Contract: ledgerAddr, User: user})
	require.NoError(t, err)
	return external, proof
}

// call sends body to path and decodes the response into out, returning the
// status code. Error responses are decoded into an ErrorResponse instead.
func (s *testServer) call(t *testing.T, method, path string, body, out any) (int, ErrorResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var errResp ErrorResponse
	if resp.StatusCode != http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		return resp.StatusCode, errResp
	}
	require.Equal(t, ContentTypeJSON, resp.Header.Get(contentTypeLabel))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode, errResp
}

func TestInfo(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	var info InfoResponse
	status, _ := s.call(t, http.MethodGet, InfoPath, nil, &info)
	require.Equal(http.StatusOK, status)
	require.Equal("Test Token", info.Name)
	require.Equal("TEST", info.Symbol)
	require.Equal(uint8(ledger.Decimals), info.Decimals)
	require.Equal(ledgerAddr, info.Address)
	require.Equal(oracleAddr, info.Oracle)
	require.Equal("guarded", info.Policy)
	require.Equal("5", info.Fee)
	require.Equal("mock", info.Engine)
	require.Zero(info.MintRequestCount)
}

func TestMintFlow(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	status, errResp := s.call(t, http.MethodPost, RequestMintPath, RequestMintRequest{
		Caller:  alice,
		Tag:     testTag,
		Payment: "4",
	}, nil)
	require.Equal(http.StatusPaymentRequired, status)
	require.Equal(confidential.CodeInsufficientFee, errResp.Code)

	var requested RequestMintResponse
	status, _ = s.call(t, http.MethodPost, RequestMintPath, RequestMintRequest{
		Caller:  alice,
		Tag:     testTag,
		Payment: "5",
	}, &requested)
	require.Equal(http.StatusOK, status)
	require.Equal(uint64(1), requested.RequestID)

	var pending PendingResponse
	s.call(t, http.MethodGet, PendingPath, nil, &pending)
	require.Len(pending.Requests, 1)
	require.Equal("pending", pending.Requests[0].State)
	require.Equal(alice, *pending.Requests[0].Requester)
	require.Equal("5", pending.Requests[0].Fee)

	external, proof := s.input(t, alice, 100)
	mint := MintRequest{
		Caller:    alice,
		RequestID: requested.RequestID,
		External:  external,
		Proof:     proof,
	}
	status, errResp = s.call(t, http.MethodPost, MintPath, mint, nil)
	require.Equal(http.StatusTooEarly, status)
	require.Equal(confidential.CodeNotReady, errResp.Code)

	require.NoError(s.oracle.Fulfill(requested.RequestID))

	wrongCaller := mint
	wrongCaller.Caller = bob
	status, errResp = s.call(t, http.MethodPost, MintPath, wrongCaller, nil)
	require.Equal(http.StatusForbidden, status)
	require.Equal(confidential.CodeRequestMismatch, errResp.Code)

	status, _ = s.call(t, http.MethodPost, MintPath, mint, nil)
	require.Equal(http.StatusOK, status)

	var reqStatus RequestStatusResponse
	s.call(t, http.MethodGet, RequestsPath+"1", nil, &reqStatus)
	require.Equal("none", reqStatus.State)
	require.Nil(reqStatus.Requester)

	var balance HandleResponse
	s.call(t, http.MethodGet, BalancePath+alice.Hex(), nil, &balance)
	require.Len(balance.Handle, 32)

	status, errResp = s.call(t, http.MethodPost, RevealPath, RevealRequest{Handle: balance.Handle, Principal: alice}, nil)
	require.Equal(http.StatusForbidden, status)
	require.Equal(confidential.CodeUnauthorized, errResp.Code)

	var granted HandleResponse
	s.call(t, http.MethodPost, GrantPath, GrantRequest{Caller: alice, Reader: alice}, &granted)
	require.Equal(balance.Handle, granted.Handle)

	var revealed RevealResponse
	status, _ = s.call(t, http.MethodPost, RevealPath, RevealRequest{Handle: balance.Handle, Principal: alice}, &revealed)
	require.Equal(http.StatusOK, status)
	require.Equal(uint64(100), revealed.Value)

	var readers ReadersResponse
	s.call(t, http.MethodGet, ReadersPath+hexutil.Encode(balance.Handle), nil, &readers)
	require.ElementsMatch([]common.Address{ledgerAddr, alice}, readers.Readers)

	var supply HandleResponse
	s.call(t, http.MethodGet, SupplyPath, nil, &supply)
	require.Len(supply.Handle, 32)
}

func TestTransferAndBurn(t *testing.T) {
	require := require.New(t)
	s := newTestServer(t)

	var requested RequestMintResponse
	s.call(t, http.MethodPost, RequestMintPath, RequestMintRequest{Caller: alice, Tag: testTag, Payment: "5"}, &requested)
	require.NoError(s.oracle.Fulfill(requested.RequestID))
	external, proof := s.input(t, alice, 50)
	status, _ := s.call(t, http.MethodPost, MintPath, MintRequest{
		Caller:    alice,
		RequestID: requested.RequestID,
		External:  external,
		Proof:     proof,
	}, nil)
	require.Equal(http.StatusOK, status)

	external, proof = s.input(t, alice, 20)
	var transferred TransferResponse
	status, _ = s.call(t, http.MethodPost, TransferPath, TransferRequest{
		Caller:   alice,
		To:       bob,
		External: external,
		Proof:    proof,
	}, &transferred)
	require.Equal(http.StatusOK, status)
	require.True(transferred.Success)

	// proof bound to alice cannot be replayed by bob
	status, errResp := s.call(t, http.MethodPost, BurnPath, BurnRequest{
		Caller:   bob,
		External: external,
		Proof:    proof,
	}, nil)
	require.Equal(http.StatusUnprocessableEntity, status)
	require.Equal(confidential.CodeInvalidProof, errResp.Code)

	external, proof = s.input(t, bob, 5)
	status, _ = s.call(t, http.MethodPost, BurnPath, BurnRequest{
		Caller:   bob,
		External: external,
		Proof:    proof,
	}, nil)
	require.Equal(http.StatusOK, status)

	status, errResp = s.call(t, http.MethodPost, TransferPath, TransferRequest{
		Caller:   alice,
		External: external,
		Proof:    proof,
	}, nil)
	require.Equal(http.StatusBadRequest, status)
	require.Equal(confidential.CodeZeroAddress, errResp.Code)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{
			name:   "malformed json",
			method: http.MethodPost,
			path:   TransferPath,
			body:   "{",
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown field",
			method: http.MethodPost,
			path:   GrantPath,
			body:   `{"caller":"` + alice.Hex() + `","owner":"` + bob.Hex() + `"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad payment",
			method: http.MethodPost,
			path:   RequestMintPath,
			body:   `{"caller":"` + alice.Hex() + `","payment":"five"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "bad account",
			method: http.MethodGet,
			path:   BalancePath + "alice",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad request id",
			method: http.MethodGet,
			path:   RequestsPath + "first",
			status: http.StatusBadRequest,
		},
		{
			name:   "short handle",
			method: http.MethodPost,
			path:   RevealPath,
			body:   `{"handle":"0x0102","principal":"` + alice.Hex() + `"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "wrong method",
			method: http.MethodGet,
			path:   TransferPath,
			status: http.StatusMethodNotAllowed,
		},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			req, err := http.NewRequest(test.method, s.URL+test.path, strings.NewReader(test.body))
			require.NoError(t, err)
			resp, err := s.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, test.status, resp.StatusCode)
		})
	}
}

func TestStatusOf(t *testing.T) {
	for code := confidential.CodeInsufficientFee; code <= confidential.CodeOutOfRange; code++ {
		sentinel, ok := confidential.ErrorFromCode(code)
		require.True(t, ok)
		status, got := statusOf(sentinel)
		require.Equal(t, code, got)
		require.NotZero(t, status)
	}
	status, _ := statusOf(confidential.ErrOutOfRange)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	status, code := statusOf(errBadRequest)
	require.Equal(t, http.StatusBadRequest, status)
	require.Zero(t, code)
}
