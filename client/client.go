// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package client is a Go client for the ledger HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/api"
	"github.com/luxfi/confidential/utils"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/ids"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

// StatusError is returned for failed calls that carry no ledger error code.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger api returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New returns a client for the API at baseURL. A nil httpClient uses one
// with DefaultTimeout.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

func (c *Client) Info(ctx context.Context) (*api.InfoResponse, error) {
	var resp api.InfoResponse
	if err := c.do(ctx, http.MethodGet, api.InfoPath, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestMint registers a mint request paying payment to the oracle.
func (c *Client) RequestMint(ctx context.Context, caller common.Address, tag common.Hash, payment *uint256.Int) (uint64, error) {
	req := api.RequestMintRequest{
		Caller: caller,
		Tag:    tag,
	}
	if payment != nil {
		req.Payment = payment.Dec()
	}
	var resp api.RequestMintResponse
	if err := c.do(ctx, http.MethodPost, api.RequestMintPath, req, &resp); err != nil {
		return 0, err
	}
	return resp.RequestID, nil
}

func (c *Client) Mint(ctx context.Context, caller common.Address, requestID uint64, external, proof []byte) error {
	return c.do(ctx, http.MethodPost, api.MintPath, api.MintRequest{
		Caller:    caller,
		RequestID: requestID,
		External:  external,
		Proof:     proof,
	}, nil)
}

// MintWithEntropyWait retries Mint while the oracle has not fulfilled the
// request, for at most timeout.
func (c *Client) MintWithEntropyWait(
	ctx context.Context,
	caller common.Address,
	requestID uint64,
	external, proof []byte,
	timeout time.Duration,
) error {
	return utils.WithRetriesTimeout(ctx, c.logger, func() error {
		err := c.Mint(ctx, caller, requestID, external, proof)
		if err == nil || errors.Is(err, confidential.ErrNotReady) {
			return err
		}
		return backoff.Permanent(err)
	}, timeout)
}

func (c *Client) Transfer(ctx context.Context, caller, to common.Address, external, proof []byte) (bool, error) {
	var resp api.TransferResponse
	err := c.do(ctx, http.MethodPost, api.TransferPath, api.TransferRequest{
		Caller:   caller,
		To:       to,
		External: external,
		Proof:    proof,
	}, &resp)
	return resp.Success, err
}

func (c *Client) Burn(ctx context.Context, caller common.Address, external, proof []byte) error {
	return c.do(ctx, http.MethodPost, api.BurnPath, api.BurnRequest{
		Caller:   caller,
		External: external,
		Proof:    proof,
	}, nil)
}

// BalanceOf returns the balance handle of account, ids.Empty if it never
// held one.
func (c *Client) BalanceOf(ctx context.Context, account common.Address) (ids.ID, error) {
	var resp api.HandleResponse
	if err := c.do(ctx, http.MethodGet, api.BalancePath+account.Hex(), nil, &resp); err != nil {
		return ids.Empty, err
	}
	return toHandle(resp.Handle)
}

func (c *Client) TotalSupply(ctx context.Context) (ids.ID, error) {
	var resp api.HandleResponse
	if err := c.do(ctx, http.MethodGet, api.SupplyPath, nil, &resp); err != nil {
		return ids.Empty, err
	}
	return toHandle(resp.Handle)
}

func (c *Client) RequestStatus(ctx context.Context, id uint64) (*api.RequestStatusResponse, error) {
	var resp api.RequestStatusResponse
	if err := c.do(ctx, http.MethodGet, api.RequestsPath+strconv.FormatUint(id, 10), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PendingRequests(ctx context.Context) ([]api.RequestStatusResponse, error) {
	var resp api.PendingResponse
	if err := c.do(ctx, http.MethodGet, api.PendingPath, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

func (c *Client) PruneExpiredRequests(ctx context.Context) (int, error) {
	var resp api.PruneResponse
	if err := c.do(ctx, http.MethodPost, api.PrunePath, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Pruned, nil
}

func (c *Client) GrantBalanceAccess(ctx context.Context, caller, reader common.Address) (ids.ID, error) {
	var resp api.HandleResponse
	err := c.do(ctx, http.MethodPost, api.GrantPath, api.GrantRequest{
		Caller: caller,
		Reader: reader,
	}, &resp)
	if err != nil {
		return ids.Empty, err
	}
	return toHandle(resp.Handle)
}

func (c *Client) Reveal(ctx context.Context, h ids.ID, principal common.Address) (uint64, error) {
	var resp api.RevealResponse
	err := c.do(ctx, http.MethodPost, api.RevealPath, api.RevealRequest{
		Handle:    h[:],
		Principal: principal,
	}, &resp)
	return resp.Value, err
}

func (c *Client) Readers(ctx context.Context, h ids.ID) ([]common.Address, error) {
	var resp api.ReadersResponse
	if err := c.do(ctx, http.MethodGet, api.ReadersPath+hexutil.Encode(h[:]), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Readers, nil
}

// SubscribeEvents calls fn for every ledger event until ctx is done, the
// stream ends or fn returns an error. A non-nil ready is closed once the
// server has subscribed.
func (c *Client) SubscribeEvents(ctx context.Context, ready chan<- struct{}, fn func(api.EventMessage) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+api.EventsPath, nil)
	if err != nil {
		return err
	}
	// the stream outlives any whole-request timeout
	streamer := &http.Client{Transport: c.http.Transport}
	resp, err := streamer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var msg api.EventMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if msg.Type == api.EventSubscribed {
			if ready != nil {
				close(ready)
				ready = nil
			}
			continue
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", api.ContentTypeJSON)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// decodeError rebuilds the ledger sentinel from the response code so callers
// can match it with errors.Is.
func decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if sentinel, ok := confidential.ErrorFromCode(body.Code); ok {
		return fmt.Errorf("%w: %s", sentinel, body.Error)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Error}
}

func toHandle(raw []byte) (ids.ID, error) {
	if len(raw) == 0 {
		return ids.Empty, nil
	}
	if len(raw) != ids.IDLen {
		return ids.Empty, fmt.Errorf("handle must be %d bytes, got %d", ids.IDLen, len(raw))
	}
	var h ids.ID
	copy(h[:], raw)
	return h, nil
}
