// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
)

const (
	InfoPath         = "/v1/info"
	RequestMintPath  = "/v1/request-mint"
	MintPath         = "/v1/mint"
	TransferPath     = "/v1/transfer"
	BurnPath         = "/v1/burn"
	BalancePath      = "/v1/balance/"
	SupplyPath       = "/v1/supply"
	RequestsPath     = "/v1/requests/"
	PendingPath      = "/v1/requests"
	PrunePath        = "/v1/prune"
	GrantPath        = "/v1/grant"
	RevealPath       = "/v1/reveal"
	ReadersPath      = "/v1/readers/"
	EventsPath       = "/v1/events"
	ContentTypeJSON  = "application/json"
	contentTypeLabel = "Content-Type"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// Code is the ledger error code, zero for transport and decoding errors.
	Code int32 `json:"code,omitempty"`
}

type InfoResponse struct {
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Address  common.Address `json:"address"`
	Oracle   common.Address `json:"oracle"`
	Policy   string         `json:"policy"`
	// Fee is the current oracle fee in decimal.
	Fee              string `json:"fee"`
	Epoch            uint64 `json:"epoch"`
	MintRequestCount uint64 `json:"mint-request-count"`
	// Engine names the arithmetic backend. EnginePublicKey is the key inputs
	// are encrypted to, empty for engines that take plaintext encodings.
	Engine          string        `json:"engine"`
	EnginePublicKey hexutil.Bytes `json:"engine-public-key,omitempty"`
}

type RequestMintRequest struct {
	Caller common.Address `json:"caller"`
	Tag    common.Hash    `json:"tag"`
	// Payment in decimal. Empty pays nothing.
	Payment string `json:"payment,omitempty"`
}

type RequestMintResponse struct {
	RequestID uint64 `json:"request-id"`
}

type MintRequest struct {
	Caller    common.Address `json:"caller"`
	RequestID uint64         `json:"request-id"`
	External  hexutil.Bytes  `json:"external"`
	Proof     hexutil.Bytes  `json:"proof"`
}

type TransferRequest struct {
	Caller   common.Address `json:"caller"`
	To       common.Address `json:"to"`
	External hexutil.Bytes  `json:"external"`
	Proof    hexutil.Bytes  `json:"proof"`
}

type TransferResponse struct {
	Success bool `json:"success"`
}

type BurnRequest struct {
	Caller   common.Address `json:"caller"`
	External hexutil.Bytes  `json:"external"`
	Proof    hexutil.Bytes  `json:"proof"`
}

type GrantRequest struct {
	Caller common.Address `json:"caller"`
	Reader common.Address `json:"reader"`
}

type RevealRequest struct {
	Handle    hexutil.Bytes  `json:"handle"`
	Principal common.Address `json:"principal"`
}

type RevealResponse struct {
	Value uint64 `json:"value"`
}

// HandleResponse carries an encrypted handle. Handle is empty when the
// account or ledger never held one.
type HandleResponse struct {
	Handle hexutil.Bytes `json:"handle,omitempty"`
}

type RequestStatusResponse struct {
	ID        uint64          `json:"id"`
	State     string          `json:"state"`
	Requester *common.Address `json:"requester,omitempty"`
	Tag       *common.Hash    `json:"tag,omitempty"`
	Fee       string          `json:"fee,omitempty"`
	CreatedAt *time.Time      `json:"created-at,omitempty"`
}

type PendingResponse struct {
	Requests []RequestStatusResponse `json:"requests"`
}

type PruneResponse struct {
	Pruned int `json:"pruned"`
}

type ReadersResponse struct {
	Readers []common.Address `json:"readers"`
}

const (
	EventSubscribed    = "subscribed"
	EventTransfer      = "transfer"
	EventMintRequested = "mint-requested"
	EventMinted        = "minted"
	EventBurned        = "burned"
)

// EventMessage is one line of the newline-delimited event stream. Fields
// that do not apply to Type are omitted.
type EventMessage struct {
	Type      string          `json:"type"`
	From      *common.Address `json:"from,omitempty"`
	To        *common.Address `json:"to,omitempty"`
	Amount    hexutil.Bytes   `json:"amount,omitempty"`
	RequestID uint64          `json:"request-id,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
