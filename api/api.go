// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves the ledger over HTTP with JSON bodies.
//
// Callers identify themselves in the request body. The API is meant to sit
// behind a gateway that authenticates the caller and rejects bodies naming
// any other account.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/entropy"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/metrics"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/ids"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// EngineInfo describes the arithmetic engine to clients.
type EngineInfo struct {
	Name      string
	PublicKey []byte
}

type service struct {
	logger  *zap.Logger
	metrics *metrics.LedgerMetrics
	ledger  *ledger.Ledger
	engine  EngineInfo
}

// NewHandler returns a mux serving every ledger operation.
func NewHandler(
	logger *zap.Logger,
	metrics *metrics.LedgerMetrics,
	l *ledger.Ledger,
	engine EngineInfo,
) *http.ServeMux {
	s := &service{
		logger:  logger,
		metrics: metrics,
		ledger:  l,
		engine:  engine,
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+InfoPath, s.handle("info", s.info))
	mux.Handle("POST "+RequestMintPath, s.handle("request_mint", s.requestMint))
	mux.Handle("POST "+MintPath, s.handle("mint", s.mint))
	mux.Handle("POST "+TransferPath, s.handle("transfer", s.transfer))
	mux.Handle("POST "+BurnPath, s.handle("burn", s.burn))
	mux.Handle("GET "+BalancePath+"{account}", s.handle("balance", s.balance))
	mux.Handle("GET "+SupplyPath, s.handle("supply", s.supply))
	mux.Handle("GET "+RequestsPath+"{id}", s.handle("request_status", s.requestStatus))
	mux.Handle("GET "+PendingPath, s.handle("pending_requests", s.pending))
	mux.Handle("POST "+PrunePath, s.handle("prune", s.prune))
	mux.Handle("POST "+GrantPath, s.handle("grant", s.grant))
	mux.Handle("POST "+RevealPath, s.handle("reveal", s.reveal))
	mux.Handle("GET "+ReadersPath+"{handle}", s.handle("readers", s.readers))
	mux.HandleFunc("GET "+EventsPath, s.events)
	return mux
}

// Serve runs handler on port until ctx is done.
func Serve(ctx context.Context, logger *zap.Logger, port uint16, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// cancels event streams on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting API server", zap.Uint16("port", port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

func (s *service) handle(op string, fn func(*http.Request) (any, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp, err := fn(r)
		s.metrics.Observe(op, start, err)
		if err != nil {
			s.writeError(w, op, err)
			return
		}
		writeJSON(s.logger, w, http.StatusOK, resp)
	})
}

func (s *service) info(r *http.Request) (any, error) {
	fee, err := s.ledger.Fee(r.Context())
	if err != nil {
		return nil, err
	}
	epoch, err := s.ledger.Epoch()
	if err != nil {
		return nil, err
	}
	count, err := s.ledger.MintRequestCount()
	if err != nil {
		return nil, err
	}
	return InfoResponse{
		Name:             s.ledger.Name(),
		Symbol:           s.ledger.Symbol(),
		Decimals:         s.ledger.Decimals(),
		Address:          s.ledger.Address(),
		Oracle:           s.ledger.OracleAddress(),
		Policy:           s.ledger.Policy().String(),
		Fee:              fee.Dec(),
		Epoch:            epoch,
		MintRequestCount: count,
		Engine:           s.engine.Name,
		EnginePublicKey:  s.engine.PublicKey,
	}, nil
}

func (s *service) requestMint(r *http.Request) (any, error) {
	var req RequestMintRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	payment := new(uint256.Int)
	if req.Payment != "" {
		var err error
		if payment, err = uint256.FromDecimal(req.Payment); err != nil {
			return nil, fmt.Errorf("%w: payment %q: %v", errBadRequest, req.Payment, err)
		}
	}
	id, err := s.ledger.RequestMintWithEntropy(r.Context(), req.Caller, req.Tag, payment)
	if err != nil {
		return nil, err
	}
	return RequestMintResponse{RequestID: id}, nil
}

func (s *service) mint(r *http.Request) (any, error) {
	var req MintRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.ledger.MintWithEntropy(r.Context(), req.Caller, req.RequestID, req.External, req.Proof); err != nil {
		return nil, err
	}
	return okResponse{OK: true}, nil
}

func (s *service) transfer(r *http.Request) (any, error) {
	var req TransferRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	ok, err := s.ledger.Transfer(r.Context(), req.Caller, req.To, req.External, req.Proof)
	if err != nil {
		return nil, err
	}
	return TransferResponse{Success: ok}, nil
}

func (s *service) burn(r *http.Request) (any, error) {
	var req BurnRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := s.ledger.Burn(r.Context(), req.Caller, req.External, req.Proof); err != nil {
		return nil, err
	}
	return okResponse{OK: true}, nil
}

func (s *service) balance(r *http.Request) (any, error) {
	account, err := parseAddress(r.PathValue("account"))
	if err != nil {
		return nil, err
	}
	h, err := s.ledger.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	return handleResponse(h), nil
}

func (s *service) supply(*http.Request) (any, error) {
	h, err := s.ledger.TotalSupply()
	if err != nil {
		return nil, err
	}
	return handleResponse(h), nil
}

func (s *service) requestStatus(r *http.Request) (any, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: request id %q", errBadRequest, r.PathValue("id"))
	}
	state, req, err := s.ledger.RequestStatus(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return statusResponse(id, state, req), nil
}

func (s *service) pending(r *http.Request) (any, error) {
	reqs, err := s.ledger.PendingRequests()
	if err != nil {
		return nil, err
	}
	resp := PendingResponse{Requests: make([]RequestStatusResponse, 0, len(reqs))}
	for _, req := range reqs {
		state, current, err := s.ledger.RequestStatus(r.Context(), req.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			// claimed since the listing
			continue
		}
		resp.Requests = append(resp.Requests, statusResponse(req.ID, state, current))
	}
	return resp, nil
}

func (s *service) prune(r *http.Request) (any, error) {
	n, err := s.ledger.PruneExpiredRequests(r.Context())
	if err != nil {
		return nil, err
	}
	return PruneResponse{Pruned: n}, nil
}

func (s *service) grant(r *http.Request) (any, error) {
	var req GrantRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	h, err := s.ledger.GrantBalanceAccess(r.Context(), req.Caller, req.Reader)
	if err != nil {
		return nil, err
	}
	return handleResponse(h), nil
}

func (s *service) reveal(r *http.Request) (any, error) {
	var req RevealRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	h, err := toHandle(req.Handle)
	if err != nil {
		return nil, err
	}
	v, err := s.ledger.Reveal(h, req.Principal)
	if err != nil {
		return nil, err
	}
	return RevealResponse{Value: v}, nil
}

func (s *service) readers(r *http.Request) (any, error) {
	raw, err := hexutil.Decode(r.PathValue("handle"))
	if err != nil {
		return nil, fmt.Errorf("%w: handle: %v", errBadRequest, err)
	}
	h, err := toHandle(raw)
	if err != nil {
		return nil, err
	}
	readers, err := s.ledger.Readers(h)
	if err != nil {
		return nil, err
	}
	if readers == nil {
		readers = []common.Address{}
	}
	return ReadersResponse{Readers: readers}, nil
}

func (s *service) writeError(w http.ResponseWriter, op string, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
	} else {
		s.logger.Debug("Request rejected", zap.String("operation", op), zap.Error(err))
	}
	writeJSONError(s.logger, w, status, code, err.Error())
}

// statusOf maps an error to an HTTP status and ledger error code.
func statusOf(err error) (int, int32) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, 0
	}
	var lerr *confidential.Error
	if !errors.As(err, &lerr) {
		return http.StatusInternalServerError, 0
	}
	switch lerr.Code {
	case confidential.CodeInsufficientFee:
		return http.StatusPaymentRequired, lerr.Code
	case confidential.CodeNotReady:
		return http.StatusTooEarly, lerr.Code
	case confidential.CodeRequestMismatch, confidential.CodeUnauthorized:
		return http.StatusForbidden, lerr.Code
	case confidential.CodeInvalidProof, confidential.CodeOutOfRange:
		return http.StatusUnprocessableEntity, lerr.Code
	case confidential.CodeZeroAddress:
		return http.StatusBadRequest, lerr.Code
	case confidential.CodeDuplicateTag:
		return http.StatusConflict, lerr.Code
	case confidential.CodeRequestExpired:
		return http.StatusGone, lerr.Code
	case confidential.CodeUnknownHandle:
		return http.StatusNotFound, lerr.Code
	default:
		return http.StatusInternalServerError, lerr.Code
	}
}

func writeJSONError(
	logger *zap.Logger,
	w http.ResponseWriter,
	httpStatusCode int,
	code int32,
	errorMsg string,
) {
	writeJSON(logger, w, httpStatusCode, ErrorResponse{
		Error: errorMsg,
		Code:  code,
	})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, httpStatusCode int, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		msg := "Error marshalling JSON response"
		logger.Error(msg, zap.Error(err))
		resp = []byte(msg)
		httpStatusCode = http.StatusInternalServerError
	}

	w.Header().Set(contentTypeLabel, ContentTypeJSON)
	w.WriteHeader(httpStatusCode)

	if _, err = w.Write(resp); err != nil {
		logger.Error("Error writing response", zap.Error(err))
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: could not decode request body: %v", errBadRequest, err)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: address %q", errBadRequest, s)
	}
	return common.HexToAddress(s), nil
}

func toHandle(raw []byte) (ids.ID, error) {
	if len(raw) != ids.IDLen {
		return ids.Empty, fmt.Errorf("%w: handle must be %d bytes", errBadRequest, ids.IDLen)
	}
	var h ids.ID
	copy(h[:], raw)
	return h, nil
}

func handleResponse(h ids.ID) HandleResponse {
	if h == ids.Empty {
		return HandleResponse{}
	}
	return HandleResponse{Handle: h[:]}
}

func statusResponse(id uint64, state entropy.RequestState, req *entropy.Request) RequestStatusResponse {
	resp := RequestStatusResponse{
		ID:    id,
		State: state.String(),
	}
	if req == nil {
		return resp
	}
	created := req.Created().UTC()
	resp.Requester = &req.Requester
	resp.Tag = &req.Tag
	resp.CreatedAt = &created
	if req.Fee != nil {
		resp.Fee = req.Fee.Dec()
	}
	return resp
}
