// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package entropy coordinates the two-phase issuance of encrypted random
// values: a requester pays the oracle fee and receives a request id, the
// oracle fulfils the request out of band, and the original requester claims
// the entropy handle exactly once.
package entropy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/cache"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

var (
	requestPrefix = []byte("r")       // requestPrefix + id -> Request
	countKey      = []byte("m/count") // -> mintRequestCount

	errDuplicateRequest = errors.New("oracle reissued a request id")
)

// RequestState is the observable state of a request id.
type RequestState uint8

const (
	// StateNone covers ids that were never issued or were already claimed.
	StateNone RequestState = iota
	StatePending
	StateFulfilled
	StateExpired
)

func (s RequestState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StatePending:
		return "pending"
	case StateFulfilled:
		return "fulfilled"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Request is the stored record of an unclaimed request.
type Request struct {
	ID        uint64
	Requester common.Address
	Tag       common.Hash
	Fee       *uint256.Int
	CreatedAt uint64 // unix nanoseconds
}

// Created returns the time the request was registered.
func (r *Request) Created() time.Time {
	return time.Unix(0, int64(r.CreatedAt))
}

// FeeCache serves the oracle fee for a fixed ttl.
type FeeCache struct {
	oracle Oracle
	cache  *cache.TTLCache[common.Address, *uint256.Int]
}

// NewFeeCache caches the fee of oracle for ttl. A zero ttl asks the oracle
// every time.
func NewFeeCache(oracle Oracle, ttl time.Duration, now func() time.Time) *FeeCache {
	if now == nil {
		now = time.Now
	}
	return &FeeCache{
		oracle: oracle,
		cache:  cache.NewTTLCacheWithClock[common.Address, *uint256.Int](ttl, now),
	}
}

// Fee returns the current oracle fee.
func (f *FeeCache) Fee(ctx context.Context) (*uint256.Int, error) {
	fee, err := f.cache.Get(f.oracle.Address(), func(common.Address) (*uint256.Int, error) {
		return f.oracle.GetFee(ctx)
	}, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get oracle fee: %w", err)
	}
	return new(uint256.Int).Set(fee), nil
}

// Invalidate drops the cached fee.
func (f *FeeCache) Invalidate() {
	f.cache.Invalidate(f.oracle.Address())
}

// Stager is implemented by oracles that can write a request into the
// caller's state, so the request and its payment are kept or dropped with
// the rest of the caller's changes.
type Stager interface {
	StageRequest(ctx context.Context, kv db.ReadWriter, tag common.Hash, payment *uint256.Int, consumer common.Address) (uint64, error)
}

// Config parameterises a Workflow.
type Config struct {
	// Consumer is the principal the oracle grants entropy handles to.
	Consumer common.Address
	// RequestTTL bounds how long a request may stay unclaimed. Zero keeps
	// requests forever.
	RequestTTL time.Duration
	Clock      func() time.Time
}

// Workflow is the EntropyWorkflow over one view of the state. The ledger
// builds one per operation over a db.Overlay.
type Workflow struct {
	kv     db.ReadWriter
	oracle Oracle
	fees   *FeeCache
	cfg    Config
}

func New(kv db.ReadWriter, oracle Oracle, fees *FeeCache, cfg Config) *Workflow {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Workflow{
		kv:     kv,
		oracle: oracle,
		fees:   fees,
		cfg:    cfg,
	}
}

// Request pays the oracle and records a pending request for requester.
func (w *Workflow) Request(ctx context.Context, tag common.Hash, requester common.Address, feePaid *uint256.Int) (uint64, error) {
	fee, err := w.fees.Fee(ctx)
	if err != nil {
		return 0, err
	}
	if feePaid == nil {
		feePaid = new(uint256.Int)
	}
	if feePaid.Lt(fee) {
		return 0, fmt.Errorf("%w: paid %s, fee is %s", confidential.ErrInsufficientFee, feePaid.Dec(), fee.Dec())
	}

	var id uint64
	if stager, ok := w.oracle.(Stager); ok {
		id, err = stager.StageRequest(ctx, w.kv, tag, feePaid, w.cfg.Consumer)
	} else {
		id, err = w.oracle.RequestEntropy(ctx, tag, feePaid, w.cfg.Consumer)
	}
	if err != nil {
		if errors.Is(err, confidential.ErrInsufficientFee) {
			// the oracle raised its fee since we cached it
			w.fees.Invalidate()
		}
		return 0, err
	}

	key := requestKey(id)
	exists, err := w.kv.Has(key)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: %d", errDuplicateRequest, id)
	}
	req := &Request{
		ID:        id,
		Requester: requester,
		Tag:       tag,
		Fee:       new(uint256.Int).Set(feePaid),
		CreatedAt: uint64(w.cfg.Clock().UnixNano()),
	}
	raw, err := confidential.Codec.Marshal(confidential.CodecVersion, req)
	if err != nil {
		return 0, fmt.Errorf("encode request %d: %w", id, err)
	}
	if err := w.kv.Put(key, raw); err != nil {
		return 0, err
	}

	count, err := w.Count()
	if err != nil {
		return 0, err
	}
	return id, w.kv.Put(countKey, binary.BigEndian.AppendUint64(nil, count+1))
}

// Claim consumes a fulfilled request and returns its entropy handle.
func (w *Workflow) Claim(ctx context.Context, id uint64, caller common.Address) (ids.ID, error) {
	req, err := w.Get(id)
	if err != nil {
		return ids.Empty, err
	}
	if req == nil {
		return ids.Empty, fmt.Errorf("%w: request %d", confidential.ErrNotReady, id)
	}
	if req.Requester != caller {
		return ids.Empty, fmt.Errorf("%w: request %d belongs to %s", confidential.ErrRequestMismatch, id, req.Requester)
	}
	if w.expired(req) {
		return ids.Empty, fmt.Errorf("%w: request %d", confidential.ErrRequestExpired, id)
	}
	fulfilled, err := w.oracle.IsRequestFulfilled(ctx, id)
	if err != nil {
		return ids.Empty, err
	}
	if !fulfilled {
		return ids.Empty, fmt.Errorf("%w: request %d", confidential.ErrNotReady, id)
	}
	entropy, err := w.oracle.GetEncryptedEntropy(ctx, id)
	if err != nil {
		return ids.Empty, err
	}
	return entropy, w.kv.Delete(requestKey(id))
}

// Status reports the state of id and its record, if any.
func (w *Workflow) Status(ctx context.Context, id uint64) (RequestState, *Request, error) {
	req, err := w.Get(id)
	if err != nil || req == nil {
		return StateNone, nil, err
	}
	if w.expired(req) {
		return StateExpired, req, nil
	}
	fulfilled, err := w.oracle.IsRequestFulfilled(ctx, id)
	if err != nil {
		return StateNone, nil, err
	}
	if fulfilled {
		return StateFulfilled, req, nil
	}
	return StatePending, req, nil
}

// Get returns the stored record of id, or nil.
func (w *Workflow) Get(id uint64) (*Request, error) {
	raw, err := w.kv.Get(requestKey(id))
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	req := new(Request)
	if _, err := confidential.Codec.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("decode request %d: %w", id, err)
	}
	return req, nil
}

// Requests returns every unclaimed request in id order.
func (w *Workflow) Requests() ([]*Request, error) {
	it := w.kv.NewIterator(requestPrefix)
	defer it.Release()

	var reqs []*Request
	for it.Next() {
		req := new(Request)
		if _, err := confidential.Codec.Unmarshal(it.Value(), req); err != nil {
			return nil, fmt.Errorf("decode request %x: %w", it.Key(), err)
		}
		reqs = append(reqs, req)
	}
	return reqs, it.Error()
}

// PruneExpired deletes unclaimed requests older than the ttl. The request
// count is not decremented.
func (w *Workflow) PruneExpired() (int, error) {
	if w.cfg.RequestTTL <= 0 {
		return 0, nil
	}
	reqs, err := w.Requests()
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, req := range reqs {
		if !w.expired(req) {
			continue
		}
		if err := w.kv.Delete(requestKey(req.ID)); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// Count returns the number of requests ever registered.
func (w *Workflow) Count() (uint64, error) {
	raw, err := w.kv.Get(countKey)
	if errors.Is(err, db.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt request count: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (w *Workflow) expired(req *Request) bool {
	if w.cfg.RequestTTL <= 0 {
		return false
	}
	return !w.cfg.Clock().Before(req.Created().Add(w.cfg.RequestTTL))
}

func requestKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, requestPrefix...), id)
}
