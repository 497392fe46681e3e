// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package entropy

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"go.uber.org/zap"
)

var (
	oracleRequestPrefix = []byte("or") // oracleRequestPrefix + id -> oracleRequest
	oracleTagPrefix     = []byte("ot") // oracleTagPrefix + tag -> nil
	oracleNextIDKey     = []byte("on")
	oracleCollectedKey  = []byte("of")

	_ Oracle = (*LocalOracle)(nil)
	_ Stager = (*LocalOracle)(nil)

	errUnknownRequest = errors.New("unknown entropy request")
)

// LocalConfig configures a LocalOracle.
type LocalConfig struct {
	Address common.Address
	Fee     *uint256.Int
	// EntropyBound limits entropy to [0, EntropyBound). Zero draws from the
	// full uint64 range.
	EntropyBound uint64
	// UniqueTags rejects a tag that was used before with ErrDuplicateTag.
	UniqueTags bool
	Random     io.Reader
	// OnFulfilled, if set, is called by Run after each batch it fulfils.
	OnFulfilled func(count int)
}

type oracleRequest struct {
	ID        uint64
	Consumer  common.Address
	Tag       common.Hash
	Fulfilled bool
	Entropy   ids.ID
}

// LocalOracle is an in-process Oracle. Requests are persisted in kv and
// fulfilled by Fulfill, FulfillPending or the Run loop. A ledger using it
// must share kv, since the workflow stages requests on the ledger's view.
type LocalOracle struct {
	lock   sync.Mutex
	cfg    LocalConfig
	kv     db.KeyValueStore
	engine fhe.Engine
	log    *zap.Logger
}

func NewLocalOracle(cfg LocalConfig, kv db.KeyValueStore, engine fhe.Engine, logger *zap.Logger) (*LocalOracle, error) {
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero oracle address", confidential.ErrInvalidOracle)
	}
	if cfg.Fee == nil {
		cfg.Fee = new(uint256.Int)
	}
	cfg.Fee = new(uint256.Int).Set(cfg.Fee)
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalOracle{
		cfg:    cfg,
		kv:     kv,
		engine: engine,
		log:    logger,
	}, nil
}

func (o *LocalOracle) Address() common.Address {
	return o.cfg.Address
}

func (o *LocalOracle) GetFee(context.Context) (*uint256.Int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	return new(uint256.Int).Set(o.cfg.Fee), nil
}

// SetFee changes the fee charged for new requests.
func (o *LocalOracle) SetFee(fee *uint256.Int) {
	o.lock.Lock()
	defer o.lock.Unlock()

	o.cfg.Fee = new(uint256.Int).Set(fee)
}

func (o *LocalOracle) RequestEntropy(ctx context.Context, tag common.Hash, payment *uint256.Int, consumer common.Address) (uint64, error) {
	ov := db.NewOverlay(o.kv)
	id, err := o.StageRequest(ctx, ov, tag, payment, consumer)
	if err != nil {
		ov.Discard()
		return 0, err
	}
	return id, ov.Commit()
}

// StageRequest registers a request by writing it to kv, which must be a view
// over the oracle's own store. Nothing is visible to the oracle until kv is
// committed.
func (o *LocalOracle) StageRequest(_ context.Context, kv db.ReadWriter, tag common.Hash, payment *uint256.Int, consumer common.Address) (uint64, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	if payment == nil {
		payment = new(uint256.Int)
	}
	if payment.Lt(o.cfg.Fee) {
		return 0, fmt.Errorf("%w: oracle fee is %s", confidential.ErrInsufficientFee, o.cfg.Fee.Dec())
	}
	if o.cfg.UniqueTags {
		used, err := kv.Has(oracleTagKey(tag))
		if err != nil {
			return 0, err
		}
		if used {
			return 0, fmt.Errorf("%w: %s", confidential.ErrDuplicateTag, tag)
		}
	}

	id, err := readUint64(kv, oracleNextIDKey)
	if err != nil {
		return 0, err
	}
	id++
	collected, err := readCollected(kv)
	if err != nil {
		return 0, err
	}
	collected.Add(collected, payment)

	raw, err := confidential.Codec.Marshal(confidential.CodecVersion, &oracleRequest{
		ID:       id,
		Consumer: consumer,
		Tag:      tag,
	})
	if err != nil {
		return 0, err
	}
	if err := kv.Put(oracleRequestKey(id), raw); err != nil {
		return 0, err
	}
	if err := kv.Put(oracleNextIDKey, binary.BigEndian.AppendUint64(nil, id)); err != nil {
		return 0, err
	}
	if err := kv.Put(oracleCollectedKey, collected.Bytes()); err != nil {
		return 0, err
	}
	if o.cfg.UniqueTags {
		if err := kv.Put(oracleTagKey(tag), nil); err != nil {
			return 0, err
		}
	}

	o.log.Debug("Entropy requested",
		zap.Uint64("requestID", id),
		zap.Stringer("consumer", consumer),
		zap.Stringer("tag", tag),
	)
	return id, nil
}

func (o *LocalOracle) IsRequestFulfilled(_ context.Context, id uint64) (bool, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	req, err := o.load(id)
	if errors.Is(err, errUnknownRequest) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return req.Fulfilled, nil
}

func (o *LocalOracle) GetEncryptedEntropy(_ context.Context, id uint64) (ids.ID, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	req, err := o.load(id)
	if err != nil {
		return ids.Empty, err
	}
	if !req.Fulfilled {
		return ids.Empty, fmt.Errorf("%w: request %d", confidential.ErrNotReady, id)
	}
	return req.Entropy, nil
}

// Fulfill draws entropy for id, encrypts it and grants it to the consumer.
// Fulfilling a request twice is a no-op.
func (o *LocalOracle) Fulfill(id uint64) error {
	o.lock.Lock()
	defer o.lock.Unlock()

	req, err := o.load(id)
	if err != nil {
		return err
	}
	return o.fulfill(req)
}

// FulfillPending fulfils every outstanding request and returns how many it
// fulfilled.
func (o *LocalOracle) FulfillPending() (int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	it := o.kv.NewIterator(oracleRequestPrefix)
	var pending []*oracleRequest
	for it.Next() {
		req := new(oracleRequest)
		if _, err := confidential.Codec.Unmarshal(it.Value(), req); err != nil {
			it.Release()
			return 0, fmt.Errorf("decode oracle request %x: %w", it.Key(), err)
		}
		if !req.Fulfilled {
			pending = append(pending, req)
		}
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return 0, err
	}

	for i, req := range pending {
		if err := o.fulfill(req); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Collected returns the sum of all payments received.
func (o *LocalOracle) Collected() (*uint256.Int, error) {
	o.lock.Lock()
	defer o.lock.Unlock()

	return readCollected(o.kv)
}

// Run fulfils pending requests every interval until ctx is done.
func (o *LocalOracle) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := o.FulfillPending()
			if err != nil {
				o.log.Error("Failed to fulfill entropy requests", zap.Error(err))
				continue
			}
			if n == 0 {
				continue
			}
			o.log.Info("Fulfilled entropy requests", zap.Int("count", n))
			if o.cfg.OnFulfilled != nil {
				o.cfg.OnFulfilled(n)
			}
		}
	}
}

// fulfill must be called with the lock held.
func (o *LocalOracle) fulfill(req *oracleRequest) error {
	if req.Fulfilled {
		return nil
	}
	value, err := o.draw()
	if err != nil {
		return fmt.Errorf("draw entropy for request %d: %w", req.ID, err)
	}

	var h ids.ID
	if enc, ok := o.engine.(fhe.Encrypter); ok {
		h, err = enc.Encrypt(fhe.Uint64, value)
	} else {
		h, err = o.engine.Constant(fhe.Uint64, value)
	}
	if err != nil {
		return fmt.Errorf("encrypt entropy for request %d: %w", req.ID, err)
	}
	if err := o.engine.GrantUse(h, req.Consumer); err != nil {
		return err
	}

	req.Fulfilled = true
	req.Entropy = h
	raw, err := confidential.Codec.Marshal(confidential.CodecVersion, req)
	if err != nil {
		return err
	}
	if err := o.kv.Put(oracleRequestKey(req.ID), raw); err != nil {
		return err
	}
	o.log.Debug("Entropy request fulfilled",
		zap.Uint64("requestID", req.ID),
		zap.Stringer("handle", h),
	)
	return nil
}

func (o *LocalOracle) draw() (uint64, error) {
	if o.cfg.EntropyBound == 0 {
		var buf [8]byte
		if _, err := io.ReadFull(o.cfg.Random, buf[:]); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(buf[:]), nil
	}
	v, err := rand.Int(o.cfg.Random, new(big.Int).SetUint64(o.cfg.EntropyBound))
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

func (o *LocalOracle) load(id uint64) (*oracleRequest, error) {
	raw, err := o.kv.Get(oracleRequestKey(id))
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", errUnknownRequest, id)
	}
	if err != nil {
		return nil, err
	}
	req := new(oracleRequest)
	if _, err := confidential.Codec.Unmarshal(raw, req); err != nil {
		return nil, fmt.Errorf("decode oracle request %d: %w", id, err)
	}
	return req, nil
}

func readCollected(kv db.KeyValueReader) (*uint256.Int, error) {
	raw, err := kv.Get(oracleCollectedKey)
	if errors.Is(err, db.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(raw), nil
}

func readUint64(kv db.KeyValueReader, key []byte) (uint64, error) {
	raw, err := kv.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt counter %q: %d bytes", key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func oracleRequestKey(id uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, oracleRequestPrefix...), id)
}

func oracleTagKey(tag common.Hash) []byte {
	return append(append([]byte{}, oracleTagPrefix...), tag[:]...)
}
