// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package acl gates encrypted computation on per-handle access lists.
//
// Every handle an operation produces is recorded with the computing
// principal as owner and only reader, and granted to that principal in the
// engine. Nobody else may use it until Grant is called. Every operand is
// checked with RequireAuthorized before it reaches the engine, so a missing
// grant fails at use time with ErrUnauthorized.
package acl

import (
	"errors"
	"fmt"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/store"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Ledger is the AccessControlLedger.
type Ledger struct {
	handles *store.Store
	engine  fhe.Engine
	epoch   uint64
}

// New returns an access-control ledger. epoch is stamped on every handle it
// records.
func New(handles *store.Store, engine fhe.Engine, epoch uint64) *Ledger {
	return &Ledger{
		handles: handles,
		engine:  engine,
		epoch:   epoch,
	}
}

// Grant adds principal to the ACL of h. Handles produced outside the ledger
// (oracle entropy) are adopted on their first grant.
func (l *Ledger) Grant(h ids.ID, principal common.Address) error {
	meta, err := l.handles.Get(h)
	switch {
	case errors.Is(err, confidential.ErrUnknownHandle):
		t, typeErr := l.engine.TypeOf(h)
		if typeErr != nil {
			return fmt.Errorf("%w: %s", confidential.ErrUnknownHandle, h)
		}
		meta = &store.Metadata{
			Handle: h,
			Type:   t,
			Owner:  principal,
			Epoch:  l.epoch,
		}
	case err != nil:
		return err
	}

	if meta.AddReader(principal) {
		if err := l.handles.Put(meta); err != nil {
			return err
		}
	}
	return l.engine.GrantUse(h, principal)
}

// RequireAuthorized fails with ErrUnauthorized unless principal may use h.
func (l *Ledger) RequireAuthorized(h ids.ID, principal common.Address) error {
	meta, err := l.handles.Get(h)
	if errors.Is(err, confidential.ErrUnknownHandle) {
		return fmt.Errorf("%w: %s not granted to %s", confidential.ErrUnauthorized, h, principal)
	}
	if err != nil {
		return err
	}
	if !meta.HasReader(principal) {
		return fmt.Errorf("%w: %s not granted to %s", confidential.ErrUnauthorized, h, principal)
	}
	return nil
}

// Readers returns the ACL of h.
func (l *Ledger) Readers(h ids.ID) ([]common.Address, error) {
	meta, err := l.handles.Get(h)
	if err != nil {
		return nil, err
	}
	return meta.Readers, nil
}

// Metadata returns the stored record of h.
func (l *Ledger) Metadata(h ids.ID) (*store.Metadata, error) {
	return l.handles.Get(h)
}

// Import converts an external ciphertext into a handle owned by principal.
func (l *Ledger) Import(principal common.Address, external, proof []byte, input fhe.InputContext) (ids.ID, error) {
	h, err := l.engine.ImportExternal(external, proof, input)
	if errors.Is(err, fhe.ErrInvalidCiphertext) {
		return ids.Empty, fmt.Errorf("%w: %v", confidential.ErrInvalidProof, err)
	}
	if err != nil {
		return ids.Empty, mapEngineError(err)
	}
	return h, l.record(h, principal)
}

// Constant creates a trivially encrypted handle owned by principal.
func (l *Ledger) Constant(principal common.Address, t fhe.ValueType, value uint64) (ids.ID, error) {
	h, err := l.engine.Constant(t, value)
	if err != nil {
		return ids.Empty, mapEngineError(err)
	}
	return h, l.record(h, principal)
}

func (l *Ledger) Add(principal common.Address, a, b ids.ID) (ids.ID, error) {
	return l.derive(principal, fhe.OpAdd, l.engine.Add, a, b)
}

func (l *Ledger) Sub(principal common.Address, a, b ids.ID) (ids.ID, error) {
	return l.derive(principal, fhe.OpSub, l.engine.Sub, a, b)
}

func (l *Ledger) Ge(principal common.Address, a, b ids.ID) (ids.ID, error) {
	cmp, err := l.comparator()
	if err != nil {
		return ids.Empty, err
	}
	return l.derive(principal, fhe.OpGe, cmp.Ge, a, b)
}

func (l *Ledger) Eq(principal common.Address, a, b ids.ID) (ids.ID, error) {
	cmp, err := l.comparator()
	if err != nil {
		return ids.Empty, err
	}
	return l.derive(principal, fhe.OpEq, cmp.Eq, a, b)
}

// Select returns a if cond holds and b otherwise, as a new handle.
func (l *Ledger) Select(principal common.Address, cond, a, b ids.ID) (ids.ID, error) {
	cmp, err := l.comparator()
	if err != nil {
		return ids.Empty, err
	}
	for _, h := range []ids.ID{cond, a, b} {
		if err := l.RequireAuthorized(h, principal); err != nil {
			return ids.Empty, err
		}
	}
	h, err := cmp.Select(cond, a, b)
	if err != nil {
		return ids.Empty, fmt.Errorf("%s: %w", fhe.OpSelect, mapEngineError(err))
	}
	return h, l.record(h, principal)
}

func (l *Ledger) derive(
	principal common.Address,
	op fhe.Operation,
	eval func(a, b ids.ID) (ids.ID, error),
	a, b ids.ID,
) (ids.ID, error) {
	if err := l.RequireAuthorized(a, principal); err != nil {
		return ids.Empty, err
	}
	if err := l.RequireAuthorized(b, principal); err != nil {
		return ids.Empty, err
	}
	h, err := eval(a, b)
	if err != nil {
		return ids.Empty, fmt.Errorf("%s: %w", op, mapEngineError(err))
	}
	return h, l.record(h, principal)
}

// record registers a freshly produced handle with principal as its only
// reader. A handle that already exists keeps its readers and gains
// principal.
func (l *Ledger) record(h ids.ID, principal common.Address) error {
	meta, err := l.handles.Get(h)
	switch {
	case errors.Is(err, confidential.ErrUnknownHandle):
		t, err := l.engine.TypeOf(h)
		if err != nil {
			return err
		}
		meta = &store.Metadata{
			Handle: h,
			Type:   t,
			Owner:  principal,
			Epoch:  l.epoch,
		}
	case err != nil:
		return err
	}
	meta.AddReader(principal)
	if err := l.handles.Put(meta); err != nil {
		return err
	}
	return l.engine.GrantUse(h, principal)
}

func (l *Ledger) comparator() (fhe.Comparator, error) {
	cmp, ok := l.engine.(fhe.Comparator)
	if !ok {
		return nil, confidential.ErrUnsupportedPolicy
	}
	return cmp, nil
}

// mapEngineError folds engine failures into the ledger taxonomy.
func mapEngineError(err error) error {
	switch {
	case errors.Is(err, fhe.ErrInvalidProof):
		return fmt.Errorf("%w: %v", confidential.ErrInvalidProof, err)
	case errors.Is(err, fhe.ErrUnknownHandle):
		return fmt.Errorf("%w: %v", confidential.ErrUnknownHandle, err)
	case errors.Is(err, fhe.ErrOutOfRange):
		return fmt.Errorf("%w: %v", confidential.ErrOutOfRange, err)
	default:
		return err
	}
}
