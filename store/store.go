// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists ciphertext handle metadata: who produced a handle,
// who may use it and when it was created. It performs no arithmetic.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/confidential"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

var handlePrefix = []byte("h") // handlePrefix + handle -> Metadata

// Metadata describes one ciphertext handle.
type Metadata struct {
	Handle  ids.ID
	Type    fhe.ValueType
	Owner   common.Address
	Readers []common.Address
	Epoch   uint64
}

// HasReader reports whether principal is on the handle's ACL.
func (m *Metadata) HasReader(principal common.Address) bool {
	i := sort.Search(len(m.Readers), func(i int) bool {
		return bytes.Compare(m.Readers[i].Bytes(), principal.Bytes()) >= 0
	})
	return i < len(m.Readers) && m.Readers[i] == principal
}

// AddReader inserts principal keeping Readers sorted. It returns false if
// principal was already present.
func (m *Metadata) AddReader(principal common.Address) bool {
	i := sort.Search(len(m.Readers), func(i int) bool {
		return bytes.Compare(m.Readers[i].Bytes(), principal.Bytes()) >= 0
	})
	if i < len(m.Readers) && m.Readers[i] == principal {
		return false
	}
	m.Readers = append(m.Readers, common.Address{})
	copy(m.Readers[i+1:], m.Readers[i:])
	m.Readers[i] = principal
	return true
}

// Store is the CiphertextHandleStore.
type Store struct {
	kv db.ReadWriter
}

// New returns a store over kv. Ledger operations pass a db.Overlay so
// metadata writes commit or revert with the rest of the operation.
func New(kv db.ReadWriter) *Store {
	return &Store{kv: kv}
}

// Get returns the metadata for h, or ErrUnknownHandle.
func (s *Store) Get(h ids.ID) (*Metadata, error) {
	raw, err := s.kv.Get(handleKey(h))
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", confidential.ErrUnknownHandle, h)
	}
	if err != nil {
		return nil, err
	}
	meta := new(Metadata)
	if _, err := confidential.Codec.Unmarshal(raw, meta); err != nil {
		return nil, fmt.Errorf("decode handle %s: %w", h, err)
	}
	return meta, nil
}

// Has reports whether metadata exists for h.
func (s *Store) Has(h ids.ID) (bool, error) {
	return s.kv.Has(handleKey(h))
}

// Put writes meta, replacing any previous record.
func (s *Store) Put(meta *Metadata) error {
	raw, err := confidential.Codec.Marshal(confidential.CodecVersion, meta)
	if err != nil {
		return fmt.Errorf("encode handle %s: %w", meta.Handle, err)
	}
	return s.kv.Put(handleKey(meta.Handle), raw)
}

// Count returns the number of recorded handles.
func (s *Store) Count() (int, error) {
	it := s.kv.NewIterator(handlePrefix)
	defer it.Release()

	n := 0
	for it.Next() {
		n++
	}
	return n, it.Error()
}

func handleKey(h ids.ID) []byte {
	return append(append([]byte{}, handlePrefix...), h[:]...)
}
