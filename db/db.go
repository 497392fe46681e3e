// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package db defines the key-value storage the ledger persists its state in.
package db

import (
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("not found")

// KeyValueReader wraps the Has and Get method of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete method of a backing data store.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Iterator walks keys in ascending order. It must be released after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Iteratee creates iterators over a key prefix.
type Iteratee interface {
	NewIterator(prefix []byte) Iterator
}

// Batch is a write-only set of changes applied atomically by Write.
type Batch interface {
	KeyValueWriter
	ValueSize() int
	Write() error
	Reset()
}

// Batcher creates batches.
type Batcher interface {
	NewBatch() Batch
}

// ReadWriter is the view the ledger components operate on.
type ReadWriter interface {
	KeyValueReader
	KeyValueWriter
	Iteratee
}

// KeyValueStore is a complete backing store.
type KeyValueStore interface {
	ReadWriter
	Batcher
	io.Closer
}
