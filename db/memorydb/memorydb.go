// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package memorydb implements db.KeyValueStore on a map. It backs tests and
// ledgers started without a data directory.
package memorydb

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/luxfi/confidential/db"
)

var errMemorydbClosed = errors.New("database closed")

var _ db.KeyValueStore = (*Database)(nil)

// Database is an ephemeral key-value store.
type Database struct {
	db   map[string][]byte
	lock sync.RWMutex
}

// New returns an empty in-memory database.
func New() *Database {
	return &Database{
		db: make(map[string][]byte),
	}
}

func (d *Database) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.db = nil
	return nil
}

func (d *Database) Has(key []byte) (bool, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return false, errMemorydbClosed
	}
	_, ok := d.db[string(key)]
	return ok, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return nil, errMemorydbClosed
	}
	if entry, ok := d.db[string(key)]; ok {
		return bytes.Clone(entry), nil
	}
	return nil, db.ErrNotFound
}

func (d *Database) Put(key []byte, value []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return errMemorydbClosed
	}
	d.db[string(key)] = bytes.Clone(value)
	return nil
}

func (d *Database) Delete(key []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return errMemorydbClosed
	}
	delete(d.db, string(key))
	return nil
}

// NewIterator snapshots the entries under prefix.
func (d *Database) NewIterator(prefix []byte) db.Iterator {
	d.lock.RLock()
	defer d.lock.RUnlock()

	var (
		pr     = string(prefix)
		keys   = make([]string, 0, len(d.db))
		values = make([][]byte, 0, len(d.db))
	)
	for key := range d.db {
		if strings.HasPrefix(key, pr) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		values = append(values, bytes.Clone(d.db[key]))
	}
	return db.NewSliceIterator(keys, values)
}

func (d *Database) NewBatch() db.Batch {
	return &batch{db: d}
}

// Len returns the number of entries.
func (d *Database) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()

	return len(d.db)
}

type keyvalue struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db     *Database
	writes []keyvalue
	size   int
}

func (b *batch) Put(key, value []byte) error {
	b.writes = append(b.writes, keyvalue{bytes.Clone(key), bytes.Clone(value), false})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{bytes.Clone(key), nil, true})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return errMemorydbClosed
	}
	for _, kv := range b.writes {
		if kv.delete {
			delete(b.db.db, string(kv.key))
			continue
		}
		b.db.db[string(kv.key)] = kv.value
	}
	return nil
}

func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}
