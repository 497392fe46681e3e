// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package leveldb implements db.KeyValueStore on goleveldb.
package leveldb

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/luxfi/confidential/db"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	minCache   = 16
	minHandles = 16
)

var _ db.KeyValueStore = (*Database)(nil)

// Database is a persistent key-value store.
type Database struct {
	db *leveldb.DB
}

// New opens (or creates) a database at path. cache is in megabytes.
func New(path string, cache int, handles int) (*Database, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("leveldb path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve leveldb path: %w", err)
	}
	if cache < minCache {
		cache = minCache
	}
	if handles < minHandles {
		handles = minHandles
	}
	ldb, err := leveldb.OpenFile(abs, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &Database{db: ldb}, nil
}

// Wrap adopts an already opened goleveldb handle.
func Wrap(ldb *leveldb.DB) *Database {
	return &Database{db: ldb}
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	dat, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dat, nil
}

func (d *Database) Put(key []byte, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *Database) NewIterator(prefix []byte) db.Iterator {
	return d.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (d *Database) NewBatch() db.Batch {
	return &batch{
		db: d.db,
		b:  new(leveldb.Batch),
	}
}

type batch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *batch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
