// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package db

import (
	"bytes"
	"errors"
	"sort"
)

var errOverlayClosed = errors.New("overlay already committed or discarded")

var _ ReadWriter = (*Overlay)(nil)

// Overlay stages writes on top of a base store. Reads see staged writes
// first. Nothing reaches the base store until Commit.
type Overlay struct {
	base   KeyValueStore
	staged map[string][]byte
	// deleted keys are tracked separately so a staged nil value is still a put
	deleted map[string]struct{}
	closed  bool
}

// NewOverlay returns an empty overlay over base.
func NewOverlay(base KeyValueStore) *Overlay {
	return &Overlay{
		base:    base,
		staged:  make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (o *Overlay) Has(key []byte) (bool, error) {
	k := string(key)
	if _, ok := o.deleted[k]; ok {
		return false, nil
	}
	if _, ok := o.staged[k]; ok {
		return true, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, ok := o.deleted[k]; ok {
		return nil, ErrNotFound
	}
	if v, ok := o.staged[k]; ok {
		return bytes.Clone(v), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key []byte, value []byte) error {
	if o.closed {
		return errOverlayClosed
	}
	k := string(key)
	delete(o.deleted, k)
	o.staged[k] = bytes.Clone(value)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	if o.closed {
		return errOverlayClosed
	}
	k := string(key)
	delete(o.staged, k)
	o.deleted[k] = struct{}{}
	return nil
}

// NewIterator merges the staged writes with the base store's view of prefix.
func (o *Overlay) NewIterator(prefix []byte) Iterator {
	merged := make(map[string][]byte)
	it := o.base.NewIterator(prefix)
	for it.Next() {
		merged[string(it.Key())] = bytes.Clone(it.Value())
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return &sliceIterator{index: -1, err: err}
	}

	for k, v := range o.staged {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}
	for k := range o.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = merged[k]
	}
	return NewSliceIterator(keys, values)
}

// Len returns the number of staged changes.
func (o *Overlay) Len() int {
	return len(o.staged) + len(o.deleted)
}

// Commit writes every staged change to the base store in one batch.
func (o *Overlay) Commit() error {
	if o.closed {
		return errOverlayClosed
	}
	o.closed = true
	if len(o.staged) == 0 && len(o.deleted) == 0 {
		return nil
	}
	batch := o.base.NewBatch()
	for k := range o.deleted {
		if err := batch.Delete([]byte(k)); err != nil {
			return err
		}
	}
	for k, v := range o.staged {
		if err := batch.Put([]byte(k), v); err != nil {
			return err
		}
	}
	return batch.Write()
}

// Discard drops every staged change.
func (o *Overlay) Discard() {
	o.closed = true
	o.staged = nil
	o.deleted = nil
}

type sliceIterator struct {
	keys   []string
	values [][]byte
	index  int
	err    error
}

// NewSliceIterator iterates over pre-sorted keys and their values.
func NewSliceIterator(keys []string, values [][]byte) Iterator {
	return &sliceIterator{
		keys:   keys,
		values: values,
		index:  -1,
	}
}

func (it *sliceIterator) Next() bool {
	if it.err != nil || it.index+1 >= len(it.keys) {
		it.index = len(it.keys)
		return false
	}
	it.index++
	return true
}

func (it *sliceIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.index])
}

func (it *sliceIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}
	return it.values[it.index]
}

func (it *sliceIterator) Error() error {
	return it.err
}

func (it *sliceIterator) Release() {
	it.keys = nil
	it.values = nil
}
