// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package dbtest holds the behaviour every db.KeyValueStore must share.
package dbtest

import (
	"testing"

	"github.com/luxfi/confidential/db"
	"github.com/stretchr/testify/require"
)

// TestDatabaseSuite runs the shared checks against stores built by New.
func TestDatabaseSuite(t *testing.T, New func() db.KeyValueStore) {
	t.Run("KeyValueOperations", func(t *testing.T) {
		require := require.New(t)
		store := New()
		defer store.Close()

		key := []byte("foo")
		ok, err := store.Has(key)
		require.NoError(err)
		require.False(ok)

		_, err = store.Get(key)
		require.ErrorIs(err, db.ErrNotFound)

		require.NoError(store.Put(key, []byte("bar")))
		ok, err = store.Has(key)
		require.NoError(err)
		require.True(ok)

		got, err := store.Get(key)
		require.NoError(err)
		require.Equal([]byte("bar"), got)

		require.NoError(store.Delete(key))
		_, err = store.Get(key)
		require.ErrorIs(err, db.ErrNotFound)
	})

	t.Run("Iterator", func(t *testing.T) {
		require := require.New(t)
		store := New()
		defer store.Close()

		entries := map[string]string{
			"a1": "x", "b1": "1", "b3": "3", "b2": "2", "c1": "y",
		}
		for k, v := range entries {
			require.NoError(store.Put([]byte(k), []byte(v)))
		}

		it := store.NewIterator([]byte("b"))
		defer it.Release()
		var keys, values []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
			values = append(values, string(it.Value()))
		}
		require.NoError(it.Error())
		require.Equal([]string{"b1", "b2", "b3"}, keys)
		require.Equal([]string{"1", "2", "3"}, values)
	})

	t.Run("Batch", func(t *testing.T) {
		require := require.New(t)
		store := New()
		defer store.Close()

		require.NoError(store.Put([]byte("gone"), []byte("v")))

		b := store.NewBatch()
		require.NoError(b.Put([]byte("k1"), []byte("v1")))
		require.NoError(b.Put([]byte("k2"), []byte("v2")))
		require.NoError(b.Delete([]byte("gone")))
		require.Positive(b.ValueSize())

		_, err := store.Get([]byte("k1"))
		require.ErrorIs(err, db.ErrNotFound)

		require.NoError(b.Write())
		got, err := store.Get([]byte("k2"))
		require.NoError(err)
		require.Equal([]byte("v2"), got)
		ok, err := store.Has([]byte("gone"))
		require.NoError(err)
		require.False(ok)

		b.Reset()
		require.Zero(b.ValueSize())
	})

	t.Run("Overlay", func(t *testing.T) {
		require := require.New(t)
		store := New()
		defer store.Close()

		require.NoError(store.Put([]byte("p1"), []byte("base")))
		require.NoError(store.Put([]byte("p2"), []byte("base")))

		ov := db.NewOverlay(store)
		require.NoError(ov.Put([]byte("p3"), []byte("staged")))
		require.NoError(ov.Delete([]byte("p1")))

		_, err := ov.Get([]byte("p1"))
		require.ErrorIs(err, db.ErrNotFound)
		got, err := ov.Get([]byte("p3"))
		require.NoError(err)
		require.Equal([]byte("staged"), got)

		it := ov.NewIterator([]byte("p"))
		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}
		it.Release()
		require.Equal([]string{"p2", "p3"}, keys)

		// nothing reaches the base store before commit
		ok, err := store.Has([]byte("p3"))
		require.NoError(err)
		require.False(ok)

		require.NoError(ov.Commit())
		ok, err = store.Has([]byte("p1"))
		require.NoError(err)
		require.False(ok)
		got, err = store.Get([]byte("p3"))
		require.NoError(err)
		require.Equal([]byte("staged"), got)
	})

	t.Run("OverlayDiscard", func(t *testing.T) {
		require := require.New(t)
		store := New()
		defer store.Close()

		ov := db.NewOverlay(store)
		require.NoError(ov.Put([]byte("k"), []byte("v")))
		ov.Discard()
		require.Error(ov.Commit())

		ok, err := store.Has([]byte("k"))
		require.NoError(err)
		require.False(ok)
	})
}
