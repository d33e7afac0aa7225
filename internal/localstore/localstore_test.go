// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package localstore_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fischmanb/memduo-gate/internal/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("bearer:token", "abc123"))

	value, ok, err := store.Get("bearer:token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", value)
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get("nope")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("key", "value"))

	require.NoError(t, store.Delete("key"))

	_, ok, err := store.Get("key")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete("key"))
}

func TestDeletePrefix(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("managedauth:token", "t"))
	require.NoError(t, store.Put("managedauth:refresh", "r"))
	require.NoError(t, store.Put("demo:active", "1"))

	require.NoError(t, store.DeletePrefix("managedauth:"))

	_, ok, err := store.Get("managedauth:token")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get("demo:active")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeletePrefix_ManyKeys(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 50; i++ {
		require.NoError(t, store.Put(fmt.Sprintf("managedauth:key%02d", i), "v"))
	}
	require.NoError(t, store.Put("demo:active", "1"))

	require.NoError(t, store.DeletePrefix("managedauth:"))

	for i := 0; i < 50; i++ {
		_, ok, err := store.Get(fmt.Sprintf("managedauth:key%02d", i))
		require.NoError(t, err)
		assert.False(t, ok, "key%02d should be gone", i)
	}

	_, ok, err := store.Get("demo:active")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := localstore.Open("  ")

	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := localstore.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("key", "value"))
	require.NoError(t, store.Close())

	reopened, err := localstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	value, ok, err := reopened.Get("key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", value)
}
