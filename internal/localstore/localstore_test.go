package localstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kvContract exercises the behavior every backend must share.
func kvContract(t *testing.T, kv KV) {
	t.Helper()

	// Absent key
	_, ok, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// Round-trip
	require.NoError(t, kv.Set("alpha", []byte(`{"a":1}`)))
	blob, ok, err := kv.Get("alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(blob))

	// Overwrite
	require.NoError(t, kv.Set("alpha", []byte(`{"a":2}`)))
	blob, _, err = kv.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(blob))

	// Keys are sorted
	require.NoError(t, kv.Set("zeta", []byte("z")))
	require.NoError(t, kv.Set("beta", []byte("b")))
	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, keys)

	// Delete, and delete of an absent key
	require.NoError(t, kv.Delete("zeta"))
	require.NoError(t, kv.Delete("zeta"))
	_, ok, err = kv.Get("zeta")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemory()
	defer kv.Close()
	kvContract(t, kv)
}

func TestMemoryCopiesValues(t *testing.T) {
	kv := NewMemory()
	defer kv.Close()

	in := []byte("original")
	require.NoError(t, kv.Set("k", in))
	in[0] = 'X'

	out, _, err := kv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(out), "stored value is isolated from the caller's slice")

	out[0] = 'Y'
	again, _, err := kv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again), "returned value is isolated too")
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapgrid.db")
	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	defer kv.Close()

	kvContract(t, kv)
	assert.Equal(t, path, kv.Path())
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapgrid.db")

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("snapgrid_posts", []byte(`[{"Id":1}]`)))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	blob, ok, err := second.Get("snapgrid_posts")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"Id":1}]`, string(blob))
}

func TestSQLiteClosedHandleErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapgrid.db")
	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, kv.Close())
	require.NoError(t, kv.Close(), "double close is fine")

	_, _, err = kv.Get("any")
	assert.Error(t, err)
	assert.Error(t, kv.Set("any", nil))
}

func TestWatcherNotifiesOnTargetWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snapgrid.db")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	w, err := NewWatcher(target)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification for a target write")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snapgrid.db")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	w, err := NewWatcher(target)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))

	select {
	case <-w.Changes():
		t.Fatal("unrelated file triggered a notification")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "snapgrid.db")

	w, err := NewWatcher(target)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "second start is a no-op")
	w.Stop()
	w.Stop() // and so is a second stop
}
