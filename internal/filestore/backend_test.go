package filestore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

func testConfig(dir string) types.Config {
	return types.Config{
		Backend:      types.BackendFile,
		DataDir:      dir,
		PollInterval: 20 * time.Millisecond,
	}
}

func attachBackend(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend()
	require.NoError(t, b.Attach(testConfig(dir)))
	t.Cleanup(func() { b.Detach() })
	return b
}

type changeSink struct {
	mu      sync.Mutex
	changes []types.Change
}

func (s *changeSink) add(c types.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, c)
}

func (s *changeSink) snapshot() []types.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Change, len(s.changes))
	copy(out, s.changes)
	return out
}

func TestBackend_AttachDetach(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	b := NewBackend()

	require.NoError(t, b.Attach(testConfig(dir)))
	assert.DirExists(t, dir)
	assert.ErrorIs(t, b.Attach(testConfig(dir)), types.ErrAlreadyAttached)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach())

	_, _, err := b.Get(types.CartKey)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestBackend_GetSetRemove(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir)

	_, ok, err := b.Get(types.CartKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(types.CartKey, []byte("[]")))
	assert.FileExists(t, filepath.Join(dir, "cart.json"))

	v, ok, err := b.Get(types.CartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(v))

	require.NoError(t, b.Remove(types.CartKey))
	require.NoError(t, b.Remove(types.CartKey))
	_, ok, err = b.Get(types.CartKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackend_SetLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Set(types.CartKey, []byte("[]")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cart.json", entries[0].Name())
}

func TestBackend_CrossContextNotification(t *testing.T) {
	dir := t.TempDir()
	a := attachBackend(t, dir)
	b := attachBackend(t, dir)

	aSink, bSink := &changeSink{}, &changeSink{}
	a.Subscribe(aSink.add)
	b.Subscribe(bSink.add)

	require.NoError(t, a.Set(types.CartKey, []byte(`[{"id":"1","qty":1}]`)))
	require.Eventually(t, func() bool { return len(bSink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, types.Change{Key: types.CartKey}, bSink.snapshot()[0])

	require.NoError(t, a.Remove(types.CartKey))
	require.Eventually(t, func() bool { return len(bSink.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, bSink.snapshot()[1].Removed)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, aSink.snapshot(), "writer must not see its own writes")
}

func TestBackend_RewriteWithSameContentIsNotReported(t *testing.T) {
	dir := t.TempDir()
	a := attachBackend(t, dir)
	b := attachBackend(t, dir)
	sink := &changeSink{}
	b.Subscribe(sink.add)

	value := []byte(`[{"id":"1","qty":1}]`)
	require.NoError(t, a.Set(types.CartKey, value))
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Set(types.CartKey, value))
	time.Sleep(80 * time.Millisecond)
	assert.Len(t, sink.snapshot(), 1)
}

func TestBackend_ExternalEditIsReported(t *testing.T) {
	dir := t.TempDir()
	b := attachBackend(t, dir)
	sink := &changeSink{}
	b.Subscribe(sink.add)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{"id":1}`), 0o644))
	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, types.UserKey, sink.snapshot()[0].Key)
}

func TestBackend_PreexistingValuesAreNotReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cart.json"), []byte("[]"), 0o644))

	b := attachBackend(t, dir)
	sink := &changeSink{}
	b.Subscribe(sink.add)

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
}

func TestKeyFromFile(t *testing.T) {
	assert.Equal(t, "cart", keyFromFile("/data/cart.json"))
	assert.Equal(t, "", keyFromFile("/data/.cart.json-123.tmp"))
	assert.Equal(t, "", keyFromFile("/data/notes.txt"))
}
