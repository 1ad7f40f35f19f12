package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/internal/memstore"
	"github.com/mesh-intelligence/storefront/pkg/types"
)

// fakeStore is a map-backed types.Store for tests that need to inject raw
// values or failures.
type fakeStore struct {
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (s *fakeStore) Get(key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(key string, value []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.data[key] = value
	return nil
}

func (s *fakeStore) Remove(key string) error {
	delete(s.data, key)
	return nil
}

func (s *fakeStore) Subscribe(func(types.Change)) func() { return func() {} }

func (s *fakeStore) ContextID() string { return "fake" }

func newMemRepository(t *testing.T) (*Repository, types.Backend) {
	t.Helper()
	b := memstore.NewBackend(memstore.NewOrigin())
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendMemory}))
	t.Cleanup(func() { b.Detach() })
	return NewRepository(b), b
}

func strPtr(s string) *string { return &s }

func TestRepository_Init(t *testing.T) {
	repo, store := newMemRepository(t)

	require.NoError(t, repo.Init())
	v, ok, err := store.Get(types.CartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(v))

	_, err = repo.Add("p1", "home", "Tee", 10, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Init())
	assert.Len(t, repo.Load(), 1, "Init must not overwrite an existing cart")
}

func TestRepository_AddMergesSameIdentity(t *testing.T) {
	repo, _ := newMemRepository(t)

	_, err := repo.Add("p1", "home", "Tee", 10, strPtr("tee.png"))
	require.NoError(t, err)
	item, err := repo.Add("p1", "home", "Tee", 10, strPtr("tee.png"))
	require.NoError(t, err)

	assert.Equal(t, 2, item.Qty)
	c := repo.Load()
	require.Len(t, c, 1)
	assert.Equal(t, 2, c[0].Qty)
	assert.Equal(t, "tee.png", *c[0].Image)
}

func TestRepository_AddSameIDOtherPageIsSeparate(t *testing.T) {
	repo, _ := newMemRepository(t)

	_, err := repo.Add("p1", "home", "Tee", 10, nil)
	require.NoError(t, err)
	_, err = repo.Add("p1", "sale", "Tee", 8, nil)
	require.NoError(t, err)

	c := repo.Load()
	require.Len(t, c, 2)
	assert.Equal(t, "home", c[0].PageKey)
	assert.Equal(t, "sale", c[1].PageKey)
}

func TestRepository_AddLegacyFallback(t *testing.T) {
	store := newFakeStore()
	store.data[types.CartKey] = []byte(`[{"id":"X","name":"Old","price":3,"image":null,"qty":1}]`)
	repo := NewRepository(store)

	item, err := repo.Add("X", "catalog", "Old", 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, item.Qty)
	assert.True(t, item.IsLegacy(), "legacy item keeps its missing page")
	c := repo.Load()
	require.Len(t, c, 1)
	assert.Equal(t, 2, c[0].Qty)
}

func TestRepository_AddPrefersPageMatchOverLegacy(t *testing.T) {
	store := newFakeStore()
	store.data[types.CartKey] = []byte(`[
		{"id":"X","name":"Old","price":3,"image":null,"qty":1},
		{"id":"X","page":"catalog","name":"New","price":3,"image":null,"qty":4}
	]`)
	repo := NewRepository(store)

	_, err := repo.Add("X", "catalog", "New", 3, nil)
	require.NoError(t, err)

	c := repo.Load()
	require.Len(t, c, 2)
	assert.Equal(t, 1, c[0].Qty)
	assert.Equal(t, 5, c[1].Qty)
}

func TestRepository_AddInvalid(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		price float64
	}{
		{name: "empty id", id: "", price: 1},
		{name: "negative price", id: "p1", price: -0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			repo := NewRepository(store)
			_, err := repo.Add(tt.id, "home", "x", tt.price, nil)
			assert.ErrorIs(t, err, types.ErrInvalidItem)
			assert.Zero(t, store.sets)
		})
	}
}

func TestRepository_AddFlushFailure(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("disk full")
	repo := NewRepository(store)

	_, err := repo.Add("p1", "home", "Tee", 10, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush cart")
}

func TestRepository_SetQty(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		wantLen int
	}{
		{name: "overwrite", qty: 7, wantLen: 2},
		{name: "zero removes", qty: 0, wantLen: 1},
		{name: "negative removes", qty: -3, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := newMemRepository(t)
			_, err := repo.Add("a", "home", "A", 1, nil)
			require.NoError(t, err)
			_, err = repo.Add("b", "home", "B", 2, nil)
			require.NoError(t, err)

			require.NoError(t, repo.SetQty(0, tt.qty))

			c := repo.Load()
			require.Len(t, c, tt.wantLen)
			if tt.qty > 0 {
				assert.Equal(t, tt.qty, c[0].Qty)
			} else {
				assert.Equal(t, "b", c[0].ID)
			}
		})
	}
}

func TestRepository_RemoveShiftsIndices(t *testing.T) {
	repo, _ := newMemRepository(t)
	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Add(id, "home", id, 1, nil)
		require.NoError(t, err)
	}

	require.NoError(t, repo.Remove(1))

	c := repo.Load()
	require.Len(t, c, 2)
	assert.Equal(t, "a", c[0].ID)
	assert.Equal(t, "c", c[1].ID)
}

func TestRepository_IndexOutOfRange(t *testing.T) {
	store := newFakeStore()
	repo := NewRepository(store)
	_, err := repo.Add("a", "home", "A", 1, nil)
	require.NoError(t, err)
	sets := store.sets

	assert.ErrorIs(t, repo.SetQty(1, 2), types.ErrIndexOutOfRange)
	assert.ErrorIs(t, repo.SetQty(-1, 2), types.ErrIndexOutOfRange)
	assert.ErrorIs(t, repo.Remove(5), types.ErrIndexOutOfRange)
	assert.Equal(t, sets, store.sets, "failed index ops must not write")
}

func TestRepository_KeyAddressed(t *testing.T) {
	store := newFakeStore()
	store.data[types.CartKey] = []byte(`[
		{"id":"L","name":"Legacy","price":1,"image":null,"qty":2},
		{"id":"P","page":"home","name":"Paged","price":2,"image":null,"qty":1}
	]`)
	repo := NewRepository(store)

	require.NoError(t, repo.SetQtyByKey("L", "anywhere", 5))
	require.NoError(t, repo.SetQtyByKey("P", "home", 3))
	assert.ErrorIs(t, repo.SetQtyByKey("P", "other", 1), types.ErrItemNotFound)

	c := repo.Load()
	assert.Equal(t, 5, c[0].Qty)
	assert.Equal(t, 3, c[1].Qty)

	require.NoError(t, repo.RemoveByKey("L", "anywhere"))
	assert.ErrorIs(t, repo.RemoveByKey("L", "anywhere"), types.ErrItemNotFound)
	require.NoError(t, repo.SetQtyByKey("P", "home", 0))
	assert.Empty(t, repo.Load())
}

func TestRepository_LoadFailsOpen(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want types.Cart
	}{
		{name: "not json", raw: "{{{not json", want: types.Cart{}},
		{name: "null", raw: "null", want: types.Cart{}},
		{name: "object", raw: `{"id":"a"}`, want: types.Cart{}},
		{name: "empty", raw: "", want: types.Cart{}},
		{
			name: "bad entries dropped",
			raw:  `[{"id":"a","qty":1},{"id":"b","qty":"many"},{"id":"","qty":1},{"id":"c","qty":0},7]`,
			want: types.Cart{{ID: "a", Qty: 1}},
		},
		{
			name: "duplicates merged",
			raw:  `[{"id":"a","page":"p","qty":1},{"id":"b","qty":1},{"id":"a","page":"p","qty":2}]`,
			want: types.Cart{{ID: "a", PageKey: "p", Qty: 3}, {ID: "b", Qty: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.data[types.CartKey] = []byte(tt.raw)
			repo := NewRepository(store)
			assert.Equal(t, tt.want, repo.Load())
		})
	}
}

func TestRepository_LoadAbsentAndStoreError(t *testing.T) {
	store := newFakeStore()
	repo := NewRepository(store)
	assert.Equal(t, types.Cart{}, repo.Load())

	store.getErr = types.ErrStoreDetached
	assert.Equal(t, types.Cart{}, repo.Load())
	assert.Zero(t, repo.Count())
}

func TestRepository_CorruptCartRecoversOnAdd(t *testing.T) {
	store := newFakeStore()
	store.data[types.CartKey] = []byte("garbage")
	repo := NewRepository(store)

	_, err := repo.Add("p1", "home", "Tee", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}

func TestRepository_Count(t *testing.T) {
	repo, _ := newMemRepository(t)
	assert.Zero(t, repo.Count())

	for i := 0; i < 3; i++ {
		_, err := repo.Add("p1", "home", "Tee", 10, nil)
		require.NoError(t, err)
	}
	_, err := repo.Add("p2", "home", "Cap", 5, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, repo.Count())
}

func TestRepository_Replace(t *testing.T) {
	repo, _ := newMemRepository(t)

	require.NoError(t, repo.Replace(types.Cart{
		{ID: "a", PageKey: "p", Qty: 1},
		{ID: "a", PageKey: "p", Qty: 1},
		{ID: "z", Qty: 0},
	}))
	assert.Equal(t, types.Cart{{ID: "a", PageKey: "p", Qty: 2}}, repo.Load())

	require.NoError(t, repo.Replace(nil))
	assert.Equal(t, types.Cart{}, repo.Load())
}

func TestRepository_SharedAcrossContexts(t *testing.T) {
	origin := memstore.NewOrigin()
	a := memstore.NewBackend(origin)
	b := memstore.NewBackend(origin)
	require.NoError(t, a.Attach(types.Config{Backend: types.BackendMemory}))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendMemory}))
	defer a.Detach()
	defer b.Detach()

	_, err := NewRepository(a).Add("p1", "home", "Tee", 10, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, NewRepository(b).Count())
}
