package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		wantErr error
	}{
		{name: "memory", kind: types.BackendMemory},
		{name: "sqlite", kind: types.BackendSQLite},
		{name: "file", kind: types.BackendFile},
		{name: "empty", kind: "", wantErr: types.ErrBackendEmpty},
		{name: "unknown", kind: "redis", wantErr: types.ErrBackendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, b)
		})
	}
}

func TestOpen_EveryBackendRoundTrips(t *testing.T) {
	for _, kind := range []string{types.BackendMemory, types.BackendSQLite, types.BackendFile} {
		t.Run(kind, func(t *testing.T) {
			b, err := Open(types.Config{Backend: kind, DataDir: t.TempDir()})
			require.NoError(t, err)
			defer b.Detach()

			assert.NotEmpty(t, b.ContextID())
			require.NoError(t, b.Set(types.UserKey, []byte(`{"id":"1"}`)))

			v, ok, err := b.Get(types.UserKey)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"id":"1"}`, string(v))

			require.NoError(t, b.Remove(types.UserKey))
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(types.Config{})
	assert.ErrorIs(t, err, types.ErrBackendEmpty)
}
