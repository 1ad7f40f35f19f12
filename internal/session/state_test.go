package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

var demoIdentity = types.SessionIdentity{
	ID:       "1",
	Username: "demouser",
	Email:    "demo@example.com",
	Name:     "Demo User",
}

func TestMachine_LoginCycle(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, LoggedOut{}, m.State())

	require.NoError(t, m.BeginLogin("demouser"))
	assert.Equal(t, LoggingIn{Identifier: "demouser"}, m.State())

	require.NoError(t, m.Complete(demoIdentity))
	assert.Equal(t, LoggedIn{Identity: demoIdentity}, m.State())

	m.Logout()
	assert.Equal(t, LoggedOut{}, m.State())
}

func TestMachine_FailReturnsToLoggedOut(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.BeginLogin("demouser"))
	require.NoError(t, m.Fail("Invalid email/username or password"))

	assert.Equal(t, LoggedOut{Failure: "Invalid email/username or password"}, m.State())
	require.NoError(t, m.BeginLogin("demouser"), "a failed login can be retried")
}

func TestMachine_GuardedTransitions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *Machine)
		act     func(m *Machine) error
		wantErr error
	}{
		{
			name:    "double submit",
			setup:   func(m *Machine) { m.BeginLogin("a") },
			act:     func(m *Machine) error { return m.BeginLogin("a") },
			wantErr: types.ErrLoginInFlight,
		},
		{
			name:    "login while logged in",
			setup:   func(m *Machine) { m.Restore(demoIdentity) },
			act:     func(m *Machine) error { return m.BeginLogin("a") },
			wantErr: types.ErrInvalidTransition,
		},
		{
			name:    "complete without login",
			setup:   func(m *Machine) {},
			act:     func(m *Machine) error { return m.Complete(demoIdentity) },
			wantErr: types.ErrInvalidTransition,
		},
		{
			name:    "complete while logged in",
			setup:   func(m *Machine) { m.Restore(demoIdentity) },
			act:     func(m *Machine) error { return m.Complete(demoIdentity) },
			wantErr: types.ErrInvalidTransition,
		},
		{
			name:    "fail without login",
			setup:   func(m *Machine) {},
			act:     func(m *Machine) error { return m.Fail("x") },
			wantErr: types.ErrInvalidTransition,
		},
		{
			name:    "restore during login",
			setup:   func(m *Machine) { m.BeginLogin("a") },
			act:     func(m *Machine) error { return m.Restore(demoIdentity) },
			wantErr: types.ErrLoginInFlight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			tt.setup(m)
			before := m.State()
			assert.ErrorIs(t, tt.act(m), tt.wantErr)
			assert.Equal(t, before, m.State(), "a rejected transition leaves the state unchanged")
		})
	}
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "logged_out", LoggedOut{}.Name())
	assert.Equal(t, "logging_in", LoggingIn{}.Name())
	assert.Equal(t, "logged_in", LoggedIn{}.Name())
}
