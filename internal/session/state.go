// Package session mirrors the server-confirmed identity into the local
// store and drives the login, logout and session-check flows.
//
// The mirror is for presentation only. It is never an authorization
// credential; privileged actions must consult the server.
package session

import (
	"sync"

	"github.com/mesh-intelligence/storefront/pkg/types"
)

// State is one of LoggedOut, LoggingIn or LoggedIn.
type State interface {
	Name() string
	isState()
}

// LoggedOut is the initial state. Failure holds the message of the login
// attempt that led back here, if any.
type LoggedOut struct {
	Failure string
}

// LoggingIn is entered on submit and left when the login exchange ends.
type LoggingIn struct {
	Identifier string
}

// LoggedIn holds the mirrored identity.
type LoggedIn struct {
	Identity types.SessionIdentity
}

func (LoggedOut) Name() string { return "logged_out" }
func (LoggingIn) Name() string { return "logging_in" }
func (LoggedIn) Name() string  { return "logged_in" }

func (LoggedOut) isState() {}
func (LoggingIn) isState() {}
func (LoggedIn) isState()  {}

// Machine guards the auth state transitions:
//
//	LoggedOut --BeginLogin--> LoggingIn --Complete--> LoggedIn
//	LoggingIn --Fail--> LoggedOut
//	any --Logout--> LoggedOut
//	LoggedOut, LoggedIn --Restore--> LoggedIn
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a machine in LoggedOut.
func NewMachine() *Machine {
	return &Machine{state: LoggedOut{}}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// BeginLogin enters LoggingIn. A second submit while one is in flight
// returns types.ErrLoginInFlight.
func (m *Machine) BeginLogin(identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.(type) {
	case LoggedOut:
		m.state = LoggingIn{Identifier: identifier}
		return nil
	case LoggingIn:
		return types.ErrLoginInFlight
	default:
		return types.ErrInvalidTransition
	}
}

// Complete moves a pending login to LoggedIn.
func (m *Machine) Complete(identity types.SessionIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.(LoggingIn); !ok {
		return types.ErrInvalidTransition
	}
	m.state = LoggedIn{Identity: identity}
	return nil
}

// Fail moves a pending login back to LoggedOut with the failure message.
func (m *Machine) Fail(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.(LoggingIn); !ok {
		return types.ErrInvalidTransition
	}
	m.state = LoggedOut{Failure: message}
	return nil
}

// Logout returns to LoggedOut from any state.
func (m *Machine) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = LoggedOut{}
}

// Restore enters LoggedIn from an identity learned outside a login exchange:
// the mirror at startup, or a session check. It does not interrupt a login
// in flight.
func (m *Machine) Restore(identity types.SessionIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.(LoggingIn); ok {
		return types.ErrLoginInFlight
	}
	m.state = LoggedIn{Identity: identity}
	return nil
}
