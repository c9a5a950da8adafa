package session

import (
	"errors"
	"sync"
)

// ErrInactiveState is returned when committing a state without a session id.
var ErrInactiveState = errors.New("session state has no session id")

// Status is the observable phase of a Machine.
type Status uint8

const (
	// StatusLoggedOut means no session is held and no login is in flight.
	StatusLoggedOut Status = iota
	// StatusAuthenticating means a login is in flight and no session is held.
	StatusAuthenticating
	// StatusLoggedIn means a session is held.
	StatusLoggedIn
)

func (s Status) String() string {
	switch s {
	case StatusLoggedOut:
		return "logged_out"
	case StatusAuthenticating:
		return "authenticating"
	case StatusLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Machine owns one session. It is safe for concurrent use.
//
// Concurrent logins are not serialized: each commits independently and the
// last commit wins. An established session stays usable while a new login is
// in flight.
type Machine struct {
	mu       sync.RWMutex
	state    State
	inFlight int
}

// NewMachine returns a machine in StatusLoggedOut.
func NewMachine() *Machine {
	return &Machine{}
}

// Begin records a login in flight. The returned func must be called exactly
// once when the login completes, successfully or not.
func (m *Machine) Begin() func() {
	m.mu.Lock()
	m.inFlight++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
		})
	}
}

// Commit installs st as the current session.
func (m *Machine) Commit(st State) error {
	if !st.Active() {
		return ErrInactiveState
	}
	st = st.clone()

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	return nil
}

// Reset clears the session and returns the state that was held.
func (m *Machine) Reset() State {
	m.mu.Lock()
	prev := m.state
	m.state = State{}
	m.mu.Unlock()
	return prev
}

// ResetIf clears the session only when it still has sessionID. It reports
// whether a reset happened.
func (m *Machine) ResetIf(sessionID uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.SessionID != sessionID {
		return false
	}
	m.state = State{}
	return true
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Active reports whether a session is held.
func (m *Machine) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Active()
}

// Status reports the current phase.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.state.Active():
		return StatusLoggedIn
	case m.inFlight > 0:
		return StatusAuthenticating
	default:
		return StatusLoggedOut
	}
}
