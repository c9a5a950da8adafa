package session

import (
	"errors"
	"sync"
	"testing"
)

func TestMachineLifecycle(t *testing.T) {
	m := NewMachine()
	if m.Status() != StatusLoggedOut || m.Active() {
		t.Fatalf("expected logged out, got %s", m.Status())
	}

	done := m.Begin()
	if m.Status() != StatusAuthenticating {
		t.Fatalf("expected authenticating, got %s", m.Status())
	}
	if err := m.Commit(*testState()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	done()
	done()
	if m.Status() != StatusLoggedIn || !m.Active() {
		t.Fatalf("expected logged in, got %s", m.Status())
	}

	prev := m.Reset()
	if prev.SessionID != 42 {
		t.Fatalf("expected previous state returned, got %+v", prev)
	}
	if m.Status() != StatusLoggedOut || m.Snapshot().PrivateKey != 0 {
		t.Fatalf("expected cleared state, got %+v", m.Snapshot())
	}
}

func TestMachineKeepsSessionDuringRelogin(t *testing.T) {
	m := NewMachine()
	if err := m.Commit(*testState()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	done := m.Begin()
	defer done()
	if m.Status() != StatusLoggedIn {
		t.Fatalf("expected established session to stay visible, got %s", m.Status())
	}
}

func TestMachineResetIfMatchesSession(t *testing.T) {
	m := NewMachine()
	if err := m.Commit(*testState()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if m.ResetIf(7) {
		t.Fatal("expected no reset for a different session id")
	}
	if !m.Active() {
		t.Fatal("session must survive a mismatched reset")
	}
	if !m.ResetIf(42) || m.Active() {
		t.Fatal("expected matching reset to clear the session")
	}
}

func TestMachineRejectsInactiveCommit(t *testing.T) {
	m := NewMachine()
	if err := m.Commit(State{UserName: "x"}); !errors.Is(err, ErrInactiveState) {
		t.Fatalf("expected ErrInactiveState, got %v", err)
	}
}

func TestMachineSnapshotIsCopy(t *testing.T) {
	m := NewMachine()
	if err := m.Commit(*testState()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	snap := m.Snapshot()
	snap.ServerData[0] = 'X'
	if m.Snapshot().ServerData[0] == 'X' {
		t.Fatal("snapshot must not alias machine state")
	}
}

func TestMachineActiveMatchesSessionIDUnderConcurrency(t *testing.T) {
	m := NewMachine()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id uint32) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				st := *testState()
				st.SessionID = id
				done := m.Begin()
				_ = m.Commit(st)
				done()
				m.Reset()
			}
		}(uint32(i + 1))
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := m.Snapshot()
				if snap.Active() != (snap.SessionID > 0) {
					t.Error("active flag out of sync with session id")
					return
				}
				if snap.Active() && snap.PrivateKey == 0 {
					t.Error("observed partially established session")
					return
				}
			}
		}()
	}
	wg.Wait()
	if m.Status() != StatusLoggedOut {
		t.Fatalf("expected logged out after all resets, got %s", m.Status())
	}
}
