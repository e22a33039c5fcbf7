package daemon

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/status"
)

func readyMachine(t *testing.T, b *bus.Bus) *status.Machine {
	t.Helper()
	m := status.NewMachine(b)
	for _, s := range []status.State{status.Resolving, status.Ready} {
		if err := m.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func waitForState(t *testing.T, m *status.Machine, want status.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Current() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.Current(), want)
}

func TestHealthDegradesAfterConsecutiveFailures(t *testing.T) {
	b := bus.New()
	m := readyMachine(t, b)

	h := NewHealth(m, b, zap.NewNop())
	h.Start(context.Background())
	defer h.Stop()

	b.Emit(bus.KindSyncFailed, nil)
	time.Sleep(50 * time.Millisecond)
	if m.Current() != status.Ready {
		t.Fatalf("one failure must not degrade, state = %s", m.Current())
	}

	b.Emit(bus.KindSyncFailed, nil)
	waitForState(t, m, status.Degraded)
}

func TestHealthRecoversOnSuccessfulPoll(t *testing.T) {
	b := bus.New()
	m := readyMachine(t, b)

	h := NewHealth(m, b, zap.NewNop())
	h.Start(context.Background())
	defer h.Stop()

	b.Emit(bus.KindSyncFailed, nil)
	b.Emit(bus.KindSyncFailed, nil)
	waitForState(t, m, status.Degraded)

	b.Emit(bus.KindRoomListUpdated, nil)
	waitForState(t, m, status.Ready)
}

func TestHealthForcesAuthRequiredOnSessionExpiry(t *testing.T) {
	b := bus.New()
	m := readyMachine(t, b)

	h := NewHealth(m, b, zap.NewNop())
	h.Start(context.Background())
	defer h.Stop()

	b.Emit(bus.KindSessionExpired, nil)
	waitForState(t, m, status.AuthRequired)
}

func TestHealthSuccessResetsFailureStreak(t *testing.T) {
	b := bus.New()
	m := readyMachine(t, b)

	h := NewHealth(m, b, zap.NewNop())
	h.Start(context.Background())
	defer h.Stop()

	// Alternating failure/success never accumulates a streak.
	for i := 0; i < 3; i++ {
		b.Emit(bus.KindSyncFailed, nil)
		b.Emit(bus.KindRoomListUpdated, nil)
	}
	time.Sleep(100 * time.Millisecond)
	if m.Current() != status.Ready {
		t.Fatalf("state = %s, want READY", m.Current())
	}
}
