package unread

import (
	"testing"
	"time"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/market"
)

func TestComputeTotal(t *testing.T) {
	cases := []struct {
		name  string
		rooms []market.Room
		want  int
	}{
		{"empty", nil, 0},
		{"single", []market.Room{{ID: 5, UnreadCount: 3}}, 3},
		{"mixed", []market.Room{{ID: 5, UnreadCount: 3}, {ID: 6, UnreadCount: 0}}, 3},
		{"negative ignored", []market.Room{{ID: 5, UnreadCount: -1}, {ID: 6, UnreadCount: 2}}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotal(tc.rooms)
			if got != tc.want {
				t.Errorf("ComputeTotal = %d, want %d", got, tc.want)
			}
			// idempotent: same input, same output
			if again := ComputeTotal(tc.rooms); again != got {
				t.Errorf("second ComputeTotal = %d, want %d", again, got)
			}
		})
	}
}

func TestSetTotalEmitsOnChange(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("unread.", 4)
	defer unsub()

	s := NewState(b)
	s.SetTotal(3)

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindUnreadChanged {
			t.Errorf("kind = %q", evt.Kind)
		}
		if total, _ := evt.Payload.(int); total != 3 {
			t.Errorf("payload = %v, want 3", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no unread.changed event")
	}

	// same value again: no event
	s.SetTotal(3)
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %+v for unchanged total", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReset(t *testing.T) {
	s := NewState(nil)
	s.SetTotal(7)
	s.Reset()
	if s.Total() != 0 {
		t.Errorf("Total = %d after Reset", s.Total())
	}
}
