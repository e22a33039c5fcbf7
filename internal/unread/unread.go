// Package unread holds the process-wide unread badge aggregate. The room
// poller is the only writer; everything else reads.
package unread

import (
	"sync"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/market"
)

// ComputeTotal sums per-room unread counts. Pure function of its input:
// applying it twice to the same list yields the same integer.
func ComputeTotal(rooms []market.Room) int {
	total := 0
	for i := range rooms {
		if rooms[i].UnreadCount > 0 {
			total += rooms[i].UnreadCount
		}
	}
	return total
}

// State is the shared badge counter.
type State struct {
	mu    sync.RWMutex
	total int
	bus   *bus.Bus
}

func NewState(b *bus.Bus) *State {
	return &State{bus: b}
}

// Total returns the current global unread count.
func (s *State) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// SetTotal replaces the aggregate and announces the change. Setting the
// same value twice publishes nothing.
func (s *State) SetTotal(total int) {
	s.mu.Lock()
	changed := total != s.total
	s.total = total
	s.mu.Unlock()

	if changed && s.bus != nil {
		s.bus.Emit(bus.KindUnreadChanged, total)
	}
}

// Reset zeroes the badge, used when the session goes away.
func (s *State) Reset() {
	s.SetTotal(0)
}
