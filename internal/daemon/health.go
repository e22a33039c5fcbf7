package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/status"
)

// degradedAfter is the number of consecutive failed directory polls
// before a READY daemon is marked DEGRADED.
const degradedAfter = 2

// Health watches sync outcomes on the bus and drives the READY⇄DEGRADED
// transitions; a single successful directory poll recovers. It also
// forces AUTH_REQUIRED when the session expires, wherever the 401 came
// from.
type Health struct {
	machine *status.Machine
	bus     *bus.Bus
	log     *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHealth(machine *status.Machine, b *bus.Bus, log *zap.Logger) *Health {
	return &Health{
		machine: machine,
		bus:     b,
		log:     log.Named("health"),
	}
}

// Start begins watching. Stop with Stop.
func (h *Health) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})

	failures, unsubFail := h.bus.Subscribe(bus.KindSyncFailed, 16)
	updates, unsubOK := h.bus.Subscribe(bus.KindRoomListUpdated, 16)
	expired, unsubExp := h.bus.Subscribe(bus.KindSessionExpired, 4)

	go func() {
		defer close(h.done)
		defer unsubFail()
		defer unsubOK()
		defer unsubExp()

		consecutive := 0
		for {
			select {
			case <-expired:
				consecutive = 0
				if cur := h.machine.Current(); cur != status.AuthRequired && cur != status.Authenticating {
					h.log.Warn("session expired, authentication required")
					_ = h.machine.Transition(status.AuthRequired)
				}
			case <-failures:
				consecutive++
				if consecutive >= degradedAfter && h.machine.Current() == status.Ready {
					h.log.Warn("marking session degraded", zap.Int("consecutive_failures", consecutive))
					_ = h.machine.Transition(status.Degraded)
				}
			case <-updates:
				consecutive = 0
				if h.machine.Current() == status.Degraded {
					h.log.Info("session recovered")
					_ = h.machine.Transition(status.Ready)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the watcher and waits for it to exit.
func (h *Health) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}
}
