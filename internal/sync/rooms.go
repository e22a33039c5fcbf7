package sync

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/identity"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/unread"
)

// RoomLister is the slice of the marketplace client the poller needs.
type RoomLister interface {
	ListRooms(ctx context.Context, userID int64) ([]market.Room, error)
}

// IdentityResolver yields the current user, or nil when logged out.
type IdentityResolver interface {
	Resolve() (*identity.Identity, error)
}

// RoomView is a room after side reconciliation. Peer is the opposite seat
// from the current user; Unreconciled means neither seat matched and the
// room must not gate writes.
type RoomView struct {
	market.Room
	MySide       string // "buyer", "seller", or ""
	Peer         market.Party
	Unreconciled bool
}

// RoomPoller keeps the room directory fresh. It polls on a fixed cadence
// with jitter, and re-polls early when room lifecycle events land on the
// bus or the UI regains focus. It is the single writer of the unread
// aggregate.
type RoomPoller struct {
	client   RoomLister
	resolver IdentityResolver
	bus      *bus.Bus
	unread   *unread.State
	log      *zap.Logger

	interval time.Duration
	jitter   time.Duration

	mu    sync.RWMutex
	rooms []RoomView

	kick   chan time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRoomPoller(client RoomLister, resolver IdentityResolver, b *bus.Bus, u *unread.State, log *zap.Logger, interval, jitter time.Duration) *RoomPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &RoomPoller{
		client:   client,
		resolver: resolver,
		bus:      b,
		unread:   u,
		log:      log.Named("rooms"),
		interval: interval,
		jitter:   jitter,
		kick:     make(chan time.Duration, 8),
	}
}

// Delays before an event-driven re-poll. Creation needs a beat for the
// server to persist the room; read receipts settle faster.
const (
	createdRepollDelay = 500 * time.Millisecond
	readRepollDelay    = 300 * time.Millisecond
)

// Start begins the poll loop and the bus-triggered refresh handling.
func (p *RoomPoller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	events, unsub := p.bus.Subscribe("room.", 64)
	focus, unsubFocus := p.bus.Subscribe(bus.KindUIFocus, 8)

	go func() {
		defer close(p.done)
		defer unsub()
		defer unsubFocus()

		p.tick(ctx)
		timer := time.NewTimer(p.nextInterval())
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				p.tick(ctx)
				timer.Reset(p.nextInterval())
			case delay := <-p.kick:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(delay)
			case evt := <-events:
				switch evt.Kind {
				case bus.KindRoomCreated:
					p.Kick(createdRepollDelay)
				case bus.KindRoomRead:
					p.Kick(readRepollDelay)
				case bus.KindRoomDeleted:
					p.Kick(0)
				}
			case <-focus:
				p.Kick(0)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit.
func (p *RoomPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

// Kick schedules an early poll after the given delay. Zero means as soon
// as the loop services the request.
func (p *RoomPoller) Kick(delay time.Duration) {
	select {
	case p.kick <- delay:
	default:
	}
}

// Rooms returns the latest reconciled directory snapshot.
func (p *RoomPoller) Rooms() []RoomView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]RoomView, len(p.rooms))
	copy(out, p.rooms)
	return out
}

func (p *RoomPoller) nextInterval() time.Duration {
	if p.jitter <= 0 {
		return p.interval
	}
	return p.interval + time.Duration(rand.Int63n(int64(p.jitter)))
}

// tick runs one directory sync. Any failure yields an empty visible list
// and leaves the unread total untouched; a missing identity short-circuits
// without a network call and zeroes the badge.
func (p *RoomPoller) tick(ctx context.Context) {
	me, err := p.resolver.Resolve()
	if err != nil || me == nil {
		p.setRooms(nil)
		p.unread.Reset()
		return
	}

	userID := me.LocalID
	if userID == 0 {
		userID = me.ForeignID
	}

	raw, err := p.client.ListRooms(ctx, userID)
	if err != nil {
		p.log.Warn("room list fetch failed", zap.Error(err))
		p.setRooms(nil)
		p.bus.Emit(bus.KindSyncFailed, err)
		return
	}

	views := make([]RoomView, 0, len(raw))
	for i := range raw {
		views = append(views, Reconcile(raw[i], me))
	}
	p.setRooms(views)
	p.unread.SetTotal(unread.ComputeTotal(raw))

	p.bus.Emit(bus.KindRoomListUpdated, views)
}

// Reconcile determines which seat the current user occupies, comparing
// against both identifier spaces before declaring "not mine".
func Reconcile(room market.Room, me *identity.Identity) RoomView {
	view := RoomView{Room: room}
	if me == nil {
		view.Unreconciled = true
		return view
	}
	buyerRef := identity.Ref{LocalID: room.Buyer.ID}
	sellerRef := identity.Ref{LocalID: room.Seller.ID}
	switch {
	case me.Matches(buyerRef):
		view.MySide = "buyer"
		view.Peer = room.Seller
	case me.Matches(sellerRef):
		view.MySide = "seller"
		view.Peer = room.Buyer
	default:
		view.Unreconciled = true
	}
	return view
}

func (p *RoomPoller) setRooms(views []RoomView) {
	p.mu.Lock()
	p.rooms = views
	p.mu.Unlock()
}
