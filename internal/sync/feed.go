package sync

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/identity"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/store"
)

// MessageFetcher is the slice of the marketplace client a feed needs.
type MessageFetcher interface {
	GetRoom(ctx context.Context, roomID int64) (market.Room, error)
	ListMessages(ctx context.Context, roomID int64) ([]market.Message, error)
}

// RoomMeta is the room-level identity context established by bootstrap.
// Placeholder means the server had no usable record; the feed still
// renders, read-only.
type RoomMeta struct {
	RoomID      int64
	Peer        market.Party
	Product     market.Product
	MySide      string
	Placeholder bool
}

// Entry is one rendered message. Key is stable across the optimistic-to-
// confirmed transition: the server id once known, otherwise the temp id.
type Entry struct {
	Key     string
	Message market.Message
	Mine    bool
	Status  string // sending, sent
	Pending bool
}

// SendAck is the payload of message.send_ack events.
type SendAck struct {
	RoomID   int64
	TempID   string
	ServerID int64
}

// MessageBatch is the payload of message.batch events: one successful
// poll's canonical history, with the identity it was resolved against.
type MessageBatch struct {
	RoomID   int64
	Messages []market.Message
	Me       *identity.Identity
}

// RoomFeed synchronizes one room's message history. Bootstrap must finish
// before the first poll: sender-role resolution depends on room-level
// identity context, so this is a hard gate, not an ordering preference.
// Each poll replaces the confirmed list wholesale, then unresolved
// optimistic sends are overlaid until individually reconciled.
type RoomFeed struct {
	roomID   int64
	client   MessageFetcher
	resolver IdentityResolver
	db       *store.DB
	bus      *bus.Bus
	log      *zap.Logger
	interval time.Duration

	ready chan struct{}

	mu       sync.RWMutex
	meta     RoomMeta
	entries  []Entry
	acks     map[string]int64 // temp id -> server id captured at send time
	sentSeen map[string]bool  // empty-ack entries observed by a successful poll

	kick   chan time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRoomFeed(roomID int64, client MessageFetcher, resolver IdentityResolver, db *store.DB, b *bus.Bus, log *zap.Logger, interval time.Duration) *RoomFeed {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &RoomFeed{
		roomID:   roomID,
		client:   client,
		resolver: resolver,
		db:       db,
		bus:      b,
		log:      log.Named("feed").With(zap.Int64("room", roomID)),
		interval: interval,
		ready:    make(chan struct{}),
		acks:     make(map[string]int64),
		sentSeen: make(map[string]bool),
		kick:     make(chan time.Duration, 8),
	}
}

// Start bootstraps the room and begins polling.
func (f *RoomFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})

	events, unsub := f.bus.Subscribe("message.", 64)

	go func() {
		defer close(f.done)
		defer unsub()

		f.bootstrapMeta(ctx)
		close(f.ready)
		f.poll(ctx)

		timer := time.NewTimer(f.interval)
		defer timer.Stop()
		for {
			select {
			case <-timer.C:
				f.poll(ctx)
				timer.Reset(f.interval)
			case delay := <-f.kick:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(delay)
			case evt := <-events:
				f.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the loop; late poll responses are dropped, not applied.
func (f *RoomFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
}

// Ready is closed once bootstrap has completed, successfully or with the
// placeholder fallback.
func (f *RoomFeed) Ready() <-chan struct{} {
	return f.ready
}

// Meta returns the bootstrapped room context.
func (f *RoomFeed) Meta() RoomMeta {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.meta
}

// CanSend reports whether writes may target this room: bootstrap done and
// the room resolved to a real record with a known seat.
func (f *RoomFeed) CanSend() bool {
	select {
	case <-f.ready:
	default:
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.meta.Placeholder && f.meta.MySide != ""
}

// Snapshot returns the current merged message list, oldest first.
func (f *RoomFeed) Snapshot() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// RequestRepoll schedules an early poll. The delay is clamped so a burst
// of acks cannot hammer the server, and persistence gets a beat to settle.
func (f *RoomFeed) RequestRepoll(delay time.Duration) {
	const min, max = 200 * time.Millisecond, 2 * time.Second
	if delay < min {
		delay = min
	}
	if delay > max {
		delay = max
	}
	select {
	case f.kick <- delay:
	default:
	}
}

func (f *RoomFeed) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessageSendAck:
		ack, ok := evt.Payload.(SendAck)
		if !ok || ack.RoomID != f.roomID {
			return
		}
		f.mu.Lock()
		f.acks[ack.TempID] = ack.ServerID
		f.mu.Unlock()
		f.RequestRepoll(750 * time.Millisecond)
		f.rebuild(nil, overlayOnly)
	case bus.KindMessageQueued:
		ack, ok := evt.Payload.(SendAck)
		if !ok || ack.RoomID != f.roomID {
			return
		}
		f.rebuild(nil, overlayOnly)
	case bus.KindMessageSendFailed:
		// the failed entry just stops overlaying; rebuild drops it
		f.rebuild(nil, overlayOnly)
	}
}

// bootstrapMeta resolves the room's identity context. Not-found and
// transient failures both fall open to a placeholder so the UI never
// blocks indefinitely; only the placeholder flag distinguishes them from
// a resolved room, and it gates writes.
func (f *RoomFeed) bootstrapMeta(ctx context.Context) {
	me, _ := f.resolver.Resolve()

	room, err := f.client.GetRoom(ctx, f.roomID)
	if err != nil {
		if !errors.Is(err, market.ErrNotFound) {
			f.log.Warn("room bootstrap failed", zap.Error(err))
		}
		f.setMeta(placeholderMeta(f.roomID))
		return
	}

	view := Reconcile(room, me)
	meta := RoomMeta{
		RoomID:  f.roomID,
		Peer:    view.Peer,
		Product: room.Product,
		MySide:  view.MySide,
	}
	if view.Unreconciled {
		meta.Peer = room.Seller
	}
	f.setMeta(meta)
}

func placeholderMeta(roomID int64) RoomMeta {
	return RoomMeta{
		RoomID:      roomID,
		Peer:        market.Party{Nickname: "상대방"},
		Product:     market.Product{Title: "알 수 없는 상품"},
		Placeholder: true,
	}
}

func (f *RoomFeed) setMeta(meta RoomMeta) {
	f.mu.Lock()
	f.meta = meta
	f.mu.Unlock()
}

// poll runs one history sync tick. A fetch failure replaces the confirmed
// list with nothing, matching the directory poller's fail-empty policy;
// pending sends still overlay so composed text never silently vanishes
// mid-flight.
func (f *RoomFeed) poll(ctx context.Context) {
	msgs, err := f.client.ListMessages(ctx, f.roomID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			f.log.Warn("message fetch failed", zap.Error(err))
		}
		f.rebuild(nil, dropConfirmed)
		return
	}
	f.rebuild(msgs, replaceConfirmed)

	me, _ := f.resolver.Resolve()
	f.bus.Emit(bus.KindMessageBatch, MessageBatch{
		RoomID:   f.roomID,
		Messages: msgs,
		Me:       me,
	})
}

// rebuildMode selects what happens to the confirmed list on a rebuild.
type rebuildMode int

const (
	// overlayOnly keeps the previous confirmed list and refreshes the
	// outbox overlay (send lifecycle events).
	overlayOnly rebuildMode = iota
	// replaceConfirmed installs a successful poll's result wholesale.
	replaceConfirmed
	// dropConfirmed is a failed poll: the confirmed list faithfully
	// empties for this tick while pending sends keep overlaying.
	dropConfirmed
)

// rebuild merges confirmed messages with the unresolved outbox overlay.
func (f *RoomFeed) rebuild(confirmed []market.Message, mode rebuildMode) {
	me, _ := f.resolver.Resolve()

	f.mu.Lock()
	defer f.mu.Unlock()

	var base []Entry
	switch mode {
	case replaceConfirmed:
		base = make([]Entry, 0, len(confirmed))
		for i := range confirmed {
			m := confirmed[i]
			base = append(base, Entry{
				Key:     strconv.FormatInt(m.ID, 10),
				Message: m,
				Mine:    f.isMine(m.SenderID, me),
				Status:  "sent",
			})
		}
	case overlayOnly:
		for _, e := range f.entries {
			if !e.Pending {
				base = append(base, e)
			}
		}
	case dropConfirmed:
	}

	confirmedIDs := make(map[int64]bool, len(base))
	for _, e := range base {
		confirmedIDs[e.Message.ID] = true
	}

	var overlay []store.OutboxEntry
	if f.db != nil {
		var err error
		overlay, err = f.db.UnresolvedOutbox(f.roomID)
		if err != nil {
			f.log.Error("loading outbox overlay", zap.Error(err))
		}
	}

	for _, o := range overlay {
		serverID := o.ServerMsgID
		if serverID == 0 {
			serverID = f.acks[o.TempID]
		}

		if o.Status == "sent" {
			if serverID != 0 {
				if confirmedIDs[serverID] {
					f.retire(o.TempID)
					continue
				}
			} else if mode == replaceConfirmed {
				// empty-body ack: give the server one full successful
				// poll to surface the message before dropping the overlay
				if f.sentSeen[o.TempID] {
					f.retire(o.TempID)
					continue
				}
				f.sentSeen[o.TempID] = true
			}
		}

		status := "sending"
		if o.Status == "sent" {
			status = "sent"
		}
		base = append(base, Entry{
			Key:     o.TempID,
			Message: market.Message{ID: serverID, RoomID: o.RoomID, Kind: o.Kind, Content: o.Content, MediaURL: o.MediaPath},
			Mine:    true,
			Status:  status,
			Pending: true,
		})
	}

	f.entries = base
}

func (f *RoomFeed) retire(tempID string) {
	if f.db != nil {
		if err := f.db.ResolveOutbox(tempID); err != nil {
			f.log.Error("retiring outbox entry", zap.String("temp_id", tempID), zap.Error(err))
		}
	}
	delete(f.acks, tempID)
	delete(f.sentSeen, tempID)
}

func (f *RoomFeed) isMine(senderID int64, me *identity.Identity) bool {
	if me == nil || senderID == 0 {
		return false
	}
	return me.Matches(identity.Ref{LocalID: senderID})
}
