package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/store"
)

// FeedManager owns the per-room feeds. A feed is created lazily when a
// room is first focused and keeps polling until the room is left or the
// daemon stops. It is also the send gate: writes are only allowed into
// rooms whose feed has bootstrapped a resolved seat.
type FeedManager struct {
	client   MessageFetcher
	resolver IdentityResolver
	db       *store.DB
	bus      *bus.Bus
	log      *zap.Logger
	interval time.Duration

	mu    sync.Mutex
	feeds map[int64]*RoomFeed
	ctx   context.Context
	stop  context.CancelFunc
}

func NewFeedManager(client MessageFetcher, resolver IdentityResolver, db *store.DB, b *bus.Bus, log *zap.Logger, interval time.Duration) *FeedManager {
	return &FeedManager{
		client:   client,
		resolver: resolver,
		db:       db,
		bus:      b,
		log:      log,
		interval: interval,
		feeds:    make(map[int64]*RoomFeed),
	}
}

// Start makes the manager live; feeds opened before Start are not a thing.
func (m *FeedManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx, m.stop = context.WithCancel(ctx)
}

// Stop closes every open feed.
func (m *FeedManager) Stop() {
	m.mu.Lock()
	feeds := m.feeds
	m.feeds = make(map[int64]*RoomFeed)
	stop := m.stop
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, f := range feeds {
		f.Stop()
	}
}

// Open returns the feed for a room, starting one if needed.
func (m *FeedManager) Open(roomID int64) *RoomFeed {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.feeds[roomID]; ok {
		return f
	}
	f := NewRoomFeed(roomID, m.client, m.resolver, m.db, m.bus, m.log, m.interval)
	m.feeds[roomID] = f
	if m.ctx != nil {
		f.Start(m.ctx)
	}
	return f
}

// Close stops and discards one room's feed; a poll already in flight is
// dropped rather than applied.
func (m *FeedManager) Close(roomID int64) {
	m.mu.Lock()
	f, ok := m.feeds[roomID]
	delete(m.feeds, roomID)
	m.mu.Unlock()

	if ok {
		f.Stop()
	}
}

// Peek returns the feed if one is open, without creating it.
func (m *FeedManager) Peek(roomID int64) *RoomFeed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feeds[roomID]
}

// CanSend reports whether a room may accept writes: its feed must exist,
// be bootstrapped, and have resolved a real seat.
func (m *FeedManager) CanSend(roomID int64) bool {
	f := m.Peek(roomID)
	return f != nil && f.CanSend()
}
