package sync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/identity"
	"github.com/jyoon-dev/ssak3/internal/store"
)

// Archiver mirrors synced state into the local database so history and
// the unread badge render before the first poll after a restart. It
// consumes the pollers' bus events; ingestion is idempotent, so replays
// and overlapping batches are harmless.
type Archiver struct {
	db     *store.DB
	bus    *bus.Bus
	log    *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewArchiver(db *store.DB, b *bus.Bus, log *zap.Logger) *Archiver {
	return &Archiver{db: db, bus: b, log: log.Named("archiver")}
}

// Start subscribes to sync events on the bus.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	rooms, unsubRooms := a.bus.Subscribe(bus.KindRoomListUpdated, 64)
	msgs, unsubMsgs := a.bus.Subscribe(bus.KindMessageBatch, 256)
	badge, unsubBadge := a.bus.Subscribe(bus.KindUnreadChanged, 64)

	go func() {
		defer close(a.done)
		defer unsubRooms()
		defer unsubMsgs()
		defer unsubBadge()
		for {
			select {
			case evt := <-rooms:
				views, ok := evt.Payload.([]RoomView)
				if !ok {
					continue
				}
				if err := a.IngestRooms(views); err != nil {
					a.log.Error("ingesting room list", zap.Error(err))
				}
			case evt := <-msgs:
				batch, ok := evt.Payload.(MessageBatch)
				if !ok {
					continue
				}
				if err := a.IngestBatch(batch); err != nil {
					a.log.Error("ingesting message batch", zap.Int64("room", batch.RoomID), zap.Error(err))
				}
			case evt := <-badge:
				total, ok := evt.Payload.(int)
				if !ok {
					continue
				}
				if err := a.db.SetState("unread_total", strconv.Itoa(total)); err != nil {
					a.log.Error("persisting unread total", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the archiver.
func (a *Archiver) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

// IngestRooms upserts a reconciled room directory snapshot.
func (a *Archiver) IngestRooms(views []RoomView) error {
	for i := range views {
		v := &views[i]
		err := a.db.UpsertRoom(&store.Room{
			ID:               v.ID,
			BuyerID:          v.Buyer.ID,
			BuyerNickname:    v.Buyer.Nickname,
			SellerID:         v.Seller.ID,
			SellerNickname:   v.Seller.Nickname,
			ProductID:        v.Product.ID,
			ProductTitle:     v.Product.Title,
			ProductPrice:     v.Product.Price,
			ProductThumbnail: v.Product.Thumbnail,
			LastMessage:      v.LastMessage,
			LastActivity:     v.LastActivity.UnixMilli(),
			UnreadCount:      v.UnreadCount,
			MySide:           v.MySide,
		})
		if err != nil {
			return fmt.Errorf("upsert room %d: %w", v.ID, err)
		}
	}
	return nil
}

// IngestBatch upserts one poll's message history in a transaction.
func (a *Archiver) IngestBatch(batch MessageBatch) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range batch.Messages {
		m := &batch.Messages[i]
		if m.ID == 0 {
			continue
		}
		mine := batch.Me != nil && m.SenderID != 0 && batch.Me.Matches(identity.Ref{LocalID: m.SenderID})
		if _, err := tx.Exec(`
			INSERT INTO messages (room_id, server_id, temp_id, sender_id, mine, kind, content, media_url, status, sent_at, created_at)
			VALUES (?, ?, '', ?, ?, ?, ?, ?, 'sent', ?, ?)
			ON CONFLICT(room_id, server_id) WHERE server_id != 0 DO UPDATE SET
				content = excluded.content,
				media_url = excluded.media_url,
				status = excluded.status,
				sent_at = excluded.sent_at`,
			batch.RoomID, m.ID, m.SenderID, mine, m.Kind, m.Content, m.MediaURL,
			m.CreatedAt.UnixMilli(), time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("upsert message %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
