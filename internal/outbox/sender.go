package outbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/market"
	"github.com/jyoon-dev/ssak3/internal/store"
	"github.com/jyoon-dev/ssak3/internal/sync"
)

var (
	// ErrEmptyContent rejects whitespace-only sends before any I/O.
	ErrEmptyContent = errors.New("outbox: empty message content")

	// ErrRoomNotReady means the target room has no resolved identity
	// context yet; the composer should show "still loading" instead of
	// attempting the write.
	ErrRoomNotReady = errors.New("outbox: room not ready")
)

// MessageSender is the slice of the marketplace client the sender needs.
type MessageSender interface {
	SendText(ctx context.Context, roomID, senderID int64, content string) (int64, error)
	SendMedia(ctx context.Context, roomID, senderID int64, filePath, kind string) (int64, error)
}

// SendGate answers whether a room may accept writes right now.
type SendGate interface {
	CanSend(roomID int64) bool
}

// Sender owns the optimistic send pipeline: queue an entry with a temp
// id, render it immediately as "sending", drain it to the server, then
// announce the ack so the feed can reconcile.
type Sender struct {
	db       *store.DB
	client   MessageSender
	gate     SendGate
	resolver sync.IdentityResolver
	bus      *bus.Bus
	log      *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSender(db *store.DB, client MessageSender, gate SendGate, resolver sync.IdentityResolver, b *bus.Bus, log *zap.Logger) *Sender {
	return &Sender{
		db:       db,
		client:   client,
		gate:     gate,
		resolver: resolver,
		bus:      b,
		log:      log.Named("outbox"),
	}
}

// NewTempID generates a client message id. The "tmp_" prefix guarantees
// it can never collide with a server-assigned numeric id.
func NewTempID() string {
	return "tmp_" + uuid.NewString()
}

// QueueText validates and enqueues a text message, returning the temp id
// the UI should render under. The entry is visible as "sending" before
// any network call is issued.
func (s *Sender) QueueText(roomID int64, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if roomID <= 0 || (s.gate != nil && !s.gate.CanSend(roomID)) {
		return "", ErrRoomNotReady
	}

	tempID := NewTempID()
	if err := s.db.QueueOutbox(&store.OutboxEntry{
		TempID:  tempID,
		RoomID:  roomID,
		Kind:    "text",
		Content: content,
	}); err != nil {
		return "", fmt.Errorf("queueing message: %w", err)
	}
	s.bus.Emit(bus.KindMessageQueued, sync.SendAck{RoomID: roomID, TempID: tempID})
	return tempID, nil
}

// QueueMedia stages an attachment and enqueues it. The staged copy is the
// local preview handle; it is deleted once the entry resolves so a long
// session does not accumulate orphaned files.
func (s *Sender) QueueMedia(roomID int64, srcPath, kind string, stageDir string) (string, error) {
	if roomID <= 0 || (s.gate != nil && !s.gate.CanSend(roomID)) {
		return "", ErrRoomNotReady
	}
	if kind != "image" && kind != "video" {
		return "", fmt.Errorf("outbox: unsupported media kind %q", kind)
	}

	tempID := NewTempID()
	staged, err := stageMedia(srcPath, stageDir, tempID)
	if err != nil {
		return "", fmt.Errorf("staging media: %w", err)
	}

	if err := s.db.QueueOutbox(&store.OutboxEntry{
		TempID:    tempID,
		RoomID:    roomID,
		Kind:      kind,
		MediaPath: staged,
	}); err != nil {
		_ = os.Remove(staged)
		return "", fmt.Errorf("queueing media: %w", err)
	}
	s.bus.Emit(bus.KindMessageQueued, sync.SendAck{RoomID: roomID, TempID: tempID})
	return tempID, nil
}

// Start begins draining the outbox.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.log.Error("reading outbox", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	me, err := s.resolver.Resolve()
	if err != nil || me == nil {
		// no session: entries stay queued until re-auth
		return
	}
	senderID := me.LocalID
	if senderID == 0 {
		senderID = me.ForeignID
	}

	for _, entry := range pending {
		s.sendOne(ctx, entry, senderID)
	}
}

func (s *Sender) sendOne(ctx context.Context, entry store.OutboxEntry, senderID int64) {
	if err := s.db.MarkOutboxSending(entry.TempID); err != nil {
		s.log.Error("marking sending", zap.String("temp_id", entry.TempID), zap.Error(err))
		return
	}

	now := time.Now().UnixMilli()
	// Optimistic insert: the message is in the local mirror immediately.
	_ = s.db.UpsertMessage(&store.Message{
		RoomID:   entry.RoomID,
		TempID:   entry.TempID,
		Mine:     true,
		Kind:     entry.Kind,
		Content:  entry.Content,
		MediaURL: entry.MediaPath,
		Status:   "sending",
		SentAt:   now,
	})

	var serverID int64
	var err error
	switch entry.Kind {
	case "text":
		serverID, err = s.client.SendText(ctx, entry.RoomID, senderID, entry.Content)
	default:
		serverID, err = s.client.SendMedia(ctx, entry.RoomID, senderID, entry.MediaPath, entry.Kind)
	}

	if err != nil {
		s.log.Warn("send failed", zap.String("temp_id", entry.TempID), zap.Error(err))
		_ = s.db.MarkOutboxFailed(entry.TempID, err.Error())
		// the web client removed failed messages from the list outright;
		// the mirror row goes with it
		_ = s.db.DeleteMessageByTempID(entry.TempID)
		s.release(entry)
		s.bus.Emit(bus.KindMessageSendFailed, sync.SendAck{RoomID: entry.RoomID, TempID: entry.TempID})
		return
	}

	if err := s.db.MarkOutboxSent(entry.TempID, serverID); err != nil {
		s.log.Error("marking sent", zap.String("temp_id", entry.TempID), zap.Error(err))
	}
	_ = s.db.UpsertMessage(&store.Message{
		RoomID:   entry.RoomID,
		ServerID: serverID,
		TempID:   entry.TempID,
		Mine:     true,
		Kind:     entry.Kind,
		Content:  entry.Content,
		MediaURL: entry.MediaPath,
		Status:   "sent",
		SentAt:   now,
	})
	s.release(entry)

	s.log.Info("message sent",
		zap.String("temp_id", entry.TempID),
		zap.Int64("server_id", serverID),
		zap.Int64("room", entry.RoomID))
	s.bus.Emit(bus.KindMessageSendAck, sync.SendAck{
		RoomID:   entry.RoomID,
		TempID:   entry.TempID,
		ServerID: serverID,
	})
}

// release frees the staged media copy once it is no longer needed for
// rendering.
func (s *Sender) release(entry store.OutboxEntry) {
	if entry.MediaPath == "" {
		return
	}
	if err := os.Remove(entry.MediaPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("removing staged media", zap.String("path", entry.MediaPath), zap.Error(err))
	}
}

var _ MessageSender = (*market.Client)(nil)
