package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Well-known event kinds. Subscribers filter by namespace prefix, so the
// dotted segments matter: "room." catches every room lifecycle event.
const (
	KindRoomCreated     = "room.created"
	KindRoomDeleted     = "room.deleted"
	KindRoomRead        = "room.read"
	KindRoomListUpdated = "room.list_updated"

	KindMessageBatch      = "message.batch"
	KindMessageQueued     = "message.queued"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"

	KindSessionExpired       = "session.expired"
	KindSessionAuthenticated = "session.authenticated"
	KindSessionStatusChanged = "session.status_changed"

	KindSyncFailed = "sync.failed"

	KindUnreadChanged = "unread.changed"
	KindUIFocus       = "ui.focus"
)
