package api

import "github.com/jyoon-dev/ssak3/internal/sync"

// StatusResponse is the daemon health/state snapshot.
type StatusResponse struct {
	State       string `json:"state"`
	Session     string `json:"session"`
	LoggedIn    bool   `json:"logged_in"`
	LocalID     int64  `json:"local_id,omitempty"`
	ForeignID   int64  `json:"foreign_id,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	UnreadTotal int    `json:"unread_total"`
	RoomCount   int    `json:"room_count"`
}

// AuthURLResponse carries the provider authorize URL for the login flow.
type AuthURLResponse struct {
	URL string `json:"url"`
}

// LoginRequest is the OAuth code handed back by the provider redirect.
type LoginRequest struct {
	Code string `json:"code"`
}

// RoomResponse is one reconciled directory entry.
type RoomResponse struct {
	ID           int64  `json:"id"`
	PeerName     string `json:"peer_name"`
	MySide       string `json:"my_side"`
	Unreconciled bool   `json:"unreconciled,omitempty"`
	ProductTitle string `json:"product_title"`
	ProductPrice int64  `json:"product_price"`
	LastMessage  string `json:"last_message"`
	LastActivity int64  `json:"last_activity"`
	UnreadCount  int    `json:"unread_count"`
}

// MessagesResponse is a room's merged history plus its bootstrap context.
type MessagesResponse struct {
	RoomID      int64           `json:"room_id"`
	PeerName    string          `json:"peer_name"`
	ProductName string          `json:"product_name"`
	Placeholder bool            `json:"placeholder"`
	CanSend     bool            `json:"can_send"`
	Entries     []EntryResponse `json:"entries"`
}

// EntryResponse is one rendered message row.
type EntryResponse struct {
	Key      string `json:"key"`
	Mine     bool   `json:"mine"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
	MediaURL string `json:"media_url,omitempty"`
	Status   string `json:"status"`
	Pending  bool   `json:"pending,omitempty"`
	SentAt   int64  `json:"sent_at"`
}

// SendTextRequest is a composed text message.
type SendTextRequest struct {
	Content string `json:"content"`
}

// SendMediaRequest points at a local file to attach.
type SendMediaRequest struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// SendResponse returns the temp id the entry renders under.
type SendResponse struct {
	TempID string `json:"temp_id"`
}

// CreateRoomRequest opens a buyer-initiated room.
type CreateRoomRequest struct {
	ProductID int64 `json:"product_id"`
}

// CreateRoomResponse returns the room for immediate navigation.
type CreateRoomResponse struct {
	RoomID int64 `json:"room_id"`
}

func entryResponse(e sync.Entry) EntryResponse {
	var sentAt int64
	if !e.Message.CreatedAt.IsZero() {
		sentAt = e.Message.CreatedAt.UnixMilli()
	}
	return EntryResponse{
		Key:      e.Key,
		Mine:     e.Mine,
		Kind:     e.Message.Kind,
		Content:  e.Message.Content,
		MediaURL: e.Message.MediaURL,
		Status:   e.Status,
		Pending:  e.Pending,
		SentAt:   sentAt,
	}
}
