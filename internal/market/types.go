package market

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// ID tolerates the numeric-or-string encoding the backend has shipped at
// different times for the same fields. Null and empty string decode to 0.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*id = ID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// User is a marketplace account as returned by the user endpoints.
type User struct {
	ID              int64
	KakaoID         int64
	Nickname        string
	Email           string
	ProfileImageURL string
}

// Party is one side of a conversation room.
type Party struct {
	ID       int64
	Nickname string
}

// Product is the listing summary attached to a room.
type Product struct {
	ID        int64
	Title     string
	Price     int64
	Thumbnail string
}

// Room is the canonical conversation-room record after normalization.
type Room struct {
	ID           int64
	Buyer        Party
	Seller       Party
	Product      Product
	LastMessage  string
	LastActivity time.Time
	UnreadCount  int
}

// Message is the canonical message record after normalization. Kind is
// one of "text", "image", "video".
type Message struct {
	ID        int64
	RoomID    int64
	SenderID  int64
	Kind      string
	Content   string
	MediaURL  string
	CreatedAt time.Time
}

// AuthResult is the payload of a successful code exchange.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	Profile      User
}
