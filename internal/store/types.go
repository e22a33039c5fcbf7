package store

// Room is the locally mirrored conversation room. MySide records which
// seat the current user occupies after reconciliation: "buyer", "seller",
// or "" when neither identifier matched.
type Room struct {
	ID               int64
	BuyerID          int64
	BuyerNickname    string
	SellerID         int64
	SellerNickname   string
	ProductID        int64
	ProductTitle     string
	ProductPrice     int64
	ProductThumbnail string
	LastMessage      string
	LastActivity     int64
	UnreadCount      int
	MySide           string
}

// Message is a locally mirrored message. ServerID is 0 until the server
// assigns one; TempID is set only for locally originated messages and is
// the durable display key when the server never returns an id.
type Message struct {
	ID       int64
	RoomID   int64
	ServerID int64
	TempID   string
	SenderID int64
	Mine     bool
	Kind     string
	Content  string
	MediaURL string
	Status   string // sending, sent, failed
	SentAt   int64
}

// OutboxEntry is a pending or resolved optimistic send.
type OutboxEntry struct {
	ID           int64
	TempID       string
	RoomID       int64
	Kind         string
	Content      string
	MediaPath    string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  int64
}
