package market

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// The backend has shipped several shapes for the same logical records.
// Everything below maps any known raw shape into the canonical types in
// types.go before business logic ever sees it; new variants get added
// here and nowhere else.

type rawParty struct {
	ID       ID     `json:"id"`
	UserID   ID     `json:"userId"`
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
}

func (p *rawParty) toParty() Party {
	if p == nil {
		return Party{}
	}
	out := Party{ID: int64(p.ID), Nickname: p.Nickname}
	if out.ID == 0 {
		out.ID = int64(p.UserID)
	}
	if out.Nickname == "" {
		out.Nickname = p.Name
	}
	return out
}

type rawProduct struct {
	ID        ID     `json:"id"`
	ProductID ID     `json:"productId"`
	Title     string `json:"title"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Thumbnail string `json:"thumbnail"`
	ImageURL  string `json:"imageUrl"`
}

type rawLastMessage struct {
	Content   string `json:"content"`
	Text      string `json:"text"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	SentAt    string `json:"sentAt"`
}

type rawRoom struct {
	ID               ID              `json:"id"`
	RoomID           ID              `json:"roomId"`
	ChatRoomID       ID              `json:"chatRoomId"`
	Buyer            *rawParty       `json:"buyer"`
	Seller           *rawParty       `json:"seller"`
	BuyerID          ID              `json:"buyerId"`
	SellerID         ID              `json:"sellerId"`
	BuyerNickname    string          `json:"buyerNickname"`
	SellerNickname   string          `json:"sellerNickname"`
	Product          *rawProduct     `json:"product"`
	ProductID        ID              `json:"productId"`
	ProductTitle     string          `json:"productTitle"`
	ProductPrice     int64           `json:"productPrice"`
	ProductThumbnail string          `json:"productThumbnail"`
	LastMessage      json.RawMessage `json:"lastMessage"`
	LastMessageText  string          `json:"lastMessageContent"`
	LastMessageAt    string          `json:"lastMessageAt"`
	UpdatedAt        string          `json:"updatedAt"`
	CreatedAt        string          `json:"createdAt"`
	UnreadCount      int             `json:"unreadCount"`
}

func (r *rawRoom) normalize() Room {
	room := Room{
		UnreadCount: r.UnreadCount,
	}
	for _, id := range []ID{r.ID, r.RoomID, r.ChatRoomID} {
		if id != 0 {
			room.ID = int64(id)
			break
		}
	}

	room.Buyer = r.Buyer.toParty()
	if room.Buyer.ID == 0 {
		room.Buyer.ID = int64(r.BuyerID)
	}
	if room.Buyer.Nickname == "" {
		room.Buyer.Nickname = r.BuyerNickname
	}
	room.Seller = r.Seller.toParty()
	if room.Seller.ID == 0 {
		room.Seller.ID = int64(r.SellerID)
	}
	if room.Seller.Nickname == "" {
		room.Seller.Nickname = r.SellerNickname
	}

	if p := r.Product; p != nil {
		room.Product = Product{
			ID:        int64(p.ID),
			Title:     p.Title,
			Price:     p.Price,
			Thumbnail: p.Thumbnail,
		}
		if room.Product.ID == 0 {
			room.Product.ID = int64(p.ProductID)
		}
		if room.Product.Title == "" {
			room.Product.Title = p.Name
		}
		if room.Product.Thumbnail == "" {
			room.Product.Thumbnail = p.ImageURL
		}
	} else {
		room.Product = Product{
			ID:        int64(r.ProductID),
			Title:     r.ProductTitle,
			Price:     r.ProductPrice,
			Thumbnail: r.ProductThumbnail,
		}
	}

	// preview: nested object first, then flat string fields
	var lastAt string
	if len(r.LastMessage) > 0 {
		var nested rawLastMessage
		if err := json.Unmarshal(r.LastMessage, &nested); err == nil {
			room.LastMessage = firstNonEmpty(nested.Content, nested.Text, nested.Message)
			lastAt = firstNonEmpty(nested.CreatedAt, nested.SentAt)
		} else {
			var flat string
			if json.Unmarshal(r.LastMessage, &flat) == nil {
				room.LastMessage = flat
			}
		}
	}
	if room.LastMessage == "" {
		room.LastMessage = r.LastMessageText
	}
	if lastAt == "" {
		lastAt = firstNonEmpty(r.LastMessageAt, r.UpdatedAt, r.CreatedAt)
	}
	room.LastActivity = parseTime(lastAt)
	return room
}

type rawMessage struct {
	ID          ID        `json:"id"`
	MessageID   ID        `json:"messageId"`
	RoomID      ID        `json:"roomId"`
	ChatRoomID  ID        `json:"chatRoomId"`
	SenderID    ID        `json:"senderId"`
	Sender      *rawParty `json:"sender"`
	UserID      ID        `json:"userId"`
	Type        string    `json:"type"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content"`
	Message     string    `json:"message"`
	Text        string    `json:"text"`
	ImageURL    string    `json:"imageUrl"`
	MediaURL    string    `json:"mediaUrl"`
	FileURL     string    `json:"fileUrl"`
	CreatedAt   string    `json:"createdAt"`
	SentAt      string    `json:"sentAt"`
}

func (m *rawMessage) normalize() Message {
	msg := Message{
		Content:  firstNonEmpty(m.Content, m.Message, m.Text),
		MediaURL: firstNonEmpty(m.ImageURL, m.MediaURL, m.FileURL),
	}
	for _, id := range []ID{m.ID, m.MessageID} {
		if id != 0 {
			msg.ID = int64(id)
			break
		}
	}
	for _, id := range []ID{m.RoomID, m.ChatRoomID} {
		if id != 0 {
			msg.RoomID = int64(id)
			break
		}
	}
	msg.SenderID = int64(m.SenderID)
	if msg.SenderID == 0 && m.Sender != nil {
		msg.SenderID = m.Sender.toParty().ID
	}
	if msg.SenderID == 0 {
		msg.SenderID = int64(m.UserID)
	}

	msg.Kind = normalizeKind(firstNonEmpty(m.Type, m.MessageType), msg.MediaURL)
	msg.CreatedAt = parseTime(firstNonEmpty(m.CreatedAt, m.SentAt))
	return msg
}

func normalizeKind(raw, mediaURL string) string {
	switch strings.ToLower(raw) {
	case "image", "img", "photo":
		return "image"
	case "video":
		return "video"
	case "text", "":
		if raw == "" && mediaURL != "" {
			return "image"
		}
		return "text"
	default:
		return "text"
	}
}

type rawUser struct {
	ID              ID     `json:"id"`
	UserID          ID     `json:"userId"`
	KakaoID         ID     `json:"kakaoId"`
	Nickname        string `json:"nickname"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profileImageUrl"`
	ProfileImage    string `json:"profileImage"`
}

func (u *rawUser) normalize() User {
	out := User{
		KakaoID:         int64(u.KakaoID),
		Nickname:        firstNonEmpty(u.Nickname, u.Name),
		Email:           u.Email,
		ProfileImageURL: firstNonEmpty(u.ProfileImageURL, u.ProfileImage),
	}
	out.ID = int64(u.ID)
	if out.ID == 0 {
		out.ID = int64(u.UserID)
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime tolerates the timestamp encodings seen in the wild: RFC3339
// with and without zone, space-separated, or epoch milliseconds. Zero
// time on anything unrecognizable.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
