package market

import (
	"encoding/json"
	"testing"
	"time"
)

func decodeRoom(t *testing.T, raw string) Room {
	t.Helper()
	var r rawRoom
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return r.normalize()
}

func TestNormalizeRoomNestedShape(t *testing.T) {
	room := decodeRoom(t, `{
		"id": 5,
		"buyer": {"id": 1, "nickname": "buyer-kim"},
		"seller": {"id": 2, "nickname": "seller-lee"},
		"product": {"id": 77, "title": "desk lamp", "price": 12000, "thumbnail": "http://x/t.jpg"},
		"lastMessage": {"content": "is it available?", "createdAt": "2026-08-30T10:00:00Z"},
		"unreadCount": 3
	}`)

	if room.ID != 5 || room.Buyer.ID != 1 || room.Seller.ID != 2 {
		t.Errorf("ids: %+v", room)
	}
	if room.Product.Title != "desk lamp" || room.Product.Price != 12000 {
		t.Errorf("product: %+v", room.Product)
	}
	if room.LastMessage != "is it available?" {
		t.Errorf("preview: %q", room.LastMessage)
	}
	want := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	if !room.LastActivity.Equal(want) {
		t.Errorf("activity: %v", room.LastActivity)
	}
	if room.UnreadCount != 3 {
		t.Errorf("unread: %d", room.UnreadCount)
	}
}

func TestNormalizeRoomFlatShape(t *testing.T) {
	room := decodeRoom(t, `{
		"roomId": "9",
		"buyerId": 1,
		"sellerId": 3,
		"buyerNickname": "kim",
		"sellerNickname": "park",
		"productId": 88,
		"productTitle": "textbook",
		"lastMessageContent": "sold?",
		"updatedAt": "2026-08-29T09:30:00",
		"unreadCount": 0
	}`)

	if room.ID != 9 {
		t.Errorf("string roomId not accepted: %+v", room)
	}
	if room.Buyer.ID != 1 || room.Buyer.Nickname != "kim" {
		t.Errorf("buyer: %+v", room.Buyer)
	}
	if room.Seller.ID != 3 || room.Seller.Nickname != "park" {
		t.Errorf("seller: %+v", room.Seller)
	}
	if room.Product.ID != 88 || room.Product.Title != "textbook" {
		t.Errorf("product: %+v", room.Product)
	}
	if room.LastMessage != "sold?" {
		t.Errorf("preview: %q", room.LastMessage)
	}
	if room.LastActivity.IsZero() {
		t.Error("updatedAt fallback not applied")
	}
}

func TestNormalizeRoomLastMessageString(t *testing.T) {
	room := decodeRoom(t, `{
		"id": 2,
		"lastMessage": "plain preview",
		"createdAt": "2026-08-28T12:00:00Z"
	}`)
	if room.LastMessage != "plain preview" {
		t.Errorf("preview: %q", room.LastMessage)
	}
	if room.LastActivity.IsZero() {
		t.Error("createdAt fallback not applied")
	}
}

func TestNormalizeRoomTimestampFallbackOrder(t *testing.T) {
	room := decodeRoom(t, `{
		"id": 2,
		"lastMessageAt": "2026-08-30T01:00:00Z",
		"updatedAt": "2026-08-29T01:00:00Z",
		"createdAt": "2026-08-28T01:00:00Z"
	}`)
	want := time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)
	if !room.LastActivity.Equal(want) {
		t.Errorf("lastMessageAt should win: %v", room.LastActivity)
	}
}

func decodeMessage(t *testing.T, raw string) Message {
	t.Helper()
	var m rawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m.normalize()
}

func TestNormalizeMessageVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Message
	}{
		{
			"canonical",
			`{"id": 10, "chatRoomId": 5, "senderId": 1, "type": "text", "content": "hi", "createdAt": "2026-08-30T10:00:00Z"}`,
			Message{ID: 10, RoomID: 5, SenderID: 1, Kind: "text", Content: "hi"},
		},
		{
			"nested sender and message field",
			`{"messageId": "11", "roomId": 5, "sender": {"id": 2}, "message": "hey"}`,
			Message{ID: 11, RoomID: 5, SenderID: 2, Kind: "text", Content: "hey"},
		},
		{
			"image by url without type",
			`{"id": 12, "roomId": 5, "userId": 1, "imageUrl": "http://x/a.jpg"}`,
			Message{ID: 12, RoomID: 5, SenderID: 1, Kind: "image", MediaURL: "http://x/a.jpg"},
		},
		{
			"video",
			`{"id": 13, "roomId": 5, "senderId": 2, "messageType": "VIDEO", "fileUrl": "http://x/v.mp4"}`,
			Message{ID: 13, RoomID: 5, SenderID: 2, Kind: "video", MediaURL: "http://x/v.mp4"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := decodeMessage(t, tc.raw)
			got.CreatedAt = time.Time{}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		name  string
		input string
		zero  bool
	}{
		{"rfc3339", "2026-08-30T10:00:00Z", false},
		{"no zone", "2026-08-30T10:00:00", false},
		{"space separated", "2026-08-30 10:00:00", false},
		{"epoch millis", "1790762400000", false},
		{"empty", "", true},
		{"garbage", "yesterday", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTime(tc.input)
			if got.IsZero() != tc.zero {
				t.Errorf("parseTime(%q) = %v, zero = %v", tc.input, got, tc.zero)
			}
		})
	}
}

func TestIDUnmarshal(t *testing.T) {
	var payload struct {
		ID ID `json:"id"`
	}
	cases := []struct {
		name    string
		raw     string
		want    ID
		wantErr bool
	}{
		{"number", `{"id": 42}`, 42, false},
		{"string", `{"id": "42"}`, 42, false},
		{"null", `{"id": null}`, 0, false},
		{"empty string", `{"id": ""}`, 0, false},
		{"non numeric", `{"id": "abc"}`, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload.ID = 0
			err := json.Unmarshal([]byte(tc.raw), &payload)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && payload.ID != tc.want {
				t.Errorf("ID = %d, want %d", payload.ID, tc.want)
			}
		})
	}
}
