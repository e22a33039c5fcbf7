package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.CredStore, *bus.Bus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := session.NewCredStore(filepath.Join(t.TempDir(), "creds.toml"))
	if err := creds.Save(&session.Credentials{
		AccessToken: "tok-1",
		Profile:     session.Profile{ID: 1},
	}); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	return NewClient(srv.URL, creds, b, zap.NewNop()), creds, b
}

func TestListRoomsAttachesBearer(t *testing.T) {
	var gotAuth, gotPath string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`[{"id": 5, "buyerId": 1, "sellerId": 2, "unreadCount": 3}]`))
	}))

	rooms, err := client.ListRooms(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/api/chatrooms/user/1" {
		t.Errorf("path = %q", gotPath)
	}
	if len(rooms) != 1 || rooms[0].ID != 5 || rooms[0].UnreadCount != 3 {
		t.Errorf("rooms = %+v", rooms)
	}
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	client, creds, b := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	events, unsub := b.Subscribe("session.", 4)
	defer unsub()

	_, err := client.ListRooms(context.Background(), 1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}

	select {
	case evt := <-events:
		if evt.Kind != bus.KindSessionExpired {
			t.Errorf("event kind = %q", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no session.expired event published")
	}

	if got, _ := creds.Load(); got != nil {
		t.Error("credentials should be cleared after 401")
	}
}

func TestGetRoomNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.GetRoom(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestServerErrorIsAPIError(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.ListMessages(context.Background(), 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T %v, want *APIError", err, err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d", apiErr.Status)
	}
}

func TestSendTextEmptyBodySucceeds(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	id, err := client.SendText(context.Background(), 5, 1, "hello")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != 0 {
		t.Errorf("id = %d, want 0 for empty body", id)
	}
}

func TestSendTextReturnsServerID(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"full record", `{"id": 99, "chatRoomId": 5, "content": "hello"}`},
		{"bare id", `99`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			id, err := client.SendText(context.Background(), 5, 1, "hello")
			if err != nil {
				t.Fatalf("SendText: %v", err)
			}
			if id != 99 {
				t.Errorf("id = %d, want 99", id)
			}
		})
	}
}

func TestCreateRoomQueryParams(t *testing.T) {
	var gotQuery string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"id": 12}`))
	}))

	id, err := client.CreateRoom(context.Background(), 1, 77)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if id != 12 {
		t.Errorf("id = %d", id)
	}
	if gotQuery != "buyerId=1&productId=77" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestSendMediaMultipart(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(filePath, []byte("jpegdata"), 0600); err != nil {
		t.Fatal(err)
	}

	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		if got := r.FormValue("senderId"); got != "1" {
			t.Errorf("senderId = %q", got)
		}
		if got := r.FormValue("type"); got != "image" {
			t.Errorf("type = %q", got)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part: %v", err)
		} else {
			f.Close()
			if header.Filename != "photo.jpg" {
				t.Errorf("filename = %q", header.Filename)
			}
		}
		w.Write([]byte(`{"id": 55}`))
	}))

	id, err := client.SendMedia(context.Background(), 5, 1, filePath, "image")
	if err != nil {
		t.Fatalf("SendMedia: %v", err)
	}
	if id != 55 {
		t.Errorf("id = %d, want 55", id)
	}
}

func TestExchangeKakaoCode(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/kakao" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{
			"accessToken": "new-tok",
			"refreshToken": "new-ref",
			"profile": {"id": 42, "kakaoId": "3141592653", "nickname": "dana"}
		}`))
	}))

	res, err := client.ExchangeKakaoCode(context.Background(), "authcode", "http://localhost/cb")
	if err != nil {
		t.Fatalf("ExchangeKakaoCode: %v", err)
	}
	if res.AccessToken != "new-tok" || res.RefreshToken != "new-ref" {
		t.Errorf("tokens: %+v", res)
	}
	if res.Profile.ID != 42 || res.Profile.KakaoID != 3141592653 {
		t.Errorf("profile: %+v", res.Profile)
	}
}
