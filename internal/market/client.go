package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jyoon-dev/ssak3/internal/bus"
	"github.com/jyoon-dev/ssak3/internal/session"
)

// Client talks to the marketplace REST API. All calls attach the cached
// bearer token; a 401 from any endpoint tears the session down globally
// by publishing session.expired before returning ErrSessionExpired.
type Client struct {
	base  string
	http  *http.Client
	creds *session.CredStore
	bus   *bus.Bus
	log   *zap.Logger
}

func NewClient(baseURL string, creds *session.CredStore, b *bus.Bus, log *zap.Logger) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  &http.Client{Timeout: 15 * time.Second},
		creds: creds,
		bus:   b,
		log:   log.Named("market"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := c.creds.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.log.Warn("token rejected", zap.String("path", path))
		if err := c.creds.Clear(); err != nil {
			c.log.Error("clearing credentials", zap.Error(err))
		}
		c.bus.Emit(bus.KindSessionExpired, nil)
		return nil, ErrSessionExpired
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ExchangeKakaoCode trades an OAuth authorization code for tokens and the
// server-side profile. The profile's id field may carry either ID space;
// the identity resolver sorts that out later.
func (c *Client) ExchangeKakaoCode(ctx context.Context, code, redirectURI string) (*AuthResult, error) {
	payload, err := json.Marshal(map[string]string{
		"code":        code,
		"redirectUri": redirectURI,
	})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, "/api/auth/kakao", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var raw struct {
		AccessToken  string  `json:"accessToken"`
		Token        string  `json:"token"`
		RefreshToken string  `json:"refreshToken"`
		Profile      rawUser `json:"profile"`
		User         rawUser `json:"user"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding auth response: %w", err)
	}

	res := &AuthResult{
		AccessToken:  firstNonEmpty(raw.AccessToken, raw.Token),
		RefreshToken: raw.RefreshToken,
		Profile:      raw.Profile.normalize(),
	}
	if res.Profile.ID == 0 && res.Profile.KakaoID == 0 {
		res.Profile = raw.User.normalize()
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("auth response carried no token")
	}
	return res, nil
}

// FetchMe returns the profile bound to the current token.
func (c *Client) FetchMe(ctx context.Context) (User, error) {
	var raw rawUser
	if err := c.getJSON(ctx, "/api/users/me", &raw); err != nil {
		return User{}, err
	}
	return raw.normalize(), nil
}

// FetchUserByKakaoID resolves a provider ID to the backend account.
func (c *Client) FetchUserByKakaoID(ctx context.Context, kakaoID int64) (User, error) {
	var raw rawUser
	if err := c.getJSON(ctx, "/api/users/kakao/"+strconv.FormatInt(kakaoID, 10), &raw); err != nil {
		return User{}, err
	}
	return raw.normalize(), nil
}

// ListRooms fetches the user's conversation rooms in server order.
func (c *Client) ListRooms(ctx context.Context, userID int64) ([]Room, error) {
	var raws []rawRoom
	if err := c.getJSON(ctx, "/api/chatrooms/user/"+strconv.FormatInt(userID, 10), &raws); err != nil {
		return nil, err
	}
	rooms := make([]Room, 0, len(raws))
	for i := range raws {
		rooms = append(rooms, raws[i].normalize())
	}
	return rooms, nil
}

// GetRoom fetches a single room's metadata.
func (c *Client) GetRoom(ctx context.Context, roomID int64) (Room, error) {
	var raw rawRoom
	if err := c.getJSON(ctx, "/api/chatrooms/"+strconv.FormatInt(roomID, 10), &raw); err != nil {
		return Room{}, err
	}
	return raw.normalize(), nil
}

// ListMessages fetches the full canonical history for a room.
func (c *Client) ListMessages(ctx context.Context, roomID int64) ([]Message, error) {
	var raws []rawMessage
	if err := c.getJSON(ctx, "/api/chatrooms/"+strconv.FormatInt(roomID, 10)+"/messages", &raws); err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(raws))
	for i := range raws {
		m := raws[i].normalize()
		if m.RoomID == 0 {
			m.RoomID = roomID
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// SendText posts a text message. The server may return the created
// message record, a bare id, or an empty body; an empty body is still a
// success and yields id 0.
func (c *Client) SendText(ctx context.Context, roomID, senderID int64, content string) (int64, error) {
	payload, err := json.Marshal(map[string]any{
		"senderId": senderID,
		"content":  content,
		"type":     "text",
	})
	if err != nil {
		return 0, err
	}
	data, err := c.do(ctx, http.MethodPost, "/api/chatrooms/"+strconv.FormatInt(roomID, 10)+"/messages",
		bytes.NewReader(payload), "application/json")
	if err != nil {
		return 0, err
	}
	return extractMessageID(data), nil
}

// SendMedia uploads an attachment as multipart form data, same endpoint
// and same empty-body-success contract as SendText.
func (c *Client) SendMedia(ctx context.Context, roomID, senderID int64, filePath, kind string) (int64, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("senderId", strconv.FormatInt(senderID, 10)); err != nil {
		return 0, err
	}
	if err := w.WriteField("type", kind); err != nil {
		return 0, err
	}
	part, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}

	data, err := c.do(ctx, http.MethodPost, "/api/chatrooms/"+strconv.FormatInt(roomID, 10)+"/messages",
		&buf, w.FormDataContentType())
	if err != nil {
		return 0, err
	}
	return extractMessageID(data), nil
}

// CreateRoom opens a buyer-initiated room against a product listing and
// returns the room id for immediate navigation.
func (c *Client) CreateRoom(ctx context.Context, buyerID, productID int64) (int64, error) {
	q := url.Values{}
	q.Set("buyerId", strconv.FormatInt(buyerID, 10))
	q.Set("productId", strconv.FormatInt(productID, 10))
	data, err := c.do(ctx, http.MethodPost, "/api/chatrooms?"+q.Encode(), nil, "")
	if err != nil {
		return 0, err
	}

	var raw rawRoom
	if err := json.Unmarshal(data, &raw); err == nil {
		if room := raw.normalize(); room.ID != 0 {
			return room.ID, nil
		}
	}
	var id ID
	if err := json.Unmarshal(bytes.TrimSpace(data), &id); err == nil && id != 0 {
		return int64(id), nil
	}
	return 0, fmt.Errorf("room creation response carried no id")
}

// LeaveRoom is advisory: the server removes the viewer's membership but
// the room may reappear on the next list fetch.
func (c *Client) LeaveRoom(ctx context.Context, roomID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/chatrooms/"+strconv.FormatInt(roomID, 10), nil, "")
	return err
}

// extractMessageID digs the server-assigned id out of whatever shape the
// send endpoint responded with. 0 means "no id returned", which is valid.
func extractMessageID(data []byte) int64 {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		if m := raw.normalize(); m.ID != 0 {
			return m.ID
		}
	}
	var id ID
	if err := json.Unmarshal(data, &id); err == nil {
		return int64(id)
	}
	return 0
}
