package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jyoon-dev/ssak3/internal/api"
)

// Client talks to the daemon's control API over its Unix domain socket.
type Client struct {
	http *http.Client
}

// New returns a client bound to the daemon socket.
func New(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	// Host is ignored for UDS transports but the URL must parse.
	req, err := http.NewRequestWithContext(ctx, method, "http://daemon"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			return fmt.Errorf("%s", e.Message)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// Status fetches the daemon state snapshot.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthURL fetches the provider authorize URL for the login flow.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var out api.AuthURLResponse
	if err := c.do(ctx, http.MethodGet, "/v1/auth/url", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Login exchanges an OAuth code for a session.
func (c *Client) Login(ctx context.Context, code string) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", api.LoginRequest{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tears the session down.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}

// Rooms fetches the reconciled room directory.
func (c *Client) Rooms(ctx context.Context) ([]api.RoomResponse, error) {
	var out []api.RoomResponse
	if err := c.do(ctx, http.MethodGet, "/v1/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches a room's merged history; blocks until the room
// bootstrap completes on the daemon side.
func (c *Client) Messages(ctx context.Context, roomID int64) (*api.MessagesResponse, error) {
	var out api.MessagesResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/rooms/%d/messages", roomID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendText queues a text message for delivery.
func (c *Client) SendText(ctx context.Context, roomID int64, content string) (string, error) {
	var out api.SendResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/rooms/%d/messages", roomID), api.SendTextRequest{Content: content}, &out); err != nil {
		return "", err
	}
	return out.TempID, nil
}

// SendMedia queues a local file for delivery.
func (c *Client) SendMedia(ctx context.Context, roomID int64, path, kind string) (string, error) {
	var out api.SendResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/rooms/%d/media", roomID), api.SendMediaRequest{Path: path, Kind: kind}, &out); err != nil {
		return "", err
	}
	return out.TempID, nil
}

// CreateRoom opens a buyer-initiated room for a product.
func (c *Client) CreateRoom(ctx context.Context, productID int64) (int64, error) {
	var out api.CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/v1/rooms", api.CreateRoomRequest{ProductID: productID}, &out); err != nil {
		return 0, err
	}
	return out.RoomID, nil
}

// LeaveRoom removes a room on the server.
func (c *Client) LeaveRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/rooms/%d", roomID), nil, nil)
}

// MarkRead tells the daemon a room was viewed.
func (c *Client) MarkRead(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/rooms/%d/read", roomID), nil, nil)
}

// CloseRoom stops the room's message feed.
func (c *Client) CloseRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/rooms/%d/close", roomID), nil, nil)
}

// Focus tells the daemon the UI regained attention.
func (c *Client) Focus(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/focus", nil, nil)
}
