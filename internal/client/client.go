// Package client talks to the collabnote api over HTTP and the room event
// websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/realtime"
	"github.com/suPer8Hu/collabnote/internal/room"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Dialer  *websocket.Dialer
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
		Dialer:  websocket.DefaultDialer,
	}
}

// APIError is a non-2xx envelope response.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

type Listing struct {
	Owned  []room.Room `json:"owned"`
	Shared []room.Room `json:"shared"`
}

func (c *Client) ListRooms(ctx context.Context) (*Listing, error) {
	var out Listing
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRoom(ctx context.Context, name, description string, members []string) (*room.Room, error) {
	var out room.Room
	body := map[string]any{"name": name, "description": description, "members": members}
	if err := c.do(ctx, http.MethodPost, "/api/rooms", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type DispatchResult struct {
	RequestID string `json:"requestId"`
	Result    string `json:"result"`
}

// Dispatch runs one AI request in the room. requestID may be empty, the
// server then assigns one.
func (c *Client) Dispatch(ctx context.Context, roomID, requestID string, kind ai.Kind, input string, doc json.RawMessage) (*DispatchResult, error) {
	var out DispatchResult
	body := map[string]any{"input": input}
	if requestID != "" {
		body["requestId"] = requestID
	}
	if len(doc) > 0 {
		body["documentData"] = doc
	}
	path := "/api/rooms/" + url.PathEscape(roomID) + "/ai/" + string(kind)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events opens the room's event stream. The channel closes when ctx is done
// or the connection drops.
func (c *Client) Events(ctx context.Context, roomID string) (<-chan realtime.Event, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/rooms/" + url.PathEscape(roomID) + "/events"

	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, _, err := c.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial room events: %w", err)
	}

	out := make(chan realtime.Event, 16)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var ev realtime.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
