package clientsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"live-quiz-service/internal/domain"
)

// Client reads rooms from the REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type roomResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Room    domain.Room            `json:"room"`
	Players []domain.PlayerSummary `json:"players"`
}

// Room fetches a room and its players by code.
func (c *Client) Room(ctx context.Context, code string) (domain.Room, []domain.PlayerSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/rooms/"+url.PathEscape(code), nil)
	if err != nil {
		return domain.Room{}, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Room{}, nil, fmt.Errorf("get room %s: %w", code, err)
	}
	defer resp.Body.Close()

	var body roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Room{}, nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Room{}, nil, domain.ErrRoomNotFound
	case resp.StatusCode != http.StatusOK || !body.Success:
		return domain.Room{}, nil, fmt.Errorf("get room %s: %d %s", code, resp.StatusCode, body.Message)
	}
	return body.Room, body.Players, nil
}

// EventsURL is the websocket address of a room's event stream.
func (c *Client) EventsURL(roomID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/rooms/" + url.PathEscape(roomID) + "/events"
	return u.String(), nil
}

// Follow streams room events into view until ctx is cancelled or the
// server closes the stream. onChange runs after every event that changed the
// view. Events that fail to decode are skipped.
func Follow(ctx context.Context, wsURL string, view *View, onChange func()) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving room"), deadline())
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		changed, err := view.Apply(payload)
		if err != nil {
			continue
		}
		if changed && onChange != nil {
			onChange()
		}
	}
}

func deadline() time.Time {
	return time.Now().Add(time.Second)
}
