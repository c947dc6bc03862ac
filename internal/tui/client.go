package tui

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ShayCichocki/oneshot/internal/events"
)

// ErrStreamClosed is returned by Next after the server closes the stream.
var ErrStreamClosed = errors.New("event stream closed")

// Stream reads agent events for one conversation over a websocket.
type Stream struct {
	conn *websocket.Conn
}

// AgentsURL builds the websocket URL of the agent event stream for a
// conversation from the server's base URL. http and https become ws and wss.
func AgentsURL(base, conversationID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q has no host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/agents/" + url.PathEscape(conversationID)
	return u.String(), nil
}

// Dial opens the event stream at rawURL.
func Dial(ctx context.Context, rawURL string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks until the next event arrives. Frames that are not event
// envelopes, such as pong replies, are skipped.
func (s *Stream) Next() (events.Event, error) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return events.Event{}, ErrStreamClosed
			}
			return events.Event{}, fmt.Errorf("read event: %w", err)
		}
		ev, err := events.Decode(msg)
		if err != nil || ev.Type == "" {
			continue
		}
		return ev, nil
	}
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
