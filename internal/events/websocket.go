package events

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

var pongMessage = []byte(`{"type":"pong"}`)

// Handler streams a session's events over a websocket. The session id is
// taken from the "conversation_id" path value.
type Handler struct {
	b        *Broadcaster
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler backed by b.
func NewHandler(b *Broadcaster, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		b:      b,
		logger: logger.With("component", "events.ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and pumps events until either side
// goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("conversation_id")
	if session == "" {
		http.Error(w, "missing conversation id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session", session, "error", err)
		return
	}
	defer conn.Close()

	sub := h.b.Subscribe(session)
	defer h.b.Unsubscribe(sub)
	h.logger.Debug("observer connected", "session", session, "subscription", sub.ID)

	// Pongs to client pings are queued here so only the write loop writes.
	replies := make(chan []byte, 4)
	done := make(chan struct{})
	go h.readLoop(conn, replies, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sub.C:
			if !ok {
				h.closeConn(conn, websocket.CloseGoingAway, "subscriber dropped")
				return
			}
			if err := h.write(conn, websocket.TextMessage, data); err != nil {
				return
			}
		case msg := <-replies:
			if err := h.write(conn, websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) readLoop(conn *websocket.Conn, replies chan<- []byte, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if isPing(msg) {
			select {
			case replies <- pongMessage:
			default:
			}
		}
	}
}

// isPing accepts a bare "ping" or a {"type":"ping"} frame.
func isPing(msg []byte) bool {
	s := strings.TrimSpace(string(msg))
	if s == "ping" {
		return true
	}
	return strings.Contains(strings.ReplaceAll(s, " ", ""), `"type":"ping"`)
}

func (h *Handler) write(conn *websocket.Conn, kind int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(kind, data)
}

func (h *Handler) closeConn(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
