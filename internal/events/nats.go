package events

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultNATSPrefix is the subject prefix for mirrored events.
const DefaultNATSPrefix = "oneshot.events"

// NATSPublisher is the subset of *nats.Conn the mirror needs.
type NATSPublisher interface {
	Publish(subj string, data []byte) error
}

// NATSMirror delivers every event to a local broadcaster and also forwards
// it to NATS on subject "<prefix>.<session>". NATS failures are logged.
type NATSMirror struct {
	local  *Broadcaster
	conn   NATSPublisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewNATSMirror wraps local. An empty prefix uses DefaultNATSPrefix.
func NewNATSMirror(local *Broadcaster, conn NATSPublisher, prefix string, logger *slog.Logger) *NATSMirror {
	if prefix == "" {
		prefix = DefaultNATSPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSMirror{
		local:  local,
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger.With("component", "events.nats"),
		now:    time.Now,
	}
}

// Subject returns the NATS subject used for sessionID.
func (m *NATSMirror) Subject(sessionID string) string {
	return m.prefix + "." + subjectToken(sessionID)
}

// Publish implements Publisher.
func (m *NATSMirror) Publish(sessionID string, t EventType, payload any) {
	data, err := Encode(t, m.now(), payload)
	if err != nil {
		m.logger.Warn("dropping unencodable event", "session", sessionID, "type", t, "error", err)
		return
	}
	if m.local != nil {
		m.local.Deliver(sessionID, data)
	}
	if m.conn == nil {
		return
	}
	if err := m.conn.Publish(m.Subject(sessionID), data); err != nil {
		m.logger.Warn("nats publish failed", "session", sessionID, "type", t, "error", err)
	}
}

// subjectToken makes a session id safe as a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}
