package events

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Subscription is one live observer of a session. Channel subscriptions
// receive serialized events on C; sink subscriptions receive them through
// the function given to SubscribeFunc.
type Subscription struct {
	ID        string
	SessionID string

	// C is nil for sink subscriptions. It is closed when the subscription
	// is removed.
	C <-chan []byte

	ch     chan []byte
	sink   func([]byte) error
	closed bool
}

// send attempts one delivery without blocking. Must be called with the
// broadcaster lock held.
func (s *Subscription) send(data []byte) bool {
	if s.sink != nil {
		return s.sink(data) == nil
	}
	select {
	case s.ch <- data:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.ch != nil {
		close(s.ch)
	}
}

// Broadcaster maintains session id to subscriber sets and delivers each
// published event to every subscriber of that session. Delivery is best
// effort: a subscriber that cannot accept an event is removed.
type Broadcaster struct {
	mu       sync.Mutex
	sessions map[string]map[string]*Subscription

	bufferSize int
	logger     *slog.Logger
	now        func() time.Time

	dropped   atomic.Uint64
	published atomic.Uint64
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBufferSize sets the channel capacity for new channel subscriptions.
func WithBufferSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets the logger used to report dropped subscribers.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		sessions:   make(map[string]map[string]*Subscription),
		bufferSize: DefaultBufferSize,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "events")
	return b
}

// Subscribe registers a channel subscriber for sessionID.
func (b *Broadcaster) Subscribe(sessionID string) *Subscription {
	ch := make(chan []byte, b.bufferSize)
	sub := &Subscription{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		C:         ch,
		ch:        ch,
	}
	b.add(sub)
	return sub
}

// SubscribeFunc registers a sink subscriber. The sink runs while the
// broadcaster lock is held, so it must not block or call back into the
// broadcaster. A sink error removes the subscription.
func (b *Broadcaster) SubscribeFunc(sessionID string, sink func([]byte) error) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		sink:      sink,
	}
	b.add(sub)
	return sub
}

func (b *Broadcaster) add(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.sessions[sub.SessionID]
	if !ok {
		set = make(map[string]*Subscription)
		b.sessions[sub.SessionID] = set
	}
	set[sub.ID] = sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more
// than once and after the broadcaster already dropped the subscription.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broadcaster) removeLocked(sub *Subscription) {
	if set, ok := b.sessions[sub.SessionID]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(b.sessions, sub.SessionID)
		}
	}
	sub.close()
}

// Publish serializes the event once and delivers it to every subscriber of
// sessionID. It never blocks on a subscriber and never fails.
func (b *Broadcaster) Publish(sessionID string, t EventType, payload any) {
	data, err := Encode(t, b.now(), payload)
	if err != nil {
		b.logger.Warn("dropping unencodable event", "session", sessionID, "type", t, "error", err)
		return
	}
	b.Deliver(sessionID, data)
}

// Deliver sends an already-encoded event to the subscribers of sessionID.
func (b *Broadcaster) Deliver(sessionID string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	b.published.Add(1)

	// Sorted for a stable delivery order across subscribers.
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sub := set[id]
		if sub.send(data) {
			continue
		}
		b.removeLocked(sub)
		count := b.dropped.Add(1)
		b.logger.Warn("removed unresponsive subscriber",
			"session", sessionID, "subscription", sub.ID, "total_dropped", count)
	}
}

// SubscriberCount returns the number of live subscribers for sessionID.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// Sessions returns the ids of sessions with at least one subscriber, sorted.
func (b *Broadcaster) Sessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DroppedCount returns how many subscribers were removed for failed delivery.
func (b *Broadcaster) DroppedCount() uint64 {
	return b.dropped.Load()
}

// PublishedCount returns how many events reached at least one session.
func (b *Broadcaster) PublishedCount() uint64 {
	return b.published.Load()
}
