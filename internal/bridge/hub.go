package bridge

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/runnerr0/taskheatmap/internal/tracker"
)

const (
	EventStateUpdated = "state-updated"
	EventDailySummary = "daily-summary"

	subscriberBuffer = 16
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  []byte
}

// Hub fans tracker notifications out to connected subscribers. Slow
// subscribers miss messages rather than stall the tracker.
type Hub struct {
	log    zerolog.Logger
	mu     sync.Mutex
	subs   map[uuid.UUID]chan Message
	closed bool
}

var _ tracker.Listener = (*Hub)(nil)

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{log: log, subs: make(map[uuid.UUID]chan Message)}
}

// Subscribe registers a new subscriber. The channel is closed by
// Unsubscribe or Close.
func (h *Hub) Subscribe() (uuid.UUID, <-chan Message) {
	id := uuid.New()
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Close disconnects every subscriber. Later subscribers get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) StateChanged(a tracker.Attribution) {
	h.publish(EventStateUpdated, a)
}

func (h *Hub) DailySummary(s tracker.Summary) {
	h.publish(EventDailySummary, s)
}

func (h *Hub) publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode event")
		return
	}
	msg := Message{Event: event, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			h.log.Debug().Str("subscriber", id.String()).Str("event", event).Msg("subscriber behind, event dropped")
		}
	}
}
