package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pavkata12/app/internal/metrics"
)

// Type identifies what happened
type Type string

const (
	SessionOpened    Type = "session_opened"
	SessionClosed    Type = "session_closed"
	SessionCancelled Type = "session_cancelled"
	PaymentRecorded  Type = "payment_recorded"
	ComputerStatus   Type = "computer_status"
)

// Event is a ledger or registry change pushed to subscribers
type Event struct {
	Type       Type        `json:"type"`
	At         time.Time   `json:"at"`
	ComputerID int64       `json:"computer_id,omitempty"`
	SessionID  int64       `json:"session_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// Marshal encodes the event as sent on the wire
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Subscription receives events until it is closed
type Subscription struct {
	C <-chan Event

	hub *Hub
	ch  chan Event
}

// Close detaches the subscription from its hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
	closed      bool
}

// NewHub creates a hub whose subscribers buffer up to bufferSize events
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.bufferSize)
	sub := &Subscription{C: ch, hub: h, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	metrics.EventSubscribers.Inc()
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.ch)
	metrics.EventSubscribers.Dec()
}

// Publish delivers an event to every subscriber
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			metrics.EventsDroppedTotal.Inc()
			log.Debug().Str("type", string(event.Type)).Msg("Dropped event for slow subscriber")
		}
	}
}

// Count returns the number of current subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber; later subscriptions are closed immediately
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.ch)
		metrics.EventSubscribers.Dec()
	}
}
