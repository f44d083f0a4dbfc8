package events

import (
	"sync"
	"time"
)

// Type names the kind of an Envelope.
type Type string

const (
	// TypeState carries an office.SensorState snapshot.
	TypeState Type = "state"
	// TypeAlert carries an alert.Change.
	TypeAlert Type = "alert"
	// TypeNotification carries a notify.Event.
	TypeNotification Type = "notification"
	// TypeVerification carries an actuation.PhaseChange.
	TypeVerification Type = "verification"
	// TypeActuation carries an office.ActuationIntent that was written.
	TypeActuation Type = "actuation"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Envelope is one pushed event.
type Envelope struct {
	Type    Type      `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Hub broadcasts envelopes to every subscriber.
// A subscriber that is not keeping up loses envelopes instead of blocking the publisher.
type Hub struct {
	buffer int

	mu      sync.Mutex
	subs    map[int64]chan Envelope
	nextID  int64
	dropped map[int64]uint64
	closed  bool
}

// NewHub creates a hub. A non-positive buffer falls back to DefaultBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub{
		buffer:  buffer,
		subs:    make(map[int64]chan Envelope),
		dropped: make(map[int64]uint64),
	}
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (int64, <-chan Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := make(chan Envelope, h.buffer)
	if h.closed {
		close(c)
		return 0, c
	}

	h.nextID++
	h.subs[h.nextID] = c

	return h.nextID, c
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.subs[id]
	if !ok {
		return
	}

	close(c)
	delete(h.subs, id)
	delete(h.dropped, id)
}

// Publish stamps an envelope and offers it to every subscriber.
func (h *Hub) Publish(typ Type, payload any) {
	envelope := Envelope{Type: typ, At: time.Now(), Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.subs {
		select {
		case c <- envelope:
		default:
			h.dropped[id]++
		}
	}
}

// Dropped returns how many envelopes the subscriber has lost so far.
func (h *Hub) Dropped(id int64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.dropped[id]
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for id, c := range h.subs {
		close(c)
		delete(h.subs, id)
	}

	clear(h.dropped)
}
