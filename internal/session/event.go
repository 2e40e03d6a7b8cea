package session

import (
	"sync"
	"time"
)

// Event kinds published by a session.
const (
	KindCaption    = "caption"
	KindTranslated = "translated"
	KindEnqueued   = "enqueued"
	KindFailed     = "failed"
	KindPlayed     = "played"
	KindSkipped    = "skipped"
	KindDiscarded  = "discarded"
	KindNavigate   = "navigate"
	KindReset      = "reset"
	KindSettings   = "settings"
	KindCues       = "cues"
	KindCleared    = "cleared"
)

// Event is a line in the session's activity feed.
type Event struct {
	Session string    `json:"session"`
	Kind    string    `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

const subscriberBuffer = 64

// Hub fans events out to subscribers. Slow subscribers lose events rather
// than block the pipeline. One hub outlives the sessions that publish to it.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room for it.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
