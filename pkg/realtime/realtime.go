// Package realtime fans out notifications about finished searches to any
// number of in-process listeners, such as WebSocket sessions.
//
// Delivery is best effort: a listener whose buffer is full misses the event
// and the publisher never blocks. Nothing is persisted or replayed.
package realtime

import (
	"sync"
	"time"

	"github.com/rubiojr/sieve/pkg/core"
)

// SearchSummary describes one completed search.
type SearchSummary struct {
	// ID is the history id, empty when history is disabled.
	ID          string        `json:"id,omitempty"`
	Query       string        `json:"query"`
	StartedAt   time.Time     `json:"started_at"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	ResultCount int           `json:"result_count"`
	Engines     []core.Engine `json:"engines"`
	Failed      []core.Engine `json:"failed,omitempty"`
}

// Event is the envelope sent to listeners. Only "search" is produced today.
type Event struct {
	Type   string        `json:"type"`
	Search SearchSummary `json:"search"`
}

// Hub is an in-memory fan-out dispatcher. Each listener receives events on
// its own buffered channel. Safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub creates a hub with the given per-listener buffer; bufSize <= 0
// means 32.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister the id when done.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// PublishSearch wraps s in an Event and delivers it to every listener.
func (h *Hub) PublishSearch(s SearchSummary) {
	h.Broadcast(Event{Type: "search", Search: s})
}

// Broadcast delivers ev to every listener with room in its buffer.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
			// slow listener, drop
		}
	}
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
