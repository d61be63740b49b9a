package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avatarstudio/avatargw/internal/infra/metrics"
)

// ─── Event Hub ──────────────────────────────────────────────────────────────
// Fans events out to Server-Sent Events subscribers.
//
// GET /api/events → text/event-stream, one `event: toast` frame per event.
//
// Each subscriber has a small buffer; a subscriber that falls behind misses
// events instead of blocking the publisher.

const (
	subscriberBuffer  = 32
	heartbeatInterval = 25 * time.Second
)

// Hub implements Publisher and http.Handler.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
	log    *slog.Logger
}

type subscriber struct {
	id     string
	events chan Event
	done   chan struct{}
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{subs: make(map[string]*subscriber), log: log.With("component", "events")}
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		select {
		case s.events <- ev:
		default:
			h.log.Warn("subscriber too slow, event dropped", "subscriber", s.id, "event", ev.ID)
		}
	}
}

// Subscribe registers a subscriber. Call cancel to unsubscribe.
func (h *Hub) Subscribe() (id string, events <-chan Event, done <-chan struct{}, cancel func()) {
	s := &subscriber{
		id:     uuid.NewString(),
		events: make(chan Event, subscriberBuffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		close(s.done)
	} else {
		h.subs[s.id] = s
		metrics.EventSubscribers.Inc()
	}
	h.mu.Unlock()

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[s.id]; ok {
				delete(h.subs, s.id)
				close(s.done)
				metrics.EventSubscribers.Dec()
			}
			h.mu.Unlock()
		})
	}
	return s.id, s.events, s.done, cancel
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later subscriptions end immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.done)
		delete(h.subs, id)
		metrics.EventSubscribers.Dec()
	}
}

// ServeHTTP streams events until the client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	id, events, done, cancel := h.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected %s\n\n", id)
	flusher.Flush()
	h.log.Debug("subscriber connected", "subscriber", id)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("subscriber disconnected", "subscriber", id)
			return
		case <-done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, data)
			flusher.Flush()
		}
	}
}
