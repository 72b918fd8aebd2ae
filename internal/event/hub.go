package event

import (
	"context"
	"sync"

	"tradewatch/internal/logger"
)

// subscriberBuffer bounds how many undelivered events a slow subscriber
// may hold before newer events are dropped for it.
const subscriberBuffer = 16

// Hub is the in-process broadcast transport: one logical channel fanned
// out to every current subscriber. Delivery is at most once per
// subscriber; a subscriber that cannot keep up loses events, which is
// acceptable because every event is only an invalidation signal.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ChangeEvent
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan ChangeEvent)}
}

// Publish implements Publisher. It returns false when the hub is closed
// or any subscriber's buffer was full and the event was dropped for it.
func (h *Hub) Publish(ev ChangeEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		logger.Warn(context.Background(), "Publish on closed hub dropped",
			"table", string(ev.Table), "op", string(ev.Op))
		return false
	}

	ok := true
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			ok = false
			logger.Warn(context.Background(), "Subscriber buffer full, event dropped",
				"subscriber", id, "table", string(ev.Table), "op", string(ev.Op))
		}
	}
	return ok
}

// Subscribe registers a new subscriber and returns its event channel
// plus a cancel func. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan ChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChangeEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, present := h.subs[id]; present {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close tears down all subscriptions. Later Publish calls are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
