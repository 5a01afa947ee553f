package detectionService

import (
	"FaceOverlay/internal/entity"
	"sync"
)

const subscriberBuffer = 8

// statusHub fans status events out per session. Sends never block: a
// subscriber with a full buffer misses the event.
type statusHub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan entity.StatusEvent]struct{}
	closed bool
}

func newStatusHub() *statusHub {
	return &statusHub{subs: make(map[string]map[chan entity.StatusEvent]struct{})}
}

func (h *statusHub) subscribe(sessionID string) (<-chan entity.StatusEvent, func()) {
	ch := make(chan entity.StatusEvent, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan entity.StatusEvent]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(sessionID, ch) })
	}
}

func (h *statusHub) unsubscribe(sessionID string, ch chan entity.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subs, sessionID)
	}
}

func (h *statusHub) publish(event entity.StatusEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *statusHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, subs := range h.subs {
		for ch := range subs {
			close(ch)
		}
		delete(h.subs, id)
	}
}
