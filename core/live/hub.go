package live

import (
	"sync"

	"github.com/gofrs/uuid/v5"

	"warroom/core/metrics"
	"warroom/core/utils"
)

const defaultBuffer = 16

// Sink receives every published event after subscribers. Deliver must not block.
type Sink interface {
	Deliver(ev Event)
}

type Subscription struct {
	ID string
	C  <-chan Event
	ch chan Event
}

type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	sinks   []Sink
	buffer  int
	closed  bool
	metrics *metrics.Metrics
	logger  *utils.Logger
}

func NewHub(buffer int, m *metrics.Metrics, logger *utils.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:    map[string]*Subscription{},
		buffer:  buffer,
		metrics: m,
		logger:  logger,
	}
}

func (h *Hub) AddSink(s Sink) {
	if s == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// Subscribe registers a new subscriber. It only receives events published
// after this call returns.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.Must(uuid.NewV4()).String(), C: ch, ch: ch}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()
	h.metrics.SetSubscribers(n)
	if h.logger != nil {
		h.logger.Debugf("live subscriber %s connected (%d total)", sub.ID, n)
	}
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.SetSubscribers(n)
	if h.logger != nil {
		h.logger.Debugf("live subscriber %s disconnected (%d total)", id, n)
	}
}

// Publish fans ev out to every current subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	dropped := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			dropped++
		}
	}
	sinks := make([]Sink, len(h.sinks))
	copy(sinks, h.sinks)
	h.mu.RUnlock()

	h.metrics.EventPublished(string(ev.Type))
	for i := 0; i < dropped; i++ {
		h.metrics.EventDropped()
	}
	if dropped > 0 && h.logger != nil {
		h.logger.Warnf("live event %s for incident %d skipped by %d slow subscribers", ev.Type, ev.Incident.ID, dropped)
	}
	for _, s := range sinks {
		s.Deliver(ev)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber; later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()
	h.metrics.SetSubscribers(0)
}
