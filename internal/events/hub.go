// Package events is the in-memory progress stream. Activities publish one
// event per stage transition; operators tail an instance over WebSocket.
// Events are advisory: a dropped event never affects the instance itself.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/draftline-ai/orchestrator/internal/metrics"
)

// Event types published over an instance's stream.
const (
	TypeStage    = "stage"
	TypeProgress = "progress"
	TypeTerminal = "terminal"
)

// Event is one progress update for an instance.
type Event struct {
	InstanceID string    `json:"instance_id"`
	Kind       string    `json:"kind,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Seq        uint64    `json:"seq"`
}

// Marshal returns the JSON encoding for logs and wire frames.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Hub fans events out to per-instance subscribers and keeps a bounded
// replay ring per instance for last_event_id resumption.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
}

// NewHub builds a hub whose replay rings hold capacity events per instance.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 256
	}
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe registers a buffered channel for instanceID. The caller must
// drain it and call Unsubscribe when done.
func (h *Hub) Subscribe(instanceID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subscribers[instanceID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		h.subscribers[instanceID] = subs
	}
	subs[ch] = struct{}{}
	metrics.EventSubscribers.Inc()
	return ch
}

// Unsubscribe removes and closes the channel.
func (h *Hub) Unsubscribe(instanceID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[instanceID]; ok {
		if _, member := subs[ch]; member {
			delete(subs, ch)
			close(ch)
			metrics.EventSubscribers.Dec()
		}
		if len(subs) == 0 {
			delete(h.subscribers, instanceID)
		}
	}
}

// Publish assigns a sequence number, records the event for replay, and fans
// it out without blocking. Slow subscribers lose events; the ring lets them
// catch up on reconnect.
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	rg := h.history[evt.InstanceID]
	if rg == nil {
		rg = newRing(h.capacity)
		h.history[evt.InstanceID] = rg
	}
	rg.nextSeq++
	evt.Seq = rg.nextSeq
	rg.push(evt)
	subs := h.subscribers[evt.InstanceID]
	h.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(evt.Stage).Inc()

	for ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ReplaySince returns buffered events with Seq > since, oldest first.
func (h *Hub) ReplaySince(instanceID string, since uint64) []Event {
	h.mu.RLock()
	rg := h.history[instanceID]
	h.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Forget drops the replay ring for a finished instance.
func (h *Hub) Forget(instanceID string) {
	h.mu.Lock()
	delete(h.history, instanceID)
	h.mu.Unlock()
}

type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
