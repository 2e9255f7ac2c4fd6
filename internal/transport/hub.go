// Package transport is the telemetry link: a latest-frame fan-out to websocket
// subscribers and a bounded inbound command queue. Every method is non-blocking.
package transport

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrClosed       = errors.New("transport: hub closed")
	ErrQueueFull    = errors.New("transport: inbound queue full")
	ErrBackpressure = errors.New("transport: subscriber too slow, frame dropped")
)

const (
	DefaultInboundQueue     = 8
	DefaultSubscriberBuffer = 16
)

// Subscription receives outbound frames until it is unsubscribed or the hub closes.
type Subscription struct {
	id     uint64
	frames chan []byte
}

// Frames is closed when the subscription ends.
func (s *Subscription) Frames() <-chan []byte {
	return s.frames
}

// Hub implements the controller's Transport over any number of subscribers.
type Hub struct {
	inbound chan []byte
	bufSize int

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	latest []byte
	closed bool
}

// NewHub returns a hub with an inbound queue of queueSize payloads and per-subscriber
// buffers of bufSize frames.
func NewHub(queueSize, bufSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultInboundQueue
	}
	if bufSize <= 0 {
		bufSize = DefaultSubscriberBuffer
	}
	return &Hub{
		inbound: make(chan []byte, queueSize),
		bufSize: bufSize,
		subs:    make(map[uint64]*Subscription),
	}
}

// TrySend records frame as the latest and offers it to each subscriber without waiting.
// Having no subscribers is not an error.
func (h *Hub) TrySend(frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.latest = frame

	dropped := 0
	for _, s := range h.subs {
		select {
		case s.frames <- frame:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d of %d subscribers", ErrBackpressure, dropped, len(h.subs))
	}
	return nil
}

// TryRecv pops one inbound payload if any is queued.
func (h *Hub) TryRecv() ([]byte, bool) {
	select {
	case b := <-h.inbound:
		return b, true
	default:
		return nil, false
	}
}

// Enqueue offers an inbound payload to the controller.
func (h *Hub) Enqueue(payload []byte) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case h.inbound <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Latest returns the most recent outbound frame, nil before the first send.
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Subscribe registers a new frame consumer.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	s := &Subscription{id: h.nextID, frames: make(chan []byte, h.bufSize)}
	h.subs[s.id] = s
	return s, nil
}

// Unsubscribe removes s and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
		close(s.frames)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription and rejects further traffic.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.frames)
	}
}
