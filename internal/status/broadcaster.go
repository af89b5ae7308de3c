package status

import (
	"sync"

	"github.com/kozaktomas/facecheck/internal/constants"
)

// Event is one status change pushed to listeners.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Event types.
const (
	EventStatus  = "status"
	EventOverlay = "overlay"
	EventPhoto   = "photo"
	EventError   = "error"
)

// EventBroadcaster manages listeners and fans events out to them.
// Slow listeners miss events instead of blocking the sender.
type EventBroadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (b *EventBroadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
