package service

import (
	"sync"

	"github.com/joeblew999/plat-termit/internal/detail"
	"github.com/joeblew999/plat-termit/internal/mapwidget/browser"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

// Event kinds.
const (
	KindCommand = "command" // map engine command for the page
	KindState   = "state"   // view state changed
	KindPanel   = "panel"   // detail panel changed
	KindClosed  = "closed"  // session closed
)

// Event is a message from a session to its subscribers.
type Event struct {
	Session string
	Kind    string
	Command *browser.Command
	State   *State
	Panel   *detail.View
}

// State is the view state of a session as seen by clients.
type State struct {
	ID      string             `json:"id" doc:"Session ID"`
	Ready   bool               `json:"ready" doc:"The page reported the map engine loaded"`
	Mounted bool               `json:"mounted" doc:"The map widget exists"`
	View    viewstate.Snapshot `json:"view"`
	Panel   detail.View        `json:"panel"`
}

// subBuffer sizes subscriber channels. A mode change emits one command per
// overlay, so this must comfortably hold a full catalogue swap.
const subBuffer = 256

// EventBus is a fan-out pub/sub for session events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]string
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]string)}
}

// Publish sends an event to every subscriber of its session. It never
// blocks: a subscriber that cannot keep up is dropped and its channel closed.
// Its page has missed engine commands and is rebuilt when it reattaches.
func (b *EventBus) Publish(e Event) {
	var lagged []chan Event

	b.mu.RLock()
	for ch, session := range b.subs {
		if session != "" && session != e.Session {
			continue
		}
		select {
		case ch <- e:
		default:
			lagged = append(lagged, ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range lagged {
		b.Unsubscribe(ch)
	}
}

// Subscribe returns a buffered channel receiving the events of one session.
// An empty session subscribes to every session.
func (b *EventBus) Subscribe(session string) chan Event {
	ch := make(chan Event, subBuffer)
	b.mu.Lock()
	b.subs[ch] = session
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown or
// already removed channels are ignored.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of subscribers for a session.
func (b *EventBus) Subscribers(session string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s == session {
			n++
		}
	}
	return n
}
