package broadcast

import (
	"sync"
)

// Event is one server-sent event delivered to a room viewer.
type Event struct {
	Name string
	Data string
}

const viewerBuffer = 16

// Broadcaster fans room events out to read-only viewers.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
	closed  bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel of future events. After CloseAll it returns an
// already closed channel.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, viewerBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe is safe to call more than once and after CloseAll.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

// Publish reports how many viewers were skipped because their buffer was full.
func (b *Broadcaster) Publish(event, data string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	skipped := 0
	for ch := range b.clients {
		select {
		case ch <- Event{Name: event, Data: data}:
		default:
			skipped++
		}
	}
	return skipped
}

// CloseAll disconnects every viewer and refuses new subscriptions.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}

func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
