package events

import "sync"

// Bus routes domain events between the feed, the strategy loop, and
// background listeners. Delivery is synchronous and best-effort: Publish
// writes into each subscriber's buffer on the caller's goroutine and drops
// the payload for any subscriber whose buffer is full, so a stalled listener
// never stalls the trading path.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Event]map[int]chan any
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event]map[int]chan any)}
}

// Subscribe registers a buffered listener for one topic and returns the
// receive channel with its stop function. The stop function closes the
// channel; calling it more than once is safe.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan any, buffer)
	if b.subs[e] == nil {
		b.subs[e] = make(map[int]chan any)
	}
	b.subs[e][id] = ch
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[e], id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, stop
}

// Publish offers the payload to every subscriber of the topic and reports
// how many accepted it. Subscribers with full buffers miss this payload.
func (b *Bus) Publish(e Event, payload any) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
			delivered++
		default:
		}
	}
	return delivered
}
