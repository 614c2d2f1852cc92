package events

import (
	"context"
	"sync"
	"sync/atomic"

	"residents/internal/directory/models"
)

// Broadcaster fans notifications out to in-process subscribers such as the
// server-sent event stream. Sends never block the add: a subscriber whose
// buffer is full misses the notification and the drop is counted.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]chan models.PersonAdded
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
}

// DefaultBufferSize is the per-subscriber buffer used by the server.
const DefaultBufferSize = 64

// NewBroadcaster creates a broadcaster with per-subscriber buffer size.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{subs: make(map[int]chan models.PersonAdded), buffer: buffer}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it; it closes the channel. After Close, Subscribe returns
// an already closed channel.
func (b *Broadcaster) Subscribe() (<-chan models.PersonAdded, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.PersonAdded, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Close ends every subscription so streaming handlers return. It is safe to
// call more than once; later publishes reach nobody.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Broadcaster) PublishPersonAdded(_ context.Context, event models.PersonAdded) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
