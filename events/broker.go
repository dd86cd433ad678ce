package events

import (
	"context"
	"sync"
	"time"

	"github.com/ruteri/peer-name-service/interfaces"
)

const defaultBufferSize = 64

// Message is a published event together with its position in the stream.
type Message struct {
	Seq       int64
	Event     interfaces.Event
	Timestamp time.Time
}

// Broker fans registry events out to live subscribers. It implements interfaces.EventSink.
// Slow subscribers lose messages rather than blocking the registry; gaps are visible
// through Message.Seq.
type Broker struct {
	subs       map[chan Message]struct{}
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	seq        int64
}

// NewBroker creates a broker with the default per-subscriber buffer.
func NewBroker() *Broker {
	return NewBrokerWithBuffer(defaultBufferSize)
}

// NewBrokerWithBuffer creates a broker with a custom per-subscriber buffer.
func NewBrokerWithBuffer(size int) *Broker {
	return &Broker{
		subs:       make(map[chan Message]struct{}),
		done:       make(chan struct{}),
		bufferSize: size,
	}
}

// Subscribe returns a channel receiving every event published after the call.
// The channel is closed when ctx is cancelled or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Message)
		close(ch)
		return ch
	default:
	}

	sub := make(chan Message, b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; !ok {
			return
		}
		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Emit publishes ev to all subscribers without blocking.
func (b *Broker) Emit(ev interfaces.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	b.seq++
	msg := Message{Seq: b.seq, Event: ev, Timestamp: time.Now()}

	for sub := range b.subs {
		select {
		case sub <- msg:
		default:
			// full, drop
		}
	}
}

// Close shuts down the broker and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
