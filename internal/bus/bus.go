// Package bus provides an in-process pub/sub notification bus built on
// watermill's gochannel. The cache, registry, and event channel publish
// change notifications on it; the UI subscribes to know when to re-read
// state.
//
// Unlike a module-level singleton, the bus is constructed explicitly and
// injected, so tests can run isolated instances.
package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Well-known topics.
const (
	TopicCache      = "cache.updated"      // payload: cache key string
	TopicStream     = "stream.state"       // payload: channel state string
	TopicRegistry   = "registry.changed"   // payload: server id or ""
	TopicPermission = "permission.pending" // payload: permission id
)

// Notification is a lightweight change signal.
type Notification struct {
	Topic   string
	Payload string
}

// Subscriber is a function that receives notifications.
type Subscriber func(n Notification)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus manages pub/sub. Watermill's gochannel provides the transport
// infrastructure; direct subscriber tracking preserves synchronous delivery
// where callers need it.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[string][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
	cancel context.CancelFunc
}

// New creates a new bus.
func New() *Bus {
	_, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[string][]subscriberEntry),
		cancel:      cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for one topic. Returns an unsubscribe
// function.
func (b *Bus) Subscribe(topic string, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[topic]
		for i, entry := range subs {
			if entry.id == id {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// SubscribeAll registers a subscriber for every topic. Returns an
// unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.global {
			if entry.id == id {
				b.global = append(b.global[:i], b.global[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers a notification to all subscribers synchronously, in the
// caller's goroutine. Subscribers must not block.
func (b *Bus) Publish(topic, payload string) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]Subscriber, 0, len(b.subscribers[topic])+len(b.global))
	for _, entry := range b.subscribers[topic] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	b.mu.RUnlock()

	n := Notification{Topic: topic, Payload: payload}
	for _, sub := range subs {
		sub(n)
	}
}

// Close shuts down the bus and drops all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	b.subscribers = make(map[string][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}
