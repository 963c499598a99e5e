package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Message is what subscribers receive.
type Message struct {
	Type    Event     `json:"type"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu      sync.RWMutex
	subs    map[Event][]chan Message
	all     []chan Message
	dropped atomic.Uint64
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan Message)}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, buffer)
	b.subs[e] = append(b.subs[e], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.subs[e] = removeChan(b.subs[e], ch)
			close(ch)
		})
	}
	return ch, unsub
}

// SubscribeAll registers a listener for every event.
func (b *Bus) SubscribeAll(buffer int) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, buffer)
	b.all = append(b.all, ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.all = removeChan(b.all, ch)
			close(ch)
		})
	}
	return ch, unsub
}

// Publish fans out the payload without blocking; slow subscribers miss messages.
func (b *Bus) Publish(e Event, payload any) {
	msg := Message{Type: e, Time: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		b.send(ch, msg)
	}
	for _, ch := range b.all {
		b.send(ch, msg)
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) send(ch chan Message, msg Message) {
	select {
	case ch <- msg:
	default:
		b.dropped.Add(1)
	}
}

func removeChan(list []chan Message, ch chan Message) []chan Message {
	for i, c := range list {
		if c == ch {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
