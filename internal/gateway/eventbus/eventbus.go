// Package eventbus provides an in-memory publish/subscribe bus used to fan
// out session lifecycle events (pairing, connect, disconnect, logout) to
// interested consumers such as the webhook notifier. Topics are dot-separated
// with "*" wildcard segments.
package eventbus

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Event is a single published event.
type Event struct {
	Topic string // concrete topic the event was published under
	Data  any    // event payload
}

// subscriber is one subscription with a buffered delivery channel.
type subscriber struct {
	id      string
	channel chan Event

	mu     sync.Mutex
	closed bool
}

// send delivers an event without blocking. Events for a full or closed
// subscriber are dropped.
func (s *subscriber) send(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.channel <- event:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.channel)
	}
}

// Bus routes published events to subscribers whose topic pattern matches.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*subscriber // pattern -> subscriberID -> subscriber
	counter     uint64
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]map[string]*subscriber)}
}

// Subscribe registers interest in a topic pattern and returns the delivery
// channel plus an unsubscribe function. The channel is closed on unsubscribe
// or bus shutdown. bufferSize bounds undelivered events; overflow is dropped.
func (b *Bus) Subscribe(pattern string, bufferSize int) (<-chan Event, func()) {
	sub := &subscriber{
		id:      fmt.Sprintf("sub-%d", atomic.AddUint64(&b.counter, 1)),
		channel: make(chan Event, bufferSize),
	}

	b.mu.Lock()
	if _, ok := b.subscribers[pattern]; !ok {
		b.subscribers[pattern] = make(map[string]*subscriber)
	}
	b.subscribers[pattern][sub.id] = sub
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subMap, ok := b.subscribers[pattern]; ok {
			if s, ok := subMap[sub.id]; ok {
				s.close()
				delete(subMap, sub.id)
				if len(subMap) == 0 {
					delete(b.subscribers, pattern)
				}
			}
		}
	}
	return sub.channel, unsubscribe
}

// Publish delivers an event to every subscriber whose pattern matches the
// topic. Delivery never blocks the publisher.
func (b *Bus) Publish(topic string, data any) {
	event := Event{Topic: topic, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for pattern, subMap := range b.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				sub.send(event)
			}
		}
	}
}

// Shutdown closes all subscribers and clears the bus.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subMap := range b.subscribers {
		for _, sub := range subMap {
			sub.close()
		}
	}
	b.subscribers = make(map[string]map[string]*subscriber)
}

// matchTopic reports whether a concrete topic matches a pattern. A pattern
// is either "*" (everything), an exact topic, or dot-separated segments
// where "*" matches any single segment.
func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")
	if len(patternParts) != len(topicParts) {
		return false
	}
	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
