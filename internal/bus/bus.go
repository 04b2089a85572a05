package bus

import (
	"sort"
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// Events marked Retain are kept (latest per Kind and Key) and replayed to
// new subscribers, so a late subscriber sees current state immediately.
type Bus struct {
	mu       sync.RWMutex
	subs     map[int]*subscription
	next     int
	retained map[retainKey]Event
}

type retainKey struct {
	kind string
	key  string
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs:     make(map[int]*subscription),
		retained: make(map[retainKey]Event),
	}
}

// Publish sends an event to all subscribers whose namespace is a prefix of event.Kind.
func (b *Bus) Publish(evt Event) {
	if evt.Retain {
		b.mu.Lock()
		b.retained[retainKey{evt.Kind, evt.Key}] = evt
		b.mu.Unlock()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Drop event if subscriber is full (non-blocking).
			}
		}
	}
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Retained events matching the namespace
// are delivered first, oldest first. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}

	var replay []Event
	for k, evt := range b.retained {
		if strings.HasPrefix(k.kind, namespace) {
			replay = append(replay, evt)
		}
	}
	sort.Slice(replay, func(i, j int) bool {
		return replay[i].Timestamp.Before(replay[j].Timestamp)
	})
	for _, evt := range replay {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Latest returns the retained event for kind and key, if any.
func (b *Bus) Latest(kind, key string) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	evt, ok := b.retained[retainKey{kind, key}]
	return evt, ok
}

// Forget drops retained events published under key.
func (b *Bus) Forget(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.retained {
		if k.key == key {
			delete(b.retained, k)
		}
	}
}
