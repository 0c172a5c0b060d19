// Package notify implements the subscribe/notify contract shared by the
// session and conversation stores.
package notify

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Hub fans a value out to every registered subscriber.
//
// Publish calls subscribers synchronously, in registration order, outside the
// hub lock, so a subscriber may unsubscribe or read store state while it runs.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
}

// New returns an empty hub.
func New[T any]() *Hub[T] {
	return &Hub[T]{}
}

// Subscribe registers fn and returns a function that removes it again.
// The returned function is idempotent.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every subscriber registered at the time of the call.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	subs := make([]subscriber[T], len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of current subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
