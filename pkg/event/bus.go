// Package event provides a typed in-process publish/subscribe channel, used
// to notify sibling views (entity lists, navigation) after a successful save
// without resorting to untyped global broadcasts.
package event

import (
	"sync"
	"time"
)

// Save is the payload published after the save controller confirms a
// persistence success.
type Save struct {
	// Entity is the entity kind that was saved ("show", "member", ...).
	Entity string

	// Tenant identifies the band whose content changed.
	Tenant string

	// Created is true for create-mode submits, false for edits.
	Created bool

	// Values is the persisted payload.
	Values map[string]any

	At time.Time
}

// Bus is a minimal synchronous pub/sub channel for one payload type.
// Handlers run on the publisher's goroutine in subscription order.
type Bus[T any] struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(T)
	ord  []int
}

// NewBus constructs an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[int]func(T))}
}

// Subscribe registers a handler and returns its cancel function. Cancel is
// idempotent.
func (b *Bus[T]) Subscribe(handler func(T)) (cancel func()) {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = handler
	b.ord = append(b.ord, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers the payload to every current subscriber.
func (b *Bus[T]) Publish(payload T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.subs))
	for _, id := range b.ord {
		if handler, ok := b.subs[id]; ok {
			handlers = append(handlers, handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(payload)
	}
}
