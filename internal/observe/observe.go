// Package observe provides a small listener registry used by the domain
// services to publish state changes to transports.
package observe

import "sync"

// Hub fans a value out to every subscribed listener.
// Listeners are called synchronously, in subscription order, on the
// goroutine that calls Notify.
type Hub[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]func(T)
	order     []uint64
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners == nil {
		h.listeners = make(map[uint64]func(T))
	}
	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.listeners, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Notify delivers v to all listeners. Must not be called with a lock held
// that a listener might try to acquire.
func (h *Hub[T]) Notify(v T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.order))
	for _, id := range h.order {
		fns = append(fns, h.listeners[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of active listeners.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
