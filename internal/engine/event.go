package engine

import "sync"

// EventWithArg is a multi-cast event with one argument.
// Listeners run on the goroutine that calls Invoke.
type EventWithArg[T any] struct {
	mu        sync.RWMutex
	listeners []func(T)
}

// AddListener adds a callback to be invoked when the event fires
func (e *EventWithArg[T]) AddListener(callback func(T)) {
	if callback == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, callback)
	e.mu.Unlock()
}

func (e *EventWithArg[T]) RemoveAllListeners() {
	e.mu.Lock()
	e.listeners = nil
	e.mu.Unlock()
}

// Invoke calls all registered listeners. A listener may add listeners;
// they fire from the next Invoke on.
func (e *EventWithArg[T]) Invoke(arg T) {
	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()
	for _, listener := range listeners {
		listener(arg)
	}
}

// GetListenerCount returns the number of registered listeners (for debugging)
func (e *EventWithArg[T]) GetListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
