// Package event provides the listener registry used for SDK lifecycle
// notifications such as controller completion, authorization loss, and
// reliable-queue delivery events. An Emitter is attached to a component at
// construction time; handlers are keyed by event name.
package event

import "sync"

// Handler receives the arguments passed to Invoke.
type Handler func(args ...interface{})

// Emitter is a minimal observer registry. Safe for concurrent use.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]Handler)}
}

// On registers a handler for the named event. Multiple handlers may be
// registered for the same name; they fire in registration order.
func (e *Emitter) On(name string, h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = append(e.handlers[name], h)
}

// Invoke fires every handler registered for each of the given event names.
func (e *Emitter) Invoke(names []string, args ...interface{}) {
	e.mu.RLock()
	var fired []Handler
	for _, name := range names {
		fired = append(fired, e.handlers[name]...)
	}
	e.mu.RUnlock()

	for _, h := range fired {
		h(args...)
	}
}

// Unbind removes all handlers registered for the named event.
func (e *Emitter) Unbind(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, name)
}

// HandlerCount reports how many handlers are bound to the named event.
func (e *Emitter) HandlerCount(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[name])
}
