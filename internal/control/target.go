package control

import "sync"

// EventNewConnection is emitted whenever the control socket connects.
const EventNewConnection = "new-connection"

// Event is a control channel event
type Event struct {
	Type        string
	ProjectName *string
}

// Project returns the event's project name, if it carries one
func (e Event) Project() (string, bool) {
	if e.ProjectName == nil {
		return "", false
	}
	return *e.ProjectName, true
}

// Listener handles control events. Identity is the pointer.
type Listener struct {
	fn func(Event)
}

// NewListener wraps fn as a removable listener
func NewListener(fn func(Event)) *Listener {
	return &Listener{fn: fn}
}

// Target dispatches control events to registered listeners
type Target struct {
	mu        sync.Mutex
	listeners map[string][]*Listener
	resolve   func(string) bool
}

// NewTarget creates an empty event target
func NewTarget() *Target {
	return &Target{listeners: make(map[string][]*Listener)}
}

// AddEventListener registers l for typ. It reports false when l was
// already registered.
func (t *Target) AddEventListener(typ string, l *Listener) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.listeners[typ] {
		if existing == l {
			return false
		}
	}
	t.listeners[typ] = append(t.listeners[typ], l)
	return true
}

// RemoveEventListener unregisters l for typ and reports whether it was present
func (t *Target) RemoveEventListener(typ string, l *Listener) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.listeners[typ]
	for i, existing := range list {
		if existing == l {
			t.listeners[typ] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// HasEventListener reports whether l is registered for typ
func (t *Target) HasEventListener(typ string, l *Listener) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.listeners[typ] {
		if existing == l {
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered for typ
func (t *Target) ListenerCount(typ string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[typ])
}

// Dispatch delivers ev to a snapshot of the current listeners. The lock is
// not held while listeners run, so they may add or remove listeners.
func (t *Target) Dispatch(ev Event) {
	t.mu.Lock()
	snapshot := append([]*Listener(nil), t.listeners[ev.Type]...)
	t.mu.Unlock()

	for _, l := range snapshot {
		l.fn(ev)
	}
}

// SetResolve occupies the one-shot resolve slot
func (t *Target) SetResolve(fn func(string) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolve = fn
}

// ClearResolve empties the resolve slot
func (t *Target) ClearResolve() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolve = nil
}

// HasResolve reports whether the resolve slot is occupied
func (t *Target) HasResolve() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolve != nil
}

// Resolve hands name to the resolve slot. It reports true only when a slot
// was set and accepted the name.
func (t *Target) Resolve(name string) bool {
	t.mu.Lock()
	fn := t.resolve
	t.mu.Unlock()

	if fn == nil {
		return false
	}
	return fn(name)
}
