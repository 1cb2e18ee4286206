package sandbox

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Host is the named container a sandbox attaches under. Until the first
// sandbox attaches it shows a placeholder; afterwards it holds at most one
// live sandbox at a time.
type Host struct {
	ID string

	mu        sync.Mutex
	css       string
	markup    string
	showing   bool
	child     *Context
	sanitizer *bluemonday.Policy
}

// NewHost creates an empty host
func NewHost(id string) *Host {
	return &Host{
		ID:        id,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// SetPlaceholder shows sanitized placeholder markup with the given style
func (h *Host) SetPlaceholder(css, markup string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.css = css
	h.markup = h.sanitizer.Sanitize(markup)
	h.showing = true
}

// ClearPlaceholder removes the placeholder content and style
func (h *Host) ClearPlaceholder() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.css = ""
	h.markup = ""
	h.showing = false
}

// Placeholder returns the current placeholder and whether it is shown
func (h *Host) Placeholder() (css, markup string, showing bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.css, h.markup, h.showing
}

// Child returns the attached sandbox, if any
func (h *Host) Child() *Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.child
}

func (h *Host) attach(c *Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.child != nil && h.child != c {
		return ErrHostOccupied
	}
	h.child = c
	return nil
}

// detach is a no-op unless c is the attached child
func (h *Host) detach(c *Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.child == c {
		h.child = nil
	}
}
