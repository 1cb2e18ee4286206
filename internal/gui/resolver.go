package gui

import (
	"sync"

	"github.com/GriffinCanCode/sketchgui/internal/control"
	"github.com/GriffinCanCode/sketchgui/internal/navigation"
)

// Source is where a resolved project name came from
type Source string

const (
	SourceQuery      Source = "query"
	SourceCached     Source = "cached"
	SourceConnection Source = "connection"
)

// ResolutionRequest is a single-consumer completion for a project name.
// It settles exactly once, either with a name or by cancellation.
type ResolutionRequest struct {
	once      sync.Once
	done      chan struct{}
	mu        sync.RWMutex
	name      string
	source    Source
	cancelled bool
}

func newRequest() *ResolutionRequest {
	return &ResolutionRequest{done: make(chan struct{})}
}

// Complete settles the request with a name delivered by a connection event
func (r *ResolutionRequest) Complete(name string) bool {
	return r.settle(name, SourceConnection, false)
}

// Cancel abandons the request
func (r *ResolutionRequest) Cancel() bool {
	return r.settle("", "", true)
}

func (r *ResolutionRequest) settle(name string, source Source, cancelled bool) bool {
	settled := false
	r.once.Do(func() {
		r.mu.Lock()
		r.name = name
		r.source = source
		r.cancelled = cancelled
		r.mu.Unlock()
		close(r.done)
		settled = true
	})
	return settled
}

// Done is closed once the request settles
func (r *ResolutionRequest) Done() <-chan struct{} {
	return r.done
}

// Settled reports whether the request has completed or been cancelled
func (r *ResolutionRequest) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Name returns the resolved name. It is false while pending or when cancelled.
func (r *ResolutionRequest) Name() (string, bool) {
	if !r.Settled() {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cancelled {
		return "", false
	}
	return r.name, true
}

// Source returns where the name came from; empty while pending
func (r *ResolutionRequest) Source() Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.source
}

// Cancelled reports whether the request was abandoned
func (r *ResolutionRequest) Cancelled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancelled
}

// Resolver determines the active project from, in order, the one-time
// query parameter, the control channel's cached project, and the next
// connection event.
type Resolver struct {
	location *navigation.Location
	channel  *control.Channel
	listener *control.Listener

	mu      sync.Mutex
	current *ResolutionRequest
}

// NewResolver creates a resolver. listener is registered on the channel's
// target when resolution has to wait for a connection event.
func NewResolver(location *navigation.Location, channel *control.Channel, listener *control.Listener) *Resolver {
	return &Resolver{
		location: location,
		channel:  channel,
		listener: listener,
	}
}

// Resolve never fails. While a request is pending the same request is
// returned and nothing is registered twice.
func (r *Resolver) Resolve() *ResolutionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && !r.current.Settled() {
		return r.current
	}

	req := newRequest()
	r.current = req

	if name, ok := r.location.ConsumeQuery(navigation.QueryProject); ok && name != "" {
		req.settle(name, SourceQuery, false)
		return req
	}

	if name, ok := r.channel.ProjectName(); ok && name != "" {
		req.settle(name, SourceCached, false)
		return req
	}

	target := r.channel.Target()
	target.AddEventListener(control.EventNewConnection, r.listener)
	target.SetResolve(req.Complete)
	return req
}

// Pending returns the unsettled request, if any
func (r *Resolver) Pending() *ResolutionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && !r.current.Settled() {
		return r.current
	}
	return nil
}

// Clear drops a settled request and empties the target's resolve slot
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && r.current.Settled() {
		r.current = nil
		r.channel.Target().ClearResolve()
	}
}

// Reset cancels any pending request and empties the resolve slot
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.Cancel()
		r.current = nil
	}
	r.channel.Target().ClearResolve()
}
