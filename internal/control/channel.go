package control

import (
	"sync"

	"go.uber.org/zap"
)

// Channel caches the current project and owns the event target
type Channel struct {
	mu          sync.RWMutex
	projectName *string
	target      *Target
	logger      *zap.Logger
	onConnect   func(hasProject bool)
}

// NewChannel creates a channel with no known project
func NewChannel(logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		target: NewTarget(),
		logger: logger,
	}
}

// WithConnectHook registers a callback invoked for every connection frame.
// Metrics use it.
func (c *Channel) WithConnectHook(fn func(hasProject bool)) *Channel {
	c.onConnect = fn
	return c
}

// ProjectName returns the cached current project
func (c *Channel) ProjectName() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.projectName == nil {
		return "", false
	}
	return *c.projectName, true
}

// Target returns the channel's event target
func (c *Channel) Target() *Target {
	return c.target
}

// HandleConnection records a connection frame and emits new-connection
func (c *Channel) HandleConnection(project *string) {
	if project != nil {
		name := *project
		c.mu.Lock()
		c.projectName = &name
		c.mu.Unlock()
		c.logger.Info("control connection", zap.String("project", name))
	} else {
		c.logger.Info("control connection without project")
	}

	if c.onConnect != nil {
		c.onConnect(project != nil)
	}

	c.target.Dispatch(Event{Type: EventNewConnection, ProjectName: project})
}
