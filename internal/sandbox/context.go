package sandbox

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/shared/id"
	"go.uber.org/zap"
)

// Template is the static surface every sandbox opens with
//
//go:embed template.html
var Template string

// State is a sandbox lifecycle state
type State int

const (
	StateCreated State = iota
	StateOpen
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Options configures a sandbox at creation
type Options struct {
	Logger   *zap.Logger
	Bindings map[string]interface{} // host globals installed on Open
}

// Context is an isolated document plus script runtime
type Context struct {
	ID      id.SandboxID
	Created time.Time

	host     *Host
	runtime  *Runtime
	dom      *DOM
	bindings map[string]interface{}
	logger   *zap.Logger

	// state is read without mu so that Live and Destroy never wait on a
	// running script
	state atomic.Int32

	mu       sync.Mutex // document and bookkeeping; never held while scripts run
	scripts  []string
	messages int
}

// Create attaches a fresh sandbox under host. Any previous child must have
// been destroyed first.
func Create(ctx context.Context, host *Host, source RuntimeSource, opts Options) (*Context, error) {
	rt, err := source.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire runtime: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Context{
		ID:       id.NewSandboxID(),
		Created:  time.Now(),
		host:     host,
		runtime:  rt,
		bindings: opts.Bindings,
	}
	c.state.Store(int32(StateCreated))
	c.logger = logger.With(zap.String("sandbox", c.ID.String()))

	if err := host.attach(c); err != nil {
		rt.Close()
		return nil, err
	}

	c.logger.Debug("Sandbox created", zap.String("host", host.ID))
	return c, nil
}

// Open loads the template document and installs the sandbox globals.
// Scripts in the template are not executed; their behavior is provided
// natively by PostMessage.
func (c *Context) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.State() {
	case StateDestroyed:
		return ErrDestroyed
	case StateOpen:
		return nil
	}

	dom, err := NewDOM(Template)
	if err != nil {
		return err
	}
	if err := c.runtime.Set("document", dom.proxy()); err != nil {
		return fmt.Errorf("bind document: %w", err)
	}
	for name, value := range c.bindings {
		if err := c.runtime.Set(name, value); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}

	c.dom = dom
	if !c.state.CompareAndSwap(int32(StateCreated), int32(StateOpen)) {
		return ErrDestroyed
	}
	return nil
}

// LoadBaseline injects resources into the head in order. It stops at the
// first failure and reports which resource failed.
func (c *Context) LoadBaseline(ctx context.Context, loader ScriptLoader, resources []string) error {
	for _, src := range resources {
		if !c.Live() {
			return ErrDestroyed
		}
		if err := loader.Load(ctx, src, "head", c); err != nil {
			return fmt.Errorf("baseline %s: %w", src, err)
		}
	}
	return nil
}

// InjectScript appends a script element for src to section and evaluates
// code in the sandbox. Script errors are recorded on the console and do not
// fail the injection, matching how a browser reports onload for a script
// that throws.
func (c *Context) InjectScript(ctx context.Context, section, src, code string) error {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return err
	}
	tag := fmt.Sprintf(`<script type="text/javascript" src="%s"></script>`, html.EscapeString(src))
	if err := c.dom.Append(section, tag); err != nil {
		c.mu.Unlock()
		return err
	}
	c.scripts = append(c.scripts, src)
	c.mu.Unlock()

	if _, err := c.runtime.Execute(ctx, src, code); err != nil {
		if !c.Live() {
			return ErrDestroyed
		}
		c.logger.Warn("Script raised an error", zap.String("src", src), zap.Error(err))
	}
	return nil
}

// PostMessage replaces the sandbox document with markup and notifies the
// sandbox's message listeners.
func (c *Context) PostMessage(ctx context.Context, markup string) error {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.dom.Replace(markup); err != nil {
		c.mu.Unlock()
		return err
	}
	c.messages++
	c.mu.Unlock()

	if err := c.runtime.DispatchMessage(ctx, markup); err != nil {
		if !c.Live() {
			return ErrDestroyed
		}
		c.logger.Warn("Message listeners failed", zap.Error(err))
	}
	return nil
}

// Destroy detaches the sandbox from its host and releases its runtime,
// interrupting a script that is still running. It reports whether this
// call did the destroying.
func (c *Context) Destroy() bool {
	if State(c.state.Swap(int32(StateDestroyed))) == StateDestroyed {
		return false
	}
	c.runtime.Interrupt()
	c.host.detach(c)
	c.runtime.Close()

	c.logger.Debug("Sandbox destroyed", zap.Duration("lifetime", time.Since(c.Created)))
	return true
}

// Live reports whether the sandbox has not been destroyed
func (c *Context) Live() bool {
	return c.State() != StateDestroyed
}

// State returns the lifecycle state
func (c *Context) State() State {
	return State(c.state.Load())
}

// Document returns the rendered document; empty before Open
func (c *Context) Document() (string, error) {
	c.mu.Lock()
	dom := c.dom
	c.mu.Unlock()

	if dom == nil {
		return "", nil
	}
	return dom.HTML()
}

// Query evaluates an XPath expression against the document
func (c *Context) Query(expr string) ([]Match, error) {
	c.mu.Lock()
	err := c.usable()
	dom := c.dom
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return dom.XPath(expr)
}

// DOM exposes the document for inspection
func (c *Context) DOM() *DOM {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dom
}

// Scripts returns injected script sources in injection order
func (c *Context) Scripts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.scripts...)
}

// Messages returns how many documents were posted
func (c *Context) Messages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Console returns the sandbox console
func (c *Context) Console() []LogEntry {
	return c.runtime.Console()
}

// Evaluate runs an expression in the sandbox
func (c *Context) Evaluate(ctx context.Context, expr string) (interface{}, error) {
	if !c.Live() {
		return nil, ErrDestroyed
	}
	return c.runtime.Evaluate(ctx, expr)
}

func (c *Context) usable() error {
	switch c.State() {
	case StateDestroyed:
		return ErrDestroyed
	case StateCreated:
		return ErrNotOpen
	}
	return nil
}
