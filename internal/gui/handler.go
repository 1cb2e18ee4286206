package gui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/control"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/config"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sketchgui/internal/navigation"
	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
	"go.uber.org/zap"
)

var (
	ErrClosed     = errors.New("gui handler closed")
	ErrNotStarted = errors.New("gui handler not started")
	ErrNoSandbox  = errors.New("no live sandbox")
)

// Options wires a Handler to its collaborators
type Options struct {
	Config   config.GUIConfig
	Host     *sandbox.Host
	Location *navigation.Location
	Channel  *control.Channel
	Pages    PageFetcher
	Scripts  sandbox.ScriptLoader
	Runtimes sandbox.RuntimeSource
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

// Handler owns the GUI session: it resolves the active project, keeps one
// connection listener armed and reselects on every connection event.
type Handler struct {
	cfg      config.GUIConfig
	host     *sandbox.Host
	location *navigation.Location
	channel  *control.Channel
	runtimes sandbox.RuntimeSource
	resolver *Resolver
	selector *Selector
	listener *control.Listener
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu       sync.Mutex
	session  Session
	awaiting *ResolutionRequest
	ctx      context.Context
	stop     context.CancelFunc
	started  bool
	closed   bool

	subMu       sync.Mutex
	subscribers map[<-chan Snapshot]chan Snapshot
}

// New creates a handler. Nothing happens until Start.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		cfg:         opts.Config,
		host:        opts.Host,
		location:    opts.Location,
		channel:     opts.Channel,
		runtimes:    opts.Runtimes,
		logger:      logger,
		metrics:     opts.Metrics,
		subscribers: make(map[<-chan Snapshot]chan Snapshot),
	}
	h.session.reset()
	h.listener = control.NewListener(h.onNewConnection)
	h.resolver = NewResolver(opts.Location, opts.Channel, h.listener)
	h.selector = &Selector{
		cfg: SelectorConfig{
			Baseline:      opts.Config.Baseline,
			SketchName:    opts.Config.SketchName,
			SketchSection: opts.Config.SketchSection,
			DefaultSketch: opts.Config.DefaultSketch,
		},
		host:      opts.Host,
		pages:     opts.Pages,
		scripts:   opts.Scripts,
		session:   &h.session,
		committer: h,
		logger:    logger,
		metrics:   opts.Metrics,
	}
	return h
}

// Start shows the placeholder and begins resolving the project. ctx bounds
// every chain and the indefinite wait for a connection event.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.started {
		return nil
	}
	h.started = true
	h.ctx, h.stop = context.WithCancel(ctx)

	h.showPlaceholder()
	h.resolveLocked()
	h.publishLocked()

	h.logger.Info("GUI handler started",
		zap.String("host", h.host.ID),
		zap.String("location", h.location.String()))
	return nil
}

// SelectGui runs selection for project as a connection event would
func (h *Handler) SelectGui(project string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.usable(); err != nil {
		return err
	}
	h.supersedeLocked()
	h.selectGuiLocked(project)
	return nil
}

// supersedeLocked abandons the awaited request, settled or not, so a late
// onResolved cannot replace the selection about to run.
func (h *Handler) supersedeLocked() {
	if h.awaiting == nil {
		return
	}
	h.logger.Debug("Superseding awaited resolution", zap.String("source", string(h.awaiting.Source())))
	h.awaiting = nil
	h.session.Resolving = false
	h.resolver.Reset()
}

// Reload starts a new navigation lifetime at rawURL: the sandbox is
// destroyed, any pending resolution is abandoned and resolution restarts.
func (h *Handler) Reload(rawURL string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.usable(); err != nil {
		return err
	}
	if rawURL != "" {
		if err := h.location.Replace(rawURL); err != nil {
			return err
		}
	}

	h.resolver.Reset()
	h.awaiting = nil
	h.channel.Target().RemoveEventListener(control.EventNewConnection, h.listener)
	h.session.ListenerActive = false
	h.teardownLocked()
	h.showPlaceholder()

	h.logger.Info("Reloading GUI", zap.String("location", h.location.String()))

	h.resolveLocked()
	h.publishLocked()
	return nil
}

// Close destroys the sandbox, stops all chains and releases subscribers
func (h *Handler) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	if h.stop != nil {
		h.stop()
	}
	h.resolver.Reset()
	h.awaiting = nil
	h.channel.Target().RemoveEventListener(control.EventNewConnection, h.listener)
	h.session.ListenerActive = false
	h.teardownLocked()
	h.mu.Unlock()

	h.subMu.Lock()
	for key, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, key)
	}
	h.subMu.Unlock()
	return nil
}

// Commit applies fn when gen is the current generation
func (h *Handler) Commit(gen uint64, fn func(s *Session)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || gen != h.session.Generation {
		return false
	}
	fn(&h.session)
	h.session.Updated = time.Now()
	h.publishLocked()
	return true
}

// Snapshot returns the current session state
func (h *Handler) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Document renders the live sandbox's document
func (h *Handler) Document() (string, error) {
	h.mu.Lock()
	sb := h.session.Sandbox
	h.mu.Unlock()

	if sb == nil {
		return "", ErrNoSandbox
	}
	return sb.Document()
}

// Query evaluates an XPath expression against the live sandbox document
func (h *Handler) Query(expr string) ([]sandbox.Match, error) {
	h.mu.Lock()
	sb := h.session.Sandbox
	h.mu.Unlock()

	if sb == nil {
		return nil, ErrNoSandbox
	}
	return sb.Query(expr)
}

// Console returns the live sandbox's console
func (h *Handler) Console() ([]sandbox.LogEntry, error) {
	h.mu.Lock()
	sb := h.session.Sandbox
	h.mu.Unlock()

	if sb == nil {
		return nil, ErrNoSandbox
	}
	return sb.Console(), nil
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Slow subscribers only see the latest state.
func (h *Handler) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}

	h.subMu.Lock()
	defer h.subMu.Unlock()
	ch <- h.snapshotLocked()
	h.subscribers[ch] = ch
	return ch
}

// Unsubscribe stops delivery to ch and closes it
func (h *Handler) Unsubscribe(ch <-chan Snapshot) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if send, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(send)
	}
}

// onNewConnection is the control listener. A named connection first settles
// a pending resolution; otherwise it reselects directly.
func (h *Handler) onNewConnection(ev control.Event) {
	name, ok := ev.Project()
	if !ok {
		return
	}
	if h.channel.Target().Resolve(name) {
		return
	}
	if err := h.SelectGui(name); err != nil {
		h.logger.Debug("Ignoring connection event", zap.String("project", name), zap.Error(err))
	}
}

// resolveLocked starts or joins a resolution and waits for it off the lock
func (h *Handler) resolveLocked() {
	req := h.resolver.Resolve()
	h.session.Resolving = !req.Settled()
	h.session.ListenerActive = h.channel.Target().HasEventListener(control.EventNewConnection, h.listener)
	if req == h.awaiting {
		return
	}
	h.awaiting = req
	go h.await(h.ctx, req)
}

func (h *Handler) await(ctx context.Context, req *ResolutionRequest) {
	select {
	case <-req.Done():
	case <-ctx.Done():
		req.Cancel()
		return
	}

	name, ok := req.Name()
	if !ok {
		return
	}
	h.onResolved(req, name)
}

func (h *Handler) onResolved(req *ResolutionRequest, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || req != h.awaiting {
		return
	}
	h.awaiting = nil
	h.session.Resolving = false
	h.resolver.Clear()
	h.metrics.RecordResolution(string(req.Source()))

	h.logger.Info("Project resolved",
		zap.String("project", name),
		zap.String("source", string(req.Source())))

	h.selectGuiLocked(name)
}

// selectGuiLocked reflects navigation and reselects with the listener
// removed for the duration of the selection.
func (h *Handler) selectGuiLocked(name string) {
	target := h.channel.Target()

	if name == h.cfg.NoProject {
		target.AddEventListener(control.EventNewConnection, h.listener)
		target.ClearResolve()
		h.session.ListenerActive = true
		h.logger.Info("No project to show, waiting for a connection")
		h.publishLocked()
		return
	}

	if name == h.cfg.EphemeralProject {
		h.location.Clear()
	} else {
		h.location.SetFragment(name)
	}

	target.RemoveEventListener(control.EventNewConnection, h.listener)
	h.session.ListenerActive = false

	factory := func(ctx context.Context) (*sandbox.Context, error) {
		return sandbox.Create(ctx, h.host, h.runtimes, sandbox.Options{
			Logger: h.logger.Named("sandbox"),
			Bindings: map[string]interface{}{
				"Bela": map[string]interface{}{
					"host":    h.host.ID,
					"project": name,
				},
			},
		})
	}
	if _, err := h.selector.Select(h.ctx, name, factory); err != nil {
		h.logger.Error("Selection failed", zap.String("project", name), zap.Error(err))
	}

	target.AddEventListener(control.EventNewConnection, h.listener)
	target.ClearResolve()
	h.session.ListenerActive = true
	h.publishLocked()
}

// teardownLocked invalidates in-flight chains and destroys the sandbox
func (h *Handler) teardownLocked() {
	h.session.Generation++
	h.selector.teardown()
	h.session.reset()
}

func (h *Handler) showPlaceholder() {
	markup := h.cfg.PlaceholderHTML
	if markup == "" {
		markup = PlaceholderHTML
	}
	h.host.SetPlaceholder(PlaceholderCSS, markup)
}

func (h *Handler) usable() error {
	if h.closed {
		return ErrClosed
	}
	if !h.started {
		return ErrNotStarted
	}
	return nil
}

func (h *Handler) snapshotLocked() Snapshot {
	_, _, showing := h.host.Placeholder()
	return h.session.snapshot(h.location.String(), showing)
}

func (h *Handler) publishLocked() {
	snap := h.snapshotLocked()

	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// drop the oldest so the latest state always lands
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
