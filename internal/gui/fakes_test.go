package gui

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/content"
	"github.com/GriffinCanCode/sketchgui/internal/control"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/config"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sketchgui/internal/navigation"
	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
	"github.com/stretchr/testify/require"
)

// callLog records fetches from both fakes in one ordered list
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.calls...)
}

func (l *callLog) has(call string) bool {
	for _, c := range l.list() {
		if c == call {
			return true
		}
	}
	return false
}

type fakePages struct {
	log   *callLog
	mu    sync.Mutex
	pages map[string]string
	gates map[string]chan struct{}
}

func (f *fakePages) GetHTML(ctx context.Context, locator string) (string, error) {
	f.log.add("page " + locator)

	f.mu.Lock()
	gate := f.gates[locator]
	markup, ok := f.pages[locator]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", locator, content.ErrNotFound)
	}
	return markup, nil
}

// hold makes GetHTML for locator block until the returned func is called
func (f *fakePages) hold(locator string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[locator] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

type fakeScripts struct {
	log     *callLog
	scripts map[string]string
}

func (f *fakeScripts) Load(ctx context.Context, src, section string, target *sandbox.Context) error {
	f.log.add("script " + src)
	code, ok := f.scripts[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, content.ErrNotFound)
	}
	return target.InjectScript(ctx, section, src, code)
}

type harness struct {
	h       *Handler
	host    *sandbox.Host
	loc     *navigation.Location
	channel *control.Channel
	pages   *fakePages
	scripts *fakeScripts
	log     *callLog
	metrics *monitoring.Metrics
}

const startURL = "http://bela.local/gui/"

func baselineScripts() map[string]string {
	return map[string]string{
		"/js/p5.min.js":     "var p5 = function () {};",
		"/js/p5.dom.min.js": "p5.dom = true;",
	}
}

func newHarness(t *testing.T, rawURL string) *harness {
	t.Helper()

	loc, err := navigation.New(rawURL)
	require.NoError(t, err)

	log := &callLog{}
	hs := &harness{
		host:    sandbox.NewHost("gui"),
		loc:     loc,
		channel: control.NewChannel(nil),
		pages:   &fakePages{log: log, pages: map[string]string{}, gates: map[string]chan struct{}{}},
		scripts: &fakeScripts{log: log, scripts: baselineScripts()},
		log:     log,
		metrics: monitoring.NewMetrics(),
	}

	hs.h = New(Options{
		Config:   config.Default().GUI,
		Host:     hs.host,
		Location: loc,
		Channel:  hs.channel,
		Pages:    hs.pages,
		Scripts:  hs.scripts,
		Runtimes: sandbox.Fresh(sandbox.DefaultConfig()),
		Metrics:  hs.metrics,
	})
	t.Cleanup(func() { hs.h.Close() })
	return hs
}

func (hs *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, hs.h.Start(context.Background()))
}

func (hs *harness) connect(name string) {
	hs.channel.HandleConnection(&name)
}

func (hs *harness) page(project, markup string) {
	hs.pages.mu.Lock()
	defer hs.pages.mu.Unlock()
	hs.pages.pages[content.ProjectPage(project)] = markup
}

func (hs *harness) sketch(project, code string) {
	hs.scripts.scripts[content.ProjectSketch(project, "sketch")] = code
}

// waitFor blocks until the session satisfies cond
func (hs *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = hs.h.Snapshot()
		return cond(snap)
	}, 3*time.Second, 5*time.Millisecond)
	return snap
}

func settled(s Snapshot) bool {
	return s.Outcome != OutcomePending
}

func (h *Handler) liveSandbox() *sandbox.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Sandbox
}

func (hs *harness) listeners() int {
	return hs.channel.Target().ListenerCount(control.EventNewConnection)
}
