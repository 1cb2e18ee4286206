package gui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// lockedSession is a minimal Committer for driving a Selector directly
type lockedSession struct {
	mu      sync.Mutex
	session Session
}

func (l *lockedSession) Commit(gen uint64, fn func(s *Session)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.session.Generation {
		return false
	}
	fn(&l.session)
	return true
}

func (l *lockedSession) get() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

func newTestSelector(cfg SelectorConfig, pages PageFetcher, scripts sandbox.ScriptLoader) (*Selector, *lockedSession, *sandbox.Host) {
	ls := &lockedSession{}
	ls.session.reset()
	host := sandbox.NewHost("gui")
	return &Selector{
		cfg:       cfg,
		host:      host,
		pages:     pages,
		scripts:   scripts,
		session:   &ls.session,
		committer: ls,
		logger:    zap.NewNop(),
	}, ls, host
}

func freshFactory(host *sandbox.Host) Factory {
	return func(ctx context.Context) (*sandbox.Context, error) {
		return sandbox.Create(ctx, host, sandbox.Fresh(sandbox.DefaultConfig()), sandbox.Options{})
	}
}

func TestPlanOrder(t *testing.T) {
	sel := &Selector{cfg: SelectorConfig{SketchName: "sketch", DefaultSketch: "/gui/p5-sketches/sketch.js"}}

	steps := sel.plan("foo")
	require.Len(t, steps, 3)
	assert.Equal(t, AttemptPage, steps[0].kind)
	assert.Equal(t, "/projects/foo/main.html", steps[0].locator)
	assert.Equal(t, AttemptScript, steps[1].kind)
	assert.Equal(t, "/projects/foo/sketch.js", steps[1].locator)
	assert.Equal(t, AttemptDefault, steps[2].kind)
	assert.Equal(t, OutcomeDegraded, steps[2].outcome)

	sel.cfg.DefaultSketch = ""
	assert.Len(t, sel.plan("foo"), 2)
}

func TestSelectWithoutDefaultFails(t *testing.T) {
	log := &callLog{}
	pages := &fakePages{log: log, pages: map[string]string{}, gates: map[string]chan struct{}{}}
	scripts := &fakeScripts{log: log, scripts: map[string]string{}}

	sel, ls, host := newTestSelector(SelectorConfig{SketchName: "sketch", SketchSection: "head"}, pages, scripts)

	ls.mu.Lock()
	gen, err := sel.Select(context.Background(), "foo", freshFactory(host))
	ls.mu.Unlock()
	require.NoError(t, err)
	assert.EqualValues(t, 1, gen)

	require.Eventually(t, func() bool {
		return ls.get().Outcome == OutcomeFailed
	}, 3*time.Second, 5*time.Millisecond)

	s := ls.get()
	assert.Equal(t, PhaseTerminal, s.Phase)
	assert.Len(t, s.Attempts, 2)
	assert.Equal(t, []string{"page /projects/foo/main.html", "script /projects/foo/sketch.js"}, log.list())

	ls.mu.Lock()
	sel.teardown()
	ls.mu.Unlock()
}

func TestSelectFactoryFailure(t *testing.T) {
	sel, ls, host := newTestSelector(SelectorConfig{}, nil, nil)
	host.SetPlaceholder("", "<p>waiting</p>")

	ls.mu.Lock()
	_, err := sel.Select(context.Background(), "foo", func(context.Context) (*sandbox.Context, error) {
		return nil, errors.New("no runtime")
	})
	ls.mu.Unlock()

	require.Error(t, err)
	s := ls.get()
	assert.Equal(t, OutcomeFailed, s.Outcome)
	assert.Equal(t, PhaseTerminal, s.Phase)
	assert.Nil(t, s.Sandbox)

	_, _, showing := host.Placeholder()
	assert.False(t, showing)
}

func TestSelectReplacesSandbox(t *testing.T) {
	log := &callLog{}
	pages := &fakePages{log: log, pages: map[string]string{"/projects/foo/main.html": fooPage}, gates: map[string]chan struct{}{}}
	scripts := &fakeScripts{log: log, scripts: map[string]string{}}

	sel, ls, host := newTestSelector(SelectorConfig{SketchName: "sketch", SketchSection: "head"}, pages, scripts)

	ls.mu.Lock()
	_, err := sel.Select(context.Background(), "foo", freshFactory(host))
	first := ls.session.Sandbox
	_, err2 := sel.Select(context.Background(), "foo", freshFactory(host))
	second := ls.session.Sandbox
	ls.mu.Unlock()

	require.NoError(t, err)
	require.NoError(t, err2)
	assert.False(t, first.Live())
	assert.True(t, second.Live())
	assert.Same(t, second, host.Child())

	require.Eventually(t, func() bool {
		return ls.get().Outcome == OutcomeSuccess
	}, 3*time.Second, 5*time.Millisecond)

	ls.mu.Lock()
	sel.teardown()
	ls.mu.Unlock()
}
