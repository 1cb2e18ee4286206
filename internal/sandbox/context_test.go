package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader struct {
	mu      sync.Mutex
	scripts map[string]string
	calls   []string
}

func (l *mapLoader) Load(ctx context.Context, src, section string, target *Context) error {
	l.mu.Lock()
	l.calls = append(l.calls, src)
	code, ok := l.scripts[src]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: not found", src)
	}
	return target.InjectScript(ctx, section, src, code)
}

func newTestContext(t *testing.T, host *Host) *Context {
	t.Helper()
	sb, err := Create(context.Background(), host, Fresh(DefaultConfig()), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { sb.Destroy() })
	return sb
}

func TestCreateAttachesToHost(t *testing.T) {
	host := NewHost("gui")
	sb := newTestContext(t, host)

	assert.Same(t, sb, host.Child())
	assert.Equal(t, StateCreated, sb.State())
	assert.True(t, sb.Live())
	assert.NotEmpty(t, sb.ID)

	_, err := Create(context.Background(), host, Fresh(DefaultConfig()), Options{})
	assert.ErrorIs(t, err, ErrHostOccupied)
}

func TestDestroyIsIdempotent(t *testing.T) {
	host := NewHost("gui")
	sb := newTestContext(t, host)

	assert.True(t, sb.Destroy())
	assert.False(t, sb.Destroy())
	assert.Nil(t, host.Child())
	assert.False(t, sb.Live())

	assert.ErrorIs(t, sb.Open(), ErrDestroyed)
	assert.ErrorIs(t, sb.InjectScript(context.Background(), "head", "/a.js", ""), ErrDestroyed)
	assert.ErrorIs(t, sb.PostMessage(context.Background(), "<p></p>"), ErrDestroyed)

	// a replacement can attach once the old one is gone
	next := newTestContext(t, host)
	assert.Same(t, next, host.Child())
}

func TestOpenLoadsTemplate(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))

	assert.ErrorIs(t, sb.InjectScript(context.Background(), "head", "/a.js", ""), ErrNotOpen)

	require.NoError(t, sb.Open())
	require.NoError(t, sb.Open())
	assert.Equal(t, StateOpen, sb.State())

	doc, err := sb.Document()
	require.NoError(t, err)
	assert.Contains(t, doc, "<title>Bela GUI</title>")
}

func TestOpenInstallsBindings(t *testing.T) {
	host := NewHost("gui")
	sb, err := Create(context.Background(), host, Fresh(DefaultConfig()), Options{
		Bindings: map[string]interface{}{
			"Bela": map[string]interface{}{"host": "gui"},
		},
	})
	require.NoError(t, err)
	defer sb.Destroy()
	require.NoError(t, sb.Open())

	val, err := sb.Evaluate(context.Background(), "Bela.host")
	require.NoError(t, err)
	assert.Equal(t, "gui", val)
}

func TestLoadBaselineOrder(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))
	require.NoError(t, sb.Open())

	loader := &mapLoader{scripts: map[string]string{
		"/js/p5.min.js":     "var order = ['p5'];",
		"/js/p5.dom.min.js": "order.push('dom');",
	}}

	err := sb.LoadBaseline(context.Background(), loader, []string{"/js/p5.min.js", "/js/p5.dom.min.js"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/js/p5.min.js", "/js/p5.dom.min.js"}, sb.Scripts())
	assert.Equal(t, []string{"/js/p5.min.js", "/js/p5.dom.min.js"}, sb.DOM().Attrs("head script", "src"))

	val, err := sb.Evaluate(context.Background(), "order.join(',')")
	require.NoError(t, err)
	assert.Equal(t, "p5,dom", val)
}

func TestLoadBaselineStopsAtFirstFailure(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))
	require.NoError(t, sb.Open())

	loader := &mapLoader{scripts: map[string]string{
		"/c.js": "var c = 1;",
	}}

	err := sb.LoadBaseline(context.Background(), loader, []string{"/missing.js", "/c.js"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.js")
	assert.Equal(t, []string{"/missing.js"}, loader.calls)
	assert.Empty(t, sb.Scripts())
}

func TestInjectScriptErrorDoesNotFail(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))
	require.NoError(t, sb.Open())

	err := sb.InjectScript(context.Background(), "head", "/broken.js", "throw new Error('nope')")
	require.NoError(t, err)
	assert.Equal(t, []string{"/broken.js"}, sb.Scripts())

	console := sb.Console()
	require.NotEmpty(t, console)
	assert.Equal(t, "error", console[len(console)-1].Level)
}

func TestInjectScriptMissingSection(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))
	require.NoError(t, sb.Open())

	err := sb.InjectScript(context.Background(), "footer", "/a.js", "")
	assert.ErrorIs(t, err, ErrNoSection)
}

func TestPostMessageRendersDocument(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))
	require.NoError(t, sb.Open())

	ctx := context.Background()
	require.NoError(t, sb.InjectScript(ctx, "head", "/listen.js",
		"var got = null; window.addEventListener('message', function (e) { got = e.data; });"))

	page := "<html><head><title>Project</title></head><body><h1>Hi</h1></body></html>"
	require.NoError(t, sb.PostMessage(ctx, page))

	assert.Equal(t, 1, sb.Messages())
	assert.Equal(t, "Project", sb.DOM().Title())

	val, err := sb.Evaluate(ctx, "got")
	require.NoError(t, err)
	assert.Equal(t, page, val)
}

func TestStaleHandleCannotTouchReplacement(t *testing.T) {
	host := NewHost("gui")
	old := newTestContext(t, host)
	require.NoError(t, old.Open())
	old.Destroy()

	next := newTestContext(t, host)
	require.NoError(t, next.Open())

	err := old.InjectScript(context.Background(), "head", "/late.js", "var late = true;")
	assert.True(t, errors.Is(err, ErrDestroyed))
	assert.Empty(t, next.Scripts())
}

func TestQuery(t *testing.T) {
	sb := newTestContext(t, NewHost("gui"))

	_, err := sb.Query("//title")
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, sb.Open())
	matches, err := sb.Query("//title")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Bela GUI", matches[0].Text)

	sb.Destroy()
	_, err = sb.Query("//title")
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestDestroyInterruptsRunningScript(t *testing.T) {
	host := NewHost("gui")
	cfg := DefaultConfig()
	cfg.Timeout = time.Minute
	sb, err := Create(context.Background(), host, Fresh(cfg), Options{})
	require.NoError(t, err)
	require.NoError(t, sb.Open())

	done := make(chan error, 1)
	go func() {
		done <- sb.InjectScript(context.Background(), "head", "/projects/spin/sketch.js", "while (true) {}")
	}()
	require.Eventually(t, func() bool {
		return len(sb.Scripts()) == 1
	}, time.Second, time.Millisecond)

	// readers do not wait for the script
	start := time.Now()
	assert.True(t, sb.Live())
	assert.Equal(t, StateOpen, sb.State())
	_, err = sb.Document()
	require.NoError(t, err)

	assert.True(t, sb.Destroy())
	assert.Less(t, time.Since(start), time.Second)
	assert.Nil(t, host.Child())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(time.Second):
		t.Fatal("script kept running after Destroy")
	}
}
