package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newControlServer sends frames to each connection, then holds it open
func newControlServer(t *testing.T, frames ...string) (*httptest.Server, *int32) {
	t.Helper()
	var connections int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		atomic.AddInt32(&connections, 1)

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &connections
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestClientFeedsConnectionFrames(t *testing.T) {
	srv, _ := newControlServer(t,
		`{"event":"status"}`,
		`garbage`,
		`{"event":"connection","projectName":"foo"}`,
	)

	ch := NewChannel(nil)
	var got atomic.Value
	ch.Target().AddEventListener(EventNewConnection, NewListener(func(ev Event) {
		if name, ok := ev.Project(); ok {
			got.Store(name)
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(wsURL(srv.URL), ch, 10*time.Millisecond, 50*time.Millisecond, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	require.Eventually(t, func() bool {
		name, _ := got.Load().(string)
		return name == "foo"
	}, 2*time.Second, 10*time.Millisecond)

	name, ok := ch.ProjectName()
	assert.True(t, ok)
	assert.Equal(t, "foo", name)

	cancel()
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after cancel")
	}
}

func TestClientReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&connections, 1)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"connection","projectName":"bar"}`))
		conn.Close()
	}))
	defer srv.Close()

	ch := NewChannel(nil)
	var events int32
	ch.Target().AddEventListener(EventNewConnection, NewListener(func(Event) {
		atomic.AddInt32(&events, 1)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewClient(wsURL(srv.URL), ch, 5*time.Millisecond, 20*time.Millisecond, nil).Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&events) >= 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&connections), int32(2))
}

func TestClientWaitsOnClockBeforeRedial(t *testing.T) {
	var dials int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&dials, 1) == 1 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"connection","projectName":"late"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	ch := NewChannel(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := NewClient(wsURL(srv.URL), ch, time.Second, time.Minute, nil).WithClock(clock)
	go client.Run(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.EqualValues(t, 1, atomic.LoadInt32(&dials))

	clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		name, ok := ch.ProjectName()
		return ok && name == "late"
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&dials))
}
