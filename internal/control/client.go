package control

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Client keeps a websocket open to the IDE control endpoint and feeds
// connection frames into a Channel.
type Client struct {
	url     string
	channel *Channel
	dialer  *websocket.Dialer
	backoff *Backoff
	clock   clockwork.Clock
	logger  *zap.Logger
}

// NewClient creates a control client for url
func NewClient(url string, channel *Channel, minWait, maxWait time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:     url,
		channel: channel,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		backoff: NewBackoff(minWait, maxWait),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
}

// WithClock replaces the clock used for reconnect waits
func (c *Client) WithClock(clock clockwork.Clock) *Client {
	c.clock = clock
	return c
}

// Run connects and reconnects until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := c.backoff.Next()
		c.logger.Warn("control channel disconnected",
			zap.String("url", c.url),
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)

		timer := c.clock.NewTimer(wait)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// session runs one connection until it fails
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial control channel: %w", err)
	}
	defer conn.Close()
	c.backoff.Reset()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read control channel: %w", err)
		}

		frame, err := ParseFrame(data)
		if err != nil {
			c.logger.Debug("ignoring control frame", zap.Error(err))
			continue
		}

		switch frame.Event {
		case FrameConnection:
			c.channel.HandleConnection(frame.ProjectName)
		default:
			c.logger.Debug("unhandled control frame", zap.String("event", frame.Event))
		}
	}
}
