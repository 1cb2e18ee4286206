package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/resilience"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnexpectedType = errors.New("unexpected content type")
	ErrBadStatus      = errors.New("unexpected status")
	ErrServerError    = errors.New("server error")
)

// Config configures the content client
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int     // transport retries on connection errors and 5xx
	RPS       float64 // 0 = unlimited
	UserAgent string

	// BreakerThreshold consecutive transport failures or 5xx responses
	// open the breaker. 0 disables it.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// Response is a fetched resource
type Response struct {
	URL         string
	Status      int
	Body        []byte
	MIME        string
	ContentType string // as sent by the server
}

// Client fetches resources relative to the IDE base URL
type Client struct {
	resty   *resty.Client
	base    *url.URL
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewClient creates a content client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	// hand non-2xx responses back instead of converting them to errors
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "sketchgui/1.0"
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent)

	c := &Client{
		resty:  restyClient,
		base:   base,
		logger: logger,
	}
	if cfg.BreakerThreshold > 0 {
		c.breaker = resilience.New("content", resilience.Settings{
			Timeout: cfg.BreakerCooldown,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerThreshold
			},
			IsSuccessful: reachable,
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("Content breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	c.SetRateLimit(cfg.RPS)
	return c, nil
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Resolve turns a locator into an absolute URL against the base
func (c *Client) Resolve(locator string) (string, error) {
	ref, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid locator %q: %w", locator, err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// Get fetches a locator. Non-2xx statuses are errors; 404 wraps ErrNotFound.
func (c *Client) Get(ctx context.Context, locator string) (*Response, error) {
	target, err := c.Resolve(locator)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	if c.breaker == nil {
		return c.fetch(ctx, locator, target)
	}
	var out *Response
	err = c.breaker.Execute(func() error {
		var ferr error
		out, ferr = c.fetch(ctx, locator, target)
		return ferr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, fmt.Errorf("fetch %s: %w", locator, err)
		}
		return nil, err
	}
	return out, nil
}

// BreakerState reports the breaker state, or closed when none is configured
func (c *Client) BreakerState() resilience.State {
	if c.breaker == nil {
		return resilience.StateClosed
	}
	return c.breaker.State()
}

func (c *Client) fetch(ctx context.Context, locator, target string) (*Response, error) {
	start := time.Now()
	resp, err := c.resty.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}

	status := resp.StatusCode()
	c.logger.Debug("Fetched resource",
		zap.String("url", target),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))

	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", locator, ErrNotFound)
	case status >= 500:
		return nil, fmt.Errorf("%s: %w %d: %w", locator, ErrBadStatus, status, ErrServerError)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%s: %w %d", locator, ErrBadStatus, status)
	}

	body := resp.Body()
	return &Response{
		URL:         target,
		Status:      status,
		Body:        body,
		MIME:        mimetype.Detect(body).String(),
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}

// reachable treats answers from the server, including 404, as healthy
func reachable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, ErrServerError):
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBadStatus):
		return true
	}
	return false
}

// IsHTML reports whether the body sniffs as an HTML document
func (r *Response) IsHTML() bool {
	return mimetype.EqualsAny(r.MIME, "text/html")
}
