package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int

	// Idle clients are forgotten after this long. Zero means 5 minutes.
	IdleTTL time.Duration

	// Requests whose path starts with one of these prefixes are never
	// limited. Static sketch assets and the viewer stream go here.
	SkipPrefixes []string
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		IdleTTL:           5 * time.Minute,
		SkipPrefixes:      []string{"/js/", "/projects/", "/gui/p5-sketches/", "/stream", "/metrics"},
	}
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return newLimiterSet(cfg, time.Now).handle
}

// GlobalRateLimit creates a global rate limiting middleware.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if skipped(cfg.SkipPrefixes, c.Request.URL.Path) {
			c.Next()
			return
		}
		if !limiter.Allow() {
			reject(c)
			return
		}
		c.Next()
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	cfg     RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*client
	swept   time.Time
}

func newLimiterSet(cfg RateLimitConfig, now func() time.Time) *limiterSet {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	return &limiterSet{
		cfg:     cfg,
		now:     now,
		clients: make(map[string]*client),
		swept:   now(),
	}
}

func (s *limiterSet) handle(c *gin.Context) {
	if skipped(s.cfg.SkipPrefixes, c.Request.URL.Path) {
		c.Next()
		return
	}

	if !s.limiter(c.ClientIP()).Allow() {
		reject(c)
		return
	}
	c.Next()
}

// limiter returns the limiter for ip, sweeping idle entries at most once
// per TTL.
func (s *limiterSet) limiter(ip string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.swept) >= s.cfg.IdleTTL {
		for key, cl := range s.clients {
			if now.Sub(cl.lastSeen) >= s.cfg.IdleTTL {
				delete(s.clients, key)
			}
		}
		s.swept = now
	}

	cl, ok := s.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func skipped(prefixes []string, path string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func reject(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": "rate limit exceeded",
	})
}
