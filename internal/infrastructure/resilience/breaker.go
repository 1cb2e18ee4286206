package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State of a breaker
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{"closed", "half-open", "open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings configures a breaker. Zero values take the defaults noted.
type Settings struct {
	// MaxRequests admitted while half-open, and successes needed to close. Default 1.
	MaxRequests uint32
	// Interval after which a closed breaker forgets its counts. Default 60s.
	Interval time.Duration
	// Timeout an open breaker waits before probing. Default 60s.
	Timeout time.Duration
	// ReadyToTrip opens a closed breaker. Default: more than 5 consecutive failures.
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies a result. Errors it accepts still reach the
	// caller but count as successes. Default: err == nil.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to State)
	Clock         clockwork.Clock
}

// Counts are reset on every state change and every closed interval
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker fails calls fast after a run of failures, then lets a few
// trial requests through once Timeout has passed.
type Breaker struct {
	name string
	cfg  Settings

	mu       sync.Mutex
	state    State
	epoch    uint64 // bumped on every reset; results from older epochs are dropped
	counts   Counts
	deadline time.Time
}

// New creates a closed breaker
func New(name string, cfg Settings) *Breaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures > 5 }
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool { return err == nil }
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	b := &Breaker{name: name, cfg: cfg}
	b.reset(cfg.Clock.Now())
	return b
}

func (b *Breaker) Name() string { return b.name }

// State returns the state as of now
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.cfg.Clock.Now())
	return b.state
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs fn unless the breaker rejects it, and records the result.
// A panic in fn counts as a failure and is re-raised.
func (b *Breaker) Execute(fn func() error) error {
	epoch, err := b.allow()
	if err != nil {
		return err
	}

	ok := false
	defer func() {
		if !ok {
			b.record(epoch, false)
		}
	}()
	err = fn()
	ok = true
	b.record(epoch, b.cfg.IsSuccessful(err))
	return err
}

func (b *Breaker) allow() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.cfg.Clock.Now())
	switch {
	case b.state == StateOpen:
		return 0, ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.cfg.MaxRequests:
		return 0, ErrTooManyRequests
	}
	b.counts.Requests++
	return b.epoch, nil
}

func (b *Breaker) record(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Clock.Now()
	b.advance(now)
	if epoch != b.epoch {
		return
	}

	if success {
		b.counts.success()
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.MaxRequests {
			b.moveTo(StateClosed, now)
		}
		return
	}

	switch b.state {
	case StateClosed:
		b.counts.failure()
		if b.cfg.ReadyToTrip(b.counts) {
			b.moveTo(StateOpen, now)
		}
	case StateHalfOpen:
		b.moveTo(StateOpen, now)
	}
}

// advance applies the transitions that only depend on time
func (b *Breaker) advance(now time.Time) {
	if b.deadline.IsZero() || !now.After(b.deadline) {
		return
	}
	switch b.state {
	case StateClosed:
		b.reset(now)
	case StateOpen:
		b.moveTo(StateHalfOpen, now)
	}
}

func (b *Breaker) moveTo(state State, now time.Time) {
	if b.state == state {
		return
	}
	from := b.state
	b.state = state
	b.reset(now)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, state)
	}
}

func (b *Breaker) reset(now time.Time) {
	b.epoch++
	b.counts = Counts{}
	switch b.state {
	case StateClosed:
		b.deadline = now.Add(b.cfg.Interval)
	case StateOpen:
		b.deadline = now.Add(b.cfg.Timeout)
	default:
		b.deadline = time.Time{}
	}
}
