package sandbox

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("sandbox pool is closed")

// Pool keeps a few pre-warmed runtimes so creating a sandbox does not pay
// for VM setup. A runtime handed out is owned by its sandbox and closed with
// it; the pool refills in the background.
type Pool struct {
	config Config
	ready  chan *Runtime
	size   int
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a runtime pool
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 2
	}

	pool := &Pool{
		config: config,
		ready:  make(chan *Runtime, size),
		size:   size,
	}

	for i := 0; i < size; i++ {
		rt, err := New(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.ready <- rt
	}

	return pool, nil
}

// Acquire returns a warm runtime, or builds one when the pool is drained
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt := <-p.ready:
		p.wg.Add(1)
		go p.refill()
		return rt, nil
	default:
		return New(p.config)
	}
}

func (p *Pool) refill() {
	defer p.wg.Done()

	rt, err := New(p.config)
	if err != nil {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		rt.Close()
		return
	}
	select {
	case p.ready <- rt:
	default:
		rt.Close()
	}
}

// Available returns the number of warm runtimes
func (p *Pool) Available() int {
	return len(p.ready)
}

// Size returns the target pool size
func (p *Pool) Size() int {
	return p.size
}

// Close releases all warm runtimes
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ready)
	p.mu.Unlock()

	p.wg.Wait()
	for rt := range p.ready {
		rt.Close()
	}
	return nil
}

// Fresh is a RuntimeSource that builds a new runtime per call
type Fresh Config

// Acquire implements RuntimeSource
func (f Fresh) Acquire(ctx context.Context) (*Runtime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return New(Config(f))
}
