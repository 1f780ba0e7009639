package executor

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/uibridge/auth"
)

// PoolConfig configures the dispatch pool.
type PoolConfig struct {
	// MaxConcurrent is the maximum number of commands executing at once.
	// Default: 10
	MaxConcurrent int

	// MaxWait is the maximum time to wait for a free slot.
	// Default: 0 (no waiting, fail immediately)
	MaxWait time.Duration

	// Timeout bounds one command execution. The zero value applies the
	// 30 second default; use NoTimeout to run unbounded.
	// Default: 30 seconds
	Timeout time.Duration
}

// NoTimeout disables the per-command timeout when set as PoolConfig.Timeout.
const NoTimeout = time.Duration(-1)

// Pool runs commands through the backend executor with bounded concurrency
// and a per-command timeout.
type Pool struct {
	config PoolConfig
	exec   Executor
	sem    chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
	rejected  int64
}

// NewPool creates a dispatch pool around the given executor.
func NewPool(exec Executor, config PoolConfig) (*Pool, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}

	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Pool{
		config: config,
		exec:   exec,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Execute acquires a slot, runs the command under the configured timeout,
// and releases the slot. Returns ErrPoolFull when no slot frees up within
// MaxWait and ErrTimeout when the command overruns.
func (p *Pool) Execute(ctx context.Context, cmd Command, id *auth.Identity) (*Result, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	if p.config.Timeout <= 0 {
		return p.exec.Execute(ctx, cmd, id)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := p.exec.Execute(ctx, cmd, id)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// acquire takes a slot. Fast path is non-blocking; with MaxWait configured
// it waits up to that long before rejecting.
func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		p.noteAcquired()
		return nil
	default:
	}

	if p.config.MaxWait <= 0 {
		p.noteRejected()
		return ErrPoolFull
	}

	timer := time.NewTimer(p.config.MaxWait)
	defer timer.Stop()

	select {
	case p.sem <- struct{}{}:
		p.noteAcquired()
		return nil
	case <-timer.C:
		p.noteRejected()
		return ErrPoolFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	select {
	case <-p.sem:
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	default:
		// Release without acquire; nothing to do.
	}
}

func (p *Pool) noteAcquired() {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()
}

func (p *Pool) noteRejected() {
	p.mu.Lock()
	p.rejected++
	p.mu.Unlock()
}

// Active reports the number of commands currently executing.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// MaxActive reports the high-water mark of concurrent executions.
func (p *Pool) MaxActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// Rejected reports how many executions were refused at capacity.
func (p *Pool) Rejected() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejected
}

// Config returns the pool configuration.
func (p *Pool) Config() PoolConfig {
	return p.config
}
