// ABOUTME: Sound provider owning the rendering process pool
// ABOUTME: Creates output sessions, tracks their drain tasks and shuts everything down
package sound

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/pool"
	"github.com/Resonate-Protocol/resonate-sound/pkg/worker"
)

const (
	// DefaultBackpressureDelay is how long Add waits when more than one
	// second of audio is queued
	DefaultBackpressureDelay = 200 * time.Millisecond

	// DefaultPollInterval is how often Wait and drains check the queue
	DefaultPollInterval = 10 * time.Millisecond

	// DefaultFrequency is used by CreateOutput for non-positive frequencies
	DefaultFrequency = 44100
)

// Process is a rendering pipeline a session feeds while it is active.
// Position and Length count frames since the last Reopen.
type Process interface {
	Position() int64
	Length() int64
	Pitch() *audio.Control
	Volume() *audio.Control
	Panning() *audio.Control
	AddData(samples audio.Samples, offset, size, rate int) error
	Reopen(rate int) error
	Err() error
}

// Observer receives session events, e.g. for metrics
type Observer interface {
	OutputStarted(id string, freq int)
	Backpressure(id string, delay time.Duration)
	DrainFinished(id string, err error)
}

// Option configures a Provider
type Option func(*Provider)

// WithErrorHandler sets where drain failures are reported (default: log)
func WithErrorHandler(fn func(error)) Option {
	return func(p *Provider) {
		if fn != nil {
			p.onError = fn
		}
	}
}

// WithObserver registers an observer for session events
func WithObserver(o Observer) Option {
	return func(p *Provider) {
		p.observer = o
	}
}

// WithBackpressureDelay overrides DefaultBackpressureDelay
func WithBackpressureDelay(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.backpressureDelay = d
		}
	}
}

// WithPollInterval overrides DefaultPollInterval
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithOnShutdown registers fn to run at the end of Shutdown
func WithOnShutdown(fn func()) Option {
	return func(p *Provider) {
		if fn != nil {
			p.onShutdown = append(p.onShutdown, fn)
		}
	}
}

// Provider hands out output sessions backed by pooled rendering processes
type Provider struct {
	processes *pool.Pool[Process]
	workers   *pool.Pool[*worker.Worker]

	onError           func(error)
	observer          Observer
	backpressureDelay time.Duration
	pollInterval      time.Duration
	onShutdown        []func()

	// drain tasks run on ctx and are cancelled when Shutdown times out
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	drains       sync.WaitGroup
	draining     int
	shuttingDown bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// Stats is a snapshot of provider state
type Stats struct {
	Processes pool.Stats
	Workers   pool.Stats
	Draining  int
}

// NewProvider creates a provider that allocates processes from the given pool.
// The provider owns the pool from now on and terminates it in Shutdown.
func NewProvider(processes *pool.Pool[Process], opts ...Option) *Provider {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Provider{
		processes:         processes,
		onError:           func(err error) { log.Printf("Audio output error: %v", err) },
		backpressureDelay: DefaultBackpressureDelay,
		pollInterval:      DefaultPollInterval,
		ctx:               ctx,
		cancel:            cancel,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// CreateOutput creates an idle session playing at freq Hz
func (p *Provider) CreateOutput(freq int) *Output {
	if freq <= 0 {
		freq = DefaultFrequency
	}
	return newOutput(p, freq)
}

// Stats returns pool and drain counters
func (p *Provider) Stats() Stats {
	p.mu.Lock()
	draining := p.draining
	p.mu.Unlock()

	s := Stats{
		Processes: p.processes.Stats(),
		Draining:  draining,
	}
	if p.workers != nil {
		s.Workers = p.workers.Stats()
	}
	return s
}

// Shutdown waits for running drains, then terminates idle processes and
// workers. If ctx ends first the drains are cancelled (their processes are
// still released) and ctx.Err() is returned. Later calls return the first result.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shuttingDown = true
		pending := p.draining
		p.mu.Unlock()

		if pending > 0 {
			log.Printf("Waiting for %d audio output(s) to drain", pending)
		}

		done := make(chan struct{})
		go func() {
			p.drains.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			p.shutdownErr = ctx.Err()
			log.Printf("Drain wait interrupted (%v), cancelling remaining drains", ctx.Err())
			p.cancel()
			<-done
		}
		p.cancel()

		p.processes.TerminateAll()
		if p.workers != nil {
			p.workers.TerminateAll()
		}

		for _, fn := range p.onShutdown {
			fn()
		}

		log.Printf("Sound provider shut down")
	})

	return p.shutdownErr
}

// drain plays out what is left in proc and returns it to the pool
func (p *Provider) drain(o *Output, proc Process) {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		// Pool is closing: release right away
		p.processes.Free(proc)
		o.drainFinished()
		return
	}
	p.drains.Add(1)
	p.draining++
	p.mu.Unlock()

	go func() {
		defer p.drains.Done()
		defer func() {
			p.mu.Lock()
			p.draining--
			p.mu.Unlock()
			o.drainFinished()
		}()
		defer p.processes.Free(proc)
		defer func() {
			if r := recover(); r != nil {
				p.onError(fmt.Errorf("drain output %s: panic: %v", o.id, r))
			}
		}()

		err := waitDrained(p.ctx, proc, p.pollInterval)
		if p.observer != nil {
			p.observer.DrainFinished(o.id, err)
		}

		if err != nil && !errors.Is(err, context.Canceled) {
			p.onError(fmt.Errorf("drain output %s: %w", o.id, err))
		}
	}()
}

// waitDrained polls proc until every queued frame has played
func waitDrained(ctx context.Context, proc Process, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for available(proc) > 0 {
		if err := proc.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// available returns queued but unplayed frames
func available(proc Process) int {
	return int(proc.Length() - proc.Position())
}
