// ABOUTME: Audio output session bound to one pooled rendering process
// ABOUTME: Applies time-based backpressure and live pitch/volume/panning
package sound

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/google/uuid"
)

var (
	// ErrNotStarted is returned by Add when no process is bound
	ErrNotStarted = errors.New("audio output not started")

	// ErrAlreadyStarted is returned by Start on an active output
	ErrAlreadyStarted = errors.New("audio output already started")

	// ErrInvalidRange is returned by Add for an offset/size outside the buffer
	ErrInvalidRange = errors.New("invalid sample range")
)

// State of an output session
type State int

const (
	StateIdle State = iota
	StateActive
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Output is one logical audio stream.
//
// Start binds a process from the provider pool, Add feeds it and Stop hands
// it to a background drain that returns it to the pool. Pitch, volume and
// panning survive across Start/Stop cycles. An Output is not reentrant:
// do not run Add, Stop and Start concurrently on the same value.
type Output struct {
	provider *Provider
	freq     int
	id       string

	mu       sync.Mutex
	process  Process
	draining int
	pitch    float64
	volume   float64
	panning  float64
}

func newOutput(p *Provider, freq int) *Output {
	return &Output{
		provider: p,
		freq:     freq,
		id:       uuid.New().String(),
		pitch:    1.0,
		volume:   1.0,
		panning:  0.0,
	}
}

// ID returns a unique identifier used in logs and metrics
func (o *Output) ID() string {
	return o.id
}

// Frequency returns the session sample rate
func (o *Output) Frequency() int {
	return o.freq
}

// State returns the current session state
func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.process != nil:
		return StateActive
	case o.draining > 0:
		return StateDraining
	default:
		return StateIdle
	}
}

// Start binds a process from the pool, resets it to the session frequency
// and applies the current pitch, volume and panning
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.process != nil {
		return ErrAlreadyStarted
	}

	proc, err := o.provider.processes.Alloc()
	if err != nil {
		return fmt.Errorf("start output %s: %w", o.id, err)
	}

	if err := proc.Reopen(o.freq); err != nil {
		o.provider.processes.Free(proc)
		return fmt.Errorf("start output %s: %w", o.id, err)
	}

	proc.Volume().Store(o.volume)
	proc.Pitch().Store(o.pitch)
	proc.Panning().Store(o.panning)
	o.process = proc

	if o.provider.observer != nil {
		o.provider.observer.OutputStarted(o.id, o.freq)
	}

	return nil
}

// Add queues size frames of samples starting at frame offset.
//
// When more than one second of audio is already queued, Add first waits the
// provider's backpressure delay. The wait ends early with ctx.Err() when ctx
// is done, and Add fails with ErrNotStarted if the output was stopped meanwhile.
func (o *Output) Add(ctx context.Context, samples audio.Samples, offset, size int) error {
	proc := o.bound()
	if proc == nil {
		return ErrNotStarted
	}

	if offset < 0 || size < 0 || offset+size > samples.Frames() {
		return fmt.Errorf("%w: offset %d size %d (frames: %d)", ErrInvalidRange, offset, size, samples.Frames())
	}

	// More than 1 second queued, let's wait a bit
	if available(proc) > o.freq {
		delay := o.provider.backpressureDelay
		if o.provider.observer != nil {
			o.provider.observer.Backpressure(o.id, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.process != proc {
		return ErrNotStarted
	}

	return proc.AddData(samples, offset, size, o.freq)
}

// Wait blocks until every queued frame has played. It returns the process
// error if playback failed, or ctx.Err() when ctx is done first.
func (o *Output) Wait(ctx context.Context) error {
	ticker := time.NewTicker(o.provider.pollInterval)
	defer ticker.Stop()

	for o.AvailableSamples() > 0 {
		if proc := o.bound(); proc != nil {
			if err := proc.Err(); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// Stop detaches the process and drains it in the background. The process
// goes back to the pool once drained, cancelled or failed. Stop on an
// output that is not active does nothing.
func (o *Output) Stop() {
	o.mu.Lock()
	proc := o.process
	o.process = nil
	if proc != nil {
		o.draining++
	}
	o.mu.Unlock()

	if proc == nil {
		return
	}

	o.provider.drain(o, proc)
}

// drainFinished is called once the background drain released the process
func (o *Output) drainFinished() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.draining--
}

// AvailableSamples returns queued frames that have not played yet, or 0
// when no process is bound
func (o *Output) AvailableSamples() int {
	proc := o.bound()
	if proc == nil {
		return 0
	}
	return available(proc)
}

// Pitch returns the playback speed multiplier
func (o *Output) Pitch() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pitch
}

// SetPitch sets the playback speed multiplier, live if the output is active
func (o *Output) SetPitch(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pitch = v
	if o.process != nil {
		o.process.Pitch().Store(v)
	}
}

// Volume returns the gain
func (o *Output) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// SetVolume sets the gain, live if the output is active
func (o *Output) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
	if o.process != nil {
		o.process.Volume().Store(v)
	}
}

// Panning returns the stereo balance
func (o *Output) Panning() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.panning
}

// SetPanning sets the stereo balance in [-1, 1], live if the output is active
func (o *Output) SetPanning(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.panning = v
	if o.process != nil {
		o.process.Panning().Store(v)
	}
}

// bound returns the current process or nil
func (o *Output) bound() Process {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.process
}
