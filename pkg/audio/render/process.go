// ABOUTME: Rendering process that plays queued PCM on a worker
// ABOUTME: Tracks play position and buffered length, applies live pitch/volume/panning
package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-sound/pkg/worker"
	"github.com/eapache/queue"
)

// BlockDuration is how much audio the render loop hands to the device at once
const BlockDuration = 10 * time.Millisecond

// ErrTerminated is returned when feeding a terminated process
var ErrTerminated = errors.New("render process terminated")

// Process renders queued sample buffers to an output device.
//
// Length counts every frame queued since the last Reopen and Position the
// frames already handed to the device, so Length-Position is what is still
// waiting to be played. Both count frames at the process rate even when the
// device runs at another rate. Pitch, volume and panning are read by the
// render loop on every block.
type Process struct {
	channels int
	device   output.Output

	pitch   *audio.Control
	volume  *audio.Control
	panning *audio.Control

	position atomic.Int64
	length   atomic.Int64

	mu          sync.Mutex
	rate        int
	pending     *queue.Queue // of audio.Samples in process format
	head        int          // frames already consumed from the front chunk
	generation  uint64       // bumped by Reopen, stale blocks are not counted
	resetPitch  bool
	err         error
	worker      *worker.Worker
	terminated  bool
	loopRunning bool

	// deviceMu serializes device writes with device reopen
	deviceMu sync.Mutex

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	// render loop state, guarded by deviceMu
	deviceRate int
	resampler  *resample.Resampler
	resampling bool
	block      []int32
	pitched    []int32
}

// NewProcess creates a process for the given format writing to device
func NewProcess(rate, channels int, device output.Output) *Process {
	return &Process{
		channels:  channels,
		device:    device,
		rate:      rate,
		pitch:     audio.NewControl(1.0),
		volume:    audio.NewControl(1.0),
		panning:   audio.NewControl(0.0),
		pending:   queue.New(),
		signal:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		resampler: resample.New(rate, rate, channels),
	}
}

// Start opens the device and runs the render loop on w
func (p *Process) Start(w *worker.Worker) (*Process, error) {
	p.mu.Lock()
	rate := p.rate
	p.mu.Unlock()

	if err := p.device.Open(rate, p.channels); err != nil {
		return nil, fmt.Errorf("failed to open output device: %w", err)
	}
	p.syncDeviceRate(rate)

	p.mu.Lock()
	p.worker = w
	p.loopRunning = true
	p.mu.Unlock()

	if err := w.Execute(p.run); err != nil {
		p.mu.Lock()
		p.loopRunning = false
		p.mu.Unlock()
		_ = p.device.Close()
		return nil, fmt.Errorf("failed to start render loop on %s: %w", w.Name(), err)
	}

	return p, nil
}

// Reopen discards queued audio, resets position and length to zero and
// switches the process to rate
func (p *Process) Reopen(rate int) error {
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()

	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return ErrTerminated
	}
	for p.pending.Length() > 0 {
		p.pending.Remove()
	}
	p.head = 0
	p.generation++
	p.resetPitch = true
	p.position.Store(0)
	p.length.Store(0)
	rateChanged := rate != p.rate
	p.rate = rate
	p.mu.Unlock()

	if rateChanged || p.Err() != nil {
		if err := p.device.Open(rate, p.channels); err != nil {
			p.fail(err)
			return fmt.Errorf("failed to reopen output device at %dHz: %w", rate, err)
		}
		p.syncDeviceRate(rate)
	}

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()

	return nil
}

// syncDeviceRate records the rate the device actually plays at. Backends
// that cannot switch rate keep their old one and each block is converted.
// Called with deviceMu held or before the render loop starts.
func (p *Process) syncDeviceRate(rate int) {
	deviceRate := p.device.Rate()
	if deviceRate <= 0 {
		deviceRate = rate
	}
	if deviceRate != rate {
		log.Printf("Render process at %dHz: device plays at %dHz, converting", rate, deviceRate)
	}
	p.deviceRate = deviceRate
}

// DeviceRate returns the rate the device plays at
func (p *Process) DeviceRate() int {
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()
	return p.deviceRate
}

// AddData queues size frames of samples starting at frame offset. The frames
// are converted to the process channel layout and, when rate differs, to
// the process sample rate.
func (p *Process) AddData(samples audio.Samples, offset, size, rate int) error {
	sub, err := samples.Slice(offset, size)
	if err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	var chunk audio.Samples
	if sub.Channels == p.channels {
		chunk = audio.Samples{Channels: p.channels, Data: append([]int32(nil), sub.Data...)}
	} else {
		chunk = sub.Remix(p.channels)
	}

	p.mu.Lock()
	targetRate := p.rate
	p.mu.Unlock()

	if rate > 0 && rate != targetRate {
		r := resample.New(rate, targetRate, p.channels)
		converted := make([]int32, r.OutputSamplesNeeded(len(chunk.Data)))
		n := r.Resample(chunk.Data, converted)
		chunk = audio.Samples{Channels: p.channels, Data: converted[:n]}
	}

	frames := chunk.Frames()
	if frames == 0 {
		return nil
	}

	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return ErrTerminated
	}
	p.pending.Add(chunk)
	p.length.Add(int64(frames))
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}

	return nil
}

// Position returns the number of frames played since the last Reopen
func (p *Process) Position() int64 {
	return p.position.Load()
}

// Length returns the number of frames queued since the last Reopen
func (p *Process) Length() int64 {
	return p.length.Load()
}

// Pitch is the live playback speed multiplier (1.0 = normal)
func (p *Process) Pitch() *audio.Control { return p.pitch }

// Volume is the live gain (1.0 = unity)
func (p *Process) Volume() *audio.Control { return p.volume }

// Panning is the live stereo balance in [-1, 1]
func (p *Process) Panning() *audio.Control { return p.panning }

// Rate returns the current sample rate
func (p *Process) Rate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Channels returns the channel count
func (p *Process) Channels() int {
	return p.channels
}

// Worker returns the worker the render loop runs on
func (p *Process) Worker() *worker.Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.worker
}

// Err returns the device error that interrupted playback, if any
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// RequestTermination stops the render loop, drops queued audio and closes
// the device. The worker is left running so it can be reused.
func (p *Process) RequestTermination() {
	p.once.Do(func() {
		p.mu.Lock()
		p.terminated = true
		running := p.loopRunning
		p.mu.Unlock()

		close(p.stop)
		if running {
			<-p.done
		}

		if err := p.device.Close(); err != nil {
			log.Printf("Warning: output close error: %v", err)
		}
	})
}

// fail records the first device error
func (p *Process) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
		log.Printf("Render process at %dHz: playback failed: %v", p.rate, err)
	}
}

// run is the render loop, executed as a worker job
func (p *Process) run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		frames, gen, ok := p.nextBlock()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-p.signal:
			}
			continue
		}

		p.deviceMu.Lock()
		p.mu.Lock()
		stale := gen != p.generation
		failed := p.err != nil
		p.mu.Unlock()

		if !stale && !failed {
			if err := p.device.Write(p.renderBlock(frames)); err != nil {
				p.fail(err)
			}
		}
		p.deviceMu.Unlock()

		p.advance(gen, frames)
	}
}

// nextBlock moves up to one block of queued frames into p.block
func (p *Process) nextBlock() (frames int, gen uint64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending.Length() == 0 {
		return 0, 0, false
	}

	if p.resetPitch {
		p.resampler.Reset()
		p.resetPitch = false
	}

	blockFrames := int(int64(p.rate) * int64(BlockDuration) / int64(time.Second))
	if blockFrames < 1 {
		blockFrames = 1
	}
	if cap(p.block) < blockFrames*p.channels {
		p.block = make([]int32, blockFrames*p.channels)
	}
	p.block = p.block[:0]

	for frames < blockFrames && p.pending.Length() > 0 {
		chunk := p.pending.Peek().(audio.Samples)
		available := chunk.Frames() - p.head
		take := min(blockFrames-frames, available)

		start := p.head * p.channels
		p.block = append(p.block, chunk.Data[start:start+take*p.channels]...)

		frames += take
		p.head += take
		if p.head == chunk.Frames() {
			p.pending.Remove()
			p.head = 0
		}
	}

	return frames, p.generation, true
}

// renderBlock applies pitch, device rate conversion, volume and panning to
// the current block. Must hold deviceMu.
func (p *Process) renderBlock(frames int) []int32 {
	out := p.block[:frames*p.channels]

	ratio := float64(p.Rate()) / float64(p.deviceRate)
	if pitch := p.pitch.Load(); pitch > 0 {
		ratio *= pitch
	}

	if ratio == 1 {
		p.resampling = false
	} else {
		// The carried frame is stale after unresampled blocks
		if !p.resampling {
			p.resampler.Reset()
			p.resampling = true
		}
		p.resampler.SetRatio(ratio)
		needed := p.resampler.OutputSamplesNeeded(len(out))
		if cap(p.pitched) < needed {
			p.pitched = make([]int32, needed)
		}
		n := p.resampler.Resample(out, p.pitched[:needed])
		out = p.pitched[:n]
	}

	applyGain(out, p.channels, p.volume.Load(), p.panning.Load())
	return out
}

// advance moves the play position unless the block predates a Reopen
func (p *Process) advance(gen uint64, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.generation {
		p.position.Add(int64(frames))
	}
}
