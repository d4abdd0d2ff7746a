// ABOUTME: Tests for pooled output sessions
// ABOUTME: Covers backpressure, waiting, draining and provider shutdown
package sound

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type addCall struct {
	offset, size, rate int
}

// fakeProcess queues nothing; tests move the position by hand
type fakeProcess struct {
	position atomic.Int64
	length   atomic.Int64
	pitch    *audio.Control
	volume   *audio.Control
	panning  *audio.Control
	explode  atomic.Bool

	mu         sync.Mutex
	reopens    []int
	adds       []addCall
	err        error
	terminated bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		pitch:   audio.NewControl(1),
		volume:  audio.NewControl(1),
		panning: audio.NewControl(0),
	}
}

func (f *fakeProcess) Position() int64 {
	if f.explode.Load() {
		panic("position unavailable")
	}
	return f.position.Load()
}

func (f *fakeProcess) Length() int64           { return f.length.Load() }
func (f *fakeProcess) Pitch() *audio.Control   { return f.pitch }
func (f *fakeProcess) Volume() *audio.Control  { return f.volume }
func (f *fakeProcess) Panning() *audio.Control { return f.panning }

func (f *fakeProcess) AddData(samples audio.Samples, offset, size, rate int) error {
	f.mu.Lock()
	f.adds = append(f.adds, addCall{offset, size, rate})
	f.mu.Unlock()
	f.length.Add(int64(size))
	return nil
}

func (f *fakeProcess) Reopen(rate int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopens = append(f.reopens, rate)
	f.err = nil
	f.position.Store(0)
	f.length.Store(0)
	return nil
}

func (f *fakeProcess) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// playAll marks everything queued as played
func (f *fakeProcess) playAll() {
	f.position.Store(f.length.Load())
}

func (f *fakeProcess) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProcess) isTerminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// testRig bundles a provider over a pool of fake processes
type testRig struct {
	provider *Provider
	pool     *pool.Pool[Process]
	procs    []*fakeProcess

	mu     sync.Mutex
	errors []error
}

func newRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	rig := &testRig{}

	var procsMu sync.Mutex
	rig.pool = pool.New(func(index int) (Process, error) {
		f := newFakeProcess()
		procsMu.Lock()
		rig.procs = append(rig.procs, f)
		procsMu.Unlock()
		return f, nil
	}, func(p Process) {
		f := p.(*fakeProcess)
		f.mu.Lock()
		f.terminated = true
		f.mu.Unlock()
	})

	opts = append([]Option{
		WithErrorHandler(func(err error) {
			rig.mu.Lock()
			rig.errors = append(rig.errors, err)
			rig.mu.Unlock()
		}),
		WithPollInterval(time.Millisecond),
		WithBackpressureDelay(20 * time.Millisecond),
	}, opts...)
	rig.provider = NewProvider(rig.pool, opts...)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rig.provider.Shutdown(ctx)
	})
	return rig
}

func (r *testRig) reported() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// bound returns the fake process behind an active output
func bound(t *testing.T, o *Output) *fakeProcess {
	t.Helper()
	p := o.bound()
	require.NotNil(t, p)
	return p.(*fakeProcess)
}

func stereo(frames int) audio.Samples {
	return audio.NewSamples(2, frames)
}

func TestAddWithoutStart(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)

	err := out.Add(context.Background(), stereo(10), 0, 10)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, 0, out.AvailableSamples())
	assert.Equal(t, StateIdle, out.State())
}

func TestCreateOutputDefaults(t *testing.T) {
	rig := newRig(t)

	out := rig.provider.CreateOutput(0)
	assert.Equal(t, DefaultFrequency, out.Frequency())
	assert.Equal(t, 1.0, out.Pitch())
	assert.Equal(t, 1.0, out.Volume())
	assert.Equal(t, 0.0, out.Panning())
	assert.NotEmpty(t, out.ID())
	assert.NotEqual(t, out.ID(), rig.provider.CreateOutput(0).ID())
}

func TestStartBindsAndResetsProcess(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(22050)
	out.SetVolume(0.25)
	out.SetPitch(1.5)
	out.SetPanning(-0.5)

	require.NoError(t, out.Start())
	assert.Equal(t, StateActive, out.State())

	proc := bound(t, out)
	assert.Equal(t, []int{22050}, proc.reopens)
	assert.Equal(t, 0.25, proc.Volume().Load())
	assert.Equal(t, 1.5, proc.Pitch().Load())
	assert.Equal(t, -0.5, proc.Panning().Load())

	assert.ErrorIs(t, out.Start(), ErrAlreadyStarted)
	assert.Equal(t, 1, rig.pool.Stats().Created)
}

func TestStartFactoryFailure(t *testing.T) {
	boom := errors.New("no device")
	processes := pool.New(func(int) (Process, error) {
		return nil, boom
	}, nil)
	provider := NewProvider(processes)
	defer provider.Shutdown(context.Background())

	out := provider.CreateOutput(44100)
	err := out.Start()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, out.State())
}

func TestAddForwardsRange(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(48000)
	require.NoError(t, out.Start())

	require.NoError(t, out.Add(context.Background(), stereo(200), 10, 100))
	assert.Equal(t, 100, out.AvailableSamples())

	proc := bound(t, out)
	proc.mu.Lock()
	assert.Equal(t, []addCall{{offset: 10, size: 100, rate: 48000}}, proc.adds)
	proc.mu.Unlock()

	proc.position.Store(40)
	assert.Equal(t, 60, out.AvailableSamples())
}

func TestAddInvalidRange(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())

	tests := []struct {
		name         string
		offset, size int
	}{
		{"negative offset", -1, 5},
		{"negative size", 0, -1},
		{"past end", 5, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := out.Add(context.Background(), stereo(10), tt.offset, tt.size)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
	assert.Equal(t, 0, out.AvailableSamples())
}

type recordingObserver struct {
	mu           sync.Mutex
	started      []string
	backpressure int
	drained      []error
}

func (r *recordingObserver) OutputStarted(id string, freq int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
}

func (r *recordingObserver) Backpressure(id string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backpressure++
}

func (r *recordingObserver) DrainFinished(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drained = append(r.drained, err)
}

func TestBackpressureDelaysAdd(t *testing.T) {
	obs := &recordingObserver{}
	rig := newRig(t, WithObserver(obs), WithBackpressureDelay(50*time.Millisecond))
	out := rig.provider.CreateOutput(1000)
	require.NoError(t, out.Start())

	// Exactly one second queued does not trigger backpressure
	require.NoError(t, out.Add(context.Background(), stereo(1000), 0, 1000))
	obs.mu.Lock()
	assert.Equal(t, 0, obs.backpressure)
	obs.mu.Unlock()

	// More than one second does
	require.NoError(t, out.Add(context.Background(), stereo(1), 0, 1))
	start := time.Now()
	require.NoError(t, out.Add(context.Background(), stereo(10), 0, 10))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1011, out.AvailableSamples())

	obs.mu.Lock()
	assert.Equal(t, 1, obs.backpressure)
	assert.Equal(t, []string{out.ID()}, obs.started)
	obs.mu.Unlock()
}

func TestBackpressureHonoursContext(t *testing.T) {
	rig := newRig(t, WithBackpressureDelay(10*time.Second))
	out := rig.provider.CreateOutput(100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(200), 0, 200))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := out.Add(ctx, stereo(10), 0, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 200, out.AvailableSamples())

	bound(t, out).playAll()
}

func TestAddFailsWhenStoppedDuringBackpressure(t *testing.T) {
	rig := newRig(t, WithBackpressureDelay(100*time.Millisecond))
	out := rig.provider.CreateOutput(100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(200), 0, 200))
	proc := bound(t, out)

	errCh := make(chan error, 1)
	go func() {
		errCh <- out.Add(context.Background(), stereo(10), 0, 10)
	}()

	time.Sleep(10 * time.Millisecond)
	out.Stop()

	assert.ErrorIs(t, <-errCh, ErrNotStarted)
	assert.Equal(t, int64(200), proc.Length())
	proc.playAll()
}

func TestWait(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)

	// Nothing bound, nothing to wait for
	require.NoError(t, out.Wait(context.Background()))

	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))
	proc := bound(t, out)

	go func() {
		time.Sleep(20 * time.Millisecond)
		proc.playAll()
	}()

	require.NoError(t, out.Wait(context.Background()))
	assert.Equal(t, 0, out.AvailableSamples())
}

func TestWaitCancelled(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, out.Wait(ctx), context.DeadlineExceeded)

	bound(t, out).playAll()
}

func TestWaitReturnsPlaybackError(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))

	boom := errors.New("device lost")
	proc := bound(t, out)
	proc.setErr(boom)

	assert.ErrorIs(t, out.Wait(context.Background()), boom)
	proc.setErr(nil)
	proc.playAll()
}

func TestStopDrainsAndRecyclesProcess(t *testing.T) {
	obs := &recordingObserver{}
	rig := newRig(t, WithObserver(obs))
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))
	proc := bound(t, out)

	out.Stop()
	assert.Equal(t, StateDraining, out.State())
	assert.Equal(t, 0, out.AvailableSamples())
	assert.ErrorIs(t, out.Add(context.Background(), stereo(10), 0, 10), ErrNotStarted)

	// Still playing, so not back in the pool yet
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, rig.pool.ItemsInPool())
	assert.Equal(t, 1, rig.provider.Stats().Draining)

	proc.playAll()
	require.Eventually(t, func() bool {
		return out.State() == StateIdle
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, rig.pool.ItemsInPool())
	assert.Equal(t, 0, rig.provider.Stats().Draining)

	obs.mu.Lock()
	assert.Equal(t, []error{nil}, obs.drained)
	obs.mu.Unlock()

	// Restart reuses the drained process from a clean state
	require.NoError(t, out.Start())
	assert.Same(t, proc, bound(t, out))
	assert.Equal(t, 0, out.AvailableSamples())
	assert.Equal(t, int64(1), rig.pool.Stats().Reuses)
	assert.Empty(t, rig.reported())
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)

	out.Stop()
	out.Stop()
	assert.Equal(t, StateIdle, out.State())
	assert.Equal(t, 0, rig.pool.Stats().Created)
}

func TestControlsPersistAcrossSessions(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	proc := bound(t, out)

	out.SetVolume(0.5)
	out.SetPanning(1)
	out.SetPitch(0.75)
	assert.Equal(t, 0.5, proc.Volume().Load())
	assert.Equal(t, 1.0, proc.Panning().Load())
	assert.Equal(t, 0.75, proc.Pitch().Load())

	out.Stop()
	require.Eventually(t, func() bool {
		return out.State() == StateIdle
	}, time.Second, time.Millisecond)

	// Changes while idle only touch the session
	out.SetVolume(0.1)
	assert.Equal(t, 0.5, proc.Volume().Load())

	require.NoError(t, out.Start())
	assert.Equal(t, 0.1, bound(t, out).Volume().Load())
	assert.Equal(t, 0.75, bound(t, out).Pitch().Load())
}

func TestDrainErrorIsReported(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))

	boom := errors.New("device lost")
	bound(t, out).setErr(boom)
	out.Stop()

	require.Eventually(t, func() bool {
		return out.State() == StateIdle
	}, time.Second, time.Millisecond)

	errs := rig.reported()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, errs[0].Error(), out.ID())
	assert.Equal(t, 1, rig.pool.ItemsInPool())
}

func TestDrainPanicIsRecovered(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))

	proc := bound(t, out)
	proc.explode.Store(true)
	out.Stop()

	require.Eventually(t, func() bool {
		return out.State() == StateIdle
	}, time.Second, time.Millisecond)

	errs := rig.reported()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "panic")
	assert.Equal(t, 1, rig.pool.ItemsInPool())
	proc.explode.Store(false)
}

func TestShutdownWaitsForDrains(t *testing.T) {
	rig := newRig(t)
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))
	proc := bound(t, out)
	out.Stop()

	go func() {
		time.Sleep(20 * time.Millisecond)
		proc.playAll()
	}()

	require.NoError(t, rig.provider.Shutdown(context.Background()))
	assert.True(t, proc.isTerminated())
	assert.True(t, rig.pool.Closed())
	assert.Empty(t, rig.reported())
}

func TestShutdownTimeoutCancelsDrains(t *testing.T) {
	var hooks atomic.Int32
	rig := newRig(t, WithOnShutdown(func() { hooks.Add(1) }))
	out := rig.provider.CreateOutput(44100)
	require.NoError(t, out.Start())
	require.NoError(t, out.Add(context.Background(), stereo(100), 0, 100))
	proc := bound(t, out)
	out.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rig.provider.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, proc.isTerminated())
	assert.Equal(t, StateIdle, out.State())

	// Cancellation is not an error worth reporting
	assert.Empty(t, rig.reported())

	// Idempotent
	assert.ErrorIs(t, rig.provider.Shutdown(context.Background()), context.DeadlineExceeded)
	assert.Equal(t, int32(1), hooks.Load())
}

func TestAfterShutdown(t *testing.T) {
	rig := newRig(t)
	active := rig.provider.CreateOutput(44100)
	require.NoError(t, active.Start())
	proc := bound(t, active)

	require.NoError(t, rig.provider.Shutdown(context.Background()))

	// New sessions cannot start
	err := rig.provider.CreateOutput(44100).Start()
	assert.ErrorIs(t, err, pool.ErrClosed)

	// A session still holding a process releases it straight away
	active.Stop()
	assert.True(t, proc.isTerminated())
	assert.Equal(t, StateIdle, active.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "State(7)", State(7).String())
}
