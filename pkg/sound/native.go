// ABOUTME: Native sound provider backed by pooled workers and render processes
// ABOUTME: Builds one output device per process on the configured backend
package sound

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/render"
	"github.com/Resonate-Protocol/resonate-sound/pkg/pool"
	"github.com/Resonate-Protocol/resonate-sound/pkg/worker"
)

const (
	// NativeSampleRate is the rate render processes are created at
	NativeSampleRate = 44100

	// NativeChannels is the channel layout of every render process
	NativeChannels = 2
)

// NativeConfig holds native provider configuration
type NativeConfig struct {
	Backend    string // output backend name, see output.New (default: oto)
	SampleRate int    // initial process rate (default: NativeSampleRate)

	// NewOutput overrides Backend when set
	NewOutput func() (output.Output, error)
}

// NewNativeProvider creates a provider whose processes render on pooled
// workers named NativeSoundProvider<N>
func NewNativeProvider(cfg NativeConfig, opts ...Option) (*Provider, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = NativeSampleRate
	}

	newOutput := cfg.NewOutput
	if newOutput == nil {
		// Fail on unknown backends now rather than on the first Start
		if _, err := output.New(cfg.Backend); err != nil {
			return nil, err
		}
		backend := cfg.Backend
		newOutput = func() (output.Output, error) {
			return output.New(backend)
		}
	}

	workers := pool.New(func(index int) (*worker.Worker, error) {
		return worker.Start(fmt.Sprintf("NativeSoundProvider%d", index)), nil
	}, (*worker.Worker).RequestTermination)

	processes := pool.New(func(index int) (Process, error) {
		dev, err := newOutput()
		if err != nil {
			return nil, err
		}

		w, err := workers.Alloc()
		if err != nil {
			return nil, err
		}

		proc, err := render.NewProcess(cfg.SampleRate, NativeChannels, dev).Start(w)
		if err != nil {
			workers.Free(w)
			return nil, err
		}
		return proc, nil
	}, func(proc Process) {
		rp := proc.(*render.Process)
		rp.RequestTermination()
		workers.Free(rp.Worker())
	})

	p := NewProvider(processes, opts...)
	p.workers = workers
	return p, nil
}
