// ABOUTME: Entry point for the Resonate sound player
// ABOUTME: Plays a file or test tone through a pooled native output session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/internal/metrics"
	"github.com/Resonate-Protocol/resonate-sound/internal/ui"
	"github.com/Resonate-Protocol/resonate-sound/internal/version"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/source"
	"github.com/Resonate-Protocol/resonate-sound/pkg/sound"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	file        = flag.String("file", "", "Audio file to play (.mp3, .flac, .wav, .pcm, .raw); empty plays a 440Hz tone")
	backend     = flag.String("backend", "oto", "Audio backend: oto, malgo or null")
	freq        = flag.Int("freq", 0, "Output frequency in Hz (default: source sample rate)")
	volume      = flag.Int("volume", 100, "Initial volume in percent")
	pitch       = flag.Float64("pitch", 1.0, "Initial playback speed multiplier")
	pan         = flag.Float64("pan", 0, "Initial panning (-1 left, 1 right)")
	logFile     = flag.String("log-file", "resonate-sound.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
)

// chunkDuration is how much audio the feeder reads per Add
const chunkDuration = 100 * time.Millisecond

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	if err := run(useTUI); err != nil {
		log.Fatalf("Playback failed: %v", err)
	}

	log.Printf("Player stopped")
}

func run(useTUI bool) error {
	src, err := source.Open(*file)
	if err != nil {
		return err
	}
	defer src.Close()

	title, artist, album := src.Metadata()
	log.Printf("Source: %s (%d Hz, %d channels)", title, src.SampleRate(), src.Channels())

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	soundMetrics, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var metricsServer *http.Server
	if *metricsAddr != "" {
		metricsServer = serveMetrics(*metricsAddr, registry)
	}

	provider, err := sound.NewNativeProvider(
		sound.NativeConfig{Backend: *backend},
		sound.WithObserver(soundMetrics),
		sound.WithErrorHandler(func(err error) {
			log.Printf("Audio output error: %v", err)
		}),
		sound.WithOnShutdown(func() {
			if metricsServer != nil {
				_ = metricsServer.Close()
			}
		}),
	)
	if err != nil {
		return err
	}
	soundMetrics.WatchProvider(provider)

	outputFreq := *freq
	if outputFreq <= 0 {
		outputFreq = src.SampleRate()
	}

	out := provider.CreateOutput(outputFreq)
	out.SetVolume(float64(*volume) / 100)
	out.SetPitch(*pitch)
	out.SetPanning(*pan)

	if err := out.Start(); err != nil {
		_ = provider.Shutdown(context.Background())
		return err
	}
	log.Printf("Output %s started on %s at %d Hz", out.ID(), *backend, outputFreq)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// TUI setup
	var tuiProg *tea.Program
	if useTUI {
		controls := ui.NewControls()
		tuiProg, err = ui.Run(controls, ui.Settings{
			Backend:   *backend,
			Frequency: outputFreq,
			Volume:    *volume,
			Pitch:     *pitch,
			Panning:   *pan,
		})
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		go tuiProg.Run()
		go handleControls(ctx, stop, out, controls)

		tuiProg.Send(ui.StatusMsg{
			Title:      title,
			Artist:     artist,
			Album:      album,
			SampleRate: src.SampleRate(),
			Channels:   src.Channels(),
		})
		go statsUpdateLoop(ctx, provider, out, tuiProg.Send)
	}

	playErr := play(ctx, src, out)
	switch {
	case playErr == nil:
		log.Printf("Playback finished")
	case errors.Is(playErr, context.Canceled):
		log.Printf("Shutdown requested")
		playErr = nil
	}

	out.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Printf("Drain interrupted: %v", err)
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}

	return playErr
}

// play feeds src into out until the source ends, then waits for the queue
// to play out
func play(ctx context.Context, src source.Source, out *sound.Output) error {
	channels := src.Channels()
	frames := int(int64(src.SampleRate()) * int64(chunkDuration) / int64(time.Second))
	buf := make([]int32, frames*channels)

	var r *resample.Resampler
	var converted []int32
	if src.SampleRate() != out.Frequency() {
		log.Printf("Resampling %d Hz -> %d Hz", src.SampleRate(), out.Frequency())
		r = resample.New(src.SampleRate(), out.Frequency(), channels)
		converted = make([]int32, r.OutputSamplesNeeded(len(buf)))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := src.Read(buf)
		if errors.Is(err, io.EOF) {
			return out.Wait(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}

		data := buf[:n]
		if r != nil {
			data = converted[:r.Resample(data, converted)]
		}

		samples := audio.Samples{Channels: channels, Data: data}
		if err := out.Add(ctx, samples, 0, samples.Frames()); err != nil {
			return err
		}
	}
}

// handleControls applies control changes from the TUI to the output
func handleControls(ctx context.Context, quit context.CancelFunc, out *sound.Output, controls *ui.Controls) {
	for {
		select {
		case change := <-controls.Changes:
			vol := float64(change.Volume) / 100
			if change.Muted {
				vol = 0
			}
			log.Printf("Controls: volume %d%% (muted=%v), pitch %.2f, pan %.1f",
				change.Volume, change.Muted, change.Pitch, change.Panning)
			out.SetVolume(vol)
			out.SetPitch(change.Pitch)
			out.SetPanning(change.Panning)
		case <-controls.Quit:
			log.Printf("Received quit signal from TUI")
			quit()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates the TUI with output and pool state
func statsUpdateLoop(ctx context.Context, provider *sound.Provider, out *sound.Output, send func(tea.Msg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc uint64

	for {
		select {
		case <-ctx.Done():
			return

		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc

		case <-ticker.C:
			stats := provider.Stats()
			buffered := time.Duration(out.AvailableSamples()) * time.Second / time.Duration(out.Frequency())

			send(ui.StatusMsg{
				State:    out.State().String(),
				OutputID: out.ID(),
				Buffered: &buffered,
				Stats: &ui.PoolStats{
					ProcessesCreated: stats.Processes.Created,
					ProcessesIdle:    stats.Processes.Idle,
					WorkersCreated:   stats.Workers.Created,
					Draining:         stats.Draining,
				},
				Goroutines: lastGoroutines,
				MemAlloc:   lastMemAlloc,
			})
		}
	}
}

// serveMetrics exposes the registry over HTTP in the background
func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	return srv
}
