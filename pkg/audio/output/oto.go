// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM through a persistent oto player on a process-wide context
package output

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/encode"
	"github.com/ebitengine/oto/v3"
)

// oto only allows one context per process. Every Oto output plays through
// its own player on this shared context and oto mixes the players.
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
)

// sharedOtoContext returns the process-wide oto context, creating it with the
// first requested format
func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoSampleRate != sampleRate || otoChannels != channels {
			log.Printf("Oto context stays at %dHz %dch (requested %dHz %dch), audio is resampled to the context rate",
				otoSampleRate, otoChannels, sampleRate, channels)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	otoCtx = ctx
	otoSampleRate = sampleRate
	otoChannels = channels

	log.Printf("Oto context initialized: %dHz, %d channels", sampleRate, channels)

	return ctx, nil
}

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	ready      bool
	encoder    *encode.PCMEncoder
	scratch    []byte
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{}
}

// otoEncoder packs samples into the shared context's 16-bit format
func otoEncoder(sampleRate, channels int) (*encode.PCMEncoder, error) {
	return encode.NewPCM(audio.Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	})
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// If already initialized with same format, reuse the existing player
	if o.player != nil && o.sampleRate == sampleRate && o.channels == channels {
		return nil
	}

	ctx, err := sharedOtoContext(sampleRate, channels)
	if err != nil {
		return err
	}

	enc, err := otoEncoder(sampleRate, channels)
	if err != nil {
		return err
	}

	o.closePlayer()

	// Create pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()

	// Create persistent player that reads from the pipe
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.encoder = enc
	o.sampleRate = sampleRate
	o.channels = channels
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)

	return nil
}

// Write outputs audio samples (blocks until the player has read them)
func (o *Oto) Write(samples []int32) error {
	o.mu.Lock()
	if !o.ready {
		o.mu.Unlock()
		return ErrNotInitialized
	}
	writer := o.pipeWriter

	o.scratch = o.encoder.AppendEncode(o.scratch[:0], samples)
	output := o.scratch
	o.mu.Unlock()

	// Write to pipe (which feeds the persistent player)
	if _, err := writer.Write(output); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	return nil
}

// Rate returns the rate of the shared context, which is fixed by the first
// Open in the process and can differ from the rate this output asked for
func (o *Oto) Rate() int {
	otoMu.Lock()
	defer otoMu.Unlock()
	return otoSampleRate
}

// Close releases the player. The shared context stays alive for other outputs.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closePlayer()
	return nil
}

// closePlayer tears down pipe and player (must hold o.mu)
func (o *Oto) closePlayer() {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.ready = false
}
