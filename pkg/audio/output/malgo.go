// ABOUTME: Malgo-based audio output implementation with 24-bit support
// ABOUTME: Feeds a miniaudio playback callback from a byte ring of encoded frames
package output

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/encode"
	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"
)

const (
	// malgoWriteRetry is how long Write sleeps while the ring is full
	malgoWriteRetry = 5 * time.Millisecond

	// malgoRingDuration is how much audio the ring holds ahead of the device
	malgoRingDuration = 200 * time.Millisecond
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	bitDepth   int
	frameBytes int
	encoder    *encode.PCMEncoder
	ready      bool

	// Encoded frames waiting for the device callback
	ring    *ringbuffer.RingBuffer
	encoded []byte
	mu      sync.Mutex
}

// NewMalgo creates a new 16-bit Malgo output
func NewMalgo() Output {
	return NewMalgoBitDepth(16)
}

// NewMalgoBitDepth creates a Malgo output with the given device bit depth (16, 24 or 32)
func NewMalgoBitDepth(bitDepth int) Output {
	return &Malgo{
		bitDepth: bitDepth,
	}
}

// deviceFormat maps a bit depth to the miniaudio sample format
func deviceFormat(bitDepth int) (malgo.FormatType, error) {
	switch bitDepth {
	case 16:
		return malgo.FormatS16, nil
	case 24:
		return malgo.FormatS24, nil
	case 32:
		return malgo.FormatS32, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", bitDepth)
	}
}

// newFrameRing sizes a ring for malgoRingDuration of whole frames
func newFrameRing(sampleRate, frameBytes int) *ringbuffer.RingBuffer {
	frames := int(int64(sampleRate) * int64(malgoRingDuration) / int64(time.Second))
	return ringbuffer.New(max(1, frames) * frameBytes)
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}

	format, err := deviceFormat(m.bitDepth)
	if err != nil {
		return err
	}

	enc, err := encode.NewPCM(audio.Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   m.bitDepth,
	})
	if err != nil {
		return err
	}

	// If format changed, reinitialize
	if m.device != nil {
		log.Printf("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.encoder = enc
	m.frameBytes = channels * enc.BytesPerSample()
	m.ring = newFrameRing(sampleRate, m.frameBytes)
	ring := m.ring

	// Configure device
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			fillFromRing(ring, pOutputSample)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels

	if err := device.Start(); err != nil {
		device.Uninit()
		m.device = nil
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels, %d-bit (malgo/%s)",
		sampleRate, channels, m.bitDepth, formatName(format))

	return nil
}

// Write encodes samples and queues them for the device, waiting while the
// ring is full. Only one goroutine may call Write at a time.
func (m *Malgo) Write(samples []int32) error {
	m.mu.Lock()
	if !m.ready {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	m.encoded = m.encoder.AppendEncode(m.encoded[:0], samples)
	data := m.encoded
	ring := m.ring
	frameBytes := m.frameBytes
	m.mu.Unlock()

	for len(data) > 0 {
		n, err := writeFrames(ring, data, frameBytes)
		if err != nil {
			return fmt.Errorf("ring write failed: %w", err)
		}
		data = data[n:]

		if n == 0 {
			// Ring is full, let the device callback drain it
			time.Sleep(malgoWriteRetry)

			m.mu.Lock()
			ready := m.ready
			m.mu.Unlock()
			if !ready {
				return ErrNotInitialized
			}
		}
	}

	return nil
}

// Rate returns the rate the device was opened at
func (m *Malgo) Rate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// writeFrames writes as many whole frames of data as currently fit. Keeping
// the ring frame aligned means an underrun never splits a sample.
func writeFrames(ring *ringbuffer.RingBuffer, data []byte, frameBytes int) (int, error) {
	free := ring.Free()
	size := min(len(data), free-free%frameBytes)
	if size == 0 {
		return 0, nil
	}

	n, err := ring.Write(data[:size])
	if errors.Is(err, ringbuffer.ErrIsFull) || errors.Is(err, ringbuffer.ErrTooMuchDataToWrite) {
		err = nil
	}
	return n, err
}

// fillFromRing copies queued bytes into a device buffer and zero fills the
// rest on underrun. Returns the number of bytes taken from the ring.
func fillFromRing(ring *ringbuffer.RingBuffer, out []byte) int {
	n, _ := ring.Read(out)
	clear(out[n:])
	return n
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
