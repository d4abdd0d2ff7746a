// ABOUTME: Test tone generator source
// ABOUTME: Generates an endless stereo sine wave
package source

import (
	"math"
	"sync"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
)

const (
	// DefaultSampleRate is used by the tone and raw PCM sources
	DefaultSampleRate = 44100

	// DefaultToneFrequency is A4
	DefaultToneFrequency = 440.0
)

// Tone generates a sine wave at half volume. It never ends.
type Tone struct {
	mu          sync.Mutex
	frequency   float64
	sampleRate  int
	sampleIndex uint64
}

// NewTone creates a tone generator
func NewTone(frequency float64, sampleRate int) *Tone {
	return &Tone{
		frequency:  frequency,
		sampleRate: sampleRate,
	}
}

func (s *Tone) Read(samples []int32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(samples) / 2

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.sampleRate)
		sample := math.Sin(2 * math.Pi * s.frequency * t)

		// 50% volume, duplicated to both channels
		value := int32(sample * float64(audio.Max24Bit) * 0.5)
		samples[i*2] = value
		samples[i*2+1] = value
	}

	s.sampleIndex += uint64(frames)

	return frames * 2, nil
}

func (s *Tone) SampleRate() int { return s.sampleRate }
func (s *Tone) Channels() int   { return 2 }
func (s *Tone) Metadata() (string, string, string) {
	return "Test Tone", "Resonate Sound", "Reference Tones"
}
func (s *Tone) Close() error { return nil }
