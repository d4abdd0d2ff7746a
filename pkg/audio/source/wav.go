// ABOUTME: WAV file source
// ABOUTME: Decodes PCM WAV files with go-audio/wav
package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV reads from a PCM WAV file
type WAV struct {
	file       *os.File
	decoder    *wav.Decoder
	buf        *goaudio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
	title      string
}

// NewWAV creates a new WAV audio source
func NewWAV(filePath string) (*WAV, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		f.Close()
		return nil, errors.New("input is not a valid WAV audio file")
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		f.Close()
		return nil, fmt.Errorf("unsupported WAV bit depth: %d (supported: 16, 24, 32)", bitDepth)
	}

	sampleRate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)

	title := titleFromPath(filePath)
	log.Printf("Loaded WAV: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		title, sampleRate, channels, bitDepth)

	return &WAV{
		file:    f,
		decoder: decoder,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		},
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
		title:      title,
	}, nil
}

func (s *WAV) Read(samples []int32) (int, error) {
	want := len(samples) - len(samples)%s.channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	n -= n % s.channels
	for i, sample := range s.buf.Data[:n] {
		samples[i] = to24Bit(int32(sample), s.bitDepth)
	}

	return n, nil
}

func (s *WAV) SampleRate() int { return s.sampleRate }
func (s *WAV) Channels() int   { return s.channels }
func (s *WAV) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *WAV) Close() error { return s.file.Close() }
