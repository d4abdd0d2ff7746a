// ABOUTME: Raw PCM file source
// ABOUTME: Streams headerless 16-bit little-endian PCM through the PCM decoder
package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/decode"
)

// RawPCM reads headerless 16-bit little-endian PCM
type RawPCM struct {
	file       *os.File
	pcm        decode.Decoder
	buf        []byte
	sampleRate int
	channels   int
	title      string
}

// NewRawPCM opens a raw PCM file with the given format
func NewRawPCM(filePath string, sampleRate, channels int) (*RawPCM, error) {
	pcm, err := decode.NewPCM(audio.Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	})
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM file: %w", err)
	}

	title := titleFromPath(filePath)
	log.Printf("Loaded raw PCM: %s (sample rate: %d Hz, channels: %d)", title, sampleRate, channels)

	return &RawPCM{
		file:       f,
		pcm:        pcm,
		sampleRate: sampleRate,
		channels:   channels,
		title:      title,
	}, nil
}

func (s *RawPCM) Read(samples []int32) (int, error) {
	want := (len(samples) - len(samples)%s.channels) * 2
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}

	for {
		n, err := s.file.Read(s.buf[:want-s.pcm.Buffered()])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("failed to read PCM: %w", err)
		}

		decoded, decErr := s.pcm.Decode(s.buf[:n])
		if decErr != nil {
			return 0, decErr
		}
		if len(decoded.Data) > 0 {
			return copy(samples, decoded.Data), nil
		}
		if err != nil {
			// A trailing partial frame is dropped
			return 0, io.EOF
		}
	}
}

func (s *RawPCM) SampleRate() int { return s.sampleRate }
func (s *RawPCM) Channels() int   { return s.channels }
func (s *RawPCM) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}

func (s *RawPCM) Close() error {
	s.pcm.Close()
	return s.file.Close()
}
