// ABOUTME: FLAC file source
// ABOUTME: Decodes FLAC frames with mewkiz/flac and scales them to 24-bit
package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mewkiz/flac"
)

// FLAC reads from a FLAC file
type FLAC struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int
	title      string

	// interleaved samples of the last parsed frame not yet returned
	pending []int32
}

// NewFLAC creates a new FLAC audio source
func NewFLAC(filePath string) (*FLAC, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	sampleRate := int(info.SampleRate)
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	title := titleFromPath(filePath)
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		title, sampleRate, channels, bitDepth)

	return &FLAC{
		file:       f,
		stream:     stream,
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
		title:      title,
	}, nil
}

func (s *FLAC) Read(samples []int32) (int, error) {
	limit := len(samples) - len(samples)%s.channels
	samplesRead := 0

	for samplesRead < limit {
		if len(s.pending) == 0 {
			frame, err := s.stream.ParseNext()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return samplesRead, fmt.Errorf("flac decode error: %w", err)
			}

			for i := 0; i < int(frame.BlockSize); i++ {
				for ch := 0; ch < s.channels; ch++ {
					s.pending = append(s.pending, to24Bit(frame.Subframes[ch].Samples[i], s.bitDepth))
				}
			}
			continue
		}

		n := copy(samples[samplesRead:limit], s.pending)
		s.pending = s.pending[n:]
		samplesRead += n
	}

	if samplesRead == 0 && limit > 0 {
		return 0, io.EOF
	}
	return samplesRead, nil
}

func (s *FLAC) SampleRate() int { return s.sampleRate }
func (s *FLAC) Channels() int   { return s.channels }
func (s *FLAC) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}

func (s *FLAC) Close() error {
	return s.file.Close()
}
