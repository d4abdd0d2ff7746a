// ABOUTME: MP3 file source
// ABOUTME: Decodes MP3 through go-mp3 and the 16-bit PCM decoder
package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sound/pkg/audio/decode"
	"github.com/hajimehoshi/go-mp3"
)

// MP3 reads from an MP3 file
type MP3 struct {
	file       *os.File
	decoder    *mp3.Decoder
	pcm        decode.Decoder
	buf        []byte
	sampleRate int
	title      string
}

// NewMP3 creates a new MP3 audio source
func NewMP3(filePath string) (*MP3, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// go-mp3 always produces 16-bit little-endian stereo
	pcm, err := decode.NewPCM(audio.Format{
		Codec:      "pcm",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	title := titleFromPath(filePath)
	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", title, decoder.SampleRate())

	return &MP3{
		file:       f,
		decoder:    decoder,
		pcm:        pcm,
		sampleRate: decoder.SampleRate(),
		title:      title,
	}, nil
}

func (s *MP3) Read(samples []int32) (int, error) {
	want := len(samples) / 2 * 4
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}

	for {
		// Leave room for the partial frame the PCM decoder holds back
		n, err := s.decoder.Read(s.buf[:want-s.pcm.Buffered()])
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("mp3 decode error: %w", err)
		}

		decoded, decErr := s.pcm.Decode(s.buf[:n])
		if decErr != nil {
			return 0, decErr
		}
		if len(decoded.Data) > 0 {
			return copy(samples, decoded.Data), nil
		}
		if err != nil {
			return 0, io.EOF
		}
	}
}

func (s *MP3) SampleRate() int { return s.sampleRate }
func (s *MP3) Channels() int   { return 2 }
func (s *MP3) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}

func (s *MP3) Close() error {
	s.pcm.Close()
	return s.file.Close()
}
