// ABOUTME: Audio source abstraction for playing files or generating test tones
// ABOUTME: Picks a decoder by file extension (MP3, FLAC, WAV, raw PCM)
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source provides PCM audio samples
type Source interface {
	// Read fills samples with interleaved int32 values in 24-bit range and
	// returns how many were written, always whole frames. It returns
	// 0, io.EOF once the source is exhausted.
	Read(samples []int32) (int, error)
	// SampleRate returns the sample rate of the audio
	SampleRate() int
	// Channels returns the number of channels
	Channels() int
	// Metadata returns title, artist, album
	Metadata() (title, artist, album string)
	// Close closes the audio source
	Close() error
}

// Open creates a source for a local file. An empty path gives a test tone.
func Open(path string) (Source, error) {
	if path == "" {
		return NewTone(DefaultToneFrequency, DefaultSampleRate), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3(path)
	case ".flac":
		return NewFLAC(path)
	case ".wav":
		return NewWAV(path)
	case ".pcm", ".raw":
		return NewRawPCM(path, DefaultSampleRate, 2)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .wav, .pcm, .raw)", ext)
	}
}

// titleFromPath uses the file name without extension as title
func titleFromPath(path string) string {
	filename := filepath.Base(path)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// to24Bit scales a sample of the given bit depth to 24-bit range
func to24Bit(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}
