// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests 16-bit and 24-bit PCM decoding and partial frame carry-over
package decode

import (
	"testing"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
)

func TestPCMDecode(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		channels int
		input    []byte
		want     []int32
	}{
		{
			// 0x0100 = 256 and 0x0302 = 770, widened by 8 bits
			name: "16-bit stereo", bitDepth: 16, channels: 2,
			input: []byte{0x00, 0x01, 0x02, 0x03},
			want:  []int32{256 << 8, 770 << 8},
		},
		{
			name: "16-bit negative", bitDepth: 16, channels: 1,
			input: []byte{0xFF, 0xFF, 0x00, 0x80},
			want:  []int32{-1 << 8, -32768 << 8},
		},
		{
			name: "24-bit stereo", bitDepth: 24, channels: 2,
			input: []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05},
			want:  []int32{0x020100, 0x050403},
		},
		{
			name: "24-bit sign extension", bitDepth: 24, channels: 1,
			input: []byte{0x00, 0x00, 0x80},
			want:  []int32{audio.Min24Bit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(audio.Format{
				Codec:      "pcm",
				SampleRate: 44100,
				Channels:   tt.channels,
				BitDepth:   tt.bitDepth,
			})
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}

			output, err := decoder.Decode(tt.input)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}

			if output.Channels != tt.channels {
				t.Errorf("expected %d channels, got %d", tt.channels, output.Channels)
			}
			if len(output.Data) != len(tt.want) {
				t.Fatalf("expected %d samples, got %d", len(tt.want), len(output.Data))
			}
			for i, want := range tt.want {
				if output.Data[i] != want {
					t.Errorf("sample %d: expected %d, got %d", i, want, output.Data[i])
				}
			}
		})
	}
}

func TestPCMDecodeCarriesPartialFrames(t *testing.T) {
	format := audio.Format{
		Codec:      "pcm",
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewPCM(format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// One and a half frames: the second half waits for more data
	first, err := decoder.Decode([]byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if first.Frames() != 1 {
		t.Errorf("expected 1 frame, got %d", first.Frames())
	}
	if decoder.Buffered() != 2 {
		t.Errorf("expected 2 buffered bytes, got %d", decoder.Buffered())
	}

	second, err := decoder.Decode([]byte{0x04, 0x00})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if second.Frames() != 1 {
		t.Fatalf("expected 1 frame, got %d", second.Frames())
	}
	if second.Data[0] != 3<<8 || second.Data[1] != 4<<8 {
		t.Errorf("unexpected frame %v", second.Data)
	}
	if decoder.Buffered() != 0 {
		t.Errorf("expected nothing buffered, got %d", decoder.Buffered())
	}
}

func TestNewPCMInvalidFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   audio.Format
		expected string
	}{
		{
			name:     "invalid codec",
			format:   audio.Format{Codec: "opus", SampleRate: 48000, Channels: 2, BitDepth: 16},
			expected: "invalid codec for PCM decoder: opus",
		},
		{
			name:     "unsupported bit depth",
			format:   audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 32},
			expected: "unsupported bit depth: 32 (supported: 16, 24)",
		},
		{
			name:     "no channels",
			format:   audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 0, BitDepth: 16},
			expected: "invalid channel count: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if decoder != nil {
				t.Fatal("expected decoder to be nil")
			}
			if err.Error() != tt.expected {
				t.Errorf("expected error %q, got %q", tt.expected, err.Error())
			}
		})
	}
}

func TestPCMDecodeEmptyInput(t *testing.T) {
	format := audio.Format{
		Codec:      "pcm",
		SampleRate: 48000,
		Channels:   2,
		BitDepth:   16,
	}

	decoder, err := NewPCM(format)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	output, err := decoder.Decode([]byte{})
	if err != nil {
		t.Fatalf("decode failed with empty input: %v", err)
	}

	if output.Frames() != 0 {
		t.Errorf("expected 0 frames from empty input, got %d", output.Frames())
	}
}
