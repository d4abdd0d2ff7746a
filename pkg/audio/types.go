// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, interleaved sample buffers and sample conversions
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Samples holds interleaved PCM audio.
//
// Values are int32 in 24-bit range. A frame is one sample per channel, and
// every offset/size taken by this module counts frames, not int32 values.
type Samples struct {
	Channels int
	Data     []int32
}

// NewSamples allocates a silent buffer of the given number of frames
func NewSamples(channels, frames int) Samples {
	return Samples{
		Channels: channels,
		Data:     make([]int32, channels*frames),
	}
}

// Frames returns the number of complete frames in the buffer
func (s Samples) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Data) / s.Channels
}

// Slice returns the frames [offset, offset+size) sharing the same backing array
func (s Samples) Slice(offset, size int) (Samples, error) {
	if offset < 0 || size < 0 || offset+size > s.Frames() {
		return Samples{}, fmt.Errorf("frame range [%d, %d) out of bounds (frames: %d)", offset, offset+size, s.Frames())
	}
	return Samples{
		Channels: s.Channels,
		Data:     s.Data[offset*s.Channels : (offset+size)*s.Channels],
	}, nil
}

// Remix converts the buffer to the requested channel count.
// Mono is duplicated to every output channel, multi-channel to mono is averaged,
// and any other layout keeps the leading channels (padding with silence).
func (s Samples) Remix(channels int) Samples {
	if channels == s.Channels {
		return s
	}

	frames := s.Frames()
	out := NewSamples(channels, frames)

	for f := 0; f < frames; f++ {
		in := s.Data[f*s.Channels : (f+1)*s.Channels]
		dst := out.Data[f*channels : (f+1)*channels]

		switch {
		case s.Channels == 1:
			for ch := range dst {
				dst[ch] = in[0]
			}
		case channels == 1:
			var sum int64
			for _, v := range in {
				sum += int64(v)
			}
			dst[0] = int32(sum / int64(len(in)))
		default:
			copy(dst, in)
		}
	}

	return out
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	// Take lower 24 bits, pack little-endian
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	// Reconstruct 24-bit value and sign-extend to 32-bit
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF // Set upper 8 bits to 1 for negative values
	}
	return val
}

// Clamp24 limits a value to the signed 24-bit range
func Clamp24(v int64) int32 {
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}
