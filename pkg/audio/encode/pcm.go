// ABOUTME: PCM audio encoder
// ABOUTME: Packs int32 samples into 16, 24 or 32-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	switch format.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// BytesPerSample returns the encoded size of one sample
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// AppendEncode appends the encoded samples to dst. When dst has enough
// capacity no allocation happens, which keeps device callbacks allocation free.
func (e *PCMEncoder) AppendEncode(dst []byte, samples []int32) []byte {
	switch e.bitDepth {
	case 24:
		for _, sample := range samples {
			packed := audio.SampleTo24Bit(sample)
			dst = append(dst, packed[:]...)
		}
	case 32:
		// 24-bit value in the upper bits of a 32-bit container
		for _, sample := range samples {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(sample<<8))
		}
	default:
		for _, sample := range samples {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(audio.SampleToInt16(sample)))
		}
	}
	return dst
}
