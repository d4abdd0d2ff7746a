// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit little-endian PCM into int32 frames
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-sound/pkg/audio"
)

// PCMDecoder decodes raw little-endian PCM
type PCMDecoder struct {
	bitDepth int
	channels int
	pending  []byte
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	if format.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", format.Channels)
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
		channels: format.Channels,
	}, nil
}

// Decode converts PCM bytes to frames. A trailing partial frame is
// buffered and completed by the next call.
func (d *PCMDecoder) Decode(data []byte) (audio.Samples, error) {
	if len(d.pending) > 0 {
		data = append(d.pending, data...)
		d.pending = nil
	}

	bytesPerSample := d.bitDepth / 8
	frameBytes := bytesPerSample * d.channels
	usable := len(data) - len(data)%frameBytes
	if rest := data[usable:]; len(rest) > 0 {
		d.pending = append([]byte(nil), rest...)
	}

	numSamples := usable / bytesPerSample
	samples := audio.Samples{Channels: d.channels, Data: make([]int32, numSamples)}

	if d.bitDepth == 24 {
		for i := 0; i < numSamples; i++ {
			b := [3]byte{data[i*3], data[i*3+1], data[i*3+2]}
			samples.Data[i] = audio.SampleFrom24Bit(b)
		}
	} else {
		for i := 0; i < numSamples; i++ {
			sample16 := int16(binary.LittleEndian.Uint16(data[i*2:]))
			samples.Data[i] = audio.SampleFromInt16(sample16)
		}
	}

	return samples, nil
}

// Buffered returns the size of the held back partial frame
func (d *PCMDecoder) Buffered() int {
	return len(d.pending)
}

// Close drops any buffered partial frame
func (d *PCMDecoder) Close() error {
	d.pending = nil
	return nil
}
