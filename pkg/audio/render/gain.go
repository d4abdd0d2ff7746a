// ABOUTME: Volume and panning application for rendered blocks
// ABOUTME: Scales interleaved samples with clipping protection
package render

import "github.com/Resonate-Protocol/resonate-sound/pkg/audio"

// channelGains returns the left/right multipliers for a volume and a panning
// in [-1, 1]. Centre keeps both channels at full volume; panning attenuates
// only the opposite side.
func channelGains(volume, panning float64) (left, right float64) {
	if volume < 0 {
		volume = 0
	}
	if panning < -1 {
		panning = -1
	} else if panning > 1 {
		panning = 1
	}

	left = volume * min(1, 1-panning)
	right = volume * min(1, 1+panning)
	return left, right
}

// applyGain scales samples in place. Panning only applies to stereo layouts.
func applyGain(samples []int32, channels int, volume, panning float64) {
	left, right := channelGains(volume, panning)
	if channels != 2 {
		left, right = volume, volume
	}

	if left == 1 && right == 1 {
		return
	}

	for i, sample := range samples {
		multiplier := left
		if channels == 2 && i%2 == 1 {
			multiplier = right
		}
		// Clamp to 24-bit range to prevent overflow
		samples[i] = audio.Clamp24(int64(float64(sample) * multiplier))
	}
}
