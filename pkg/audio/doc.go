// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Samples, Control types and sample conversion functions
// Package audio provides fundamental audio types and utilities for hi-res audio processing.
//
// This package defines core types used throughout the resonate-sound library:
//   - Format: Describes audio stream format (codec, sample rate, channels, bit depth)
//   - Samples: Interleaved int32 PCM frames in 24-bit range
//   - Control: A live scalar (pitch, volume, panning) shared by a session and a renderer
//
// It also provides utilities for converting between different sample formats:
//   - 16-bit ↔ 24-bit conversions
//   - int32 ↔ packed byte conversions
//
// Example:
//
//	samples := audio.NewSamples(2, 1024)
//	samples.Data[0] = audio.SampleFromInt16(sample16)
//
//	// Mix a mono buffer up to stereo
//	stereo := mono.Remix(2)
package audio
