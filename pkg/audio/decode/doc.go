// ABOUTME: Audio decoder package for byte-stream codecs
// ABOUTME: Provides the Decoder interface and the raw PCM implementation
// Package decode provides audio decoders for raw byte streams.
//
// Supports: PCM (16-bit and 24-bit little-endian)
//
// Decoders output audio.Samples with int32 values in 24-bit range and
// carry incomplete frames across calls, so input can come from arbitrary
// reads.
//
// Example:
//
//	decoder, err := decode.NewPCM(format)
//	samples, err := decoder.Decode(audioData)
package decode
