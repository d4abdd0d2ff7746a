// ABOUTME: Audio encoder package for packing samples into device formats
// ABOUTME: Provides the PCM encoder used by the output backends
// Package encode converts int32 samples in 24-bit range into the byte
// layouts audio devices consume.
//
// Supports: PCM (16, 24 and 32-bit little-endian)
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	buf = encoder.AppendEncode(buf[:0], samples)
//
// Passing a buffer truncated to zero length reuses its storage, so device
// callbacks can encode without allocating.
package encode
