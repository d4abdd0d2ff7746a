// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface with oto, malgo and null implementations
// Package output provides audio playback devices.
//
// Every backend accepts interleaved int32 samples in 24-bit range and
// blocks in Write until the device has room, which paces the caller at
// playback speed.
//
// Example:
//
//	out, err := output.New(output.BackendMalgo)
//	err = out.Open(44100, 2)
//	err = out.Write(samples)
package output
