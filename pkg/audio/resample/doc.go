// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts sample rates and playback speed across chunk boundaries
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates. The last
// input frame is carried over between calls, so a stream can be resampled
// chunk by chunk without clicks. SetRatio changes the step directly, which
// the renderer uses for pitch.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out := make([]int32, r.OutputSamplesNeeded(len(in)))
//	n := r.Resample(in, out)
package resample
