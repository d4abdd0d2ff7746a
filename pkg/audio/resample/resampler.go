// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Used for rate conversion and pitch shifting via a variable step ratio
package resample

// Resampler performs linear interpolation to convert between sample rates.
//
// It is stateful: the last input frame of each chunk is kept so that
// consecutive chunks interpolate across their boundary without clicks.
type Resampler struct {
	channels   int
	ratio      float64 // input frames consumed per output frame
	position   float64 // read position relative to the next chunk, may be in [-1, 0)
	lastSample []int32 // one sample per channel
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		position:   0.0,
		lastSample: make([]int32, channels),
	}
}

// SetRatio changes how many input frames are consumed per output frame.
// A ratio of 2 plays twice as fast (one octave up), 0.5 one octave down.
func (r *Resampler) SetRatio(ratio float64) {
	if ratio <= 0 {
		return
	}
	r.ratio = ratio
}

// Ratio returns the current step ratio
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// frame returns sample ch of input frame idx, where idx -1 is the carried frame
func (r *Resampler) frame(input []int32, idx, ch int) int32 {
	if idx < 0 {
		return r.lastSample[ch]
	}
	return input[idx*r.channels+ch]
}

// Resample converts input samples to output sample rate using linear interpolation
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate
// Returns the number of int32 values written to output.
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	outputFrames := len(output) / r.channels

	outIdx := 0
	pos := r.position

	for outIdx < outputFrames {
		inputIdx := int(pos)
		if pos < 0 {
			inputIdx = -1
		}

		// Need the next frame to interpolate towards
		if inputIdx+1 >= inputFrames {
			break
		}

		// Linear interpolation factor
		frac := pos - float64(inputIdx)

		for ch := 0; ch < r.channels; ch++ {
			sample1 := r.frame(input, inputIdx, ch)
			sample2 := r.frame(input, inputIdx+1, ch)

			interpolated := float64(sample1)*(1.0-frac) + float64(sample2)*frac
			output[outIdx*r.channels+ch] = int32(interpolated)
		}

		outIdx++
		pos += r.ratio
	}

	// Keep the last frame and continue relative to the next chunk
	copy(r.lastSample, input[(inputFrames-1)*r.channels:inputFrames*r.channels])
	r.position = pos - float64(inputFrames)

	// Output buffer ran out before input did: drop the unread input
	if r.position < -1 {
		r.position = -1
	}

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	for i := range r.lastSample {
		r.lastSample[i] = 0
	}
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames)/r.ratio) + 1
	return outputFrames * r.channels
}
