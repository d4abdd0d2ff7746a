// ABOUTME: Null audio output that discards samples
// ABOUTME: Optionally paces writes at playback speed for headless runs and tests
package output

import (
	"sync"
	"time"
)

// Null discards audio. With realtime pacing each Write sleeps for the
// duration the samples would take to play.
type Null struct {
	mu         sync.Mutex
	realtime   bool
	sampleRate int
	channels   int
	ready      bool
	written    int64
}

// NewNull creates a null output
func NewNull(realtime bool) Output {
	return &Null{realtime: realtime}
}

// Open records the format
func (n *Null) Open(sampleRate, channels int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sampleRate = sampleRate
	n.channels = channels
	n.ready = true
	return nil
}

// Write discards samples, sleeping for their play time in realtime mode
func (n *Null) Write(samples []int32) error {
	n.mu.Lock()
	if !n.ready {
		n.mu.Unlock()
		return ErrNotInitialized
	}
	n.written += int64(len(samples))
	realtime := n.realtime
	rate, channels := n.sampleRate, n.channels
	n.mu.Unlock()

	if realtime && rate > 0 && channels > 0 {
		frames := len(samples) / channels
		time.Sleep(time.Duration(frames) * time.Second / time.Duration(rate))
	}

	return nil
}

// Close marks the output closed
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = false
	return nil
}

// Rate returns the rate passed to the last Open
func (n *Null) Rate() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sampleRate
}

// Written returns the total number of int32 values written
func (n *Null) Written() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}
