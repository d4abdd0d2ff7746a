// ABOUTME: Live playback control cell
// ABOUTME: Lock-free float64 written by a session and read by a render loop
package audio

import (
	"math"
	"sync/atomic"
)

// Control is a float64 value that can be read and written concurrently.
// The zero value holds 0.
type Control struct {
	bits atomic.Uint64
}

// NewControl creates a control holding v
func NewControl(v float64) *Control {
	c := &Control{}
	c.Store(v)
	return c
}

// Load returns the current value
func (c *Control) Load() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Store sets the current value
func (c *Control) Store(v float64) {
	c.bits.Store(math.Float64bits(v))
}
