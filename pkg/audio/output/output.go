// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends and backend selection
package output

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned by Write before Open succeeded
var ErrNotInitialized = errors.New("output not initialized")

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs audio samples (blocks until the device accepted them)
	Write(samples []int32) error

	// Rate returns the sample rate the device plays at after Open. It can
	// differ from the requested rate when the backend cannot switch.
	Rate() int

	// Close releases output resources
	Close() error
}

// Backend names accepted by New
const (
	BackendOto   = "oto"
	BackendMalgo = "malgo"
	BackendNull  = "null"
)

// New creates an output for the named backend
func New(backend string) (Output, error) {
	switch strings.ToLower(backend) {
	case BackendOto, "":
		return NewOto(), nil
	case BackendMalgo:
		return NewMalgo(), nil
	case BackendNull:
		return NewNull(true), nil
	default:
		return nil, fmt.Errorf("unknown audio backend: %s (supported: oto, malgo, null)", backend)
	}
}
