// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for byte-stream audio decoders
package decode

import "github.com/Resonate-Protocol/resonate-sound/pkg/audio"

// Decoder turns encoded audio bytes into interleaved PCM frames.
// Input may be split at any byte; incomplete frames are kept until
// the next call.
type Decoder interface {
	// Decode converts encoded audio data to PCM frames
	Decode(data []byte) (audio.Samples, error)

	// Buffered returns the number of bytes held back for the next call
	Buffered() int

	// Close releases decoder resources
	Close() error
}
