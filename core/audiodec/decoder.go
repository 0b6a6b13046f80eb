// Package audiodec turns compressed or container audio into in-memory
// float buffers for the encoder, the recorder preview and the waveform
// renderer.
package audiodec

import (
	"context"

	"spitbox/core/pcm"
)

// Decoder defines an interface for audio decoding operations.
type Decoder interface {
	// Decode reads the file at path into a float buffer.
	Decode(ctx context.Context, path string) (*pcm.DecodedAudio, error)
	// DecodeBytes decodes an in-memory capture blob.
	DecodeBytes(ctx context.Context, data []byte) (*pcm.DecodedAudio, error)
}
