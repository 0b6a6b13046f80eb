// Package playback abstracts the audio output graph. The recorder preview
// and the waveform transport both play through a Sink so tests can swap
// the real output for a silent one.
package playback

import (
	"context"

	"spitbox/core/pcm"
)

// Sink plays a decoded buffer. Play returns immediately; the returned
// channel is closed when playback finishes on its own. Stop halts playback
// early and releases the output. A Sink plays at most one buffer at a time.
type Sink interface {
	Play(ctx context.Context, buf *pcm.DecodedAudio) (<-chan struct{}, error)
	Stop()
}
