package playback

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"spitbox/core/pcm"
)

// FFplaySink plays audio through an ffplay process. The buffer is written
// out as a WAV temp file that is removed once playback ends.
type FFplaySink struct {
	ffplayPath string

	cancel context.CancelFunc
}

// NewFFplaySink derives the ffplay binary from the configured ffmpeg path.
func NewFFplaySink(ffmpegPath string) *FFplaySink {
	return &FFplaySink{ffplayPath: strings.Replace(ffmpegPath, "ffmpeg", "ffplay", 1)}
}

// Play encodes the buffer to a temp WAV file and plays it with ffplay.
func (s *FFplaySink) Play(ctx context.Context, buf *pcm.DecodedAudio) (<-chan struct{}, error) {
	s.Stop()

	tmp, err := os.CreateTemp("", "spitbox-play-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create playback temp file: %w", err)
	}
	if _, err := tmp.Write(pcm.Encode(buf)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write playback temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	cmd := exec.CommandContext(ctx, s.ffplayPath, "-nodisp", "-autoexit", "-v", "error", tmp.Name())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to start ffplay: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer os.Remove(tmp.Name())
		cmd.Wait()
	}()

	return done, nil
}

// Stop halts playback. Safe to call when nothing is playing.
func (s *FFplaySink) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
