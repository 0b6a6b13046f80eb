package playback

import (
	"context"
	"sync"
	"time"

	"spitbox/core/pcm"
)

// NullSink discards audio but keeps real playback timing, finishing after
// the buffer's duration. Used in tests and headless runs.
type NullSink struct {
	mu     sync.Mutex
	cancel context.CancelFunc

	// Speedup compresses playback time; 0 means real time.
	Speedup int
}

// Play waits out the buffer's duration without producing sound.
func (s *NullSink) Play(ctx context.Context, buf *pcm.DecodedAudio) (<-chan struct{}, error) {
	s.Stop()

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	d := buf.Duration()
	if s.Speedup > 0 {
		d /= time.Duration(s.Speedup)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}()
	return done, nil
}

// Stop halts the fake playback.
func (s *NullSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
