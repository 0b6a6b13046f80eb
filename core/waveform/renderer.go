// Package waveform loads a beat's audio, reduces it to amplitude peaks for
// display, and exposes transport controls with a continuous playback
// position stream. Each beat card owns an independent Renderer; there is
// no sharing between cards.
package waveform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"spitbox/core/audiodec"
	"spitbox/core/pcm"
	"spitbox/core/playback"
	"spitbox/logger"
)

var (
	// ErrAudioLoad means the source could not be fetched or decoded.
	// Transport stays disabled until a Load succeeds.
	ErrAudioLoad = errors.New("failed to load audio source")
	// ErrNotLoaded means transport was used before a successful Load.
	ErrNotLoaded = errors.New("no audio loaded")
)

// tickInterval approximates a rendered-frame cadence for position updates.
const tickInterval = 33 * time.Millisecond

// Wave is the display form of a loaded source: bucketed amplitude peaks
// plus the total duration.
type Wave struct {
	Duration float64   `json:"duration"`
	Peaks    []float64 `json:"peaks"`
}

// PeaksCache lets repeat loads of the same source skip peak computation.
type PeaksCache interface {
	GetWave(ctx context.Context, key string) (*Wave, bool)
	SetWave(ctx context.Context, key string, w *Wave)
}

// Renderer owns one source's audio graph and position stream.
type Renderer struct {
	decoder audiodec.Decoder
	sink    playback.Sink
	cache   PeaksCache // may be nil
	buckets int
	httpc   *http.Client

	mu        sync.Mutex
	loaded    bool
	loading   bool
	buf       *pcm.DecodedAudio
	wave      *Wave
	playing   bool
	position  float64
	tickStop  context.CancelFunc
	closed    bool
	positions chan float64
}

// NewRenderer creates a renderer. cache may be nil to disable peak caching.
func NewRenderer(decoder audiodec.Decoder, sink playback.Sink, cache PeaksCache, buckets int) *Renderer {
	return &Renderer{
		decoder:   decoder,
		sink:      sink,
		cache:     cache,
		buckets:   buckets,
		httpc:     &http.Client{Timeout: 60 * time.Second},
		positions: make(chan float64, 8),
	}
}

// Positions is the sole time source for marker overlays: it emits the
// current playback offset in seconds at frame cadence while playing.
func (r *Renderer) Positions() <-chan float64 {
	return r.positions
}

// Wave returns the peaks/duration of the loaded source, or nil.
func (r *Renderer) Wave() *Wave {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wave
}

// Duration returns the loaded source length in seconds, 0 before Load.
func (r *Renderer) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wave == nil {
		return 0
	}
	return r.wave.Duration
}

// Playing reports whether the transport is running.
func (r *Renderer) Playing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// Position returns the current playback offset in seconds.
func (r *Renderer) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Load fetches and decodes a source. Transport is disabled while loading
// and after a failed load. Loading a new source first tears down the
// previous audio graph so a stale decode can never resolve into this
// renderer.
func (r *Renderer) Load(ctx context.Context, sourceURL string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrNotLoaded
	}
	r.stopTransportLocked()
	r.loaded = false
	r.loading = true
	r.buf = nil
	r.wave = nil
	r.position = 0
	r.mu.Unlock()

	// The previous source may still be audible; release its audio graph
	// before the new one starts loading.
	r.sink.Stop()

	data, err := r.fetch(ctx, sourceURL)
	if err != nil {
		r.finishLoad(nil, nil)
		return fmt.Errorf("%w: %v", ErrAudioLoad, err)
	}

	buf, err := r.decoder.DecodeBytes(ctx, data)
	if err != nil {
		r.finishLoad(nil, nil)
		return fmt.Errorf("%w: %v", ErrAudioLoad, err)
	}

	wave, cached := r.cachedWave(ctx, sourceURL)
	if !cached {
		wave = &Wave{
			Duration: buf.Seconds(),
			Peaks:    ComputePeaks(buf, r.buckets),
		}
		if r.cache != nil {
			r.cache.SetWave(ctx, sourceURL, wave)
		}
	}

	r.finishLoad(buf, wave)
	logger.Debug("waveform loaded",
		logger.String("source", sourceURL),
		logger.Float64("duration", wave.Duration),
		logger.Bool("peaksFromCache", cached))
	return nil
}

func (r *Renderer) cachedWave(ctx context.Context, key string) (*Wave, bool) {
	if r.cache == nil {
		return nil, false
	}
	return r.cache.GetWave(ctx, key)
}

func (r *Renderer) finishLoad(buf *pcm.DecodedAudio, wave *Wave) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	r.buf = buf
	r.wave = wave
	r.loaded = buf != nil
}

// fetch supports http(s) URLs and plain file paths.
func (r *Renderer) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		return os.ReadFile(sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, sourceURL)
	}
	return io.ReadAll(resp.Body)
}

// Play starts the transport from the current position.
func (r *Renderer) Play(ctx context.Context) error {
	r.mu.Lock()
	if !r.loaded || r.loading || r.closed {
		r.mu.Unlock()
		return ErrNotLoaded
	}
	if r.playing {
		r.mu.Unlock()
		return nil
	}
	start := r.position
	if start >= r.wave.Duration {
		start = 0
		r.position = 0
	}
	buf := sliceFrom(r.buf, start)
	r.mu.Unlock()

	done, err := r.sink.Play(ctx, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAudioLoad, err)
	}

	tickCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.playing = true
	r.tickStop = cancel
	r.mu.Unlock()

	go r.tick(tickCtx, start, done)
	return nil
}

// Pause halts the transport, retaining the current position.
func (r *Renderer) Pause() {
	r.mu.Lock()
	r.stopTransportLocked()
	r.mu.Unlock()
	r.sink.Stop()
}

// Toggle flips play/pause. A toggle while loading is a no-op.
func (r *Renderer) Toggle(ctx context.Context) error {
	r.mu.Lock()
	if r.loading {
		r.mu.Unlock()
		return nil
	}
	playing := r.playing
	r.mu.Unlock()

	if playing {
		r.Pause()
		return nil
	}
	return r.Play(ctx)
}

// Seek moves the position, clamped to [0, duration]. If the transport is
// running it restarts playback from the new offset.
func (r *Renderer) Seek(ctx context.Context, seconds float64) error {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotLoaded
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > r.wave.Duration {
		seconds = r.wave.Duration
	}
	wasPlaying := r.playing
	r.stopTransportLocked()
	r.position = seconds
	r.mu.Unlock()

	r.sink.Stop()
	if wasPlaying {
		return r.Play(ctx)
	}
	return nil
}

// tick advances the position at frame cadence until playback ends.
func (r *Renderer) tick(ctx context.Context, start float64, playDone <-chan struct{}) {
	began := time.Now()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			if !r.playing {
				r.mu.Unlock()
				return
			}
			pos := start + time.Since(began).Seconds()
			if pos > r.wave.Duration {
				pos = r.wave.Duration
			}
			r.position = pos
			r.mu.Unlock()
			r.emit(pos)
		case <-playDone:
			r.mu.Lock()
			if r.playing {
				r.playing = false
				r.position = r.wave.Duration
				r.tickStop = nil
			}
			pos := r.position
			r.mu.Unlock()
			r.emit(pos)
			return
		case <-ctx.Done():
			return
		}
	}
}

// emit never blocks: a slow consumer just misses a frame. The send happens
// under the lock so it cannot race Close closing the channel.
func (r *Renderer) emit(pos float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.positions <- pos:
	default:
	}
}

func (r *Renderer) stopTransportLocked() {
	if r.tickStop != nil {
		r.tickStop()
		r.tickStop = nil
	}
	r.playing = false
}

// Close releases the audio graph and position stream. The renderer cannot
// be reused afterwards.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.stopTransportLocked()
	r.closed = true
	r.loaded = false
	r.buf = nil
	r.wave = nil
	r.mu.Unlock()

	r.sink.Stop()
	close(r.positions)
}

// sliceFrom returns the buffer from the given second onward.
func sliceFrom(buf *pcm.DecodedAudio, seconds float64) *pcm.DecodedAudio {
	frame := int(seconds * float64(buf.SampleRate))
	if frame < 0 {
		frame = 0
	}
	if frame > buf.NumFrames() {
		frame = buf.NumFrames()
	}
	chans := make([][]float64, len(buf.Channels))
	for i, ch := range buf.Channels {
		chans[i] = ch[frame:]
	}
	return &pcm.DecodedAudio{SampleRate: buf.SampleRate, Channels: chans}
}
