package waveform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"spitbox/core/audiodec"
	"spitbox/core/pcm"
	"spitbox/core/playback"
)

func testClip(t *testing.T, seconds float64) []byte {
	t.Helper()
	frames := int(seconds * 8000)
	ch := make([]float64, frames)
	for i := range ch {
		ch[i] = 0.5
	}
	return pcm.Encode(&pcm.DecodedAudio{SampleRate: 8000, Channels: [][]float64{ch}})
}

func writeClip(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, testClip(t, seconds), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRenderer(cache PeaksCache) *Renderer {
	return NewRenderer(audiodec.NewWAVDecoder(), &playback.NullSink{}, cache, 50)
}

// countingSink tracks how often the renderer drives the sink. The embedded
// NullSink keeps real playback timing.
type countingSink struct {
	playback.NullSink
	mu    sync.Mutex
	plays int
	stops int
}

func (s *countingSink) Play(ctx context.Context, buf *pcm.DecodedAudio) (<-chan struct{}, error) {
	s.mu.Lock()
	s.plays++
	s.mu.Unlock()
	return s.NullSink.Play(ctx, buf)
}

func (s *countingSink) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.NullSink.Stop()
}

func (s *countingSink) counts() (plays, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays, s.stops
}

// gateDecoder holds DecodeBytes open until released, exposing the window
// where a load is in flight.
type gateDecoder struct {
	inner   audiodec.Decoder
	entered chan struct{}
	release chan struct{}
}

func (d *gateDecoder) Decode(ctx context.Context, path string) (*pcm.DecodedAudio, error) {
	return d.inner.Decode(ctx, path)
}

func (d *gateDecoder) DecodeBytes(ctx context.Context, data []byte) (*pcm.DecodedAudio, error) {
	close(d.entered)
	<-d.release
	return d.inner.DecodeBytes(ctx, data)
}

type memWaveCache struct {
	mu   sync.Mutex
	m    map[string]*Wave
	hits int
	sets int
}

func (c *memWaveCache) GetWave(ctx context.Context, key string) (*Wave, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.m[key]
	if ok {
		c.hits++
	}
	return w, ok
}

func (c *memWaveCache) SetWave(ctx context.Context, key string, w *Wave) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]*Wave)
	}
	c.m[key] = w
	c.sets++
}

func TestLoadComputesDurationAndPeaks(t *testing.T) {
	r := newTestRenderer(nil)
	defer r.Close()

	if err := r.Load(context.Background(), writeClip(t, 2)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if d := r.Duration(); d < 1.99 || d > 2.01 {
		t.Errorf("duration = %v, want ~2s", d)
	}
	wave := r.Wave()
	if wave == nil || len(wave.Peaks) != 50 {
		t.Fatalf("wave = %+v, want 50 peaks", wave)
	}
	for i, p := range wave.Peaks {
		if p < 0.45 || p > 0.55 {
			t.Fatalf("peak %d = %v, want ~0.5", i, p)
		}
	}
}

func TestLoadOverHTTP(t *testing.T) {
	clip := testClip(t, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(clip)
	}))
	defer srv.Close()

	r := newTestRenderer(nil)
	defer r.Close()

	if err := r.Load(context.Background(), srv.URL+"/clip.wav"); err != nil {
		t.Fatalf("Load over http: %v", err)
	}
	if r.Duration() == 0 {
		t.Fatal("duration not computed from fetched audio")
	}
}

func TestLoadFailureDisablesTransport(t *testing.T) {
	r := newTestRenderer(nil)
	defer r.Close()

	bad := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(bad, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.Load(context.Background(), bad); !errors.Is(err, ErrAudioLoad) {
		t.Fatalf("Load = %v, want ErrAudioLoad", err)
	}
	if err := r.Play(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Play after failed load = %v, want ErrNotLoaded", err)
	}

	// A later successful load re-enables the transport.
	if err := r.Load(context.Background(), writeClip(t, 1)); err != nil {
		t.Fatalf("re-Load: %v", err)
	}
	if err := r.Play(context.Background()); err != nil {
		t.Fatalf("Play after re-load: %v", err)
	}
	r.Pause()
}

func TestTransportBeforeLoad(t *testing.T) {
	r := newTestRenderer(nil)
	defer r.Close()

	if err := r.Toggle(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Toggle before load = %v, want ErrNotLoaded", err)
	}
	if err := r.Seek(context.Background(), 1); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Seek before load = %v, want ErrNotLoaded", err)
	}
}

func TestPositionsStreamDuringPlayback(t *testing.T) {
	r := newTestRenderer(nil)
	defer r.Close()

	if err := r.Load(context.Background(), writeClip(t, 0.3)); err != nil {
		t.Fatal(err)
	}
	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}

	var ticks []float64
	deadline := time.After(3 * time.Second)
	for r.Playing() {
		select {
		case pos := <-r.Positions():
			ticks = append(ticks, pos)
		case <-deadline:
			t.Fatal("playback never finished")
		}
	}

	if len(ticks) == 0 {
		t.Fatal("no position ticks emitted during playback")
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] < ticks[i-1] {
			t.Fatalf("position went backwards: %v -> %v", ticks[i-1], ticks[i])
		}
	}
	if got := r.Position(); got < 0.29 {
		t.Errorf("final position = %v, want end of clip", got)
	}
}

func TestSeekClamps(t *testing.T) {
	r := newTestRenderer(nil)
	defer r.Close()

	if err := r.Load(context.Background(), writeClip(t, 1)); err != nil {
		t.Fatal(err)
	}

	if err := r.Seek(context.Background(), -5); err != nil {
		t.Fatal(err)
	}
	if got := r.Position(); got != 0 {
		t.Errorf("seek below zero landed at %v", got)
	}

	if err := r.Seek(context.Background(), 99); err != nil {
		t.Fatal(err)
	}
	if got := r.Position(); got < 0.99 || got > 1.01 {
		t.Errorf("seek past end landed at %v, want clip duration", got)
	}
}

func TestReloadWhilePlayingStopsPreviousSink(t *testing.T) {
	sink := &countingSink{}
	r := NewRenderer(audiodec.NewWAVDecoder(), sink, nil, 50)
	defer r.Close()

	path := writeClip(t, 5)
	if err := r.Load(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, before := sink.counts()

	if err := r.Load(context.Background(), path); err != nil {
		t.Fatalf("re-Load: %v", err)
	}

	if _, after := sink.counts(); after <= before {
		t.Fatalf("re-load while playing left the previous sink running: stops %d -> %d", before, after)
	}
	if r.Playing() {
		t.Fatal("transport still running after re-load")
	}
	if got := r.Position(); got != 0 {
		t.Errorf("position after re-load = %v, want 0", got)
	}
}

func TestToggleWhileLoadingIsNoOp(t *testing.T) {
	dec := &gateDecoder{
		inner:   audiodec.NewWAVDecoder(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := &countingSink{}
	r := NewRenderer(dec, sink, nil, 50)
	defer r.Close()

	path := writeClip(t, 1)
	loadDone := make(chan error, 1)
	go func() { loadDone <- r.Load(context.Background(), path) }()

	select {
	case <-dec.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("load never reached the decoder")
	}

	if err := r.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle while loading = %v, want nil no-op", err)
	}
	if plays, _ := sink.counts(); plays != 0 {
		t.Fatalf("Toggle while loading started playback: %d plays", plays)
	}
	if r.Playing() {
		t.Fatal("transport reported running while loading")
	}

	close(dec.release)
	if err := <-loadDone; err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Once the load completes, Toggle works normally again.
	if err := r.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle after load: %v", err)
	}
	if plays, _ := sink.counts(); plays != 1 {
		t.Fatalf("plays after load = %d, want 1", plays)
	}
	r.Pause()
}

func TestPeaksServedFromCacheOnReload(t *testing.T) {
	cache := &memWaveCache{}
	r := newTestRenderer(cache)
	defer r.Close()

	path := writeClip(t, 1)
	if err := r.Load(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}
	if err := r.Load(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if cache.hits == 0 {
		t.Fatal("second load did not consult the peaks cache")
	}
	if cache.sets != 1 {
		t.Fatalf("second load recomputed peaks: sets = %d", cache.sets)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	r := newTestRenderer(nil)
	if err := r.Load(context.Background(), writeClip(t, 1)); err != nil {
		t.Fatal(err)
	}
	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.Close()

	if r.Wave() != nil {
		t.Fatal("audio graph still referenced after Close")
	}
	if err := r.Play(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Play after Close = %v, want ErrNotLoaded", err)
	}

	// The position stream ends.
	for {
		if _, ok := <-r.Positions(); !ok {
			break
		}
	}
}

func TestComputePeaksBucketsAndClamp(t *testing.T) {
	buf := &pcm.DecodedAudio{
		SampleRate: 8000,
		Channels:   [][]float64{{0.1, 0.1, 0.9, 0.9, -1.5, 0.0}},
	}
	peaks := ComputePeaks(buf, 3)
	if len(peaks) != 3 {
		t.Fatalf("len(peaks) = %d, want 3", len(peaks))
	}
	want := []float64{0.1, 0.9, 1.0} // out-of-range sample clamps to 1
	for i := range want {
		if diff := peaks[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("peaks[%d] = %v, want %v", i, peaks[i], want[i])
		}
	}
}
