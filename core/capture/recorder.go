// Package capture owns the microphone session: chunk accumulation,
// elapsed-time tracking, preview playback of the pending take, and
// submission of the finished recording.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"spitbox/core/audiodec"
	"spitbox/core/pcm"
	"spitbox/core/playback"
	"spitbox/logger"
	"spitbox/model"
)

// State is the recorder lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateStopped    State = "stopped" // a take is held, awaiting preview/reset/submit
	StateSubmitting State = "submitting"
)

var (
	// ErrDeviceUnavailable means the capture device could not be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrInvalidState means the operation is not legal in the current state.
	ErrInvalidState = errors.New("operation not legal in current state")
	// ErrPlaybackDecode means the take could not be decoded for preview.
	ErrPlaybackDecode = errors.New("failed to decode take for preview")
	// ErrUploadFailed means submission failed; the take is preserved so the
	// user can retry without re-recording.
	ErrUploadFailed = errors.New("beat upload failed")
)

// Uploader submits an encoded beat to the backend.
type Uploader interface {
	UploadBeat(ctx context.Context, title, description, filename string, wavData []byte) (*model.Beat, error)
}

// Recorder drives one capture session at a time through
// idle -> recording -> stopped -> {idle, submitting -> idle}.
type Recorder struct {
	device      Device
	decoder     audiodec.Decoder
	sink        playback.Sink
	uploader    Uploader
	constraints Constraints
	maxSeconds  int

	mu         sync.Mutex
	state      State
	sessionID  string
	chunks     [][]byte
	take       []byte
	elapsed    int
	cancel     context.CancelFunc
	accumDone  chan struct{}
	previewing bool
}

// NewRecorder wires a recorder from its collaborators. maxSeconds > 0
// auto-stops a runaway recording.
func NewRecorder(device Device, decoder audiodec.Decoder, sink playback.Sink, uploader Uploader, constraints Constraints, maxSeconds int) *Recorder {
	return &Recorder{
		device:      device,
		decoder:     decoder,
		sink:        sink,
		uploader:    uploader,
		constraints: constraints,
		maxSeconds:  maxSeconds,
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns whole seconds recorded so far.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Take returns the finalized capture blob, or nil before Stop.
func (r *Recorder) Take() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.take
}

// Previewing reports whether the take is currently playing back.
func (r *Recorder) Previewing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.previewing
}

// Start opens the capture device and begins accumulating chunks. Only
// legal from idle; on failure the state is unchanged.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, r.state)
	}

	ctx, cancel := context.WithCancel(ctx)
	chunkCh, err := r.device.Start(ctx, r.constraints)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.sessionID = uuid.NewString()
	r.chunks = nil
	r.take = nil
	r.elapsed = 0
	r.cancel = cancel
	r.accumDone = make(chan struct{})
	r.state = StateRecording

	logger.Info("recording started",
		logger.String("session", r.sessionID),
		logger.Int("sampleRate", r.constraints.SampleRate))

	go r.accumulate(ctx, chunkCh, r.accumDone)
	return nil
}

// accumulate preserves the device's emission order: it is the only reader
// of the chunk channel and appends sequentially.
func (r *Recorder) accumulate(ctx context.Context, chunkCh <-chan []byte, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-chunkCh:
			if !ok {
				return
			}
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		case <-ticker.C:
			r.mu.Lock()
			r.elapsed++
			overrun := r.maxSeconds > 0 && r.elapsed >= r.maxSeconds && r.state == StateRecording
			r.mu.Unlock()
			if overrun {
				logger.Warn("recording hit max length, stopping", logger.Int("seconds", r.maxSeconds))
				// Stop waits for this goroutine, so it must run elsewhere.
				go func() { _ = r.Stop() }()
			}
		case <-ctx.Done():
			// Keep draining until the device closes the channel so no
			// emitted chunk is dropped out of order.
			for chunk := range chunkCh {
				r.mu.Lock()
				r.chunks = append(r.chunks, chunk)
				r.mu.Unlock()
			}
			return
		}
	}
}

// Stop finalizes accumulated chunks into the take and releases the device.
// Only legal from recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, r.state)
	}
	done := r.accumDone
	r.mu.Unlock()

	r.device.Stop()
	if done != nil {
		<-done
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.take = bytes.Join(r.chunks, nil)
	r.chunks = nil
	r.accumDone = nil
	r.state = StateStopped

	logger.Info("recording stopped",
		logger.String("session", r.sessionID),
		logger.Int("elapsedSeconds", r.elapsed),
		logger.Int("takeBytes", len(r.take)))
	return nil
}

// TogglePreview plays the take through the sink, or stops playback if it
// is already running. Only legal from stopped. A decode failure reports
// ErrPlaybackDecode and leaves the state unchanged.
func (r *Recorder) TogglePreview(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateStopped {
		r.mu.Unlock()
		return fmt.Errorf("%w: preview from %s", ErrInvalidState, r.state)
	}
	if r.previewing {
		r.previewing = false
		r.mu.Unlock()
		r.sink.Stop()
		return nil
	}
	take := r.take
	r.mu.Unlock()

	buf, err := r.decoder.DecodeBytes(ctx, take)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackDecode, err)
	}

	done, err := r.sink.Play(ctx, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackDecode, err)
	}

	r.mu.Lock()
	r.previewing = true
	r.mu.Unlock()

	go func() {
		<-done
		r.mu.Lock()
		r.previewing = false
		r.mu.Unlock()
	}()
	return nil
}

// Reset discards the take and any pending chunks and returns to idle.
// Legal from every state; also the dialog-close cleanup path.
func (r *Recorder) Reset() {
	r.mu.Lock()
	done := r.accumDone
	r.mu.Unlock()

	r.teardown(done)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = nil
	r.take = nil
	r.elapsed = 0
	r.accumDone = nil
	r.previewing = false
	r.sessionID = ""
	r.state = StateIdle
}

// teardown is the single authoritative release routine: it stops the
// device, halts preview playback and waits for the accumulator on every
// exit path so no stream or audio graph stays referenced.
func (r *Recorder) teardown(accumDone chan struct{}) {
	r.device.Stop()
	r.sink.Stop()

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	if accumDone != nil {
		<-accumDone
	}
}

// Submit encodes the take as an uncompressed container and uploads it.
// On failure the recorder returns to stopped with the take intact so the
// user can retry without re-recording.
func (r *Recorder) Submit(ctx context.Context, title, description string) (*model.Beat, error) {
	r.mu.Lock()
	if r.state != StateStopped || len(r.take) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidState, r.state)
	}
	if r.previewing {
		r.previewing = false
		r.sink.Stop()
	}
	take := r.take
	r.state = StateSubmitting
	r.mu.Unlock()

	beat, err := r.encodeAndUpload(ctx, take, title, description)
	if err != nil {
		r.mu.Lock()
		r.state = StateStopped // take preserved for retry
		r.mu.Unlock()
		return nil, err
	}

	r.Reset()
	logger.Info("beat submitted", logger.Int64("beatId", beat.ID), logger.String("title", beat.Title))
	return beat, nil
}

func (r *Recorder) encodeAndUpload(ctx context.Context, take []byte, title, description string) (*model.Beat, error) {
	buf, err := r.decoder.DecodeBytes(ctx, take)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding take: %v", ErrUploadFailed, err)
	}

	wavData := pcm.Encode(buf)

	beat, err := r.uploader.UploadBeat(ctx, title, description, "recording.wav", wavData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return beat, nil
}
