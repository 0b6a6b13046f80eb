package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Constraints describe how the capture device is opened. Recording is
// always mono at a fixed sample rate with cleanup filters enabled, the
// same constraints the web client passes to getUserMedia.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	ChunkInterval    time.Duration
}

// DefaultConstraints returns the standard mono recording constraints.
func DefaultConstraints(sampleRate int, chunkInterval time.Duration) Constraints {
	return Constraints{
		SampleRate:       sampleRate,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		ChunkInterval:    chunkInterval,
	}
}

// Device is an exclusive capture source. Start opens the device and emits
// ordered binary chunks until Stop is called or the context is cancelled;
// the channel is closed once the device is released. Chunk order is the
// device's emission order and must be preserved by the consumer.
type Device interface {
	Start(ctx context.Context, c Constraints) (<-chan []byte, error)
	Stop()
}

// FFmpegDevice captures the microphone through an ffmpeg process writing a
// WAV stream to stdout. Concatenating the emitted chunks yields a decodable
// capture container.
type FFmpegDevice struct {
	ffmpegPath  string
	inputFormat string // e.g. "pulse", "alsa", "avfoundation"
	inputName   string // e.g. "default"

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// NewFFmpegDevice creates a capture device reading from the given input.
// Empty format/name fall back to pulse/default.
func NewFFmpegDevice(ffmpegPath, inputFormat, inputName string) *FFmpegDevice {
	if inputFormat == "" {
		inputFormat = "pulse"
	}
	if inputName == "" {
		inputName = "default"
	}
	return &FFmpegDevice{ffmpegPath: ffmpegPath, inputFormat: inputFormat, inputName: inputName}
}

// Start opens the microphone and begins emitting chunks. A previous session
// is stopped first so its process and reader goroutine are not orphaned.
func (d *FFmpegDevice) Start(ctx context.Context, c Constraints) (<-chan []byte, error) {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	args := []string{
		"-v", "error",
		"-f", d.inputFormat,
		"-i", d.inputName,
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
	}
	if filters := captureFilters(c); filters != "" {
		args = append(args, "-af", filters)
	}
	args = append(args, "-f", "wav", "-")

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		d.cancel = nil
		return nil, fmt.Errorf("failed to open capture pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		d.cancel = nil
		return nil, fmt.Errorf("failed to open capture device %s/%s: %w", d.inputFormat, d.inputName, err)
	}
	d.cmd = cmd

	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		defer cmd.Wait() // reap the process
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return ch, nil
}

// Stop releases the device. Safe to call when not started, and safe to
// call concurrently with Start (the auto-stop goroutine can race a Reset).
func (d *FFmpegDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.cmd = nil
}

// captureFilters builds the ffmpeg filter chain for the cleanup
// constraints. Noise suppression maps to afftdn; echo pickup is tamed with
// a highpass on the low rumble that feedback rides on.
func captureFilters(c Constraints) string {
	var filters []string
	if c.NoiseSuppression {
		filters = append(filters, "afftdn")
	}
	if c.EchoCancellation {
		filters = append(filters, "highpass=f=80")
	}
	return strings.Join(filters, ",")
}
