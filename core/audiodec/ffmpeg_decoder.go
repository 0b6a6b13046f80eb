package audiodec

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"spitbox/core/pcm"
)

// FFmpegDecoder implements Decoder by shelling out to ffmpeg/ffprobe.
// It handles whatever codec the capture device produced.
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
func NewFFmpegDecoder(ffmpegPath string) *FFmpegDecoder {
	return &FFmpegDecoder{ffmpegPath: ffmpegPath}
}

// streamInfo is the ffprobe output we care about.
type streamInfo struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

func (d *FFmpegDecoder) ffprobePath() string {
	return strings.Replace(d.ffmpegPath, "ffmpeg", "ffprobe", 1)
}

// probe returns channel count and sample rate of the first audio stream.
func (d *FFmpegDecoder) probe(ctx context.Context, inputFile string) (channels, sampleRate int, err error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,channels,sample_rate",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, d.ffprobePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData streamInfo
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if len(probeData.Streams) == 0 {
		return 0, 0, fmt.Errorf("no audio streams found in %s", inputFile)
	}

	s := probeData.Streams[0]
	rate, err := strconv.Atoi(s.SampleRate)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse sample rate %q: %w", s.SampleRate, err)
	}
	if s.Channels < 1 {
		return 0, 0, fmt.Errorf("invalid channel count %d in %s", s.Channels, inputFile)
	}
	return s.Channels, rate, nil
}

// Decode reads the file at path into a float buffer by asking ffmpeg for
// raw 32-bit float PCM on stdout.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*pcm.DecodedAudio, error) {
	channels, sampleRate, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg execution failed for %s: %w\nFFmpeg Error: %s", path, err, stderr.String())
	}

	return deinterleave(out.Bytes(), channels, sampleRate), nil
}

// DecodeBytes decodes an in-memory capture blob. ffmpeg needs a seekable
// input for most container formats, so the blob goes through a temp file.
func (d *FFmpegDecoder) DecodeBytes(ctx context.Context, data []byte) (*pcm.DecodedAudio, error) {
	tmp, err := os.CreateTemp("", "spitbox-take-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for decode: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file for decode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	return d.Decode(ctx, tmp.Name())
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (d *FFmpegDecoder) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, d.ffprobePath(), args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", path, err, stderr.String())
	}

	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", path, err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", path)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q for %s: %w", probeData.Format.Duration, path, err)
	}
	return duration, nil
}

// deinterleave splits raw little-endian f32 frames into per-channel slices.
func deinterleave(raw []byte, channels, sampleRate int) *pcm.DecodedAudio {
	frames := len(raw) / 4 / channels
	chans := make([][]float64, channels)
	for ch := range chans {
		chans[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 4
			bits := binary.LittleEndian.Uint32(raw[off:])
			chans[ch][i] = float64(math.Float32frombits(bits))
		}
	}
	return &pcm.DecodedAudio{SampleRate: sampleRate, Channels: chans}
}
