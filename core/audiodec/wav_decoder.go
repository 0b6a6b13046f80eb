package audiodec

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"spitbox/core/pcm"
)

// WAVDecoder implements Decoder for uncompressed WAV sources without
// spawning a process. Feed audio is always WAV (the encoder produced it),
// so this is the playback-path default.
type WAVDecoder struct{}

// NewWAVDecoder creates a new WAVDecoder.
func NewWAVDecoder() *WAVDecoder {
	return &WAVDecoder{}
}

// Decode reads the WAV file at path into a float buffer.
func (d *WAVDecoder) Decode(ctx context.Context, path string) (*pcm.DecodedAudio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return d.DecodeBytes(ctx, data)
}

// DecodeBytes decodes an in-memory WAV blob.
func (d *WAVDecoder) DecodeBytes(ctx context.Context, data []byte) (*pcm.DecodedAudio, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav data: %w", err)
	}
	if dec.NumChans < 1 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("invalid wav format: %d channels at %d Hz", dec.NumChans, dec.SampleRate)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth != 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := float64(int64(1) << uint(bitDepth-1))

	frames := len(buf.Data) / channels
	chans := make([][]float64, channels)
	for ch := range chans {
		chans[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			chans[ch][i] = float64(buf.Data[i*channels+ch]) / scale
		}
	}

	return &pcm.DecodedAudio{SampleRate: int(dec.SampleRate), Channels: chans}, nil
}
