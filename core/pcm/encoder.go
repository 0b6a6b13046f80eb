// Package pcm converts decoded audio buffers into the uncompressed
// RIFF/WAVE container the backend expects. Encoding is a pure function of
// the input: identical buffers always produce byte-identical output.
package pcm

import (
	"encoding/binary"
	"time"
)

const (
	headerSize     = 44
	bitsPerSample  = 16
	bytesPerSample = 2
	pcmFormat      = 1 // linear PCM
)

// DecodedAudio is an in-memory multi-channel floating point buffer.
// Every channel must have the same length and samples are expected in
// [-1.0, 1.0]; out-of-range values are clamped during encoding.
type DecodedAudio struct {
	SampleRate int
	Channels   [][]float64
}

// NumFrames returns the per-channel sample count.
func (d *DecodedAudio) NumFrames() int {
	if len(d.Channels) == 0 {
		return 0
	}
	return len(d.Channels[0])
}

// Duration returns the playback length of the buffer.
func (d *DecodedAudio) Duration() time.Duration {
	if d.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(d.NumFrames()) / float64(d.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length in seconds.
func (d *DecodedAudio) Seconds() float64 {
	if d.SampleRate == 0 {
		return 0
	}
	return float64(d.NumFrames()) / float64(d.SampleRate)
}

// Encode transforms the buffer into a complete, self-contained WAV file:
// a 44-byte header followed by interleaved little-endian 16-bit samples.
func Encode(buf *DecodedAudio) []byte {
	channels := len(buf.Channels)
	frames := buf.NumFrames()
	dataBytes := frames * channels * bytesPerSample

	out := make([]byte, headerSize+dataBytes)
	writeHeader(out, channels, buf.SampleRate, dataBytes)

	// Interleave frame by frame and quantize in one pass.
	offset := headerSize
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(out[offset:], uint16(quantize(buf.Channels[ch][i])))
			offset += bytesPerSample
		}
	}
	return out
}

// quantize clamps a sample to [-1, 1] and scales it to a signed 16-bit
// integer. Negative samples scale by 32768 and non-negative ones by 32767
// so both ends of the float range land exactly on the int16 limits.
func quantize(s float64) int16 {
	if s < -1.0 {
		s = -1.0
	} else if s > 1.0 {
		s = 1.0
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

func writeHeader(out []byte, channels, sampleRate, dataBytes int) {
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataBytes))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], pcmFormat)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*channels*bytesPerSample))
	binary.LittleEndian.PutUint16(out[32:], uint16(channels*bytesPerSample))
	binary.LittleEndian.PutUint16(out[34:], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataBytes))
}
