package waveform

import "spitbox/core/pcm"

// ComputePeaks reduces a decoded buffer to bucketed peak amplitudes in
// [0, 1]. Channels are mixed by taking the loudest absolute sample in the
// bucket across all of them. Layout work happens once per load; per-tick
// updates only change which markers are visible, never the peaks.
func ComputePeaks(buf *pcm.DecodedAudio, buckets int) []float64 {
	frames := buf.NumFrames()
	if frames == 0 || buckets <= 0 {
		return nil
	}
	if buckets > frames {
		buckets = frames
	}

	peaks := make([]float64, buckets)
	framesPerBucket := frames / buckets

	for b := 0; b < buckets; b++ {
		start := b * framesPerBucket
		end := start + framesPerBucket
		if b == buckets-1 {
			end = frames // last bucket absorbs the remainder
		}

		var peak float64
		for _, ch := range buf.Channels {
			for i := start; i < end; i++ {
				s := ch[i]
				if s < 0 {
					s = -s
				}
				if s > peak {
					peak = s
				}
			}
		}
		if peak > 1 {
			peak = 1
		}
		peaks[b] = peak
	}
	return peaks
}
