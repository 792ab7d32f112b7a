package audio

import "math"

// Resample applies speed and pitch adjustment to a waveform and returns a
// new waveform of the same length and sample rate. Both adjustments use the
// same two-step nearest-neighbor procedure: gather floor(len/factor) evenly
// spaced samples, then gather back to the original count. Duration is always
// preserved; the perceived pitch or pacing changes instead. This is a crude
// time-domain trick, not a phase vocoder, and it aliases audibly at extreme
// factors.
//
// Factor range checks belong to request validation; Resample itself accepts
// any positive factor. Factors of exactly 1.0 are no-ops. An empty input
// yields an empty output.
func Resample(w Waveform, speed, pitch float64) Waveform {
	samples := w.Samples
	if pitch != 1.0 {
		samples = stretch(samples, pitch)
	}
	if speed != 1.0 {
		samples = stretch(samples, speed)
	}
	return Waveform{Samples: samples, SampleRate: w.SampleRate}
}

func stretch(samples []float64, factor float64) []float64 {
	length := len(samples)
	if length == 0 {
		return []float64{}
	}
	n := int(float64(length) / factor)
	if n < 1 {
		n = 1
	}
	shortened := gather(samples, n)
	return gather(shortened, length)
}

// gather picks n evenly spaced samples spanning the input, rounding each
// fractional position to the nearest index.
func gather(samples []float64, n int) []float64 {
	if n <= 0 || len(samples) == 0 {
		return []float64{}
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = samples[0]
		return out
	}
	step := float64(len(samples)-1) / float64(n-1)
	for i := range out {
		idx := int(math.Round(float64(i) * step))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		out[i] = samples[idx]
	}
	return out
}
