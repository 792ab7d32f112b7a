// Package audio provides the waveform type shared across the synthesis
// pipeline, the speed/pitch resampler, and WAV encoding.
package audio

// Waveform is decoded PCM audio: mono float samples in [-1, 1] plus the
// sample rate they were produced at.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Empty reports whether the waveform carries no samples.
func (w Waveform) Empty() bool {
	return len(w.Samples) == 0
}
