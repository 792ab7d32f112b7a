package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	w := sineWave(0.1, 440, 16000)
	data, err := EncodeWAV(w)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) < HeaderSize {
		t.Fatalf("wav output too short: %d bytes", len(data))
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("missing RIFF magic")
	}
	if !bytes.Equal(data[8:12], []byte("WAVE")) {
		t.Fatal("missing WAVE marker")
	}
	// 16-bit mono: two bytes per sample after the header.
	want := HeaderSize + 2*len(w.Samples)
	if len(data) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(data))
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	data, err := EncodeWAV(Waveform{Samples: nil, SampleRate: 16000})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != HeaderSize {
		t.Fatalf("expected bare header, got %d bytes", len(data))
	}
}

func TestEncodeWAVRejectsZeroRate(t *testing.T) {
	if _, err := EncodeWAV(Waveform{Samples: []float64{0}}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestClampSample(t *testing.T) {
	if clampSample(2.0) != 32767 {
		t.Fatal("expected positive clamp")
	}
	if clampSample(-2.0) != -32768 {
		t.Fatal("expected negative clamp")
	}
	if clampSample(0) != 0 {
		t.Fatal("expected zero to pass through")
	}
}
