package engine

import (
	"context"
	"math"
	"time"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/voice"
)

// mockEngine synthesizes a sine tone whose length tracks the input text.
// Useful for development and for exercising the pipeline without a model.
type mockEngine struct {
	cfg config.EngineConfig
}

func NewMock(cfg config.EngineConfig) Engine {
	return &mockEngine{cfg: cfg}
}

func (m *mockEngine) Generate(ctx context.Context, req Request) (audio.Waveform, error) {
	select {
	case <-ctx.Done():
		return audio.Waveform{}, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}

	seconds := 0.06 * float64(len(req.Text))
	if seconds < 0.25 {
		seconds = 0.25
	}
	if seconds > 10 {
		seconds = 10
	}

	rate := m.cfg.SampleRate
	freq := toneFor(req.Speaker)
	samples := make([]float64, int(seconds*float64(rate)))
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return audio.Waveform{Samples: samples, SampleRate: rate}, nil
}

func (m *mockEngine) Info() Info {
	return Info{ModelID: m.cfg.ModelID, Device: m.cfg.Device}
}

// toneFor gives each speaker a distinct fundamental so mock output is
// distinguishable by ear.
func toneFor(speaker string) float64 {
	for i, name := range voice.Speakers {
		if name == speaker {
			return 180 + 40*float64(i)
		}
	}
	return 220
}
