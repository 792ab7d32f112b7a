package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubEngine struct {
	info Info
}

func (s *stubEngine) Generate(ctx context.Context, req Request) (audio.Waveform, error) {
	return audio.Waveform{Samples: []float64{0}, SampleRate: 16000}, nil
}

func (s *stubEngine) Info() Info { return s.info }

func TestLazyLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy(Info{ModelID: "pending", Device: "cpu"}, func() (Engine, error) {
		calls.Add(1)
		return &stubEngine{info: Info{ModelID: "real", Device: "cpu"}}, nil
	}, newLogger())

	if lazy.Loaded() {
		t.Fatal("engine must not be loaded before first use")
	}
	if lazy.Info().ModelID != "pending" {
		t.Fatalf("expected placeholder info before load, got %s", lazy.Info().ModelID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := lazy.Generate(context.Background(), Request{Text: "hi"}); err != nil {
				t.Errorf("generate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected factory to run once, ran %d times", got)
	}
	if !lazy.Loaded() {
		t.Fatal("engine should report loaded")
	}
	if lazy.Info().ModelID != "real" {
		t.Fatalf("expected real info after load, got %s", lazy.Info().ModelID)
	}
}

func TestLazyLoadFailureSticks(t *testing.T) {
	lazy := NewLazy(Info{}, func() (Engine, error) {
		return nil, errors.New("no accelerator")
	}, newLogger())

	if _, err := lazy.Generate(context.Background(), Request{Text: "hi"}); err == nil {
		t.Fatal("expected load error")
	}
	if lazy.Loaded() {
		t.Fatal("failed load must not report loaded")
	}
}

func TestMockGenerate(t *testing.T) {
	cfg := config.Default().Engine
	eng := NewMock(cfg)
	w, err := eng.Generate(context.Background(), Request{Text: "Hello world", Speaker: "Ryan", Language: "English"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if w.Empty() {
		t.Fatal("expected samples")
	}
	if w.SampleRate != cfg.SampleRate {
		t.Fatalf("expected sample rate %d, got %d", cfg.SampleRate, w.SampleRate)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.EngineConfig{Mode: "tpu"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
