package synth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/engine"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubEngine lets tests script per-call behavior and observe concurrency.
type stubEngine struct {
	generate func(ctx context.Context, req engine.Request) (audio.Waveform, error)

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *stubEngine) Generate(ctx context.Context, req engine.Request) (audio.Waveform, error) {
	s.calls.Add(1)
	cur := s.inFlight.Add(1)
	for {
		max := s.maxInFlight.Load()
		if cur <= max || s.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer s.inFlight.Add(-1)
	if s.generate != nil {
		return s.generate(ctx, req)
	}
	return sine(1, 16000), nil
}

func (s *stubEngine) Info() engine.Info {
	return engine.Info{ModelID: "stub", Device: "cpu"}
}

func sine(seconds float64, rate int) audio.Waveform {
	samples := make([]float64, int(seconds*float64(rate)))
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / float64(rate))
	}
	return audio.Waveform{Samples: samples, SampleRate: rate}
}

func testConfig() config.SynthesisConfig {
	return config.Default().Synthesis
}

func validRequest(text string) Request {
	return Request{Text: text, Speaker: "Ryan", Language: "English", Speed: 1.0, Pitch: 1.0}
}

func TestSynthesizeDefaultFactorsSkipResampling(t *testing.T) {
	want := sine(1, 16000)
	eng := &stubEngine{generate: func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		return sine(1, 16000), nil
	}}
	g := NewGateway(testConfig(), eng, nil, newLogger())

	res := g.Synthesize(context.Background(), validRequest("Hello"))
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if len(res.Waveform.Samples) != len(want.Samples) {
		t.Fatalf("expected %d samples, got %d", len(want.Samples), len(res.Waveform.Samples))
	}
	for i := range want.Samples {
		if res.Waveform.Samples[i] != want.Samples[i] {
			t.Fatal("expected untouched waveform at default factors")
		}
	}
}

func TestSynthesizeSpeedPreservesDuration(t *testing.T) {
	eng := &stubEngine{generate: func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		return sine(1, 16000), nil
	}}
	g := NewGateway(testConfig(), eng, nil, newLogger())

	req := validRequest("Hello")
	req.Speed = 2.0
	res := g.Synthesize(context.Background(), req)
	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	identity := sine(1, 16000)
	if len(res.Waveform.Samples) != len(identity.Samples) {
		t.Fatalf("duration not preserved: %d vs %d", len(res.Waveform.Samples), len(identity.Samples))
	}
	same := true
	for i := range identity.Samples {
		if res.Waveform.Samples[i] != identity.Samples[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected resampled waveform to differ from identity output")
	}
}

func TestSynthesizeConvertsEngineError(t *testing.T) {
	eng := &stubEngine{generate: func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		return audio.Waveform{}, errors.New("out of memory")
	}}
	g := NewGateway(testConfig(), eng, nil, newLogger())

	res := g.Synthesize(context.Background(), validRequest("Hello"))
	if res.OK() {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(res.Err.Error(), "out of memory") {
		t.Fatalf("expected engine message passed through, got %v", res.Err)
	}
}

func TestSynthesizeRecoversEnginePanic(t *testing.T) {
	eng := &stubEngine{generate: func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		panic("cuda assertion")
	}}
	g := NewGateway(testConfig(), eng, nil, newLogger())

	res := g.Synthesize(context.Background(), validRequest("Hello"))
	if res.OK() {
		t.Fatal("expected failure result from panicking engine")
	}
	if !strings.Contains(res.Err.Error(), "cuda assertion") {
		t.Fatalf("expected panic detail in error, got %v", res.Err)
	}
}

func TestSynthesizeTimeout(t *testing.T) {
	eng := &stubEngine{generate: func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		select {
		case <-ctx.Done():
			return audio.Waveform{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return sine(1, 16000), nil
		}
	}}
	cfg := testConfig()
	cfg.TimeoutMS = 20
	g := NewGateway(cfg, eng, nil, newLogger())

	res := g.Synthesize(context.Background(), validRequest("Hello"))
	if res.OK() {
		t.Fatal("expected timeout failure")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Err)
	}
}

func TestLimiterBoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	eng := &stubEngine{generate: func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		<-release
		return sine(0.1, 16000), nil
	}}
	cfg := testConfig()
	cfg.MaxConcurrency = 2
	g := NewGateway(cfg, eng, nil, newLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Synthesize(context.Background(), validRequest("Hello"))
		}()
	}

	// Let the first two acquire their slots, then drain everything.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := eng.maxInFlight.Load(); got > 2 {
		t.Fatalf("limiter allowed %d concurrent engine calls, want <= 2", got)
	}
	if got := eng.calls.Load(); got != 5 {
		t.Fatalf("expected 5 engine calls, got %d", got)
	}
}

func TestValidate(t *testing.T) {
	g := NewGateway(testConfig(), &stubEngine{}, nil, newLogger())

	cases := []struct {
		name  string
		edit  func(*Request)
		field string
	}{
		{"empty text", func(r *Request) { r.Text = "" }, "text"},
		{"long text", func(r *Request) { r.Text = strings.Repeat("a", 5001) }, "text"},
		{"bad speaker", func(r *Request) { r.Speaker = "Nobody" }, "speaker"},
		{"bad language", func(r *Request) { r.Language = "Latin" }, "language"},
		{"slow speed", func(r *Request) { r.Speed = 0.1 }, "speed"},
		{"fast speed", func(r *Request) { r.Speed = 5.0 }, "speed"},
		{"low pitch", func(r *Request) { r.Pitch = 0.4 }, "pitch"},
		{"high pitch", func(r *Request) { r.Pitch = 2.5 }, "pitch"},
	}
	for _, tc := range cases {
		req := validRequest("Hello")
		tc.edit(&req)
		err := g.Validate(req)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Fatalf("%s: expected %s field error, got %v", tc.name, tc.field, err)
		}
	}

	if err := g.Validate(validRequest("Hello")); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

type captureRecorder struct {
	mu   sync.Mutex
	recs []Record
}

func (c *captureRecorder) Record(ctx context.Context, rec Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func TestSynthesizeEmitsRecords(t *testing.T) {
	rec := &captureRecorder{}
	eng := &stubEngine{}
	g := NewGateway(testConfig(), eng, rec, newLogger())

	g.Synthesize(context.Background(), validRequest("Hello"))
	eng.generate = func(ctx context.Context, req engine.Request) (audio.Waveform, error) {
		return audio.Waveform{}, errors.New("boom")
	}
	g.Synthesize(context.Background(), validRequest("Hello"))

	if len(rec.recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(rec.recs))
	}
	if rec.recs[0].Status != StatusOK || rec.recs[0].AudioSeconds <= 0 {
		t.Fatalf("unexpected success record: %+v", rec.recs[0])
	}
	if rec.recs[1].Status != StatusError || rec.recs[1].Error == "" {
		t.Fatalf("unexpected failure record: %+v", rec.recs[1])
	}
	if rec.recs[0].ID == "" || rec.recs[0].ID == rec.recs[1].ID {
		t.Fatal("records must carry distinct ids")
	}
}
