package synth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/engine"
	"github.com/chimeworks/chime/internal/voice"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Recorder consumes finished synthesis records. Implementations must not
// block the pipeline.
type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// MultiRecorder fans records out to several consumers.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, rec Record) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, rec)
		}
	}
}

// Gateway funnels every synthesis call through a bounded-permit limiter,
// converts engine failures into per-call results, and applies speed/pitch
// post-processing. It is safe for concurrent use.
type Gateway struct {
	cfg      config.SynthesisConfig
	engine   engine.Engine
	sema     chan struct{}
	log      *slog.Logger
	recorder Recorder
	clock    func() time.Time

	requests metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewGateway builds the pipeline core around an engine. recorder may be nil.
func NewGateway(cfg config.SynthesisConfig, eng engine.Engine, recorder Recorder, log *slog.Logger) *Gateway {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	meter := otel.Meter("chime/synth")
	requests, _ := meter.Int64Counter("chime.synthesis.requests")
	failures, _ := meter.Int64Counter("chime.synthesis.failures")
	duration, _ := meter.Float64Histogram("chime.synthesis.duration_seconds")
	return &Gateway{
		cfg:      cfg,
		engine:   eng,
		sema:     make(chan struct{}, cfg.MaxConcurrency),
		log:      log.With(slog.String("component", "synth")),
		recorder: recorder,
		clock:    time.Now,
		requests: requests,
		failures: failures,
		duration: duration,
	}
}

// Validate applies static request checks. It never touches the engine.
func (g *Gateway) Validate(req Request) error {
	if req.Text == "" {
		return &ValidationError{Field: "text", Message: "must not be empty"}
	}
	if len(req.Text) > g.cfg.MaxTextLength {
		return &ValidationError{Field: "text", Message: fmt.Sprintf("exceeds maximum length (%d)", g.cfg.MaxTextLength)}
	}
	if !voice.ValidSpeaker(req.Speaker) {
		return &ValidationError{Field: "speaker", Message: fmt.Sprintf("invalid speaker %q", req.Speaker)}
	}
	if !voice.ValidLanguage(req.Language) {
		return &ValidationError{Field: "language", Message: fmt.Sprintf("invalid language %q", req.Language)}
	}
	if req.Speed < g.cfg.MinSpeed || req.Speed > g.cfg.MaxSpeed {
		return &ValidationError{Field: "speed", Message: fmt.Sprintf("must be between %g and %g", g.cfg.MinSpeed, g.cfg.MaxSpeed)}
	}
	if req.Pitch < g.cfg.MinPitch || req.Pitch > g.cfg.MaxPitch {
		return &ValidationError{Field: "pitch", Message: fmt.Sprintf("must be between %g and %g", g.cfg.MinPitch, g.cfg.MaxPitch)}
	}
	return nil
}

// Synthesize runs one request through the limiter and the engine. Every
// failure, including a panicking engine, comes back as a Result; nothing
// propagates past this boundary.
func (g *Gateway) Synthesize(ctx context.Context, req Request) Result {
	select {
	case g.sema <- struct{}{}:
	case <-ctx.Done():
		return g.finish(ctx, req, Result{Err: ctx.Err()}, 0)
	}
	defer func() { <-g.sema }()

	if g.cfg.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.cfg.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	start := g.clock()
	w, err := g.generate(ctx, req)
	took := g.clock().Sub(start)
	if err != nil {
		return g.finish(ctx, req, Result{Err: err}, took)
	}

	if req.Speed != 1.0 || req.Pitch != 1.0 {
		w = audio.Resample(w, req.Speed, req.Pitch)
	}
	return g.finish(ctx, req, Result{Waveform: w}, took)
}

func (g *Gateway) generate(ctx context.Context, req Request) (w audio.Waveform, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return g.engine.Generate(ctx, engine.Request{
		Text:        req.Text,
		Language:    req.Language,
		Speaker:     req.Speaker,
		Instruction: req.Instruction,
	})
}

func (g *Gateway) finish(ctx context.Context, req Request, res Result, took time.Duration) Result {
	g.requests.Add(ctx, 1)
	g.duration.Record(ctx, took.Seconds())

	rec := Record{
		ID:        uuid.NewString(),
		Speaker:   req.Speaker,
		Language:  req.Language,
		TextChars: len(req.Text),
		Took:      took,
		CreatedAt: g.clock().UTC(),
	}
	if res.Err != nil {
		g.failures.Add(ctx, 1)
		rec.Status = StatusError
		rec.Error = res.Err.Error()
		g.log.Warn("synthesis failed",
			slog.String("speaker", req.Speaker),
			slog.String("error", res.Err.Error()))
	} else {
		rec.Status = StatusOK
		rec.AudioSeconds = res.Waveform.Duration()
		g.log.Debug("synthesis complete",
			slog.String("speaker", req.Speaker),
			slog.Duration("took", took))
	}
	if g.recorder != nil {
		g.recorder.Record(ctx, rec)
	}
	return res
}
