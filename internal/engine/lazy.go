package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chimeworks/chime/internal/audio"
)

// Lazy defers backend construction until the first synthesis call and
// guarantees it happens exactly once, however many callers race on it.
// Health endpoints read Loaded without forcing a load.
type Lazy struct {
	factory func() (Engine, error)
	info    Info
	log     *slog.Logger

	once   sync.Once
	engine Engine
	err    error
	loaded atomic.Bool
}

// NewLazy wraps a backend factory. info is reported until the real backend
// is up.
func NewLazy(info Info, factory func() (Engine, error), log *slog.Logger) *Lazy {
	return &Lazy{
		factory: factory,
		info:    info,
		log:     log.With(slog.String("component", "engine")),
	}
}

func (l *Lazy) load() (Engine, error) {
	l.once.Do(func() {
		start := time.Now()
		l.engine, l.err = l.factory()
		if l.err != nil {
			l.log.Error("engine load failed", slog.String("error", l.err.Error()))
			return
		}
		l.loaded.Store(true)
		l.log.Info("engine loaded",
			slog.String("model", l.engine.Info().ModelID),
			slog.Duration("took", time.Since(start)))
	})
	return l.engine, l.err
}

// Warm forces the one-shot load ahead of the first request.
func (l *Lazy) Warm() error {
	_, err := l.load()
	return err
}

// Loaded reports whether the backend finished loading successfully.
func (l *Lazy) Loaded() bool {
	return l.loaded.Load()
}

func (l *Lazy) Generate(ctx context.Context, req Request) (audio.Waveform, error) {
	eng, err := l.load()
	if err != nil {
		return audio.Waveform{}, err
	}
	return eng.Generate(ctx, req)
}

func (l *Lazy) Info() Info {
	if l.loaded.Load() {
		return l.engine.Info()
	}
	return l.info
}
