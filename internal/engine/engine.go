// Package engine abstracts the model-serving boundary that performs actual
// speech synthesis. The rest of the service treats it as a capability that
// turns text into a waveform; the neural model lives behind it.
package engine

import (
	"context"
	"fmt"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
)

// Request carries one synthesis unit to the backend.
type Request struct {
	Text        string
	Language    string
	Speaker     string
	Instruction string
}

// Info describes the loaded backend for health reporting.
type Info struct {
	ModelID string
	Device  string
}

// Engine is a pluggable synthesis backend.
type Engine interface {
	Generate(ctx context.Context, req Request) (audio.Waveform, error)
	Info() Info
}

// New builds the backend selected by config.
func New(cfg config.EngineConfig) (Engine, error) {
	switch cfg.Mode {
	case "mock":
		return NewMock(cfg), nil
	case "exec":
		return NewExec(cfg)
	case "http":
		return NewHTTP(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
}
