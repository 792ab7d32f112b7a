// Package synth is the synthesis pipeline core: it gates access to the
// engine behind a concurrency limit, applies speed/pitch post-processing,
// and fans batches out with per-item failure isolation.
package synth

import (
	"errors"
	"time"

	"github.com/chimeworks/chime/internal/audio"
)

// Request is one validated synthesis unit. Immutable once constructed.
type Request struct {
	Text        string
	Speaker     string
	Language    string
	Speed       float64
	Pitch       float64
	Instruction string
}

// Result is the tagged outcome of one synthesis call: either a waveform or
// an error, never both.
type Result struct {
	Waveform audio.Waveform
	Err      error
}

// OK reports whether the result carries a waveform.
func (r Result) OK() bool { return r.Err == nil }

// BatchResult aggregates per-item results in input order.
type BatchResult struct {
	Results   []Result
	Completed int
	Failed    int
}

// Batch rejection sentinels. Both surface as client errors.
var (
	ErrEmptyBatch    = errors.New("at least one request is required")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Record captures one finished synthesis call for history and event
// consumers.
type Record struct {
	ID           string
	Speaker      string
	Language     string
	TextChars    int
	Took         time.Duration
	AudioSeconds float64
	Status       string
	Error        string
	CreatedAt    time.Time
}

// RecordStatus values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
