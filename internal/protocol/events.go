// Package protocol defines the bus subjects and payloads chime publishes
// for downstream consumers.
package protocol

import "time"

// SynthesisEvent announces one finished synthesis call.
type SynthesisEvent struct {
	RequestID    string    `json:"request_id"`
	Speaker      string    `json:"speaker"`
	Language     string    `json:"language"`
	TextChars    int       `json:"text_chars"`
	TookMS       int64     `json:"took_ms"`
	AudioSeconds float64   `json:"audio_seconds,omitempty"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

const (
	SubjectSynthesisCompleted = "tts.synthesis.completed"
	SubjectSynthesisFailed    = "tts.synthesis.failed"
)
