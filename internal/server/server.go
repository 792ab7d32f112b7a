// Package server exposes the synthesis pipeline over HTTP: an
// OpenAI-compatible speech endpoint plus the native /tts family.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/engine"
	"github.com/chimeworks/chime/internal/history"
	"github.com/chimeworks/chime/internal/synth"
)

// Server holds the handler dependencies. Construct with New, register
// routes with Register.
type Server struct {
	cfg     config.Config
	version string
	gateway *synth.Gateway
	engine  *engine.Lazy
	history *history.Store
	log     *slog.Logger
}

func New(cfg config.Config, version string, gateway *synth.Gateway, eng *engine.Lazy, hist *history.Store, log *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		version: version,
		gateway: gateway,
		engine:  eng,
		history: hist,
		log:     log.With(slog.String("component", "http")),
	}
}

// Register mounts all API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/v1/voices", s.handleVoices)
	mux.HandleFunc("/v1/speakers", s.handleSpeakers)
	mux.HandleFunc("/v1/languages", s.handleLanguages)
	mux.HandleFunc("/v1/history", s.handleHistory)
	mux.HandleFunc("/v1/audio/speech", s.handleSpeech)
	mux.HandleFunc("/tts", s.handleTTS)
	mux.HandleFunc("/tts/stream", s.handleTTSStream)
	mux.HandleFunc("/tts/batch", s.handleBatch)
}

// WithCORS wraps a handler with permissive CORS, mirroring the upstream API.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps pipeline errors onto HTTP statuses: validation and batch
// shape problems are client errors, everything else is a server error.
func statusFor(err error) int {
	var verr *synth.ValidationError
	if errors.As(err, &verr) ||
		errors.Is(err, synth.ErrEmptyBatch) ||
		errors.Is(err, synth.ErrBatchTooLarge) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
