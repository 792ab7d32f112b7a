package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/synth"
	"github.com/chimeworks/chime/internal/voice"
)

type ttsRequest struct {
	Text     string  `json:"text"`
	Speaker  string  `json:"speaker"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed"`
	Pitch    float64 `json:"pitch"`
	Instruct string  `json:"instruct"`
}

func defaultTTSRequest() ttsRequest {
	return ttsRequest{
		Speaker:  voice.DefaultSpeaker,
		Language: voice.DefaultLanguage,
		Speed:    1.0,
		Pitch:    1.0,
	}
}

func (req ttsRequest) toSynth() synth.Request {
	return synth.Request{
		Text:        req.Text,
		Speaker:     req.Speaker,
		Language:    req.Language,
		Speed:       req.Speed,
		Pitch:       req.Pitch,
		Instruction: req.Instruct,
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
	Pitch          float64 `json:"pitch"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "Chime TTS API",
		"version": s.version,
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": s.engine.Loaded(),
		"device":       s.engine.Info().Device,
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{
				"id":       s.cfg.Engine.ModelID,
				"object":   "model",
				"created":  1700000000,
				"owned_by": "chime",
			},
		},
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"voices": voice.List()})
}

func (s *Server) handleSpeakers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"speakers": voice.Speakers})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"languages": voice.Languages})
}

type historyRecord struct {
	ID           string    `json:"id"`
	Speaker      string    `json:"speaker"`
	Language     string    `json:"language"`
	TextChars    int       `json:"text_chars"`
	TookMS       int64     `json:"took_ms"`
	AudioSeconds float64   `json:"audio_seconds,omitempty"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	out := make([]historyRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, historyRecord{
			ID:           rec.ID,
			Speaker:      rec.Speaker,
			Language:     rec.Language,
			TextChars:    rec.TextChars,
			TookMS:       rec.Took.Milliseconds(),
			AudioSeconds: rec.AudioSeconds,
			Status:       rec.Status,
			Error:        rec.Error,
			CreatedAt:    rec.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	req := speechRequest{Voice: "alloy", ResponseFormat: "wav", Speed: 1.0, Pitch: 1.0}
	if !s.decode(w, r, &req) {
		return
	}

	sreq := synth.Request{
		Text:     req.Input,
		Speaker:  voice.MapVoice(req.Voice),
		Language: voice.DefaultLanguage,
		Speed:    req.Speed,
		Pitch:    req.Pitch,
	}
	if err := s.gateway.Validate(sreq); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	res := s.gateway.Synthesize(r.Context(), sreq)
	if !res.OK() {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate speech: %v", res.Err))
		return
	}
	s.writeWAV(w, res.Waveform, "speech.wav")
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	req := defaultTTSRequest()
	if !s.decode(w, r, &req) {
		return
	}

	sreq := req.toSynth()
	if err := s.gateway.Validate(sreq); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	res := s.gateway.Synthesize(r.Context(), sreq)
	if !res.OK() {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate speech: %v", res.Err))
		return
	}
	s.writeWAV(w, res.Waveform, "tts.wav")
}

func (s *Server) writeWAV(w http.ResponseWriter, wave audio.Waveform, filename string) {
	data, err := audio.EncodeWAV(wave)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to encode audio")
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warn("failed to write audio response", slog.String("error", err.Error()))
	}
}

// handleTTSStream sends the WAV header as its own chunk, then the payload in
// fixed-size chunks, flushing after each so slow clients start playback
// before the transfer completes. The waveform is fully materialized before
// the first byte goes out; chunking is a transport concern only.
func (s *Server) handleTTSStream(w http.ResponseWriter, r *http.Request) {
	req := defaultTTSRequest()
	if !s.decode(w, r, &req) {
		return
	}

	sreq := req.toSynth()
	if err := s.gateway.Validate(sreq); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	res := s.gateway.Synthesize(r.Context(), sreq)
	if !res.OK() {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate speech: %v", res.Err))
		return
	}
	data, err := audio.EncodeWAV(res.Waveform)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to encode audio")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	writeChunk := func(chunk []byte) bool {
		if _, err := w.Write(chunk); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	header := data
	if len(header) > audio.HeaderSize {
		header = data[:audio.HeaderSize]
	}
	if !writeChunk(header) {
		return
	}
	for off := audio.HeaderSize; off < len(data); off += audio.StreamChunkSize {
		end := off + audio.StreamChunkSize
		if end > len(data) {
			end = len(data)
		}
		if !writeChunk(data[off:end]) {
			return
		}
	}
}

type batchRequest struct {
	Requests []ttsRequest `json:"requests"`
}

// decodeBatch applies per-item defaults: each entry starts from the default
// request and only the fields the caller sent are overwritten.
func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request, target *batchRequest) bool {
	var raw struct {
		Requests []json.RawMessage `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	target.Requests = make([]ttsRequest, len(raw.Requests))
	for i, data := range raw.Requests {
		item := defaultTTSRequest()
		if err := json.Unmarshal(data, &item); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("request %d: invalid body", i+1))
			return false
		}
		target.Requests[i] = item
	}
	return true
}

type batchItemResult struct {
	Success    bool   `json:"success"`
	Audio      string `json:"audio,omitempty"`
	Error      string `json:"error,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type batchResponse struct {
	Results        []batchItemResult `json:"results"`
	CompletedCount int               `json:"completed_count"`
	FailedCount    int               `json:"failed_count"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// Item defaults must apply per entry, so decode into raw items first.
	if !s.decodeBatch(w, r, &req) {
		return
	}

	reqs := make([]synth.Request, len(req.Requests))
	for i, item := range req.Requests {
		reqs[i] = item.toSynth()
	}

	batch, err := s.gateway.RunBatch(r.Context(), reqs)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	resp := batchResponse{Results: make([]batchItemResult, 0, len(batch.Results))}
	for _, res := range batch.Results {
		item := batchItemResult{}
		if res.OK() {
			data, encErr := audio.EncodeWAV(res.Waveform)
			if encErr != nil {
				item.Error = "failed to encode audio"
			} else {
				item.Success = true
				item.Audio = base64.StdEncoding.EncodeToString(data)
				item.SampleRate = res.Waveform.SampleRate
			}
		} else {
			item.Error = res.Err.Error()
		}
		if item.Success {
			resp.CompletedCount++
		} else {
			resp.FailedCount++
		}
		resp.Results = append(resp.Results, item)
	}
	s.writeJSON(w, http.StatusOK, resp)
}
