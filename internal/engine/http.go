package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
)

// httpEngine forwards synthesis to a model-serving backend over HTTP.
type httpEngine struct {
	endpoint string
	cfg      config.EngineConfig
	client   *http.Client
}

type httpRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	Speaker    string `json:"speaker"`
	Instruct   string `json:"instruct,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

type httpResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error,omitempty"`
}

func NewHTTP(cfg config.EngineConfig) Engine {
	return &httpEngine{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		cfg:      cfg,
		// No client timeout: the caller's context carries the deadline.
		client: &http.Client{},
	}
}

func (h *httpEngine) Generate(ctx context.Context, req Request) (audio.Waveform, error) {
	body, err := json.Marshal(httpRequest{
		Text:       req.Text,
		Language:   req.Language,
		Speaker:    req.Speaker,
		Instruct:   req.Instruction,
		SampleRate: h.cfg.SampleRate,
	})
	if err != nil {
		return audio.Waveform{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return audio.Waveform{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return audio.Waveform{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return audio.Waveform{}, fmt.Errorf("engine backend returned status %s", resp.Status)
	}

	var payload httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return audio.Waveform{}, fmt.Errorf("decode engine response: %w", err)
	}
	if payload.Error != "" {
		return audio.Waveform{}, fmt.Errorf("engine error: %s", payload.Error)
	}

	pcm, err := base64.StdEncoding.DecodeString(payload.PCMBase64)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("decode engine pcm: %w", err)
	}
	rate := payload.SampleRate
	if rate <= 0 {
		rate = h.cfg.SampleRate
	}
	return decodePCM16(pcm, rate)
}

func (h *httpEngine) Info() Info {
	return Info{ModelID: h.cfg.ModelID, Device: h.cfg.Device}
}
