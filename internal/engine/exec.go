package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
	"github.com/mattn/go-shellwords"
)

// execEngine shells out to a synthesis process speaking JSON over stdio:
// one request object on stdin, one response object on stdout. PCM travels
// base64-encoded as 16-bit little-endian mono.
type execEngine struct {
	cmd []string
	cfg config.EngineConfig
	mu  sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	Speaker    string `json:"speaker"`
	Instruct   string `json:"instruct,omitempty"`
	SampleRate int    `json:"sample_rate"`
}

type execResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error,omitempty"`
}

func NewExec(cfg config.EngineConfig) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command empty")
	}
	return &execEngine{cmd: args, cfg: cfg}, nil
}

func (e *execEngine) Generate(ctx context.Context, req Request) (audio.Waveform, error) {
	// One subprocess at a time; the backend owns a single accelerator.
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		Text:       req.Text,
		Language:   req.Language,
		Speaker:    req.Speaker,
		Instruct:   req.Instruction,
		SampleRate: e.cfg.SampleRate,
	})
	if err != nil {
		return audio.Waveform{}, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return audio.Waveform{}, fmt.Errorf("engine command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return audio.Waveform{}, fmt.Errorf("decode engine response: %w", err)
	}
	if resp.Error != "" {
		return audio.Waveform{}, fmt.Errorf("engine error: %s", resp.Error)
	}

	pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("decode engine pcm: %w", err)
	}
	rate := resp.SampleRate
	if rate <= 0 {
		rate = e.cfg.SampleRate
	}
	return decodePCM16(pcm, rate)
}

func (e *execEngine) Info() Info {
	return Info{ModelID: e.cfg.ModelID, Device: e.cfg.Device}
}

func decodePCM16(pcm []byte, sampleRate int) (audio.Waveform, error) {
	if len(pcm)%2 != 0 {
		return audio.Waveform{}, fmt.Errorf("pcm payload not aligned")
	}
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return audio.Waveform{Samples: samples, SampleRate: sampleRate}, nil
}
