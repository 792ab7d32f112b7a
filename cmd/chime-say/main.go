// chime-say synthesizes a single utterance from the command line, using the
// same pipeline the server runs, and writes the result to a WAV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chimeworks/chime/internal/audio"
	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/engine"
	"github.com/chimeworks/chime/internal/synth"
	"github.com/chimeworks/chime/internal/voice"
)

func main() {
	var (
		text         string
		output       string
		speaker      string
		language     string
		instruct     string
		speed        float64
		pitch        float64
		configPath   string
		listSpeakers bool
	)

	flag.StringVar(&text, "text", "", "Text to synthesize")
	flag.StringVar(&output, "output", "output.wav", "Output audio file")
	flag.StringVar(&speaker, "speaker", voice.DefaultSpeaker, "Speaker name")
	flag.StringVar(&language, "language", voice.DefaultLanguage, "Language")
	flag.StringVar(&instruct, "instruct", "", "Style instruction")
	flag.Float64Var(&speed, "speed", 1.0, "Speech speed")
	flag.Float64Var(&pitch, "pitch", 1.0, "Voice pitch")
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&listSpeakers, "list-speakers", false, "List available speakers and languages")
	flag.Parse()

	if listSpeakers {
		fmt.Println("Available speakers:")
		for _, s := range voice.Speakers {
			fmt.Printf("  - %s\n", s)
		}
		fmt.Println("\nAvailable languages:")
		for _, l := range voice.Languages {
			fmt.Printf("  - %s\n", l)
		}
		return
	}

	if text == "" {
		fmt.Fprintln(os.Stderr, "-text is required")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	engCfg := cfg.Engine
	lazy := engine.NewLazy(
		engine.Info{ModelID: engCfg.ModelID, Device: engCfg.Device},
		func() (engine.Engine, error) { return engine.New(engCfg) },
		logger,
	)
	gateway := synth.NewGateway(cfg.Synthesis, lazy, nil, logger)

	req := synth.Request{
		Text:        text,
		Speaker:     speaker,
		Language:    language,
		Speed:       speed,
		Pitch:       pitch,
		Instruction: instruct,
	}
	if err := gateway.Validate(req); err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Generating speech for: %q\n", text)
	fmt.Printf("Speaker: %s, Language: %s\n", speaker, language)

	start := time.Now()
	res := gateway.Synthesize(context.Background(), req)
	if !res.OK() {
		fmt.Fprintf(os.Stderr, "synthesis failed: %v\n", res.Err)
		os.Exit(1)
	}
	fmt.Printf("Generated in %.2fs (%.2f seconds of audio)\n",
		time.Since(start).Seconds(), res.Waveform.Duration())

	data, err := audio.EncodeWAV(res.Waveform)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode audio: %v\n", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(output); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create output directory: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Saved to: %s\n", output)
}
