package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type EngineConfig struct {
	Mode          string `yaml:"mode"` // mock, exec, http
	Command       string `yaml:"command"`
	Endpoint      string `yaml:"endpoint"`
	ModelID       string `yaml:"model_id"`
	Device        string `yaml:"device"`
	SampleRate    int    `yaml:"sample_rate"`
	LoadTimeoutMS int    `yaml:"load_timeout_ms"`
}

type SynthesisConfig struct {
	MaxConcurrency int     `yaml:"max_concurrency"`
	MaxBatch       int     `yaml:"max_batch"`
	MaxTextLength  int     `yaml:"max_text_length"`
	TimeoutMS      int     `yaml:"timeout_ms"`
	MinSpeed       float64 `yaml:"min_speed"`
	MaxSpeed       float64 `yaml:"max_speed"`
	MinPitch       float64 `yaml:"min_pitch"`
	MaxPitch       float64 `yaml:"max_pitch"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRecords    int    `yaml:"max_records"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Engine      EngineConfig    `yaml:"engine"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
	History     HistoryConfig   `yaml:"history"`
	Bus         BusConfig       `yaml:"bus"`
}

func Default() Config {
	return Config{
		ServiceName: "chime-tts",
		Environment: "development",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Engine: EngineConfig{
			Mode:          "mock",
			ModelID:       "chime-tts",
			Device:        "cpu",
			SampleRate:    24000,
			LoadTimeoutMS: 120000,
		},
		Synthesis: SynthesisConfig{
			MaxConcurrency: 2,
			MaxBatch:       10,
			MaxTextLength:  5000,
			TimeoutMS:      120000,
			MinSpeed:       0.25,
			MaxSpeed:       4.0,
			MinPitch:       0.5,
			MaxPitch:       2.0,
		},
		History: HistoryConfig{
			Path:          "./data/chime-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxRecords:    10000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "CHIME_SERVICE_NAME")
	overrideString(&cfg.Environment, "CHIME_ENVIRONMENT")
	overrideString(&cfg.Server.Bind, "CHIME_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "CHIME_SERVER_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "CHIME_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "CHIME_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "CHIME_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Engine.Mode, "CHIME_ENGINE_MODE")
	overrideString(&cfg.Engine.Command, "CHIME_ENGINE_COMMAND")
	overrideString(&cfg.Engine.Endpoint, "CHIME_ENGINE_ENDPOINT")
	overrideString(&cfg.Engine.ModelID, "CHIME_ENGINE_MODEL_ID")
	overrideString(&cfg.Engine.Device, "CHIME_ENGINE_DEVICE")
	overrideInt(&cfg.Engine.SampleRate, "CHIME_ENGINE_SAMPLE_RATE")
	overrideInt(&cfg.Engine.LoadTimeoutMS, "CHIME_ENGINE_LOAD_TIMEOUT_MS")
	overrideInt(&cfg.Synthesis.MaxConcurrency, "CHIME_SYNTHESIS_MAX_CONCURRENCY")
	overrideInt(&cfg.Synthesis.MaxBatch, "CHIME_SYNTHESIS_MAX_BATCH")
	overrideInt(&cfg.Synthesis.MaxTextLength, "CHIME_SYNTHESIS_MAX_TEXT_LENGTH")
	overrideInt(&cfg.Synthesis.TimeoutMS, "CHIME_SYNTHESIS_TIMEOUT_MS")
	overrideString(&cfg.History.Path, "CHIME_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "CHIME_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "CHIME_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxRecords, "CHIME_HISTORY_MAX_RECORDS")
	overrideBool(&cfg.History.VacuumOnStart, "CHIME_HISTORY_VACUUM_ON_START")
	overrideBool(&cfg.Bus.Enabled, "CHIME_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "CHIME_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "CHIME_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "CHIME_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "CHIME_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "CHIME_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "CHIME_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "CHIME_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "CHIME_BUS_CONNECT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	switch cfg.Engine.Mode {
	case "mock", "exec", "http":
	default:
		return errors.New("engine.mode must be one of mock|exec|http")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.Mode == "http" && cfg.Engine.Endpoint == "" {
		return errors.New("engine.endpoint must be set when mode=http")
	}
	if cfg.Engine.SampleRate <= 0 {
		return errors.New("engine.sample_rate must be positive")
	}
	if cfg.Synthesis.MaxConcurrency <= 0 {
		return errors.New("synthesis.max_concurrency must be >= 1")
	}
	if cfg.Synthesis.MaxBatch <= 0 {
		return errors.New("synthesis.max_batch must be >= 1")
	}
	if cfg.Synthesis.MaxTextLength <= 0 {
		return errors.New("synthesis.max_text_length must be >= 1")
	}
	if cfg.Synthesis.TimeoutMS < 0 {
		return errors.New("synthesis.timeout_ms must be >= 0")
	}
	if cfg.Synthesis.MinSpeed <= 0 || cfg.Synthesis.MaxSpeed < cfg.Synthesis.MinSpeed {
		return errors.New("synthesis speed bounds are invalid")
	}
	if cfg.Synthesis.MinPitch <= 0 || cfg.Synthesis.MaxPitch < cfg.Synthesis.MinPitch {
		return errors.New("synthesis pitch bounds are invalid")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	return nil
}
