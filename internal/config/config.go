// Package config handles application configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	BaseDir  string `yaml:"base_dir"`
	HTTPAddr string `yaml:"http_addr"` // empty disables the status server
	LogLevel string `yaml:"log_level"`

	Audio    AudioConfig    `yaml:"audio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Whisper  EngineConfig   `yaml:"whisper"`
	Llama    EngineConfig   `yaml:"llama"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	SampleRate     int    `yaml:"sample_rate"`
	SegmentSeconds int    `yaml:"segment_seconds"`
	InputDevice    string `yaml:"input_device"` // substring match, empty = default device
}

// PipelineConfig holds coordinator tuning knobs.
type PipelineConfig struct {
	WindowSegments      int `yaml:"window_segments"`
	PollTimeoutSeconds  int `yaml:"poll_timeout_seconds"`
	DrainTimeoutSeconds int `yaml:"drain_timeout_seconds"`
}

// EngineConfig locates one inference backend.
type EngineConfig struct {
	Binary    string `yaml:"binary"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language,omitempty"`
}

// PollTimeout returns the worker's bounded queue wait.
func (p PipelineConfig) PollTimeout() time.Duration {
	return time.Duration(p.PollTimeoutSeconds) * time.Second
}

// DrainTimeout returns the shutdown drain bound.
func (p PipelineConfig) DrainTimeout() time.Duration {
	return time.Duration(p.DrainTimeoutSeconds) * time.Second
}

// SegmentDuration returns the capture segment length.
func (a AudioConfig) SegmentDuration() time.Duration {
	return time.Duration(a.SegmentSeconds) * time.Second
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "edgescribe", "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	share := filepath.Join(home, ".local", "share", "edgescribe")

	return &Config{
		BaseDir:  share,
		HTTPAddr: "",
		LogLevel: "info",
		Audio: AudioConfig{
			SampleRate:     16000,
			SegmentSeconds: 30,
		},
		Pipeline: PipelineConfig{
			WindowSegments:      20,
			PollTimeoutSeconds:  2,
			DrainTimeoutSeconds: 30,
		},
		Whisper: EngineConfig{
			Binary:    "whisper-cli",
			ModelPath: filepath.Join(share, "models", "ggml-base.en.bin"),
			Language:  "en",
		},
		Llama: EngineConfig{
			Binary:    "llama-cli",
			ModelPath: filepath.Join(share, "models", "phi-3-mini-4k-instruct-q4.gguf"),
		},
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides select fields from the environment.
func (c *Config) applyEnv() {
	c.BaseDir = getEnv("EDGESCRIBE_BASE_DIR", c.BaseDir)
	c.HTTPAddr = getEnv("EDGESCRIBE_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("EDGESCRIBE_LOG_LEVEL", c.LogLevel)
	c.Audio.SampleRate = getEnvInt("EDGESCRIBE_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.SegmentSeconds = getEnvInt("EDGESCRIBE_SEGMENT_SECONDS", c.Audio.SegmentSeconds)
	c.Audio.InputDevice = getEnv("EDGESCRIBE_INPUT_DEVICE", c.Audio.InputDevice)
	c.Pipeline.WindowSegments = getEnvInt("EDGESCRIBE_WINDOW_SEGMENTS", c.Pipeline.WindowSegments)
	c.Pipeline.PollTimeoutSeconds = getEnvInt("EDGESCRIBE_POLL_TIMEOUT_SECONDS", c.Pipeline.PollTimeoutSeconds)
	c.Pipeline.DrainTimeoutSeconds = getEnvInt("EDGESCRIBE_DRAIN_TIMEOUT_SECONDS", c.Pipeline.DrainTimeoutSeconds)
	c.Whisper.Binary = getEnv("EDGESCRIBE_WHISPER_BIN", c.Whisper.Binary)
	c.Whisper.ModelPath = getEnv("EDGESCRIBE_WHISPER_MODEL", c.Whisper.ModelPath)
	c.Whisper.Language = getEnv("EDGESCRIBE_LANGUAGE", c.Whisper.Language)
	c.Llama.Binary = getEnv("EDGESCRIBE_LLAMA_BIN", c.Llama.Binary)
	c.Llama.ModelPath = getEnv("EDGESCRIBE_LLAMA_MODEL", c.Llama.ModelPath)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir must not be empty")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.SegmentSeconds <= 0 {
		return fmt.Errorf("audio.segment_seconds must be > 0")
	}
	if c.Pipeline.WindowSegments <= 0 {
		return fmt.Errorf("pipeline.window_segments must be > 0")
	}
	if c.Pipeline.PollTimeoutSeconds <= 0 {
		return fmt.Errorf("pipeline.poll_timeout_seconds must be > 0")
	}
	if c.Pipeline.DrainTimeoutSeconds <= 0 {
		return fmt.Errorf("pipeline.drain_timeout_seconds must be > 0")
	}
	if c.Whisper.Binary == "" || c.Whisper.ModelPath == "" {
		return fmt.Errorf("whisper.binary and whisper.model_path must be set")
	}
	if c.Llama.Binary == "" || c.Llama.ModelPath == "" {
		return fmt.Errorf("llama.binary and llama.model_path must be set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
