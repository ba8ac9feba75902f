// Package config handles TOML configuration with environment overrides.
// TOML is parsed as data only; no code execution is possible.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"

	"dyfetch/internal/httputil"
)

// Config holds all application configuration.
type Config struct {
	OutputDir string `toml:"output_dir" env:"DYFETCH_OUTPUT_DIR" env-description:"directory downloads are written to"`
	UserAgent string `toml:"user_agent" env:"DYFETCH_USER_AGENT" env-description:"User-Agent sent with every request"`
	History   bool   `toml:"history" env:"DYFETCH_HISTORY" env-description:"record resolved links in the history database"`
	Debug     bool   `toml:"debug" env:"DYFETCH_DEBUG" env-description:"enable debug logging"`

	Timeouts   Timeouts   `toml:"timeouts"`
	Retry      Retry      `toml:"retry"`
	Transcribe Transcribe `toml:"transcribe"`
}

// Timeouts bounds each class of request.
type Timeouts struct {
	Probe    time.Duration `toml:"probe" env:"DYFETCH_PROBE_TIMEOUT" env-description:"CDN redirect probe timeout"`
	Page     time.Duration `toml:"page" env:"DYFETCH_PAGE_TIMEOUT" env-description:"share page and API timeout"`
	Download time.Duration `toml:"download" env:"DYFETCH_DOWNLOAD_TIMEOUT" env-description:"per-file download timeout"`
}

// Retry bounds transport retries of transient server errors.
type Retry struct {
	MaxRetries      int           `toml:"max_retries" env:"DYFETCH_MAX_RETRIES" env-description:"retries of 429/5xx responses"`
	InitialInterval time.Duration `toml:"initial_interval" env:"DYFETCH_RETRY_INTERVAL" env-description:"first retry delay"`
	MaxInterval     time.Duration `toml:"max_interval" env:"DYFETCH_RETRY_MAX_INTERVAL" env-description:"retry delay cap"`
}

// Transcribe configures the speech-to-text engine.
type Transcribe struct {
	Engine        string `toml:"engine" env:"DYFETCH_ENGINE" env-description:"transcription engine: funasr or whisper"`
	Model         string `toml:"model" env:"DYFETCH_MODEL" env-description:"FunASR recognition model"`
	VADModel      string `toml:"vad_model" env:"DYFETCH_VAD_MODEL" env-description:"FunASR voice activity model"`
	PuncModel     string `toml:"punc_model" env:"DYFETCH_PUNC_MODEL" env-description:"FunASR punctuation model"`
	FunASRBin     string `toml:"funasr_bin" env:"DYFETCH_FUNASR_BIN" env-description:"FunASR executable"`
	WhisperModel  string `toml:"whisper_model" env:"DYFETCH_WHISPER_MODEL" env-description:"OpenAI transcription model"`
	OpenAIBaseURL string `toml:"openai_base_url" env:"OPENAI_BASE_URL" env-description:"OpenAI-compatible API base URL"`
	OpenAIKey     string `toml:"openai_api_key" env:"OPENAI_API_KEY" env-description:"OpenAI API key"`
	Language      string `toml:"language" env:"DYFETCH_LANGUAGE" env-description:"transcript language hint"`
	ExtractAudio  bool   `toml:"extract_audio" env:"DYFETCH_EXTRACT_AUDIO" env-description:"extract a 16kHz mono track with ffmpeg before transcribing"`
}

// Engine names.
const (
	EngineFunASR  = "funasr"
	EngineWhisper = "whisper"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		OutputDir: "./downloads",
		UserAgent: httputil.MobileUserAgent,
		History:   true,
		Debug:     false,
		Timeouts: Timeouts{
			Probe:    10 * time.Second,
			Page:     30 * time.Second,
			Download: 10 * time.Minute,
		},
		Retry: Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
		},
		Transcribe: Transcribe{
			Engine:       EngineFunASR,
			Model:        "paraformer-zh",
			VADModel:     "fsmn-vad",
			PuncModel:    "ct-punc",
			FunASRBin:    "funasr",
			WhisperModel: "whisper-1",
			ExtractAudio: true,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dyfetch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "dyfetch"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file over the defaults, then applies environment
// overrides. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		help, _ := cleanenv.GetDescription(cfg, nil)
		return nil, fmt.Errorf("reading environment: %w\n%s", err, help)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Transcribe.Engine) {
	case EngineFunASR, EngineWhisper:
	default:
		return fmt.Errorf("unsupported engine %q (valid: funasr, whisper)", c.Transcribe.Engine)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.Timeouts.Probe <= 0 || c.Timeouts.Page <= 0 || c.Timeouts.Download <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry intervals must be positive with max_interval >= initial_interval")
	}

	return nil
}

// RetryConfig converts the retry section for the transport.
func (c *Config) RetryConfig() httputil.RetryConfig {
	return httputil.RetryConfig{
		MaxRetries:      uint64(c.Retry.MaxRetries),
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		Multiplier:      2,
	}
}

// ExpandOutputDir resolves ~ in the output directory path.
func (c *Config) ExpandOutputDir() (string, error) {
	dir := c.OutputDir
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// HistoryPath returns the path to the history database.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "dyfetch", "history.db"), nil
}
