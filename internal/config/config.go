package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults filled in by Load for unset fields.
const (
	DefaultAddr           = ":8080"
	DefaultLogLevel       = "info"
	DefaultMaxUploadBytes = 1 << 20
	DefaultCacheSize      = 256
	DefaultParseTimeout   = 10 * time.Second
	DefaultProvider       = "template"
	DefaultModel          = "gemini-2.0-flash"
	DefaultTemperature    = 0.2
	DefaultMaxTokens      = 1000
	DefaultLLMTimeout     = 60 * time.Second
	DefaultMaxAttempts    = 3
)

// AnalyzerConfig tunes parsing.
type AnalyzerConfig struct {
	CacheSize           int           `yaml:"cacheSize,omitempty"`
	Timeout             time.Duration `yaml:"timeout,omitempty"`
	IsolateNestedScopes bool          `yaml:"isolateNestedScopes,omitempty"`
}

// SummarizerConfig selects and tunes the explanation provider.
type SummarizerConfig struct {
	Provider        string        `yaml:"provider,omitempty"`
	APIKey          string        `yaml:"-"`
	Model           string        `yaml:"model,omitempty"`
	Temperature     float32       `yaml:"temperature,omitempty"`
	MaxOutputTokens int32         `yaml:"maxOutputTokens,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	MaxAttempts     int           `yaml:"maxAttempts,omitempty"`
}

// Config holds settings loaded from pyannotate.yml, .env and the environment.
type Config struct {
	Addr           string           `yaml:"addr,omitempty"`
	LogLevel       string           `yaml:"logLevel,omitempty"`
	MaxUploadBytes int64            `yaml:"maxUploadBytes,omitempty"`
	DatabaseURL    string           `yaml:"databaseURL,omitempty"`
	GraphPath      string           `yaml:"graphPath,omitempty"`
	Analyzer       AnalyzerConfig   `yaml:"analyzer,omitempty"`
	Summarizer     SummarizerConfig `yaml:"summarizer,omitempty"`
}

// Load reads pyannotate.yml or pyannotate.yaml from dir, then dir/.env, then
// the process environment. A missing file is not an error. Environment values
// win over the file.
func Load(dir string) (*Config, error) {
	var cfg Config
	for _, name := range []string{"pyannotate.yml", "pyannotate.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", name, err)
		}
		break
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := env("PYANNOTATE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := env("PYANNOTATE_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := env("PYANNOTATE_GRAPH_PATH"); v != "" {
		c.GraphPath = v
	}
	if v := env("PYANNOTATE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := env("PYANNOTATE_MODEL"); v != "" {
		c.Summarizer.Model = v
	}
	if v := env("PYANNOTATE_PROVIDER"); v != "" {
		c.Summarizer.Provider = v
	}
	c.Summarizer.APIKey = firstNonEmpty(env("GEMINI_API_KEY"), env("GOOGLE_API_KEY"))
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Analyzer.CacheSize == 0 {
		c.Analyzer.CacheSize = DefaultCacheSize
	}
	if c.Analyzer.Timeout == 0 {
		c.Analyzer.Timeout = DefaultParseTimeout
	}
	s := &c.Summarizer
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Temperature == 0 {
		s.Temperature = DefaultTemperature
	}
	if s.MaxOutputTokens == 0 {
		s.MaxOutputTokens = DefaultMaxTokens
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultLLMTimeout
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("config: maxUploadBytes must not be negative, got %d", c.MaxUploadBytes))
	}
	switch c.Summarizer.Provider {
	case "template":
	case "gemini":
		if c.Summarizer.APIKey == "" {
			errs = append(errs, errors.New("config: gemini provider needs GEMINI_API_KEY or GOOGLE_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown summarizer provider %q", c.Summarizer.Provider))
	}
	if t := c.Summarizer.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("config: summarizer temperature %.2f outside [0, 2]", t))
	}
	if c.Summarizer.MaxOutputTokens < 0 {
		errs = append(errs, errors.New("config: summarizer maxOutputTokens must not be negative"))
	}
	if c.Summarizer.MaxAttempts < 0 {
		errs = append(errs, errors.New("config: summarizer maxAttempts must not be negative"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
