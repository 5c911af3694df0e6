// Package summarize turns one function and its parsed map into a prose
// explanation. The parser never depends on this package.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// Provider names accepted by New.
const (
	ProviderGemini   = "gemini"
	ProviderTemplate = "template"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultModel           = "gemini-2.0-flash"
	DefaultTemperature     = 0.2
	DefaultTopP            = 1.0
	DefaultMaxOutputTokens = 1000
	DefaultTimeout         = 60 * time.Second
	DefaultMaxAttempts     = 3
)

var (
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("summarize: provider returned no text")
	// ErrMissingAPIKey is returned by New when a remote provider has no key.
	ErrMissingAPIKey = errors.New("summarize: api key is required")
	// ErrUnknownProvider is returned by New for an unrecognised provider.
	ErrUnknownProvider = errors.New("summarize: unknown provider")
)

// Request is everything a summarizer sees about one function.
type Request struct {
	FunctionName string
	Map          *parsedmap.ParsedMap
	Code         string
}

// Summarizer produces an explanation for a single function.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Config selects and tunes a summarizer. It is passed explicitly at
// construction; nothing here reads the environment.
type Config struct {
	Provider        string
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
	MaxAttempts     int
	// BaseURL overrides the provider endpoint. Empty means the default.
	BaseURL string
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderTemplate
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// New builds the summarizer named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Summarizer, error) {
	cfg = cfg.withDefaults()
	switch cfg.Provider {
	case ProviderTemplate:
		return Template{}, nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
