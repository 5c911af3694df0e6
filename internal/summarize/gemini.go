package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// retryBase is the first backoff step; attempt n waits retryBase << n.
var retryBase = 300 * time.Millisecond

// Gemini explains functions with the Gemini API.
type Gemini struct {
	cli    *genai.Client
	cfg    Config
	logger *slog.Logger
}

var _ Summarizer = (*Gemini)(nil)

// NewGemini creates a Gemini client from cfg. cfg.APIKey must be set.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cfg = cfg.withDefaults()
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("summarize: gemini client: %w", err)
	}
	return &Gemini{cli: cli, cfg: cfg, logger: cfg.Logger}, nil
}

// Name reports the provider and model.
func (g *Gemini) Name() string { return "gemini:" + g.cfg.Model }

// Summarize sends one request per attempt, backing off between failures.
func (g *Gemini) Summarize(ctx context.Context, req Request) (string, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return "", err
	}
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		TopP:              genai.Ptr[float32](DefaultTopP),
		MaxOutputTokens:   g.cfg.MaxOutputTokens,
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("summarize: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(retryBase << (attempt - 1)):
			}
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), gc)
		if err != nil {
			lastErr = err
		} else if text := strings.TrimSpace(resp.Text()); text == "" {
			lastErr = ErrEmptyResponse
		} else {
			g.logger.Debug("function explained",
				"function", req.FunctionName, "model", g.cfg.Model, "attempt", attempt+1)
			return text, nil
		}
		g.logger.Warn("gemini request failed",
			"function", req.FunctionName, "attempt", attempt+1, "error", lastErr)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("summarize: gemini after %d attempts: %w", g.cfg.MaxAttempts, lastErr)
}
