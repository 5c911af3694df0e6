package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/pyannotate/internal/annotate"
	"github.com/dusk-indust/pyannotate/internal/summarize"
)

func summarizerConfig(e *env) summarize.Config {
	s := e.cfg.Summarizer
	return summarize.Config{
		Provider:        s.Provider,
		APIKey:          s.APIKey,
		Model:           s.Model,
		Temperature:     s.Temperature,
		MaxOutputTokens: s.MaxOutputTokens,
		Timeout:         s.Timeout,
		MaxAttempts:     s.MaxAttempts,
		Logger:          e.logger,
	}
}

// runExplain explains one function of a local file without storing anything.
func runExplain(ctx context.Context, e *env, args []string) error {
	fs := subcommand(e, "explain")
	provider := fs.String("provider", "", "summarizer provider: template or gemini (default from config)")
	model := fs.String("model", "", "model name for remote providers")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: usage: pyannotate explain [-provider P] FILE FUNCTION", errUsage)
	}
	path, name := fs.Arg(0), fs.Arg(1)

	cfg := summarizerConfig(e)
	if *provider != "" {
		cfg.Provider = *provider
	}
	if *model != "" {
		cfg.Model = *model
	}
	sum, err := summarize.New(ctx, cfg)
	if err != nil {
		return err
	}

	an, err := newAnalyzer(e, false)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pm, err := an.Analyze(ctx, src)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fn, ok := pm.Function(name)
	if !ok {
		return fmt.Errorf("%w: %q in %s", annotate.ErrFunctionNotFound, name, path)
	}

	text, err := sum.Summarize(ctx, summarize.Request{
		FunctionName: fn.Name,
		Map:          pm,
		Code:         annotate.ExtractLines(string(src), fn.StartLine, fn.EndLine),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, text)
	return err
}
