package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/pyannotate/internal/analyzer"
	"github.com/dusk-indust/pyannotate/internal/export"
	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

func newAnalyzer(e *env, isolate bool) (*analyzer.Analyzer, error) {
	return analyzer.New(analyzer.Config{
		CacheSize:           e.cfg.Analyzer.CacheSize,
		Timeout:             e.cfg.Analyzer.Timeout,
		IsolateNestedScopes: isolate || e.cfg.Analyzer.IsolateNestedScopes,
		Logger:              e.logger,
	})
}

// runParse prints the map of a single file as-is, or an array of export
// documents when several files are given. Files that fail still appear in the
// array with their error.
func runParse(ctx context.Context, e *env, args []string) error {
	fs := subcommand(e, "parse")
	isolate := fs.Bool("isolate-nested", false, "keep nested def bodies out of the enclosing function")
	limit := fs.Int("limit", analyzer.DefaultLimit, "files parsed concurrently")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("%w: usage: pyannotate parse [-isolate-nested] FILE...", errUsage)
	}

	an, err := newAnalyzer(e, *isolate)
	if err != nil {
		return err
	}

	if len(paths) == 1 {
		pm, err := analyzeOne(ctx, an, paths[0])
		if err != nil {
			return err
		}
		return export.WriteJSON(e.stdout, pm)
	}

	results, err := an.AnalyzeFiles(ctx, paths, *limit)
	if err != nil {
		return err
	}
	docs := make([]export.MapExport, len(results))
	failed := 0
	for i, r := range results {
		docs[i] = export.NewMapExport(r.Path, r.Map, r.Err)
		if r.Err != nil {
			failed++
		}
	}
	if err := export.WriteJSON(e.stdout, docs); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to parse", failed, len(paths))
	}
	return nil
}

// analyzeOne reads and parses path, recording it as the map's file path.
func analyzeOne(ctx context.Context, an *analyzer.Analyzer, path string) (*parsedmap.ParsedMap, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pm, err := an.Analyze(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pm.File.Path = &path
	return pm, nil
}
