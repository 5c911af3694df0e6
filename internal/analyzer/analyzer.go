// Package analyzer is the front door to the Python analysis: it caches parsed
// maps by content, bounds each parse in time and fans out over many files.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
	"github.com/dusk-indust/pyannotate/internal/pysyntax"
)

// Default settings used when Config leaves a field at its zero value.
const (
	DefaultCacheSize = 256
	DefaultTimeout   = 10 * time.Second
	DefaultLimit     = 8
)

// ErrTimeout is returned when a parse exceeds the configured timeout.
var ErrTimeout = errors.New("analyzer: parse timed out")

// Config controls an Analyzer.
type Config struct {
	// CacheSize is the number of parsed maps kept. Negative disables caching.
	CacheSize int
	// Timeout bounds a single parse. Negative disables the bound.
	Timeout time.Duration
	// IsolateNestedScopes keeps nested def bodies out of the enclosing
	// function's facts.
	IsolateNestedScopes bool
	Logger              *slog.Logger
}

// Analyzer parses Python source into parsed maps. It is safe for concurrent
// use.
type Analyzer struct {
	cache   *lru.Cache[string, *parsedmap.ParsedMap]
	timeout time.Duration
	isolate bool
	logger  *slog.Logger
}

// New creates an Analyzer.
func New(cfg Config) (*Analyzer, error) {
	a := &Analyzer{
		timeout: cfg.Timeout,
		isolate: cfg.IsolateNestedScopes,
		logger:  cfg.Logger,
	}
	if a.timeout == 0 {
		a.timeout = DefaultTimeout
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	size := cfg.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		cache, err := lru.New[string, *parsedmap.ParsedMap](size)
		if err != nil {
			return nil, fmt.Errorf("analyzer: create cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

// Analyze returns the parsed map of source using the configured nested-scope
// mode. Invalid Python yields an error wrapping pysyntax.ErrSyntax. The
// returned map is owned by the caller.
func (a *Analyzer) Analyze(ctx context.Context, source []byte) (*parsedmap.ParsedMap, error) {
	return a.AnalyzeScoped(ctx, source, a.isolate)
}

// AnalyzeScoped is Analyze with the nested-scope mode chosen by the caller
// instead of the analyzer's Config.
func (a *Analyzer) AnalyzeScoped(ctx context.Context, source []byte, isolate bool) (*parsedmap.ParsedMap, error) {
	key := cacheKey(source, isolate)
	if a.cache != nil {
		if pm, ok := a.cache.Get(key); ok {
			return pm.Clone(), nil
		}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	var opts []parsedmap.Option
	if isolate {
		opts = append(opts, parsedmap.WithIsolatedNestedScopes())
	}
	pm, err := parsedmap.ParseContext(ctx, source, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, a.timeout, err)
		}
		a.logger.Debug("parse failed",
			slog.Int("bytes", len(source)),
			slog.String("error", err.Error()))
		return nil, err
	}
	a.logger.Debug("parsed source",
		slog.Int("bytes", len(source)),
		slog.Int("functions", len(pm.Functions)),
		slog.Duration("elapsed", time.Since(start)))

	if a.cache != nil {
		a.cache.Add(key, pm)
		return pm.Clone(), nil
	}
	return pm, nil
}

// FileResult is the outcome of analyzing one file in a batch.
type FileResult struct {
	Path string               `json:"path"`
	Map  *parsedmap.ParsedMap `json:"map,omitempty"`
	Err  error                `json:"-"`
}

// Error returns the failure message, or "" on success.
func (r FileResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// AnalyzeFiles reads and analyzes paths with at most limit parses in flight.
// Per-file failures are reported in the results, which keep the input order.
// Only cancellation of ctx fails the whole batch.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string, limit int) ([]FileResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzer: batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyzer: batch: %w", err)
	}
	return results, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, path string) FileResult {
	res := FileResult{Path: path}
	src, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", path, err)
		return res
	}
	pm, err := a.Analyze(ctx, src)
	if err != nil {
		if errors.Is(err, pysyntax.ErrSyntax) {
			a.logger.Warn("skipping file with syntax error", slog.String("path", path))
		}
		res.Err = err
		return res
	}
	pm.File.Path = &res.Path
	res.Map = pm
	return res
}

// cacheKey identifies a source text under one nested-scope mode.
func cacheKey(source []byte, isolate bool) string {
	sum := sha256.Sum256(source)
	variant := "full:"
	if isolate {
		variant = "isolated:"
	}
	return variant + hex.EncodeToString(sum[:])
}
