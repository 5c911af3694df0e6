package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dusk-indust/pyannotate/internal/analyzer"
	"github.com/dusk-indust/pyannotate/internal/annotate"
	"github.com/dusk-indust/pyannotate/internal/httpapi"
	"github.com/dusk-indust/pyannotate/internal/mcptools"
	"github.com/dusk-indust/pyannotate/internal/store"
	"github.com/dusk-indust/pyannotate/internal/summarize"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// backend is the wired service plus everything that must be closed after it.
type backend struct {
	analyzer *analyzer.Analyzer
	service  *annotate.Service
	closers  []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// newBackend opens the record store (PostgreSQL when databaseURL is set,
// memory otherwise), the call-graph index and the summarizer.
func newBackend(ctx context.Context, e *env) (*backend, error) {
	b := &backend{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	an, err := newAnalyzer(e, false)
	if err != nil {
		return nil, err
	}
	b.analyzer = an

	var files store.Store
	if e.cfg.DatabaseURL != "" {
		pg, err := store.NewPGStore(ctx, e.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		files = pg
		e.logger.Info("using postgres record store")
	} else {
		files = store.NewMemStore()
		e.logger.Warn("no databaseURL configured; records are kept in memory")
	}

	index, err := openIndex(ctx, e.cfg.GraphPath)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, index.Close)

	sum, err := summarize.New(ctx, summarizerConfig(e))
	if err != nil {
		return nil, err
	}

	b.service = annotate.NewService(files, index, an, sum, annotate.Config{
		MaxUploadBytes: e.cfg.MaxUploadBytes,
		Logger:         e.logger,
	})
	ok = true
	return b, nil
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs := subcommand(e, "serve")
	addr := fs.String("addr", e.cfg.Addr, "listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	b, err := newBackend(ctx, e)
	if err != nil {
		return err
	}
	defer b.Close()

	srv := httpapi.NewServer(b.service, b.analyzer, e.cfg.MaxUploadBytes, e.logger)
	if err := srv.Start(ctx, *addr); err != nil {
		return fmt.Errorf("listen %s: %w", *addr, err)
	}

	<-ctx.Done()
	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runServeMCP(ctx context.Context, e *env, args []string) error {
	fs := subcommand(e, "serve-mcp")
	httpAddr := fs.String("http", "", "serve streamable HTTP on this address instead of stdio")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	b, err := newBackend(ctx, e)
	if err != nil {
		return err
	}
	defer b.Close()

	server := mcptools.NewMCPServer(mcptools.NewToolService(b.analyzer, b.service))
	if *httpAddr != "" {
		e.logger.Info("mcp server listening", "addr", *httpAddr)
		return mcptools.RunHTTP(ctx, server, *httpAddr)
	}
	return mcptools.RunStdio(ctx, server)
}
