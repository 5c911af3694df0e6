//go:build cgo

package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/pyannotate/internal/graph"
)

// openIndex opens the Kuzu call-graph index at path, or an in-memory Kuzu
// database when path is empty.
func openIndex(ctx context.Context, path string) (graph.Store, error) {
	var (
		store *graph.KuzuStore
		err   error
	)
	if path == "" {
		store, err = graph.NewKuzuStore()
	} else {
		store, err = graph.NewKuzuFileStore(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open graph: %w", err)
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init graph schema: %w", err)
	}
	return store, nil
}
