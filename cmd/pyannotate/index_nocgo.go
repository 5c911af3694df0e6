//go:build !cgo

package main

import (
	"context"
	"errors"

	"github.com/dusk-indust/pyannotate/internal/graph"
)

// openIndex falls back to the in-memory index; Kuzu needs cgo.
func openIndex(ctx context.Context, path string) (graph.Store, error) {
	if path != "" {
		return nil, errors.New("graphPath needs a cgo build (Kuzu); unset it to use the in-memory index")
	}
	store := graph.NewMemStore()
	return store, store.InitSchema(ctx)
}
