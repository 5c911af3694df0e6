package graph

import (
	"context"
	"io"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// Store is the interface for the call-graph index backend.
// Implementations: KuzuStore (embedded graph database), MemStore.
type Store interface {
	io.Closer

	// Schema setup, called once before any file is indexed.
	InitSchema(ctx context.Context) error

	// IndexFile replaces whatever was indexed for fileID with pm's graph.
	IndexFile(ctx context.Context, fileID string, pm *parsedmap.ParsedMap) error
	// RemoveFile drops a file's functions and edges. Unknown IDs are ignored.
	RemoveFile(ctx context.Context, fileID string) error

	// Read operations. A missing function yields nil and no error.
	GetFunction(ctx context.Context, fileID, name string) (*FunctionNode, error)
	Functions(ctx context.Context, fileID string) ([]FunctionNode, error)
	Edges(ctx context.Context, fileID string) ([]CallEdge, error)

	// Graph traversal.
	GetChains(ctx context.Context, fileID, name string, direction Direction, maxDepth int) ([]CallChain, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}
