package graph

import (
	"context"
	"sync"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu        sync.RWMutex
	functions map[string][]FunctionNode // key: fileID, definition order
	edges     map[string][]CallEdge     // key: fileID
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		functions: make(map[string][]FunctionNode),
		edges:     make(map[string][]CallEdge),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// IndexFile stores the nodes and edges of pm under fileID.
func (m *MemStore) IndexFile(_ context.Context, fileID string, pm *parsedmap.ParsedMap) error {
	nodes, edges := fileGraph(fileID, pm)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.functions[fileID] = nodes
	m.edges[fileID] = edges
	return nil
}

// RemoveFile drops everything indexed for fileID.
func (m *MemStore) RemoveFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.functions, fileID)
	delete(m.edges, fileID)
	return nil
}

// GetFunction returns the named function of a file, or nil if not found.
func (m *MemStore) GetFunction(_ context.Context, fileID, name string) (*FunctionNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, fn := range m.functions[fileID] {
		if fn.Name == name {
			return &fn, nil
		}
	}
	return nil, nil
}

// Functions returns a file's functions in definition order.
func (m *MemStore) Functions(_ context.Context, fileID string) ([]FunctionNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FunctionNode, len(m.functions[fileID]))
	copy(out, m.functions[fileID])
	return out, nil
}

// Edges returns a copy of a file's call edges.
func (m *MemStore) Edges(_ context.Context, fileID string) ([]CallEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CallEdge, len(m.edges[fileID]))
	copy(out, m.edges[fileID])
	return out, nil
}

// GetChains walks CALLS edges of one file from name in the given direction.
func (m *MemStore) GetChains(_ context.Context, fileID, name string, direction Direction, maxDepth int) ([]CallChain, error) {
	if err := direction.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := m.edges[fileID]
	return walkChains(name, maxDepth, func(id string) ([]string, error) {
		return neighbors(edges, id, direction), nil
	})
}

// neighbors returns names reachable from id in one hop along direction.
func neighbors(edges []CallEdge, id string, direction Direction) []string {
	var result []string
	for _, e := range edges {
		switch direction {
		case DirectionCallees:
			if e.Caller == id {
				result = append(result, e.Callee)
			}
		case DirectionCallers:
			if e.Callee == id {
				result = append(result, e.Caller)
			}
		}
	}
	return uniqueSorted(result)
}

// Stats returns counts of indexed files, functions and edges.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &GraphStats{FileCount: len(m.functions)}
	for _, fns := range m.functions {
		stats.FunctionCount += len(fns)
	}
	for _, edges := range m.edges {
		stats.EdgeCount += len(edges)
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
