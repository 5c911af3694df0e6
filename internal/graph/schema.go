// Package graph indexes the call graphs of analyzed files so callers and
// callees can be followed across several hops.
package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// --- Enums ---

// Direction controls which way a chain walk follows CALLS edges.
type Direction string

const (
	DirectionCallees Direction = "callees" // what does this function call?
	DirectionCallers Direction = "callers" // what calls this function?
)

// ErrUnknownDirection is returned for a Direction other than callees or
// callers.
var ErrUnknownDirection = errors.New("graph: unknown direction")

// ParseDirection validates a direction name. The empty name means callees.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return DirectionCallees, nil
	}
	d := Direction(s)
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}

// Validate reports whether d is one of the two walk directions.
func (d Direction) Validate() error {
	switch d {
	case DirectionCallees, DirectionCallers:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownDirection, string(d))
}

// DefaultMaxDepth bounds a chain walk when the caller passes no depth.
const DefaultMaxDepth = 10

// --- Models ---

// FunctionNode is one function name of an indexed file. Duplicate
// definitions of a name share a node, listed where the name first appears
// but spanning the last definition, the one Python binds.
type FunctionNode struct {
	FileID    string `json:"fileId"`
	Name      string `json:"name"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Recursive bool   `json:"recursive"`
}

// CallEdge is a caller -> callee relation with the number of call sites.
type CallEdge struct {
	FileID string `json:"fileId"`
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	Count  int    `json:"count"`
}

// CallChain is an ordered path of function names starting at the queried one.
type CallChain struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
}

// GraphStats summarizes the index.
type GraphStats struct {
	FileCount     int `json:"fileCount"`
	FunctionCount int `json:"functionCount"`
	EdgeCount     int `json:"edgeCount"`
}

// fileGraph flattens a parsed map into nodes and aggregated edges.
func fileGraph(fileID string, pm *parsedmap.ParsedMap) ([]FunctionNode, []CallEdge) {
	var nodes []FunctionNode
	seen := make(map[string]int)
	for _, fn := range pm.Functions {
		if i, ok := seen[fn.Name]; ok {
			nodes[i].StartLine, nodes[i].EndLine = fn.StartLine, fn.EndLine
			nodes[i].Recursive = nodes[i].Recursive || fn.Recursion
			continue
		}
		seen[fn.Name] = len(nodes)
		nodes = append(nodes, FunctionNode{
			FileID:    fileID,
			Name:      fn.Name,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			Recursive: fn.Recursion,
		})
	}

	var edges []CallEdge
	for _, caller := range slices.Sorted(maps.Keys(pm.CallGraph)) {
		index := make(map[string]int)
		for _, callee := range pm.CallGraph[caller] {
			if i, ok := index[callee]; ok {
				edges[i].Count++
				continue
			}
			index[callee] = len(edges)
			edges = append(edges, CallEdge{FileID: fileID, Caller: caller, Callee: callee, Count: 1})
		}
	}
	return nodes, edges
}
