// Package export renders parsed maps for people and other tools: Mermaid
// call-graph diagrams and indented JSON documents.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/pyannotate/internal/graph"
	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// GenerateMermaid produces a Mermaid graph TD diagram of a file's call graph.
// Every function is a node, including ones with no edges; recursive functions
// get the "recursive" class and repeated calls label their edge with a count.
func GenerateMermaid(pm *parsedmap.ParsedMap) string {
	var nodes []graph.FunctionNode
	index := make(map[string]int)
	for _, fn := range pm.Functions {
		if i, ok := index[fn.Name]; ok {
			nodes[i].Recursive = nodes[i].Recursive || fn.Recursion
			continue
		}
		index[fn.Name] = len(nodes)
		nodes = append(nodes, graph.FunctionNode{Name: fn.Name, Recursive: fn.Recursion})
	}

	var edges []graph.CallEdge
	for _, e := range pm.Edges() {
		edges = append(edges, graph.CallEdge{Caller: e[0], Callee: e[1], Count: 1})
	}
	return render(nodes, mergeEdges(edges))
}

// GenerateMermaidFromIndex produces the same diagram from an indexed file.
func GenerateMermaidFromIndex(ctx context.Context, store graph.Store, fileID string) (string, error) {
	nodes, err := store.Functions(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("get functions: %w", err)
	}
	edges, err := store.Edges(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("get edges: %w", err)
	}
	return render(nodes, mergeEdges(edges)), nil
}

func render(nodes []graph.FunctionNode, edges []graph.CallEdge) string {
	// Build name -> ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string, len(nodes))
	for i, n := range nodes {
		nodeIDs[n.Name] = fmt.Sprintf("N%d", i)
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var recursive []string
	for _, n := range nodes {
		id := nodeIDs[n.Name]
		sb.WriteString(fmt.Sprintf("  %s[\"%s()\"]\n", id, escapeLabel(n.Name)))
		if n.Recursive {
			recursive = append(recursive, id)
		}
	}

	for _, e := range edges {
		src, ok1 := nodeIDs[e.Caller]
		dst, ok2 := nodeIDs[e.Callee]
		if !ok1 || !ok2 {
			continue
		}
		if e.Count > 1 {
			sb.WriteString(fmt.Sprintf("  %s -->|%d| %s\n", src, e.Count, dst))
		} else {
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", src, dst))
		}
	}

	if len(recursive) > 0 {
		sb.WriteString("  classDef recursive stroke-dasharray: 5 5\n")
		sb.WriteString(fmt.Sprintf("  class %s recursive\n", strings.Join(recursive, ",")))
	}
	return sb.String()
}

// mergeEdges folds repeated caller/callee pairs into one edge, keeping the
// order of first appearance.
func mergeEdges(edges []graph.CallEdge) []graph.CallEdge {
	var out []graph.CallEdge
	index := make(map[[2]string]int)
	for _, e := range edges {
		key := [2]string{e.Caller, e.Callee}
		if i, ok := index[key]; ok {
			out[i].Count += e.Count
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	return out
}

// escapeLabel keeps names safe inside a quoted Mermaid label.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
