package graph

import (
	"cmp"
	"slices"
)

// walkChains performs a BFS from start up to maxDepth hops and returns one
// chain per reachable function. Each function is reached once, along the
// first shortest path found; neighbors are visited in name order.
func walkChains(start string, maxDepth int, neighbors func(string) ([]string, error)) ([]CallChain, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	// BFS state: each entry tracks the path from start to the current node.
	type bfsEntry struct {
		id   string
		path []string
	}

	visited := map[string]bool{start: true}
	queue := []bfsEntry{{id: start, path: []string{start}}}
	var chains []CallChain

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []bfsEntry
		for _, entry := range queue {
			nbs, err := neighbors(entry.id)
			if err != nil {
				return nil, err
			}
			for _, nb := range nbs {
				if visited[nb] {
					continue
				}
				visited[nb] = true
				newPath := make([]string, len(entry.path), len(entry.path)+1)
				copy(newPath, entry.path)
				newPath = append(newPath, nb)
				chains = append(chains, CallChain{
					Nodes: newPath,
					Depth: len(newPath) - 1,
				})
				nextQueue = append(nextQueue, bfsEntry{id: nb, path: newPath})
			}
		}
		queue = nextQueue
	}
	return chains, nil
}

// uniqueSorted returns the distinct values of s in ascending order.
func uniqueSorted[T cmp.Ordered](s []T) []T {
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}
