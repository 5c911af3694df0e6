package parsedmap

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/dusk-indust/pyannotate/internal/pysyntax"
)

// Parse builds the syntax tree of source and assembles its parsed map.
// Invalid Python yields an error wrapping pysyntax.ErrSyntax and a nil map.
func Parse(source []byte, opts ...Option) (*ParsedMap, error) {
	return ParseContext(context.Background(), source, opts...)
}

// ParseContext is Parse with cancellation of the underlying parse.
func ParseContext(ctx context.Context, source []byte, opts ...Option) (*ParsedMap, error) {
	mod, err := pysyntax.BuildTreeContext(ctx, source)
	if err != nil {
		return nil, err
	}
	return Assemble(mod, opts...), nil
}

// Function returns the entry Python binds to name at import time: the last
// definition when the file defines name more than once.
func (m *ParsedMap) Function(name string) (*FunctionEntry, bool) {
	for i := len(m.Functions) - 1; i >= 0; i-- {
		if m.Functions[i].Name == name {
			return &m.Functions[i], true
		}
	}
	return nil, false
}

// FunctionNames returns the function names in definition order.
func (m *ParsedMap) FunctionNames() []string {
	names := make([]string, 0, len(m.Functions))
	for _, fn := range m.Functions {
		names = append(names, fn.Name)
	}
	return names
}

// Clone returns a deep copy that shares no slices or maps with m.
func (m *ParsedMap) Clone() *ParsedMap {
	if m == nil {
		return nil
	}
	out := &ParsedMap{
		File: FileInfo{
			Imports: slices.Clone(m.File.Imports),
			Globals: slices.Clone(m.File.Globals),
		},
		Functions: make([]FunctionEntry, len(m.Functions)),
		CallGraph: make(map[string][]string, len(m.CallGraph)),
	}
	if m.File.Path != nil {
		p := *m.File.Path
		out.File.Path = &p
	}
	for i, fn := range m.Functions {
		fn.Params = slices.Clone(fn.Params)
		fn.Returns = slices.Clone(fn.Returns)
		fn.Calls = slices.Clone(fn.Calls)
		fn.CalledBy = slices.Clone(fn.CalledBy)
		out.Functions[i] = fn
	}
	for name, edges := range m.CallGraph {
		out.CallGraph[name] = slices.Clone(edges)
	}
	out.normalize()
	return out
}

// Edges returns every call-graph edge as (caller, callee) pairs, callers in
// sorted order and callees in encounter order.
func (m *ParsedMap) Edges() [][2]string {
	var out [][2]string
	for _, caller := range slices.Sorted(maps.Keys(m.CallGraph)) {
		for _, callee := range m.CallGraph[caller] {
			out = append(out, [2]string{caller, callee})
		}
	}
	return out
}

// Encode serializes m in its stored form.
func (m *ParsedMap) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("parsedmap: encode: %w", err)
	}
	return data, nil
}

// Decode parses a stored parsed map.
func Decode(data []byte) (*ParsedMap, error) {
	var m ParsedMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsedmap: decode: %w", err)
	}
	m.normalize()
	return &m, nil
}
