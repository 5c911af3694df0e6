// Package parsedmap assembles the per-file "parsed map": imports, globals,
// top-level functions and the call graph between them.
package parsedmap

// --- Models ---

// ParsedMap is the analysis result for one Python source file. The JSON field
// names are the persisted wire format.
type ParsedMap struct {
	File      FileInfo            `json:"file"`
	Functions []FunctionEntry     `json:"functions"`
	CallGraph map[string][]string `json:"call_graph"`
}

// FileInfo holds the module-level facts of a file.
type FileInfo struct {
	Path    *string  `json:"path"` // null unless the caller knows the file name
	Imports []string `json:"imports"`
	Globals []string `json:"globals"`
}

// FunctionEntry describes one top-level def or async def.
type FunctionEntry struct {
	Name        string      `json:"name"`
	StartLine   int         `json:"start_line"`
	EndLine     int         `json:"end_line"`
	Params      []string    `json:"params"`
	Returns     []string    `json:"returns"`
	Calls       []string    `json:"calls"`
	CalledBy    []string    `json:"called_by"`
	ControlFlow ControlFlow `json:"control_flow"`
	Recursion   bool        `json:"recursion"`
}

// ControlFlow records whether a function contains any if or while statement.
type ControlFlow struct {
	If    bool `json:"if"`
	While bool `json:"while"`
}

func newParsedMap() *ParsedMap {
	return &ParsedMap{
		File: FileInfo{
			Imports: []string{},
			Globals: []string{},
		},
		Functions: []FunctionEntry{},
		CallGraph: map[string][]string{},
	}
}

// normalize replaces nil sequences with empty ones so every sequence encodes
// as [] rather than null.
func (m *ParsedMap) normalize() {
	if m.File.Imports == nil {
		m.File.Imports = []string{}
	}
	if m.File.Globals == nil {
		m.File.Globals = []string{}
	}
	if m.Functions == nil {
		m.Functions = []FunctionEntry{}
	}
	if m.CallGraph == nil {
		m.CallGraph = map[string][]string{}
	}
	for i := range m.Functions {
		fn := &m.Functions[i]
		fn.Params = nonNil(fn.Params)
		fn.Returns = nonNil(fn.Returns)
		fn.Calls = nonNil(fn.Calls)
		fn.CalledBy = nonNil(fn.CalledBy)
	}
	for name, edges := range m.CallGraph {
		m.CallGraph[name] = nonNil(edges)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
