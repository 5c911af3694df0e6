package mcptools

import (
	"github.com/dusk-indust/pyannotate/internal/graph"
	"github.com/dusk-indust/pyannotate/internal/parsedmap"
	"github.com/dusk-indust/pyannotate/internal/store"
)

// --- MCP Tool Input Types ---
// The MCP Go SDK derives each tool's JSON schema from these struct tags.

// ParsePythonInput is the input for the parse_python MCP tool.
type ParsePythonInput struct {
	Source              string `json:"source" jsonschema:"the Python source text to analyze"`
	IsolateNestedScopes bool   `json:"isolateNestedScopes,omitempty" jsonschema:"attribute calls and returns inside nested defs to the nested function only"`
}

// ParsePythonOutput is the result of the parse_python MCP tool.
type ParsePythonOutput struct {
	Map *parsedmap.ParsedMap `json:"map"`
}

// GetFunctionInput is the input for the get_function MCP tool.
type GetFunctionInput struct {
	Source string `json:"source" jsonschema:"the Python source text containing the function"`
	Name   string `json:"name" jsonschema:"top-level function name"`
}

// GetFunctionOutput is the result of the get_function MCP tool.
type GetFunctionOutput struct {
	Function parsedmap.FunctionEntry `json:"function"`
	Code     string                  `json:"code"`
}

// AnnotateFunctionInput is the input for the annotate_function MCP tool.
type AnnotateFunctionInput struct {
	OwnerID      string `json:"ownerId" jsonschema:"owner of the stored file"`
	FileID       string `json:"fileId" jsonschema:"id of a previously uploaded file"`
	FunctionName string `json:"functionName" jsonschema:"top-level function to explain"`
}

// AnnotateFunctionOutput is the result of the annotate_function MCP tool.
type AnnotateFunctionOutput struct {
	Annotation store.Annotation `json:"annotation"`
}

// GetCallChainsInput is the input for the get_call_chains MCP tool.
type GetCallChainsInput struct {
	OwnerID      string `json:"ownerId" jsonschema:"owner of the stored file"`
	FileID       string `json:"fileId" jsonschema:"id of a previously uploaded file"`
	FunctionName string `json:"functionName" jsonschema:"function to start from"`
	Direction    string `json:"direction,omitempty" jsonschema:"callees (what it calls) or callers (what calls it). Default: callees"`
	MaxDepth     int    `json:"maxDepth,omitempty" jsonschema:"maximum traversal depth (default: 10)"`
}

// GetCallChainsOutput is the result of the get_call_chains MCP tool.
type GetCallChainsOutput struct {
	Chains []graph.CallChain `json:"chains"`
}
