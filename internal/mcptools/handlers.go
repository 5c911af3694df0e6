package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/pyannotate/internal/analyzer"
	"github.com/dusk-indust/pyannotate/internal/annotate"
	"github.com/dusk-indust/pyannotate/internal/graph"
	"github.com/dusk-indust/pyannotate/internal/parsedmap"
)

// errNoService is returned by tools that need stored files when the server
// runs without a backing annotation service.
var errNoService = errors.New("this server has no file store; use parse_python instead")

// ToolService holds the collaborators used by the MCP tool handlers.
// svc may be nil, which disables the file-backed tools.
type ToolService struct {
	analyzer *analyzer.Analyzer
	svc      *annotate.Service
}

// NewToolService creates a ToolService.
func NewToolService(an *analyzer.Analyzer, svc *annotate.Service) *ToolService {
	return &ToolService{analyzer: an, svc: svc}
}

// ParsePython analyzes source and returns its parsed map.
func (s *ToolService) ParsePython(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ParsePythonInput,
) (*mcp.CallToolResult, ParsePythonOutput, error) {
	pm, err := s.parse(ctx, input.Source, input.IsolateNestedScopes)
	if err != nil {
		return nil, ParsePythonOutput{}, err
	}
	return nil, ParsePythonOutput{Map: pm}, nil
}

// GetFunction returns one function's entry and its source lines.
func (s *ToolService) GetFunction(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetFunctionInput,
) (*mcp.CallToolResult, GetFunctionOutput, error) {
	if input.Name == "" {
		return nil, GetFunctionOutput{}, fmt.Errorf("name is required")
	}
	pm, err := s.parse(ctx, input.Source, false)
	if err != nil {
		return nil, GetFunctionOutput{}, err
	}
	fn, ok := pm.Function(input.Name)
	if !ok {
		return nil, GetFunctionOutput{}, fmt.Errorf("function %q not found; top-level functions: %v", input.Name, pm.FunctionNames())
	}
	return nil, GetFunctionOutput{
		Function: *fn,
		Code:     annotate.ExtractLines(input.Source, fn.StartLine, fn.EndLine),
	}, nil
}

// AnnotateFunction explains a function of a stored file.
func (s *ToolService) AnnotateFunction(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnnotateFunctionInput,
) (*mcp.CallToolResult, AnnotateFunctionOutput, error) {
	if s.svc == nil {
		return nil, AnnotateFunctionOutput{}, errNoService
	}
	if input.FileID == "" || input.FunctionName == "" {
		return nil, AnnotateFunctionOutput{}, fmt.Errorf("fileId and functionName are required")
	}
	a, err := s.svc.Annotate(ctx, input.OwnerID, input.FileID, input.FunctionName)
	if err != nil {
		return nil, AnnotateFunctionOutput{}, err
	}
	return nil, AnnotateFunctionOutput{Annotation: *a}, nil
}

// GetCallChains walks the call graph of a stored file.
func (s *ToolService) GetCallChains(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetCallChainsInput,
) (*mcp.CallToolResult, GetCallChainsOutput, error) {
	if s.svc == nil {
		return nil, GetCallChainsOutput{}, errNoService
	}
	dir, err := graph.ParseDirection(input.Direction)
	if err != nil {
		return nil, GetCallChainsOutput{}, err
	}
	chains, err := s.svc.CallChains(ctx, input.OwnerID, input.FileID, input.FunctionName, dir, input.MaxDepth)
	if err != nil {
		return nil, GetCallChainsOutput{}, err
	}
	if chains == nil {
		chains = []graph.CallChain{}
	}
	return nil, GetCallChainsOutput{Chains: chains}, nil
}

func (s *ToolService) parse(ctx context.Context, source string, isolate bool) (*parsedmap.ParsedMap, error) {
	if source == "" {
		return nil, fmt.Errorf("source is required")
	}
	return s.analyzer.AnalyzeScoped(ctx, []byte(source), isolate)
}
