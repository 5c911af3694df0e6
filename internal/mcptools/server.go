package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the four pyannotate tools registered.
func NewMCPServer(svc *ToolService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "pyannotate",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse_python",
		Description: "Statically analyze Python source and return its parsed map: imports, globals, top-level functions with params, returns, calls, callers, control flow and recursion, plus the call graph.",
	}, svc.ParsePython)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_function",
		Description: "Return the parsed-map entry and the source lines of one top-level function.",
	}, svc.GetFunction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "annotate_function",
		Description: "Generate and store a prose explanation of one function of an uploaded file.",
	}, svc.AnnotateFunction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_call_chains",
		Description: "Traverse the call graph of an uploaded file from a function, toward its callees or its callers, up to a depth.",
	}, svc.GetCallChains)

	return server
}

// RunStdio serves on stdin/stdout until stdin closes or ctx is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
