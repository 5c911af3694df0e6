package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// pyannotateMCPEntry launches this binary as a stdio MCP server.
var pyannotateMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "pyannotate",
  "args": ["serve-mcp"]
}`)

const sampleConfig = `# pyannotate settings. Environment variables override these values:
# PYANNOTATE_ADDR, PYANNOTATE_DATABASE_URL, PYANNOTATE_GRAPH_PATH,
# PYANNOTATE_LOG_LEVEL, PYANNOTATE_PROVIDER, PYANNOTATE_MODEL,
# GEMINI_API_KEY / GOOGLE_API_KEY.
addr: ":8080"
logLevel: info
maxUploadBytes: 1048576
analyzer:
  cacheSize: 256
  timeout: 10s
  isolateNestedScopes: false
summarizer:
  provider: template
  model: gemini-2.0-flash
  temperature: 0.2
  maxOutputTokens: 1000
  maxAttempts: 3
`

// runInit writes a sample pyannotate.yml and registers the MCP server in
// .mcp.json of the target directory.
func runInit(e *env, args []string) error {
	fs := subcommand(e, "init")
	force := fs.Bool("force", false, "overwrite existing files and entries")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	cfgPath := filepath.Join(abs, "pyannotate.yml")
	if _, err := os.Stat(cfgPath); err == nil && !*force {
		fmt.Fprintf(e.stdout, "  skipped %s (exists, use -force to overwrite)\n", dotRelative(abs, cfgPath))
	} else {
		if err := os.WriteFile(cfgPath, []byte(sampleConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cfgPath, err)
		}
		fmt.Fprintf(e.stdout, "  created %s\n", dotRelative(abs, cfgPath))
	}

	if err := mergeMCPConfig(e, filepath.Join(abs, ".mcp.json"), *force); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "\nSetup complete.")
	return nil
}

// mergeMCPConfig creates or merges the pyannotate entry into .mcp.json.
func mergeMCPConfig(e *env, mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["pyannotate"]; exists && !force {
		fmt.Fprintf(e.stdout, "  skipped .mcp.json pyannotate entry (exists, use -force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["pyannotate"] = pyannotateMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(e.stdout, "  %s .mcp.json with pyannotate MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to base, prefixed with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
