package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dusk-indust/pyannotate/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

const usage = `usage: pyannotate [-config DIR] [-version] <command> [args]

commands:
  parse [-isolate-nested] [-limit N] FILE...   print the parsed map of each file
  diagram FILE                                 print the call graph as Mermaid
  explain [-provider P] [-model M] FILE FUNC   explain one function
  serve [-addr ADDR]                           run the HTTP API
  serve-mcp [-http ADDR]                       run the MCP server (stdio by default)
  init [-force] [DIR]                          write pyannotate.yml and .mcp.json
`

// errUsage marks a command line that could not be understood.
var errUsage = errors.New("invalid usage")

// env is what every command gets: loaded config, a logger and output streams.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		configDir   string
		showVersion bool
	)
	fs := flag.NewFlagSet("pyannotate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&configDir, "config", ".", "directory holding pyannotate.yml and .env")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if showVersion {
		fmt.Fprintln(stdout, version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	e := &env{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		stdout: stdout,
		stderr: stderr,
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "parse":
		return runParse(ctx, e, cmdArgs)
	case "diagram":
		return runDiagram(ctx, e, cmdArgs)
	case "explain":
		return runExplain(ctx, e, cmdArgs)
	case "serve":
		return runServe(ctx, e, cmdArgs)
	case "serve-mcp":
		return runServeMCP(ctx, e, cmdArgs)
	case "init":
		return runInit(e, cmdArgs)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// subcommand builds a FlagSet that reports errors as errUsage.
func subcommand(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("pyannotate "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}
