package main

import (
	"context"
	"fmt"

	"github.com/dusk-indust/pyannotate/internal/export"
)

func runDiagram(ctx context.Context, e *env, args []string) error {
	fs := subcommand(e, "diagram")
	isolate := fs.Bool("isolate-nested", false, "keep nested def bodies out of the enclosing function")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: usage: pyannotate diagram FILE", errUsage)
	}

	an, err := newAnalyzer(e, *isolate)
	if err != nil {
		return err
	}
	pm, err := analyzeOne(ctx, an, fs.Arg(0))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(e.stdout, export.GenerateMermaid(pm))
	return err
}
