package parsedmap

import (
	"slices"
	"strings"

	"github.com/dusk-indust/pyannotate/internal/pysyntax"
)

// Assemble builds the parsed map of a syntax tree. It never fails: every
// well-formed tree yields a map, possibly with no functions.
func Assemble(mod *pysyntax.Module, opts ...Option) *ParsedMap {
	o := buildOptions(opts)
	pm := newParsedMap()
	if mod == nil {
		return pm
	}

	// Pass 1: module-level facts and one entry per top-level def.
	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *pysyntax.Import:
			pm.File.Imports = append(pm.File.Imports, s.Modules...)
		case *pysyntax.ImportFrom:
			pm.File.Imports = append(pm.File.Imports, s.Module)
		case *pysyntax.Assign:
			if s.Simple {
				pm.File.Globals = append(pm.File.Globals, s.Target)
			}
		case *pysyntax.FunctionDef:
			pm.Functions = append(pm.Functions, extractFunction(s, o))
		}
	}

	// Pass 2: call graph and reverse edges.
	linkCallGraph(pm)
	return pm
}

func extractFunction(def *pysyntax.FunctionDef, o options) FunctionEntry {
	fn := FunctionEntry{
		Name:      def.Name,
		StartLine: def.Lines.StartLine,
		EndLine:   def.Lines.EndLine,
		Params:    slices.Clone(def.Params),
		Returns:   []string{},
		Calls:     []string{},
		CalledBy:  []string{},
	}
	if fn.Params == nil {
		fn.Params = []string{}
	}
	if fn.EndLine == 0 {
		fn.EndLine = fn.StartLine
	}

	var visit func(pysyntax.Node) bool
	visit = func(n pysyntax.Node) bool {
		switch v := n.(type) {
		case *pysyntax.FunctionDef:
			if o.isolateNested {
				pysyntax.WalkAll(v.Header, visit)
				return false
			}
		case *pysyntax.Return:
			fn.Returns = append(fn.Returns, v.Text)
		case *pysyntax.CallName:
			fn.Calls = append(fn.Calls, v.Name)
		case *pysyntax.CallAttribute:
			fn.Calls = append(fn.Calls, v.ReceiverText+"."+v.Attr)
		case *pysyntax.CallOther:
			fn.Calls = append(fn.Calls, pysyntax.PlaceholderCall)
		case *pysyntax.If:
			fn.ControlFlow.If = true
		case *pysyntax.While:
			fn.ControlFlow.While = true
		}
		return true
	}
	pysyntax.WalkAll(def.Header, visit)
	pysyntax.WalkAll(def.Body, visit)

	fn.Recursion = slices.Contains(fn.Calls, fn.Name)
	return fn
}

// linkCallGraph records an edge for every call whose last dotted segment names
// a function of this file. `obj.foo()` links to a local foo even when obj is
// unrelated; that loose match is kept on purpose.
func linkCallGraph(pm *ParsedMap) {
	names := make(map[string]struct{}, len(pm.Functions))
	for _, fn := range pm.Functions {
		names[fn.Name] = struct{}{}
		if _, ok := pm.CallGraph[fn.Name]; !ok {
			pm.CallGraph[fn.Name] = []string{}
		}
	}

	for i := range pm.Functions {
		caller := pm.Functions[i].Name
		for _, call := range pm.Functions[i].Calls {
			target := callTarget(call)
			if _, ok := names[target]; !ok {
				continue
			}
			pm.CallGraph[caller] = append(pm.CallGraph[caller], target)
			for j := range pm.Functions {
				if pm.Functions[j].Name == target {
					pm.Functions[j].CalledBy = append(pm.Functions[j].CalledBy, caller)
				}
			}
		}
	}
}

// callTarget returns the part of a rendered call after its last dot.
func callTarget(call string) string {
	if i := strings.LastIndexByte(call, '.'); i >= 0 {
		return call[i+1:]
	}
	return call
}
