package parsedmap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/pyannotate/internal/pysyntax"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustParse(t *testing.T, src string, opts ...Option) *ParsedMap {
	t.Helper()
	pm, err := Parse([]byte(src), opts...)
	require.NoError(t, err)
	require.NotNil(t, pm)
	return pm
}

func mustFunction(t *testing.T, pm *ParsedMap, name string) *FunctionEntry {
	t.Helper()
	fn, ok := pm.Function(name)
	require.True(t, ok, "function %q not found in %v", name, pm.FunctionNames())
	return fn
}

// readFixture reads a test fixture relative to the project root.
func readFixture(t *testing.T, relPath string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../" + relPath)
	require.NoError(t, err, "reading fixture %s", relPath)
	return data
}

// assertConsistent checks that every call-graph edge A -> B is mirrored by A
// in the called_by list of every entry named B, with matching multiplicity.
func assertConsistent(t *testing.T, pm *ParsedMap) {
	t.Helper()

	names := make(map[string]bool)
	for _, fn := range pm.Functions {
		names[fn.Name] = true
	}
	assert.Len(t, pm.CallGraph, len(names), "call_graph keys must be exactly the function names")

	for caller, callees := range pm.CallGraph {
		assert.True(t, names[caller], "call_graph key %q is not a function", caller)
		for _, callee := range callees {
			assert.True(t, names[callee], "edge %s -> %s targets an unknown name", caller, callee)
		}
	}

	for _, fn := range pm.Functions {
		want := 0
		for _, callees := range pm.CallGraph {
			for _, callee := range callees {
				if callee == fn.Name {
					want++
				}
			}
		}
		assert.Len(t, fn.CalledBy, want, "called_by of %s", fn.Name)
		for _, caller := range fn.CalledBy {
			assert.Contains(t, pm.CallGraph[caller], fn.Name)
		}
	}
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestAssemble_ImportsGlobalsAndCallGraph(t *testing.T) {
	src := "import os\nGLOBAL_X = 1\ndef foo(x, y):\n    z = x + y\n    return z\n" +
		"def bar():\n    if GLOBAL_X > 0:\n        foo(1, 2)\n    while GLOBAL_X < 10:\n        break\n    return None"
	pm := mustParse(t, src)

	assert.Nil(t, pm.File.Path)
	assert.Equal(t, []string{"os"}, pm.File.Imports)
	assert.Contains(t, pm.File.Globals, "GLOBAL_X")
	assert.Equal(t, []string{"foo", "bar"}, pm.FunctionNames())

	foo := mustFunction(t, pm, "foo")
	assert.Equal(t, []string{"x", "y"}, foo.Params)
	assert.Equal(t, []string{"z"}, foo.Returns)
	assert.Equal(t, ControlFlow{If: false, While: false}, foo.ControlFlow)
	assert.Equal(t, 3, foo.StartLine)
	assert.Equal(t, 5, foo.EndLine)
	assert.Contains(t, foo.CalledBy, "bar")

	bar := mustFunction(t, pm, "bar")
	assert.Equal(t, []string{"None"}, bar.Returns)
	assert.Equal(t, ControlFlow{If: true, While: true}, bar.ControlFlow)
	assert.Equal(t, 6, bar.StartLine)
	assert.Equal(t, 11, bar.EndLine)
	assert.Contains(t, pm.CallGraph["bar"], "foo")

	assertConsistent(t, pm)
}

func TestAssemble_Recursion(t *testing.T) {
	pm := mustParse(t, "def fib(n):\n    if n <= 1:\n        return n\n    return fib(n-1) + fib(n-2)")

	require.Len(t, pm.Functions, 1)
	fib := mustFunction(t, pm, "fib")
	assert.True(t, fib.Recursion)
	assert.Equal(t, []string{"fib", "fib"}, fib.Calls)
	assert.Equal(t, []string{"n", "fib(n - 1) + fib(n - 2)"}, fib.Returns)
	assert.Contains(t, pm.CallGraph["fib"], "fib")
	assert.Contains(t, fib.CalledBy, "fib")
	assertConsistent(t, pm)
}

func TestAssemble_AttributeCalls(t *testing.T) {
	pm := mustParse(t, "def test():\n    obj = 1\n    obj.run()")

	fn := mustFunction(t, pm, "test")
	assert.Contains(t, fn.Calls, "obj.run")
	assert.Empty(t, pm.CallGraph["test"])
	assert.Empty(t, pm.File.Globals, "assignments inside functions are not globals")
}

func TestAssemble_MultipleReturnsInSourceOrder(t *testing.T) {
	pm := mustParse(t, "def f(x):\n    if x > 0:\n        return x\n    return -x")

	fn := mustFunction(t, pm, "f")
	assert.Equal(t, []string{"x", "-x"}, fn.Returns)
}

func TestAssemble_NoFunctions(t *testing.T) {
	pm := mustParse(t, "import math\nX = 42")

	assert.Equal(t, []string{"math"}, pm.File.Imports)
	assert.Contains(t, pm.File.Globals, "X")
	assert.Empty(t, pm.Functions)
	assert.NotNil(t, pm.Functions)
	assert.Empty(t, pm.CallGraph)
	assert.NotNil(t, pm.CallGraph)
}

func TestAssemble_EmptyFile(t *testing.T) {
	pm := mustParse(t, "")

	assert.Equal(t, []string{}, pm.File.Imports)
	assert.Equal(t, []string{}, pm.File.Globals)
	assert.Equal(t, []FunctionEntry{}, pm.Functions)
	assert.Equal(t, map[string][]string{}, pm.CallGraph)
}

func TestAssemble_NilModule(t *testing.T) {
	pm := Assemble(nil)
	require.NotNil(t, pm)
	assert.Empty(t, pm.Functions)
}

func TestParse_SyntaxError(t *testing.T) {
	pm, err := Parse(readFixture(t, "testdata/fixtures/python/broken.py"))
	require.ErrorIs(t, err, pysyntax.ErrSyntax)
	assert.Nil(t, pm)
}

// ---------------------------------------------------------------------------
// Edges and names
// ---------------------------------------------------------------------------

func TestAssemble_SelfQualifiedCallIsNotRecursion(t *testing.T) {
	pm := mustParse(t, "def run(self):\n    return self.run()\n")

	fn := mustFunction(t, pm, "run")
	assert.Equal(t, []string{"self"}, fn.Params)
	assert.False(t, fn.Recursion, "only an unqualified call counts as recursion")
	// The suffix match still links the attribute call to the local name.
	assert.Equal(t, []string{"run"}, pm.CallGraph["run"])
	assert.Equal(t, []string{"run"}, fn.CalledBy)
}

func TestAssemble_AttributeSuffixMatchesLocalName(t *testing.T) {
	src := "import os\n\ndef foo():\n    return 1\n\ndef bar():\n    os.path.foo()\n"
	pm := mustParse(t, src)

	assert.Equal(t, []string{"os.path.foo"}, mustFunction(t, pm, "bar").Calls)
	assert.Equal(t, []string{"foo"}, pm.CallGraph["bar"])
	assert.Equal(t, []string{"bar"}, mustFunction(t, pm, "foo").CalledBy)
	assertConsistent(t, pm)
}

func TestAssemble_RepeatedCallsKeepDuplicates(t *testing.T) {
	pm := mustParse(t, "def a():\n    pass\n\ndef b():\n    a()\n    a()\n")

	assert.Equal(t, []string{"a", "a"}, pm.CallGraph["b"])
	assert.Equal(t, []string{"b", "b"}, mustFunction(t, pm, "a").CalledBy)
	assertConsistent(t, pm)
}

func TestAssemble_DuplicateFunctionNames(t *testing.T) {
	src := `def helper():
    return 1

def helper():
    return target()

def target():
    return helper()
`
	pm := mustParse(t, src)

	require.Len(t, pm.Functions, 3)
	assert.Equal(t, []string{"helper", "helper", "target"}, pm.FunctionNames())
	assert.Equal(t, []string{"target"}, pm.CallGraph["helper"])
	assert.Equal(t, []string{"helper"}, pm.CallGraph["target"])

	// Both helper entries are called by target.
	assert.Equal(t, []string{"target"}, pm.Functions[0].CalledBy)
	assert.Equal(t, []string{"target"}, pm.Functions[1].CalledBy)

	fn, ok := pm.Function("helper")
	require.True(t, ok)
	assert.Equal(t, 1, fn.StartLine, "Function returns the first definition")
	assertConsistent(t, pm)
}

func TestAssemble_ComplexCallees(t *testing.T) {
	pm := mustParse(t, "def f(handlers):\n    handlers[0]()\n    (lambda: 1)()\n")

	fn := mustFunction(t, pm, "f")
	assert.Equal(t, []string{pysyntax.PlaceholderCall, pysyntax.PlaceholderCall}, fn.Calls)
	assert.Empty(t, pm.CallGraph["f"])
}

func TestAssemble_HeaderCallsAreCollected(t *testing.T) {
	src := `import app

@app.route(path())
def handler(x=default()) -> build():
    return x
`
	pm := mustParse(t, src)

	fn := mustFunction(t, pm, "handler")
	assert.Equal(t, []string{"app.route", "path", "default", "build"}, fn.Calls)
	assert.Equal(t, 4, fn.StartLine, "decorators are outside the span")
}

func TestAssemble_AsyncFunctions(t *testing.T) {
	pm := mustParse(t, "async def fetch(url):\n    return await client.get(url)\n")

	fn := mustFunction(t, pm, "fetch")
	assert.Equal(t, []string{"url"}, fn.Params)
	assert.Equal(t, []string{"await client.get(url)"}, fn.Returns)
	assert.Equal(t, []string{"client.get"}, fn.Calls)
}

func TestAssemble_ClassMethodsAreNotEntries(t *testing.T) {
	pm := mustParse(t, "class A:\n    def m(self):\n        return 1\n")

	assert.Empty(t, pm.Functions)
	assert.Empty(t, pm.CallGraph)
}

// ---------------------------------------------------------------------------
// Nested scopes
// ---------------------------------------------------------------------------

const nestedSrc = `def outer():
    def inner():
        if True:
            return 1
    return inner()
`

func TestAssemble_NestedFunctionsBleedIntoOuter(t *testing.T) {
	pm := mustParse(t, nestedSrc)

	assert.Equal(t, []string{"outer"}, pm.FunctionNames())
	outer := mustFunction(t, pm, "outer")
	assert.Equal(t, []string{"1", "inner()"}, outer.Returns)
	assert.Equal(t, []string{"inner"}, outer.Calls)
	assert.True(t, outer.ControlFlow.If)
	assert.Empty(t, pm.CallGraph["outer"], "inner is not a top-level function")
}

func TestAssemble_IsolatedNestedScopes(t *testing.T) {
	pm := mustParse(t, nestedSrc, WithIsolatedNestedScopes())

	outer := mustFunction(t, pm, "outer")
	assert.Equal(t, []string{"inner()"}, outer.Returns)
	assert.Equal(t, []string{"inner"}, outer.Calls)
	assert.False(t, outer.ControlFlow.If)
}

func TestAssemble_IsolatedKeepsNestedDecorators(t *testing.T) {
	pm := mustParse(t, string(readFixture(t, "testdata/fixtures/python/nested.py")), WithIsolatedNestedScopes())

	dec := mustFunction(t, pm, "decorated")
	assert.Equal(t, []string{"functools.wraps"}, dec.Calls)
	assert.Equal(t, []string{"wrapper"}, dec.Returns)
	assert.False(t, dec.ControlFlow.While)
}

func TestAssemble_PositionalOnlyParams(t *testing.T) {
	pm := mustParse(t, "def clamp(value, lo, hi, /, *, strict=False):\n    return max(lo, min(value, hi))\n")
	fn := mustFunction(t, pm, "clamp")
	assert.Equal(t, []string{"value", "lo", "hi"}, fn.Params)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func TestAssemble_InventoryFixture(t *testing.T) {
	pm := mustParse(t, string(readFixture(t, "testdata/fixtures/python/inventory.py")))

	assert.Equal(t, []string{"__future__", "json", "os.path", "dataclasses", ""}, pm.File.Imports)
	assert.Equal(t, []string{"MAX_ITEMS", "DEFAULT_PATH"}, pm.File.Globals)
	assert.Equal(t, []string{"load", "parse_item", "save", "restock_all", "sync", "countdown"}, pm.FunctionNames())

	load := mustFunction(t, pm, "load")
	assert.Equal(t, []string{"path"}, load.Params)
	assert.Equal(t, []string{"os.path.exists", "open", "json.load", "parse_item"}, load.Calls)
	assert.Equal(t, []string{"[]", "[parse_item(entry) for entry in raw]"}, load.Returns)
	assert.Equal(t, 24, load.StartLine)
	assert.Equal(t, 29, load.EndLine)
	assert.False(t, load.Recursion)
	// json.load links to the local load through the suffix match.
	assert.Equal(t, []string{"load", "parse_item"}, pm.CallGraph["load"])
	assert.Equal(t, []string{"load"}, load.CalledBy)

	parseItem := mustFunction(t, pm, "parse_item")
	assert.Equal(t, []string{`Item(entry["name"], entry.get("quantity", 0))`}, parseItem.Returns)
	assert.Equal(t, []string{"Item", "entry.get"}, parseItem.Calls)

	restock := mustFunction(t, pm, "restock_all")
	assert.Equal(t, []string{"len", "items[index].restock", "save"}, restock.Calls)
	assert.True(t, restock.ControlFlow.While)
	assert.False(t, restock.ControlFlow.If)
	assert.Equal(t, []string{"restock_all"}, mustFunction(t, pm, "save").CalledBy)

	sync := mustFunction(t, pm, "sync")
	assert.Equal(t, []string{"client", "items"}, sync.Params)
	assert.Equal(t, []string{"client.push", "len"}, sync.Calls)

	countdown := mustFunction(t, pm, "countdown")
	assert.True(t, countdown.Recursion)
	assert.Equal(t, []string{"n", "countdown(n - 1)"}, countdown.Returns)

	assertConsistent(t, pm)
}

func TestAssemble_NestedFixture(t *testing.T) {
	pm := mustParse(t, string(readFixture(t, "testdata/fixtures/python/nested.py")))

	assert.Equal(t, []string{"outer", "helper", "decorated"}, pm.FunctionNames())

	outer := mustFunction(t, pm, "outer")
	assert.Equal(t, []string{"helper(v)", "None", "[inner(v) for v in values]"}, outer.Returns)
	assert.Equal(t, []string{"helper", "inner"}, outer.Calls)
	assert.Equal(t, []string{"helper"}, pm.CallGraph["outer"])
	assert.Equal(t, []string{"outer"}, mustFunction(t, pm, "helper").CalledBy)

	dec := mustFunction(t, pm, "decorated")
	assert.Equal(t, []string{"functools.wraps", "fn"}, dec.Calls)
	assert.Equal(t, []string{"fn(*args, **kwargs)", "wrapper"}, dec.Returns)
	assert.True(t, dec.ControlFlow.While)
	assert.Equal(t, 17, dec.StartLine)
	assert.Equal(t, 23, dec.EndLine)

	assertConsistent(t, pm)
}

func TestAssemble_Deterministic(t *testing.T) {
	for _, name := range []string{"inventory.py", "nested.py"} {
		t.Run(name, func(t *testing.T) {
			src := readFixture(t, "testdata/fixtures/python/"+name)
			first, err := Parse(src)
			require.NoError(t, err)
			second, err := Parse(src)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}
