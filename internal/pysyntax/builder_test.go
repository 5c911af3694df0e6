package pysyntax

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustBuild(t *testing.T, src string) *Module {
	t.Helper()
	mod, err := BuildTree([]byte(src))
	require.NoError(t, err)
	require.NotNil(t, mod)
	return mod
}

// collect returns every node of type T in walk order.
func collect[T Node](mod *Module) []T {
	var out []T
	WalkAll(mod.Body, func(n Node) bool {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

func returnTexts(mod *Module) []string {
	var out []string
	for _, r := range collect[*Return](mod) {
		out = append(out, r.Text)
	}
	return out
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestBuildTree_SyntaxError(t *testing.T) {
	cases := map[string]string{
		"unclosed paren":           "def f(:\n    pass\n",
		"stray token":              "x = = 1\n",
		"body not indented":        "def f():\nreturn 1\n",
		"leading indent":           "  x = 1\n",
		"print statement":          "print \"hello\"\n",
		"exec statement":           "exec \"x = 1\"\n",
		"bare assignment expr":     "x := 5\n",
		"async as a name":          "async = 1\n",
		"default before plain arg": "def f(x=1, y):\n    pass\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			mod, err := BuildTree([]byte(src))
			require.Error(t, err)
			assert.Nil(t, mod)
			assert.True(t, errors.Is(err, ErrSyntax), "got %v", err)
		})
	}
}

func TestBuildTree_AcceptsValidPython3(t *testing.T) {
	cases := map[string]string{
		"print call":           "print(\"hi\")\n",
		"parenthesized walrus": "(x := 5)\n",
		"semicolons":           "x = 1; y = 2\n",
		"keyword-only after *": "def f(a, b=1, *args, c, **kw):\n    pass\n",
		"bare star":            "def f(*, a, b=1):\n    pass\n",
		"positional-only":      "def f(a=1, /, b=2):\n    pass\n",
		"inline suite":         "if x: pass\n",
		"async and await":      "async def f():\n    await g()\n",
		"comment opens block":  "class A:\n    # note\n    x = 1\n",
		"indented comment":     "  # note\nx = 1\n",
		"continuation lines":   "x = [\n  1,\n]\ny = 2\n",
		"lambda defaults":      "g = lambda a, b=1: a\n",
		"else suite":           "if x:\n    pass\nelse:\n    pass\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildTree([]byte(src))
			require.NoError(t, err)
		})
	}
}

func TestBuildTree_SyntaxErrorReportsLine(t *testing.T) {
	_, err := BuildTree([]byte("import os\n\nx = (1,\n"))
	require.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "line")
}

func TestBuildTree_InvalidUTF8(t *testing.T) {
	_, err := BuildTree([]byte{'x', ' ', '=', ' ', 0xff, 0xfe, '\n'})
	require.ErrorIs(t, err, ErrSyntax)
}

func TestBuildTree_Empty(t *testing.T) {
	mod := mustBuild(t, "")
	assert.Empty(t, mod.Body)

	mod = mustBuild(t, "# only a comment\n\n")
	assert.Empty(t, mod.Body)
}

func TestBuildTree_StripsBOM(t *testing.T) {
	mod := mustBuild(t, "\ufeffimport os\n")
	imports := collect[*Import](mod)
	require.Len(t, imports, 1)
	assert.Equal(t, []string{"os"}, imports[0].Modules)
}

func TestBuildTreeContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mod, err := BuildTreeContext(ctx, []byte("x = 1\n"))
	require.Error(t, err)
	assert.Nil(t, mod)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSyntax)
}

// ---------------------------------------------------------------------------
// Imports
// ---------------------------------------------------------------------------

func TestBuildTree_Imports(t *testing.T) {
	src := `from __future__ import annotations
import os
import a.b, c as d
from x.y import z
from . import m
from ..pkg import q
`
	mod := mustBuild(t, src)

	imports := collect[*Import](mod)
	require.Len(t, imports, 2)
	assert.Equal(t, []string{"os"}, imports[0].Modules)
	assert.Equal(t, []string{"a.b", "c"}, imports[1].Modules)

	var froms []string
	for _, f := range collect[*ImportFrom](mod) {
		froms = append(froms, f.Module)
	}
	assert.Equal(t, []string{"__future__", "x.y", "", "pkg"}, froms)
}

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

func TestBuildTree_Assignments(t *testing.T) {
	src := `X = 1
a = b = 2
c, d = 1, 2
obj.attr = 3
items[0] = 4
y: int = 5
z += 1
`
	mod := mustBuild(t, src)

	var simple []string
	for _, a := range collect[*Assign](mod) {
		if a.Simple {
			simple = append(simple, a.Target)
		} else {
			assert.Empty(t, a.Target)
		}
	}
	assert.Equal(t, []string{"X"}, simple)
}

func TestBuildTree_AssignmentKeepsCalls(t *testing.T) {
	mod := mustBuild(t, "CONFIG = load(path)\n")
	require.Len(t, mod.Body, 1)

	assign, ok := mod.Body[0].(*Assign)
	require.True(t, ok, "got %T", mod.Body[0])
	assert.True(t, assign.Simple)
	assert.Equal(t, "CONFIG", assign.Target)

	calls := collect[*CallName](mod)
	require.Len(t, calls, 1)
	assert.Equal(t, "load", calls[0].Name)
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func TestBuildTree_FunctionDef(t *testing.T) {
	src := `import app


@app.route("/x")
async def handler(a, b: int, /, c=1, d: str = "x", *args, f, **kw):
    # leading comment
    value = await go(a)
    return value
    # trailing comment
`
	mod := mustBuild(t, src)

	defs := collect[*FunctionDef](mod)
	require.Len(t, defs, 1)
	fn := defs[0]

	assert.Equal(t, "handler", fn.Name)
	assert.True(t, fn.Async)
	assert.Equal(t, []string{"a", "b", "c", "d"}, fn.Params)
	assert.Equal(t, 5, fn.Lines.StartLine, "span starts at the def line, not the decorator")
	assert.Equal(t, 8, fn.Lines.EndLine, "trailing comments are not part of the span")

	require.NotEmpty(t, fn.Header)
	var decorated []*CallAttribute
	WalkAll(fn.Header, func(n Node) bool {
		if c, ok := n.(*CallAttribute); ok {
			decorated = append(decorated, c)
		}
		return true
	})
	require.Len(t, decorated, 1)
	assert.Equal(t, "app", decorated[0].ReceiverText)
	assert.Equal(t, "route", decorated[0].Attr)
}

func TestBuildTree_FunctionWithoutParams(t *testing.T) {
	mod := mustBuild(t, "def f():\n    pass\n")
	defs := collect[*FunctionDef](mod)
	require.Len(t, defs, 1)
	assert.NotNil(t, defs[0].Params)
	assert.Empty(t, defs[0].Params)
	assert.False(t, defs[0].Async)
	assert.Equal(t, Span{StartLine: 1, EndLine: 2}, defs[0].Lines)
}

func TestBuildTree_KeywordOnlyAfterBareStar(t *testing.T) {
	mod := mustBuild(t, "def f(a, *, b, c=2):\n    return a\n")
	defs := collect[*FunctionDef](mod)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"a"}, defs[0].Params)
}

func TestBuildTree_PositionalOnlyParamsIncluded(t *testing.T) {
	mod := mustBuild(t, "def f(a, b=1, /, c=2, *, d):\n    return a\n")
	defs := collect[*FunctionDef](mod)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"a", "b", "c"}, defs[0].Params)
}

func TestBuildTree_NestedFunctionsInSourceOrder(t *testing.T) {
	src := `def outer():
    def inner():
        return 1
    return inner()

class Box:
    def method(self):
        return self
`
	mod := mustBuild(t, src)

	var names []string
	for _, fn := range collect[*FunctionDef](mod) {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"outer", "inner", "method"}, names)
}

func TestBuildTree_DecoratedClassStaysBlock(t *testing.T) {
	mod := mustBuild(t, "@dataclass\nclass P:\n    x: int = 0\n")
	require.Len(t, mod.Body, 1)
	b, ok := mod.Body[0].(*Block)
	require.True(t, ok, "got %T", mod.Body[0])
	assert.Equal(t, "decorated_definition", b.Type)
	assert.Empty(t, collect[*FunctionDef](mod))
}

// ---------------------------------------------------------------------------
// Returns, calls and control flow
// ---------------------------------------------------------------------------

func TestBuildTree_ReturnRendering(t *testing.T) {
	src := `def f(n, a, b, x, ok):
    return fib(n-1) + fib(n-2)
    return a, b
    return -x
    return not ok
    return x is not None
    return
    return [1,2][0]
    return {"k": v for v in a}
`
	mod := mustBuild(t, src)
	assert.Equal(t, []string{
		"fib(n - 1) + fib(n - 2)",
		"(a, b)",
		"-x",
		"not ok",
		"x is not None",
		"None",
		"[1, 2][0]",
		`{"k": v for v in a}`,
	}, returnTexts(mod))
}

func TestBuildTree_ReturnDropsRedundantParentheses(t *testing.T) {
	mod := mustBuild(t, "def f(x, a, b):\n    return (x)\n    return x\n    return ((a + b)).real\n")
	assert.Equal(t, []string{"x", "x", "(a + b).real"}, returnTexts(mod))
}

func TestBuildTree_ParenthesizedReceiver(t *testing.T) {
	mod := mustBuild(t, "(a + b).bit_length()\n(obj).run()\n")
	var attrs []string
	for _, c := range collect[*CallAttribute](mod) {
		attrs = append(attrs, c.ReceiverText+"|"+c.Attr)
	}
	assert.Equal(t, []string{"(a + b)|bit_length", "obj|run"}, attrs)
}

func TestBuildTree_CallShapes(t *testing.T) {
	src := `f(1)
obj.method(2)
a.b.c(3)
handlers[0](4)
make()()
`
	mod := mustBuild(t, src)

	var names []string
	for _, c := range collect[*CallName](mod) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"f", "make"}, names)

	var attrs []string
	for _, c := range collect[*CallAttribute](mod) {
		attrs = append(attrs, c.ReceiverText+"|"+c.Attr)
	}
	assert.Equal(t, []string{"obj|method", "a.b|c"}, attrs)

	assert.Len(t, collect[*CallOther](mod), 2)
}

func TestBuildTree_ControlFlow(t *testing.T) {
	src := `def f(x):
    if x:
        pass
    elif x > 1:
        pass
    while x:
        if x:
            x -= 1
    for i in range(3):
        pass
`
	mod := mustBuild(t, src)
	assert.Len(t, collect[*If](mod), 2, "elif belongs to its if statement")
	assert.Len(t, collect[*While](mod), 1)
	assert.Len(t, collect[*CallName](mod), 1)
}
