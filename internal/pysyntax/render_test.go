package pysyntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// renderExpr parses a single expression statement and renders its expression.
func renderExpr(t *testing.T, expr string) (string, error) {
	t.Helper()
	src := []byte(expr + "\n")

	parser := tree_sitter.NewParser()
	defer parser.Close()
	require.NoError(t, parser.SetLanguage(pythonLanguage))

	tree := parser.Parse(src, nil)
	require.NotNil(t, tree)
	defer tree.Close()

	root := tree.RootNode()
	require.False(t, root.HasError(), "fixture must parse: %q", expr)
	stmt := root.NamedChild(0)
	require.NotNil(t, stmt)
	require.Equal(t, "expression_statement", stmt.Kind())
	return render(src, stmt.NamedChild(0))
}

func TestRender(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"x", "x"},
		{"42", "42"},
		{"'single'", "'single'"},
		{"None", "None"},
		{"a.b.c", "a.b.c"},
		{"a+b*c", "a + b * c"},
		{"(a+b)*c", "(a + b) * c"},
		{"a and not b", "a and not b"},
		{"a<b<=c", "a < b <= c"},
		{"x not in ys", "x not in ys"},
		{"~x", "~x"},
		{"f(a,b=1,*rest,**kw)", "f(a, b=1, *rest, **kw)"},
		{"f(x for x in y)", "f(x for x in y)"},
		{"d[1:2]", "d[1:2]"},
		{"d[::2]", "d[::2]"},
		{"m[i,j]", "m[i, j]"},
		{"(1,)", "(1,)"},
		{"(1,2)", "(1, 2)"},
		{"[1,2]", "[1, 2]"},
		{"{1,2}", "{1, 2}"},
		{"{'a':1}", "{'a': 1}"},
		{"a if b else c", "a if b else c"},
		{"lambda: 0", "lambda: 0"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := renderExpr(t, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRender_Parentheses(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(x)", "x"},
		{"((x))", "x"},
		{"(a*b)+c", "a * b + c"},
		{"a-(b-c)", "a - (b - c)"},
		{"(a-b)-c", "a - b - c"},
		{"a**(b**c)", "a ** b ** c"},
		{"(a**b)**c", "(a ** b) ** c"},
		{"(-x)**2", "(-x) ** 2"},
		{"-(x+1)", "-(x + 1)"},
		{"not (a and b)", "not (a and b)"},
		{"(a or b) and c", "(a or b) and c"},
		{"(a < b) == c", "(a < b) == c"},
		{"(f)(x)", "f(x)"},
		{"(a + b).c", "(a + b).c"},
		{"(a if b else c).d", "(a if b else c).d"},
		{"(a if b else c) if d else e", "(a if b else c) if d else e"},
		{"a if b else (c if d else e)", "a if b else c if d else e"},
		{"f((x), k=(y))", "f(x, k=y)"},
		{"[(x), (y + 1)]", "[x, y + 1]"},
		{"((lambda: 0))()", "(lambda: 0)()"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := renderExpr(t, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRender_UnknownShapeKeepsParentheses(t *testing.T) {
	got, err := renderExpr(t, "f((y := 1))")
	require.NoError(t, err)
	assert.Equal(t, "f((y := 1))", got)
}

func TestRender_MultiLineCollapses(t *testing.T) {
	got, err := renderExpr(t, "[x\n for x in y\n if x]")
	require.NoError(t, err)
	assert.Equal(t, "[x for x in y if x]", got)
}

func TestRender_NilNode(t *testing.T) {
	_, err := render(nil, nil)
	assert.ErrorIs(t, err, errRender)
}

func TestRender_DepthLimit(t *testing.T) {
	expr := strings.Repeat("-", maxRenderDepth+10) + "x"
	_, err := renderExpr(t, expr)
	assert.ErrorIs(t, err, errRender)
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "a  b", collapse("a  b"))
	assert.Equal(t, "a + b", collapse("a + \\\n    b"))
	assert.Equal(t, "f( x )", collapse("f(\n  x\n)"))
}
