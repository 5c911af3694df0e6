// Package pysyntax turns Python source text into a small, closed syntax tree
// holding only the shapes the parsed-map assembler cares about.
package pysyntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// ErrSyntax is returned when source text is not valid Python.
var ErrSyntax = errors.New("pysyntax: invalid python syntax")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var pythonLanguage = tree_sitter.NewLanguage(tree_sitter_python.Language())

// BuildTree parses source and converts the concrete syntax tree into a Module.
// Invalid input yields an error wrapping ErrSyntax and no tree. BuildTree is
// safe for concurrent use: every call creates its own tree-sitter parser and
// releases it before returning.
func BuildTree(source []byte) (*Module, error) {
	return BuildTreeContext(context.Background(), source)
}

// BuildTreeContext is BuildTree with cancellation. When ctx is done before
// parsing finishes the context error is returned, not ErrSyntax.
func BuildTreeContext(ctx context.Context, source []byte) (*Module, error) {
	source = bytes.TrimPrefix(source, utf8BOM)
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("%w: source is not valid UTF-8", ErrSyntax)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pysyntax: %w", err)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(pythonLanguage); err != nil {
		return nil, fmt.Errorf("pysyntax: set language: %w", err)
	}

	read := func(offset int, _ tree_sitter.Point) []byte {
		if offset >= len(source) {
			return nil
		}
		return source[offset:]
	}
	opts := &tree_sitter.ParseOptions{
		ProgressCallback: func(tree_sitter.ParseState) bool {
			return ctx.Err() != nil
		},
	}

	tree := parser.ParseWithOptions(read, nil, opts)
	if tree == nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pysyntax: %w", err)
		}
		return nil, fmt.Errorf("%w: parser returned no tree", ErrSyntax)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if line := firstErrorLine(root); line > 0 {
			return nil, fmt.Errorf("%w: line %d", ErrSyntax, line)
		}
		return nil, ErrSyntax
	}
	if err := validate(root, source); err != nil {
		return nil, err
	}

	c := &converter{src: source}
	return &Module{Body: c.children(root)}, nil
}

// firstErrorLine returns the 1-based line of the first ERROR or MISSING node,
// or 0 when none is found.
func firstErrorLine(n *tree_sitter.Node) int {
	if n.IsError() || n.IsMissing() {
		return int(n.StartPosition().Row) + 1
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if line := firstErrorLine(child); line > 0 {
			return line
		}
	}
	return 0
}

// converter maps tree-sitter nodes onto the closed Node set.
type converter struct {
	src []byte
}

// children converts the named, non-comment children of n in source order.
func (c *converter) children(n *tree_sitter.Node) []Node {
	var out []Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() || child.Kind() == "comment" {
			continue
		}
		if node := c.convert(child); node != nil {
			out = append(out, node)
		}
	}
	return out
}

// optional converts n when present.
func (c *converter) optional(n *tree_sitter.Node) Node {
	if n == nil {
		return nil
	}
	return c.convert(n)
}

func (c *converter) convert(n *tree_sitter.Node) Node {
	switch n.Kind() {
	case "comment":
		return nil

	case "import_statement":
		return c.importStatement(n)

	case "import_from_statement":
		return &ImportFrom{Module: c.fromModule(n)}

	case "future_import_statement":
		return &ImportFrom{Module: "__future__"}

	case "expression_statement":
		// `x = 1` is expression_statement(assignment); unwrap single children
		// so assignments surface as statements.
		kids := c.children(n)
		if len(kids) == 1 {
			return kids[0]
		}
		return block(n.Kind(), kids)

	case "assignment":
		return c.assignment(n)

	case "decorated_definition":
		return c.decorated(n)

	case "function_definition":
		return c.functionDef(n, nil)

	case "return_statement":
		return c.returnStatement(n)

	case "call":
		return c.call(n)

	case "if_statement":
		return &If{Children: c.children(n)}

	case "while_statement":
		return &While{Children: c.children(n)}

	default:
		return block(n.Kind(), c.children(n))
	}
}

// block wraps children in a Block, or drops the node when it has nothing the
// walk could find.
func block(kind string, children []Node) Node {
	if len(children) == 0 {
		return nil
	}
	return &Block{Type: kind, Children: children}
}

func (c *converter) importStatement(n *tree_sitter.Node) Node {
	imp := &Import{}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			imp.Modules = append(imp.Modules, c.dottedName(child))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				imp.Modules = append(imp.Modules, c.dottedName(name))
			}
		}
	}
	return imp
}

// fromModule returns the module of a from-import. A relative import made only
// of dots has no module and yields "".
func (c *converter) fromModule(n *tree_sitter.Node) string {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return ""
	}
	if mod.Kind() == "dotted_name" {
		return c.dottedName(mod)
	}
	// relative_import: import_prefix followed by an optional dotted_name.
	for i := uint(0); i < mod.ChildCount(); i++ {
		child := mod.Child(i)
		if child != nil && child.Kind() == "dotted_name" {
			return c.dottedName(child)
		}
	}
	return ""
}

// dottedName joins the identifiers of a dotted_name, dropping any whitespace
// or line continuations between them.
func (c *converter) dottedName(n *tree_sitter.Node) string {
	if n.Kind() != "dotted_name" {
		return n.Utf8Text(c.src)
	}
	var parts []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.Kind() == "identifier" {
			parts = append(parts, child.Utf8Text(c.src))
		}
	}
	return strings.Join(parts, ".")
}

func (c *converter) assignment(n *tree_sitter.Node) Node {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	annotated := n.ChildByFieldName("type") != nil

	a := &Assign{Children: c.children(n)}
	if left != nil && left.Kind() == "identifier" && right != nil && !annotated {
		// `a = b = 1` nests an assignment on the right: multi-target, not simple.
		if k := right.Kind(); k != "assignment" && k != "augmented_assignment" {
			a.Simple = true
			a.Target = left.Utf8Text(c.src)
		}
	}
	return a
}

// decorated folds the decorators of a decorated function into its header.
// Decorated classes stay blocks.
func (c *converter) decorated(n *tree_sitter.Node) Node {
	def := n.ChildByFieldName("definition")
	if def == nil || def.Kind() != "function_definition" {
		return block(n.Kind(), c.children(n))
	}
	var decorators []Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || child.Kind() != "decorator" {
			continue
		}
		if d := c.convert(child); d != nil {
			decorators = append(decorators, d)
		}
	}
	return c.functionDef(def, decorators)
}

func (c *converter) functionDef(n *tree_sitter.Node, decorators []Node) Node {
	fn := &FunctionDef{
		Header: decorators,
		Lines: Span{
			StartLine: int(n.StartPosition().Row) + 1,
			EndLine:   lastLine(n),
		},
	}
	if fn.Lines.EndLine < fn.Lines.StartLine {
		fn.Lines.EndLine = fn.Lines.StartLine
	}
	if first := n.Child(0); first != nil && first.Kind() == "async" {
		fn.Async = true
	}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = name.Utf8Text(c.src)
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = c.positionalParams(params)
		fn.Header = append(fn.Header, c.children(params)...)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		if r := c.convert(ret); r != nil {
			fn.Header = append(fn.Header, r)
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		fn.Body = c.children(body)
	}
	return fn
}

// positionalParams lists the positional parameter names of a parameters node.
// Splat parameters and keyword-only parameters after `*` are left out.
func (c *converter) positionalParams(n *tree_sitter.Node) []string {
	params := []string{}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "identifier":
			params = append(params, child.Utf8Text(c.src))
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				params = append(params, name.Utf8Text(c.src))
			}
		case "typed_parameter":
			// `*args: int` is a typed_parameter wrapping a splat pattern.
			inner := child.NamedChild(0)
			if inner == nil {
				continue
			}
			if inner.Kind() != "identifier" {
				return params
			}
			params = append(params, inner.Utf8Text(c.src))
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			return params
		}
	}
	return params
}

func (c *converter) returnStatement(n *tree_sitter.Node) Node {
	var value *tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.IsNamed() && child.Kind() != "comment" {
			value = child
			break
		}
	}
	if value == nil {
		return &Return{Text: "None"}
	}
	return &Return{Text: c.text(value), Value: c.convert(value)}
}

func (c *converter) call(n *tree_sitter.Node) Node {
	callee := n.ChildByFieldName("function")
	var args []Node
	if a := n.ChildByFieldName("arguments"); a != nil {
		if a.Kind() == "argument_list" {
			args = c.children(a)
		} else if conv := c.convert(a); conv != nil {
			args = []Node{conv}
		}
	}
	if callee == nil {
		return &CallOther{Args: args}
	}

	switch callee.Kind() {
	case "identifier":
		return &CallName{Name: callee.Utf8Text(c.src), Args: args}
	case "attribute":
		recv := callee.ChildByFieldName("object")
		attr := callee.ChildByFieldName("attribute")
		if attr == nil {
			return &CallOther{Callee: c.optional(recv), Args: args}
		}
		return &CallAttribute{
			Receiver:     c.optional(recv),
			ReceiverText: c.primaryText(recv),
			Attr:         attr.Utf8Text(c.src),
			Args:         args,
		}
	default:
		return &CallOther{Callee: c.convert(callee), Args: args}
	}
}

// text renders an expression, substituting PlaceholderExpr on failure.
func (c *converter) text(n *tree_sitter.Node) string {
	s, err := render(c.src, n)
	if err != nil {
		return PlaceholderExpr
	}
	return s
}

// primaryText renders the receiver of an attribute call so that appending
// "." and the attribute still reads as the same call.
func (c *converter) primaryText(n *tree_sitter.Node) string {
	s, err := renderPrimary(c.src, n)
	if err != nil {
		return PlaceholderExpr
	}
	return s
}

// lastLine returns the 1-based line on which n's last non-comment token ends.
// Trailing comments inside a block are not part of a function's span.
func lastLine(n *tree_sitter.Node) int {
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		child := n.Child(uint(i))
		if child == nil || child.Kind() == "comment" {
			continue
		}
		return lastLine(child)
	}
	end := n.EndPosition()
	line := int(end.Row) + 1
	if end.Column == 0 && end.Row > n.StartPosition().Row {
		line--
	}
	return line
}
