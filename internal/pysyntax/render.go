package pysyntax

import (
	"errors"
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// maxRenderDepth bounds recursion on pathologically nested expressions.
const maxRenderDepth = 200

// errRender marks an expression that cannot be rendered. It never leaves this
// package: callers substitute PlaceholderExpr.
var errRender = errors.New("pysyntax: expression cannot be rendered")

// Binding strength of expression shapes, loosest first.
const (
	precLambda = iota + 1
	precTernary
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precArith
	precTerm
	precUnary
	precPower
	precAwait
	precAtom
)

var binaryPrec = map[string]int{
	"|": precBitOr, "^": precBitXor, "&": precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precArith, "-": precArith,
	"*": precTerm, "@": precTerm, "/": precTerm, "//": precTerm, "%": precTerm,
	"**": precPower,
}

// render produces a canonical one-line text for an expression subtree.
// Parentheses appear only where operator precedence needs them; string
// literals keep their source quoting.
func render(src []byte, n *tree_sitter.Node) (string, error) {
	r := renderer{src: src}
	return r.expr(n, 0)
}

// renderPrimary renders n so that a trailing ".attr" or "(...)" applies to
// the whole expression.
func renderPrimary(src []byte, n *tree_sitter.Node) (string, error) {
	r := renderer{src: src}
	return r.operand(n, 0, precAtom)
}

// precedence returns how tightly n binds. Shapes it does not know report
// false and keep whatever parentheses the source gave them.
func precedence(n *tree_sitter.Node) (int, bool) {
	switch n.Kind() {
	case "lambda":
		return precLambda, true
	case "conditional_expression":
		return precTernary, true
	case "boolean_operator":
		if op := n.ChildByFieldName("operator"); op != nil && op.Kind() == "and" {
			return precAnd, true
		}
		return precOr, true
	case "not_operator":
		return precNot, true
	case "comparison_operator":
		return precCompare, true
	case "binary_operator":
		if op := n.ChildByFieldName("operator"); op != nil {
			p, ok := binaryPrec[op.Kind()]
			return p, ok
		}
		return 0, false
	case "unary_operator":
		return precUnary, true
	case "await":
		return precAwait, true
	case "identifier", "integer", "float", "string", "concatenated_string",
		"none", "true", "false", "ellipsis",
		"attribute", "subscript", "call",
		"list", "tuple", "set", "dictionary",
		"list_comprehension", "set_comprehension", "dictionary_comprehension",
		"generator_expression":
		return precAtom, true
	}
	return 0, false
}

// operand renders n as the operand of something binding at least need.
// Source parentheses are dropped and added back only when needed.
func (r renderer) operand(n *tree_sitter.Node, depth, need int) (string, error) {
	wrapped := false
	for n != nil && n.Kind() == "parenthesized_expression" {
		n = firstNamed(n)
		wrapped = true
	}
	s, err := r.expr(n, depth)
	if err != nil {
		return "", err
	}
	p, known := precedence(n)
	if wrapped && !known || known && p < need {
		return "(" + s + ")", nil
	}
	return s, nil
}

type renderer struct {
	src []byte
}

func (r renderer) expr(n *tree_sitter.Node, depth int) (string, error) {
	if n == nil {
		return "", errRender
	}
	if depth > maxRenderDepth {
		return "", fmt.Errorf("%w: nested deeper than %d", errRender, maxRenderDepth)
	}
	if n.IsError() || n.IsMissing() {
		return "", fmt.Errorf("%w: %s node", errRender, n.Kind())
	}
	depth++

	switch n.Kind() {
	case "identifier", "integer", "float", "string", "none", "true", "false", "ellipsis":
		// Literals are kept verbatim, including triple-quoted line breaks.
		return n.Utf8Text(r.src), nil

	case "attribute":
		obj, err := r.operand(n.ChildByFieldName("object"), depth, precAtom)
		if err != nil {
			return "", err
		}
		attr := n.ChildByFieldName("attribute")
		if attr == nil {
			return "", errRender
		}
		return obj + "." + attr.Utf8Text(r.src), nil

	case "binary_operator", "boolean_operator":
		op := n.ChildByFieldName("operator")
		if op == nil {
			return "", errRender
		}
		// Left-associative except **, which groups to the right.
		p, _ := precedence(n)
		lmin, rmin := p, p+1
		if op.Kind() == "**" {
			lmin, rmin = p+1, p
		}
		left, err := r.operand(n.ChildByFieldName("left"), depth, lmin)
		if err != nil {
			return "", err
		}
		right, err := r.operand(n.ChildByFieldName("right"), depth, rmin)
		if err != nil {
			return "", err
		}
		return left + " " + op.Kind() + " " + right, nil

	case "comparison_operator":
		// Operands are named; operators (including `not in`, `is not`) are
		// anonymous tokens whose kind is the canonical spelling.
		var parts []string
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil || child.Kind() == "comment" {
				continue
			}
			if !child.IsNamed() {
				parts = append(parts, child.Kind())
				continue
			}
			s, err := r.operand(child, depth, precCompare+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " "), nil

	case "unary_operator":
		op := n.ChildByFieldName("operator")
		arg, err := r.operand(n.ChildByFieldName("argument"), depth, precUnary)
		if err != nil {
			return "", err
		}
		if op == nil {
			return "", errRender
		}
		return op.Kind() + arg, nil

	case "not_operator":
		arg, err := r.operand(n.ChildByFieldName("argument"), depth, precNot)
		if err != nil {
			return "", err
		}
		return "not " + arg, nil

	case "await":
		arg, err := r.operand(firstNamed(n), depth, precAtom)
		if err != nil {
			return "", err
		}
		return "await " + arg, nil

	case "call":
		fn, err := r.operand(n.ChildByFieldName("function"), depth, precAtom)
		if err != nil {
			return "", err
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return fn + "()", nil
		}
		if args.Kind() == "generator_expression" {
			return fn + collapse(args.Utf8Text(r.src)), nil
		}
		inner, err := r.list(args, depth)
		if err != nil {
			return "", err
		}
		return fn + "(" + inner + ")", nil

	case "keyword_argument":
		name := n.ChildByFieldName("name")
		value, err := r.expr(n.ChildByFieldName("value"), depth)
		if err != nil {
			return "", err
		}
		if name == nil {
			return "", errRender
		}
		return name.Utf8Text(r.src) + "=" + value, nil

	case "list_splat":
		inner, err := r.operand(firstNamed(n), depth, precBitOr)
		if err != nil {
			return "", err
		}
		return "*" + inner, nil

	case "dictionary_splat":
		inner, err := r.operand(firstNamed(n), depth, precBitOr)
		if err != nil {
			return "", err
		}
		return "**" + inner, nil

	case "subscript":
		base, err := r.operand(n.ChildByFieldName("value"), depth, precAtom)
		if err != nil {
			return "", err
		}
		// The first named child is the value; the rest are subscripts.
		var subs []string
		seenValue := false
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil || !child.IsNamed() || child.Kind() == "comment" {
				continue
			}
			if !seenValue {
				seenValue = true
				continue
			}
			s, err := r.expr(child, depth)
			if err != nil {
				return "", err
			}
			subs = append(subs, s)
		}
		return base + "[" + strings.Join(subs, ", ") + "]", nil

	case "slice":
		var sb strings.Builder
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child == nil || child.Kind() == "comment" {
				continue
			}
			if !child.IsNamed() {
				sb.WriteString(child.Kind())
				continue
			}
			s, err := r.expr(child, depth)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil

	case "parenthesized_expression":
		return r.operand(n, depth, 0)

	case "tuple", "expression_list":
		inner, err := r.list(n, depth)
		if err != nil {
			return "", err
		}
		if countNamed(n) == 1 {
			return "(" + inner + ",)", nil
		}
		return "(" + inner + ")", nil

	case "list":
		inner, err := r.list(n, depth)
		if err != nil {
			return "", err
		}
		return "[" + inner + "]", nil

	case "set", "dictionary":
		inner, err := r.list(n, depth)
		if err != nil {
			return "", err
		}
		return "{" + inner + "}", nil

	case "pair":
		key, err := r.expr(n.ChildByFieldName("key"), depth)
		if err != nil {
			return "", err
		}
		value, err := r.expr(n.ChildByFieldName("value"), depth)
		if err != nil {
			return "", err
		}
		return key + ": " + value, nil

	case "conditional_expression":
		// body if test else orelse: only orelse may be another conditional
		// without parentheses.
		var parts [3]string
		idx := 0
		for i := uint(0); i < n.ChildCount() && idx < 3; i++ {
			child := n.Child(i)
			if child == nil || !child.IsNamed() || child.Kind() == "comment" {
				continue
			}
			need := precTernary + 1
			if idx == 2 {
				need = precTernary
			}
			s, err := r.operand(child, depth, need)
			if err != nil {
				return "", err
			}
			parts[idx] = s
			idx++
		}
		if idx != 3 {
			return "", errRender
		}
		return parts[0] + " if " + parts[1] + " else " + parts[2], nil

	default:
		return collapse(n.Utf8Text(r.src)), nil
	}
}

// list renders the named children of n separated by ", ".
func (r renderer) list(n *tree_sitter.Node, depth int) (string, error) {
	var parts []string
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() || child.Kind() == "comment" {
			continue
		}
		s, err := r.expr(child, depth)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// firstNamed returns the first named non-comment child of n.
func firstNamed(n *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.IsNamed() && child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func countNamed(n *tree_sitter.Node) int {
	count := 0
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child != nil && child.IsNamed() && child.Kind() != "comment" {
			count++
		}
	}
	return count
}

// collapse joins the lines of a multi-line fragment with single spaces,
// dropping backslash continuations and indentation. Single-line text is
// returned unchanged so string literals keep their spacing.
func collapse(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "\\"))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
