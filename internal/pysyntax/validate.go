package pysyntax

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// bodyFields names the suite of each compound statement that must have one.
var bodyFields = map[string]string{
	"function_definition": "body",
	"class_definition":    "body",
	"if_statement":        "consequence",
	"elif_clause":         "consequence",
	"while_statement":     "body",
	"for_statement":       "body",
	"with_statement":      "body",
	"try_statement":       "body",
}

// validate rejects trees that tree-sitter accepts but Python 3 does not:
// the grammar keeps Python 2 statements, tolerates bad indentation in error
// recovery and does not check a few context rules.
func validate(root *tree_sitter.Node, src []byte) error {
	if err := checkModuleIndent(root); err != nil {
		return err
	}
	return check(root, src)
}

func syntaxErrorAt(n *tree_sitter.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, int(n.StartPosition().Row)+1, fmt.Sprintf(format, args...))
}

// checkModuleIndent rejects a top-level statement that starts its own line
// with indentation.
func checkModuleIndent(root *tree_sitter.Node) error {
	prevEnd := -1
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil || !child.IsNamed() || child.Kind() == "comment" {
			continue
		}
		start := child.StartPosition()
		if int(start.Row) > prevEnd && start.Column > 0 {
			return syntaxErrorAt(child, "unexpected indent")
		}
		prevEnd = int(child.EndPosition().Row)
	}
	return nil
}

func check(n *tree_sitter.Node, src []byte) error {
	switch n.Kind() {
	case "print_statement", "exec_statement":
		return syntaxErrorAt(n, "python 2 %s", n.Kind())

	case "expression_statement":
		if first := firstNamed(n); first != nil && first.Kind() == "named_expression" {
			return syntaxErrorAt(n, "unparenthesized assignment expression")
		}

	case "identifier":
		switch name := n.Utf8Text(src); name {
		case "async", "await":
			return syntaxErrorAt(n, "keyword %q used as a name", name)
		}

	case "block":
		if err := checkBlock(n); err != nil {
			return err
		}

	case "parameters", "lambda_parameters":
		if err := checkDefaults(n); err != nil {
			return err
		}
	}

	if field, ok := bodyFields[n.Kind()]; ok && n.ChildByFieldName(field) == nil {
		return syntaxErrorAt(n, "%s has no body", n.Kind())
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		if child := n.Child(i); child != nil {
			if err := check(child, src); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkBlock requires a suite to hold a statement and, when it starts on a
// new line, to be indented past its header.
func checkBlock(n *tree_sitter.Node) error {
	first := firstNamed(n)
	if first == nil {
		return syntaxErrorAt(n, "expected an indented block")
	}
	header := n.Parent()
	if header == nil {
		return nil
	}
	hs, fs := header.StartPosition(), first.StartPosition()
	if fs.Row > hs.Row && fs.Column <= hs.Column {
		return syntaxErrorAt(first, "expected an indented block")
	}
	return nil
}

// checkDefaults rejects a positional parameter without a default after one
// with a default. Parameters after * or *args are keyword-only and exempt.
func checkDefaults(n *tree_sitter.Node) error {
	seenDefault := false
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		switch child.Kind() {
		case "default_parameter", "typed_default_parameter":
			seenDefault = true
		case "identifier":
			if seenDefault {
				return syntaxErrorAt(child, "parameter without a default follows parameter with a default")
			}
		case "typed_parameter":
			inner := child.NamedChild(0)
			if inner == nil || inner.Kind() != "identifier" {
				return nil
			}
			if seenDefault {
				return syntaxErrorAt(child, "parameter without a default follows parameter with a default")
			}
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			return nil
		}
	}
	return nil
}
