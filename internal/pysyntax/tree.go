package pysyntax

import "fmt"

// Kind identifies one of the node shapes the analyzer distinguishes.
type Kind int

const (
	KindBlock Kind = iota
	KindImport
	KindImportFrom
	KindAssign
	KindFunctionDef
	KindReturn
	KindCallName
	KindCallAttribute
	KindCallOther
	KindIf
	KindWhile
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindImport:
		return "import"
	case KindImportFrom:
		return "import_from"
	case KindAssign:
		return "assign"
	case KindFunctionDef:
		return "function_def"
	case KindReturn:
		return "return"
	case KindCallName:
		return "call_name"
	case KindCallAttribute:
		return "call_attribute"
	case KindCallOther:
		return "call_other"
	case KindIf:
		return "if"
	case KindWhile:
		return "while"
	default:
		return "unknown"
	}
}

// Placeholders substituted when a piece of source cannot be rendered.
const (
	// PlaceholderExpr replaces an expression that could not be rendered.
	PlaceholderExpr = "<unparseable>"
	// PlaceholderCall stands in for a call whose callee is neither a name
	// nor an attribute (subscripts, calls of calls, lambdas, ...).
	PlaceholderCall = "<complex>"
)

// Span is a 1-based, inclusive line range.
type Span struct {
	StartLine int
	EndLine   int
}

// Module is the root of a syntax tree: the ordered top-level statements of
// one source file.
type Module struct {
	Body []Node
}

// Node is a closed set: only the types declared in this file implement it.
type Node interface {
	Kind() Kind
	sealed()
}

// Import is `import a.b, c as d`.
type Import struct {
	Modules []string
}

// ImportFrom is `from m import x`. Module is empty for `from . import x`.
type ImportFrom struct {
	Module string
}

// Assign is a plain `=` assignment. Target is set only when Simple is true,
// i.e. a single bare name is assigned.
type Assign struct {
	Target   string
	Simple   bool
	Children []Node
}

// FunctionDef is a `def` or `async def` statement.
// Header holds decorators, parameter defaults/annotations and the return
// annotation, in source order.
type FunctionDef struct {
	Name   string
	Params []string
	Async  bool
	Lines  Span
	Header []Node
	Body   []Node
}

// Return is a `return` statement. Text is "None" for a bare return.
type Return struct {
	Text  string
	Value Node
}

// CallName is a call whose callee is a bare identifier: `f(...)`.
type CallName struct {
	Name string
	Args []Node
}

// CallAttribute is a call whose callee is an attribute: `expr.attr(...)`.
type CallAttribute struct {
	Receiver     Node
	ReceiverText string
	Attr         string
	Args         []Node
}

// CallOther is a call of any other callee shape.
type CallOther struct {
	Callee Node
	Args   []Node
}

// If is an `if` statement, including its elif/else clauses.
type If struct {
	Children []Node
}

// While is a `while` loop, including its else clause.
type While struct {
	Children []Node
}

// Block is every other syntactic shape. Type is the grammar's node type.
type Block struct {
	Type     string
	Children []Node
}

func (*Import) Kind() Kind        { return KindImport }
func (*ImportFrom) Kind() Kind    { return KindImportFrom }
func (*Assign) Kind() Kind        { return KindAssign }
func (*FunctionDef) Kind() Kind   { return KindFunctionDef }
func (*Return) Kind() Kind        { return KindReturn }
func (*CallName) Kind() Kind      { return KindCallName }
func (*CallAttribute) Kind() Kind { return KindCallAttribute }
func (*CallOther) Kind() Kind     { return KindCallOther }
func (*If) Kind() Kind            { return KindIf }
func (*While) Kind() Kind         { return KindWhile }
func (*Block) Kind() Kind         { return KindBlock }

func (*Import) sealed()        {}
func (*ImportFrom) sealed()    {}
func (*Assign) sealed()        {}
func (*FunctionDef) sealed()   {}
func (*Return) sealed()        {}
func (*CallName) sealed()      {}
func (*CallAttribute) sealed() {}
func (*CallOther) sealed()     {}
func (*If) sealed()            {}
func (*While) sealed()         {}
func (*Block) sealed()         {}

// Walk visits n and its descendants depth-first, pre-order, in source order.
// When fn returns false the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Import, *ImportFrom:
	case *Assign:
		walkAll(v.Children, fn)
	case *FunctionDef:
		walkAll(v.Header, fn)
		walkAll(v.Body, fn)
	case *Return:
		Walk(v.Value, fn)
	case *CallName:
		walkAll(v.Args, fn)
	case *CallAttribute:
		Walk(v.Receiver, fn)
		walkAll(v.Args, fn)
	case *CallOther:
		Walk(v.Callee, fn)
		walkAll(v.Args, fn)
	case *If:
		walkAll(v.Children, fn)
	case *While:
		walkAll(v.Children, fn)
	case *Block:
		walkAll(v.Children, fn)
	default:
		panic(fmt.Sprintf("pysyntax: unhandled node type %T", n))
	}
}

// WalkAll walks each node in order.
func WalkAll(nodes []Node, fn func(Node) bool) {
	walkAll(nodes, fn)
}

func walkAll(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		Walk(n, fn)
	}
}
