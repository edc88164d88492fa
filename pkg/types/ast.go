package types

// NodeType identifies the kind of an AST node.
type NodeType string

const (
	NodeLiteral     NodeType = "literal"
	NodeName        NodeType = "name"
	NodeVariable    NodeType = "variable"
	NodeWildcard    NodeType = "wildcard"
	NodeDescendant  NodeType = "descendant"
	NodeRegex       NodeType = "regex"
	NodeNegate      NodeType = "negate"
	NodeArray       NodeType = "array"
	NodeObject      NodeType = "object"
	NodeBinary      NodeType = "binary"
	NodeRange       NodeType = "range"
	NodePath        NodeType = "path"
	NodeBlock       NodeType = "block"
	NodeCondition   NodeType = "condition"
	NodeBind        NodeType = "bind"
	NodeLambda      NodeType = "lambda"
	NodeFunction    NodeType = "function"
	NodePartial     NodeType = "partial"
	NodePlaceholder NodeType = "placeholder"
	NodeApply       NodeType = "apply"
	NodeSort        NodeType = "sort"
	NodeTransform   NodeType = "transform"
	NodeParent      NodeType = "parent"
	NodeIndex       NodeType = "index"
	NodeError       NodeType = "error"
)

// Node is an AST node. Which fields are populated depends on Type. The tree
// is built once by the parser and only read afterwards.
type Node struct {
	Type     NodeType
	Position int

	// Value holds the constant of a literal.
	Value Value
	// Name holds the field name, variable name or operator symbol.
	Name string

	LHS *Node
	RHS *Node

	// Steps of a path.
	Steps []*Node
	// Expressions of a block or array constructor.
	Expressions []*Node

	// Function call / partial application.
	Procedure *Node
	Arguments []*Node

	// Lambda definition.
	Params    []string
	Body      *Node
	Signature string
	// Thunk marks a lambda synthesised around a call in tail position.
	Thunk bool

	Condition *Node
	Then      *Node
	Else      *Node

	// Transform |pattern|update,delete|.
	Pattern *Node
	Update  *Node
	Delete  *Node

	// Pairs of an object constructor.
	Pairs []Pair
	// Terms of an order-by step.
	Terms []SortTerm

	// Stages are filters applied to each result of a path step.
	Stages []*Node
	// Predicates are filters applied to the result of a non-step expression.
	Predicates []*Node
	// Group is a trailing {...} applied to the whole result.
	Group *Group

	// KeepArray is set by an empty [] suffix.
	KeepArray bool
	// ConsArray marks an array constructor used as a path step.
	ConsArray bool
	// KeepSingletonArray is set on a path when any step carries KeepArray.
	KeepSingletonArray bool

	// Focus names the variable bound by step@$var.
	Focus string
	// Index names the variable bound by step#$var, or by an index stage.
	Index string
	// Tuple makes a path step carry its bindings along with each result.
	// On a path or block it returns those bindings to the enclosing step.
	Tuple bool
	// Ancestor is set on the step whose input a later % refers to.
	Ancestor *Slot
	// Slot identifies the step a parent node (%) refers to.
	Slot *Slot
	// SeekingParent lists parent slots not yet matched to a step. It is
	// only used while the parser resolves %.
	SeekingParent []*Slot

	Regex Regexp
	Err   error
}

// Slot ties a parent operator to the step whose input it evaluates to.
// Label is the hidden variable the step binds; Level counts the steps
// still to be walked back while resolving.
type Slot struct {
	Label string
	Level int
}

// Pair is one key/value entry of an object constructor.
type Pair struct {
	Key   *Node
	Value *Node
}

// SortTerm is one term of an order-by clause.
type SortTerm struct {
	Descending bool
	Expr       *Node
}

// Group is an object constructor attached to an expression.
type Group struct {
	Pairs    []Pair
	Position int
}

// Regexp is the matching engine behind regex literals. *regexp.Regexp
// satisfies it.
type Regexp interface {
	FindAllStringSubmatchIndex(s string, n int) [][]int
	String() string
}

// RegexEngine compiles a regex literal. flags holds any of "i", "m", "s".
type RegexEngine func(pattern, flags string) (Regexp, error)
