// Package types defines the value model, AST and errors shared by the
// parser and the evaluator.
//
// Values form a tagged union: a nil Value is undefined, and the concrete
// variants are Null, Bool, Number, String, *Array, *Object and Function.
// An *Array doubles as a sequence, the auto-flattening result of path
// navigation.
package types

// Expression is a parsed expression. It is read-only after parsing and safe
// for concurrent evaluation.
type Expression struct {
	ast    *Node
	source string
	errors []error
}

// NewExpression wraps a parsed tree.
func NewExpression(ast *Node, source string) *Expression {
	return &Expression{ast: ast, source: source}
}

// AST returns the root node.
func (e *Expression) AST() *Node {
	return e.ast
}

// Source returns the text the expression was parsed from.
func (e *Expression) Source() string {
	return e.source
}

// Errors returns the syntax errors collected in recovery mode.
func (e *Expression) Errors() []error {
	return e.errors
}

// AddError records a recovered syntax error.
func (e *Expression) AddError(err error) {
	e.errors = append(e.errors, err)
}

func (e *Expression) String() string {
	return e.source
}
