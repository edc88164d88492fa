// Package parser turns expression text into an evaluation-ready AST.
//
// Parsing happens in two stages. A Pratt parser builds a syntax tree that
// mirrors the source, then a post-processing pass rewrites it into the
// shapes the evaluator works with: dotted chains become path nodes with an
// explicit step list, predicates and grouping clauses are attached to the
// step they follow, and calls in tail position of a lambda body are wrapped
// in thunks.
//
// # Example
//
//	expr, err := parser.Compile("Account.Order[0].Product.Price")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	root := expr.AST()
package parser

import (
	"github.com/sandrolain/sonata/pkg/types"
)

// Parse parses query with default options.
func Parse(query string) (*types.Expression, error) {
	return Compile(query)
}

// Compile parses query into an Expression.
//
// Without recovery the first error is returned. With WithRecovery the
// returned Expression holds every syntax error in Errors() and the broken
// operands are replaced by error nodes; err is only non-nil for lexical
// errors, which are never recovered.
func Compile(query string, opts ...CompileOption) (*types.Expression, error) {
	p := NewParser(query, opts...)
	return p.Parse()
}

// CompileOption configures compilation behavior.
type CompileOption func(*CompileOptions)

// CompileOptions holds parser configuration.
type CompileOptions struct {
	// EnableRecovery collects syntax errors instead of failing on the first.
	EnableRecovery bool
	// MaxDepth limits expression nesting.
	MaxDepth int
	// RegexEngine compiles regex literals. Defaults to DefaultRegexEngine.
	RegexEngine types.RegexEngine
}

// WithRecovery enables error recovery mode.
func WithRecovery() CompileOption {
	return func(opts *CompileOptions) {
		opts.EnableRecovery = true
	}
}

// WithMaxDepth sets the maximum expression nesting depth.
func WithMaxDepth(depth int) CompileOption {
	return func(opts *CompileOptions) {
		opts.MaxDepth = depth
	}
}

// WithRegexEngine substitutes the engine used for regex literals.
func WithRegexEngine(engine types.RegexEngine) CompileOption {
	return func(opts *CompileOptions) {
		opts.RegexEngine = engine
	}
}
