// Package sonata is a Go implementation of a JSON query and transformation
// language in the JSONata family.
//
// Expressions select, filter, reshape and aggregate JSON documents. The
// package compiles expression text into an AST once and evaluates it many
// times, concurrently if needed.
//
// # Quick Start
//
//	// Simple evaluation
//	result, err := sonata.Eval("$.name", data)
//
//	// Compile once, evaluate many times
//	expr, err := sonata.Compile("$.items[price > 100]")
//	result1, _ := expr.Evaluate(ctx, data1, nil)
//	result2, _ := expr.Evaluate(ctx, data2, nil)
//
//	// With options
//	result, err := sonata.Eval("$.items", data,
//	    sonata.WithTimeout(5*time.Second),
//	    sonata.WithLogger(logger),
//	)
//
// Go values passed in are converted with [types.FromGo]; results are
// returned as plain Go data (nil, bool, float64, string, []any,
// map[string]any). A nil result means the expression produced no value.
//
// # More Information
//
//   - Parser: github.com/sandrolain/sonata/pkg/parser
//   - Evaluator: github.com/sandrolain/sonata/pkg/evaluator
//   - Functions: github.com/sandrolain/sonata/pkg/functions
//   - Types: github.com/sandrolain/sonata/pkg/types
package sonata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sandrolain/sonata/pkg/cache"
	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

// Version returns the current version of sonata.
func Version() string {
	return "v0.2.0-dev"
}

// expressions caches compiled expressions for Eval and EvalJSON.
var expressions = cache.New(cache.DefaultCapacity)

// WithLogger sets the logger used by evaluations and the expression cache.
func WithLogger(logger *zap.Logger) evaluator.EvalOption {
	return evaluator.WithLogger(logger)
}

// WithDebug enables debug logging.
func WithDebug(enabled bool) evaluator.EvalOption {
	return evaluator.WithDebug(enabled)
}

// WithTimeout bounds a single evaluation.
func WithTimeout(d time.Duration) evaluator.EvalOption {
	return evaluator.WithTimeout(d)
}

// WithFunctions registers host functions.
func WithFunctions(defs ...functions.Definition) evaluator.EvalOption {
	return func(opts *evaluator.EvalOptions) {
		opts.Functions = append(opts.Functions, defs...)
	}
}

// Compile compiles an expression for repeated evaluation.
//
// The compiled expression can be evaluated many times against different
// data, from any number of goroutines.
//
// Example:
//
//	expr, err := sonata.Compile("$.items[price > 100]")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, _ := expr.Evaluate(ctx, data, nil)
func Compile(query string, opts ...parser.CompileOption) (*Expression, error) {
	expr, err := parser.Compile(query, opts...)
	if err != nil {
		return nil, err
	}
	return newExpression(expr), nil
}

// MustCompile is like Compile but panics if the expression cannot be
// compiled. It simplifies safe initialization of global variables.
func MustCompile(query string) *Expression {
	expr, err := Compile(query)
	if err != nil {
		panic(fmt.Sprintf("sonata: Compile(%q): %v", query, err))
	}
	return expr
}

// Eval compiles and evaluates an expression in a single call. Compiled
// expressions are cached by text, so repeated calls with the same query
// parse it once.
//
// Example:
//
//	result, err := sonata.Eval("$.name", data)
func Eval(query string, data any, opts ...evaluator.EvalOption) (any, error) {
	return EvalWithContext(context.Background(), query, data, opts...)
}

// EvalWithContext is Eval with a caller-supplied context.
func EvalWithContext(ctx context.Context, query string, data any, opts ...evaluator.EvalOption) (any, error) {
	ev := evaluator.New(opts...)
	expr, err := cached(query, ev)
	if err != nil {
		return nil, err
	}
	input, err := toValue(data)
	if err != nil {
		return nil, err
	}
	result, err := ev.Eval(ctx, expr, input)
	if err != nil {
		return nil, err
	}
	return types.ToGo(result), nil
}

// EvalJSON evaluates query against a JSON document and returns the result
// as JSON. Object key order of the input is preserved. An undefined result
// is returned as nil.
func EvalJSON(ctx context.Context, query string, data []byte, opts ...evaluator.EvalOption) ([]byte, error) {
	ev := evaluator.New(opts...)
	expr, err := cached(query, ev)
	if err != nil {
		return nil, err
	}
	var input types.Value
	if len(data) > 0 {
		if input, err = types.DecodeJSON(data); err != nil {
			return nil, err
		}
	}
	result, err := ev.Eval(ctx, expr, input)
	if err != nil || result == nil {
		return nil, err
	}
	out, err := types.Stringify(result, false)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func cached(query string, ev *evaluator.Evaluator) (*types.Expression, error) {
	return expressions.GetOrCompile(query, func() (*types.Expression, error) {
		if o := ev.Options(); o.Debug {
			o.Logger.Debug("expression cache miss", zap.String("expr", query))
		}
		return parser.Compile(query)
	})
}

// toValue converts host data into a Value. A nil input is undefined.
func toValue(data any) (types.Value, error) {
	if data == nil {
		return nil, nil
	}
	return types.FromGo(data)
}

// Result is the outcome of an asynchronous evaluation.
type Result struct {
	Value any
	Err   error
}

// Expression is a compiled expression together with the bindings and host
// functions registered on it. Bindings persist across evaluations.
type Expression struct {
	expr *types.Expression

	mu       sync.RWMutex
	opts     []evaluator.EvalOption
	bindings map[string]types.Value
	ev       *evaluator.Evaluator
}

func newExpression(expr *types.Expression) *Expression {
	return &Expression{expr: expr, bindings: map[string]types.Value{}}
}

// Configure sets the evaluator options used by later evaluations.
func (e *Expression) Configure(opts ...evaluator.EvalOption) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = append(e.opts, opts...)
	e.ev = nil
}

func (e *Expression) snapshot() (*evaluator.Evaluator, map[string]types.Value) {
	e.mu.RLock()
	ev := e.ev
	bindings := make(map[string]types.Value, len(e.bindings))
	for k, v := range e.bindings {
		bindings[k] = v
	}
	opts := e.opts
	e.mu.RUnlock()
	if ev != nil {
		return ev, bindings
	}
	ev = evaluator.New(opts...)
	e.mu.Lock()
	if e.ev == nil {
		e.ev = ev
	}
	ev = e.ev
	e.mu.Unlock()
	return ev, bindings
}

// Evaluate evaluates the expression against input. bindings are visible as
// $name for this call only and shadow bindings made with Assign.
func (e *Expression) Evaluate(ctx context.Context, input any, bindings map[string]any) (any, error) {
	ev, scope := e.snapshot()
	for name, v := range bindings {
		cv, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("sonata: binding %q: %w", name, err)
		}
		scope[name] = cv
	}
	in, err := toValue(input)
	if err != nil {
		return nil, err
	}
	result, err := ev.EvalWithBindings(ctx, e.expr, in, scope)
	if err != nil {
		return nil, err
	}
	return types.ToGo(result), nil
}

// EvaluateAsync runs Evaluate on its own goroutine. The channel delivers
// exactly one Result.
func (e *Expression) EvaluateAsync(ctx context.Context, input any, bindings map[string]any) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		v, err := e.Evaluate(ctx, input, bindings)
		ch <- Result{Value: v, Err: err}
	}()
	return ch
}

// Assign binds name to value for every later evaluation.
func (e *Expression) Assign(name string, value any) error {
	v, err := toValue(value)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.bindings[name] = v
	e.mu.Unlock()
	return nil
}

// RegisterFunction exposes a host function as $name.
func (e *Expression) RegisterFunction(def functions.Definition) error {
	fn, err := evaluator.NewFunction(def)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.bindings[def.Name] = fn
	e.mu.Unlock()
	return nil
}

// RegisterAsyncFunction exposes an asynchronous host function as $name.
// Evaluation waits at the call site until fn delivers its result.
func (e *Expression) RegisterAsyncFunction(name, signature string, fn functions.AsyncFunc) error {
	return e.RegisterFunction(functions.Definition{Name: name, Signature: signature, Async: fn})
}

// AST returns the root of the compiled tree.
func (e *Expression) AST() *types.Node {
	return e.expr.AST()
}

// Source returns the expression text.
func (e *Expression) Source() string {
	return e.expr.Source()
}

// Errors returns the syntax errors collected when compiling with
// parser.WithRecovery.
func (e *Expression) Errors() []error {
	return e.expr.Errors()
}
