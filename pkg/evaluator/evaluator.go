// Package evaluator implements the expression evaluation engine.
//
// The evaluator receives a parsed AST from the parser and walks it against
// a JSON value. It supports:
//   - Path navigation with sequence flattening, predicates and grouping
//   - Lambdas with closures, partial application and tail calls
//   - The built-in function library and host functions
//   - Call depth and time limits via hooks and context.Context
//
// # Example
//
//	ev := evaluator.New()
//	result, err := ev.Eval(ctx, expr, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// One Evaluator and one Expression may be shared by any number of
// goroutines. Each call to Eval owns its own environment frames.
//
//	results, err := ev.EvalMany(ctx, expr, inputs)
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/types"
)

// Evaluator evaluates expressions against data.
type Evaluator struct {
	opts    EvalOptions
	logger  *zap.Logger
	globals *Scope
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// MaxDepth limits the depth of nested function applications. Zero
	// disables the limit.
	MaxDepth int
	// Timeout bounds a single evaluation. Zero disables it.
	Timeout time.Duration
	// Concurrency bounds the goroutines used by EvalMany.
	Concurrency int
	// Debug enables debug logging.
	Debug bool
	// Logger for structured logging.
	Logger *zap.Logger
	// Hooks observe every function application.
	Hooks Hooks
	// Metrics records evaluation outcomes when set.
	Metrics *Metrics
	// Functions are host functions visible to every evaluation.
	Functions []functions.Definition
}

// EvalOption configures evaluation behavior.
type EvalOption func(*EvalOptions)

// New creates a new Evaluator with default options. It panics when a host
// function definition is invalid; use NewFunction to check definitions
// beforehand.
func New(opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		MaxDepth:    10000,
		Timeout:     30 * time.Second,
		Concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}

	globals := NewScope(builtinScope())
	for _, def := range options.Functions {
		fn, err := NewFunction(def)
		if err != nil {
			panic(fmt.Sprintf("evaluator: function %q: %v", def.Name, err))
		}
		globals.Bind(def.Name, fn)
	}

	return &Evaluator{
		opts:    options,
		logger:  options.Logger,
		globals: globals,
	}
}

// WithMaxDepth sets the maximum depth of nested function applications.
func WithMaxDepth(depth int) EvalOption {
	return func(opts *EvalOptions) {
		opts.MaxDepth = depth
	}
}

// WithTimeout sets the evaluation timeout.
func WithTimeout(timeout time.Duration) EvalOption {
	return func(opts *EvalOptions) {
		opts.Timeout = timeout
	}
}

// WithConcurrency bounds the parallelism of EvalMany.
func WithConcurrency(n int) EvalOption {
	return func(opts *EvalOptions) {
		opts.Concurrency = n
	}
}

// WithDebug enables or disables debug logging.
func WithDebug(enabled bool) EvalOption {
	return func(opts *EvalOptions) {
		opts.Debug = enabled
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) EvalOption {
	return func(opts *EvalOptions) {
		opts.Logger = logger
	}
}

// WithHooks installs function entry and exit hooks.
func WithHooks(h Hooks) EvalOption {
	return func(opts *EvalOptions) {
		opts.Hooks = h
	}
}

// WithMetrics records evaluation metrics into m.
func WithMetrics(m *Metrics) EvalOption {
	return func(opts *EvalOptions) {
		opts.Metrics = m
	}
}

// WithFunction registers a host function callable as $name from every
// expression evaluated by this Evaluator.
//
// Example:
//
//	evaluator.New(evaluator.WithFunction(functions.Definition{
//	    Name:      "greet",
//	    Signature: "<s:s>",
//	    Fn: func(ctx context.Context, args ...types.Value) (types.Value, error) {
//	        return types.String("Hello, " + string(args[0].(types.String))), nil
//	    },
//	}))
func WithFunction(def functions.Definition) EvalOption {
	return func(opts *EvalOptions) {
		opts.Functions = append(opts.Functions, def)
	}
}

// WithAsyncFunction registers an asynchronous host function.
func WithAsyncFunction(name, signature string, fn functions.AsyncFunc) EvalOption {
	return WithFunction(functions.Definition{Name: name, Signature: signature, Async: fn})
}

// Options returns the effective options.
func (e *Evaluator) Options() EvalOptions {
	return e.opts
}

// ErrInvalidExpression is returned when Eval is given a nil or empty
// expression.
var ErrInvalidExpression = errors.New("evaluator: invalid expression")

// Eval evaluates an expression against input.
func (e *Evaluator) Eval(ctx context.Context, expr *types.Expression, input types.Value) (types.Value, error) {
	return e.EvalWithBindings(ctx, expr, input, nil)
}

// EvalWithBindings evaluates an expression with extra variable bindings.
// Binding values may be functions created with NewFunction.
func (e *Evaluator) EvalWithBindings(ctx context.Context, expr *types.Expression, input types.Value, bindings map[string]types.Value) (types.Value, error) {
	if expr == nil || expr.AST() == nil {
		return nil, ErrInvalidExpression
	}
	if len(expr.Errors()) > 0 {
		return nil, types.NewError(types.ErrEvalSyntaxErrors, -1)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	if e.opts.Debug {
		e.logger.Debug("evaluation started", zap.String("expr", expr.Source()))
	}

	r := e.newRun(start)
	env := NewScope(e.globals)
	for name, v := range bindings {
		env.Bind(name, v)
	}
	env.Bind("$", input)

	// an array input is stepped over as one value
	if arr, ok := input.(*types.Array); ok && !arr.Sequence {
		input = &types.Array{Items: []types.Value{arr}, Sequence: true, OuterWrapper: true}
	}

	result, err := r.eval(ctx, expr.AST(), input, env)
	if err == nil {
		result = types.Plain(untuple(result))
	}

	elapsed := time.Since(start)
	e.opts.Metrics.observe(elapsed, err)
	if e.opts.Debug {
		if err != nil {
			e.logger.Debug("evaluation failed",
				zap.String("expr", expr.Source()),
				zap.Duration("elapsed", elapsed),
				zap.String("code", string(types.CodeOf(err))),
				zap.Error(err))
		} else {
			e.logger.Debug("evaluation finished",
				zap.String("expr", expr.Source()),
				zap.Duration("elapsed", elapsed))
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Evaluator) newRun(now time.Time) *run {
	return &run{
		ev:       e,
		maxDepth: e.opts.MaxDepth,
		hooks:    e.opts.Hooks,
		now:      now,
	}
}
