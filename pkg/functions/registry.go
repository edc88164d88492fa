// Package functions describes host functions that expressions can call.
//
// A host function is exposed as $name inside expression text. It receives
// evaluated arguments as [types.Value] and returns a Value (nil for
// undefined). An optional signature string such as "<s-n?:s>" is checked
// before the function runs.
//
// # Example
//
//	def := functions.Definition{
//	    Name:      "greet",
//	    Signature: "<s:s>",
//	    Fn: func(ctx context.Context, args ...types.Value) (types.Value, error) {
//	        return types.String("Hello, " + string(args[0].(types.String))), nil
//	    },
//	}
package functions

import (
	"context"
	"errors"

	"github.com/sandrolain/sonata/pkg/types"
)

// Func is a synchronous host function.
type Func func(ctx context.Context, args ...types.Value) (types.Value, error)

// Caller invokes a function value that was passed as an argument.
type Caller interface {
	Call(ctx context.Context, fn types.Value, args ...types.Value) (types.Value, error)
}

// AdvancedFunc is a host function that can call back into the evaluator,
// typically to apply a lambda argument.
type AdvancedFunc func(ctx context.Context, caller Caller, args ...types.Value) (types.Value, error)

// Result is the outcome of an asynchronous host function.
type Result struct {
	Value types.Value
	Err   error
}

// AsyncFunc starts a host computation and returns a channel that delivers
// exactly one Result. Evaluation suspends at the call site until the result
// arrives or the context is done.
type AsyncFunc func(ctx context.Context, args ...types.Value) <-chan Result

// Definition describes one host function. Exactly one of Fn, Advanced and
// Async must be set.
type Definition struct {
	// Name without the $ prefix.
	Name string
	// Signature is optional; empty disables argument checking.
	Signature string

	Fn       Func
	Advanced AdvancedFunc
	Async    AsyncFunc
}

var (
	ErrNoName           = errors.New("functions: definition has no name")
	ErrNoImplementation = errors.New("functions: definition needs exactly one of Fn, Advanced or Async")
)

// Validate checks that d is usable.
func (d Definition) Validate() error {
	if d.Name == "" {
		return ErrNoName
	}
	n := 0
	if d.Fn != nil {
		n++
	}
	if d.Advanced != nil {
		n++
	}
	if d.Async != nil {
		n++
	}
	if n != 1 {
		return ErrNoImplementation
	}
	return nil
}

// Resolve waits for the result of an asynchronous call.
func Resolve(ctx context.Context, ch <-chan Result) (types.Value, error) {
	select {
	case res, ok := <-ch:
		if !ok {
			return nil, nil
		}
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Go runs fn on its own goroutine and adapts it into an AsyncFunc.
func Go(fn Func) AsyncFunc {
	return func(ctx context.Context, args ...types.Value) <-chan Result {
		ch := make(chan Result, 1)
		go func() {
			v, err := fn(ctx, args...)
			ch <- Result{Value: v, Err: err}
		}()
		return ch
	}
}
