package evaluator

import (
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

// CallInfo describes one function application seen by a hook.
type CallInfo struct {
	// Name is the name the function was invoked by, or "" for anonymous
	// values such as inline lambdas.
	Name string
	// Depth is the number of applications currently active, including this
	// one.
	Depth int
}

// Hooks observe function applications. Enter runs before a function is
// applied; a non-nil error aborts the whole evaluation. Exit runs after the
// application returns, with its outcome.
type Hooks struct {
	Enter func(ctx context.Context, call CallInfo) error
	Exit  func(ctx context.Context, call CallInfo, result types.Value, err error)
}

// enter enforces the depth and time limits before a function application.
func (r *run) enter(ctx context.Context, name string) error {
	r.depth++
	if r.maxDepth > 0 && r.depth > r.maxDepth {
		return types.NewError(types.ErrRunaway, -1)
	}
	if err := ctx.Err(); err != nil {
		return types.NewError(types.ErrRunaway, -1).WithCause(err)
	}
	if r.hooks.Enter != nil {
		return r.hooks.Enter(ctx, CallInfo{Name: name, Depth: r.depth})
	}
	return nil
}

func (r *run) exit(ctx context.Context, name string, result types.Value, err error) {
	if r.hooks.Exit != nil {
		r.hooks.Exit(ctx, CallInfo{Name: name, Depth: r.depth}, result, err)
	}
	r.depth--
}
