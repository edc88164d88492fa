package evaluator

import (
	"context"
	"errors"

	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

// fnEval parses and evaluates an expression at run time against the
// given focus, or against the caller's input when none is given. The
// expression sees the caller's variables.
func fnEval(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	src, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	expr, err := parser.Compile(src)
	if err != nil {
		return nil, types.NewError(types.ErrEvalParse, -1).WithValue(types.String(src)).WithCause(err)
	}
	focus := c.Input()
	if len(args) > 1 && args[1] != nil {
		focus = args[1]
		if arr, ok := focus.(*types.Array); ok && !arr.OuterWrapper {
			focus = &types.Array{Items: []types.Value{arr}, Sequence: true, OuterWrapper: true}
		}
	}
	v, err := c.run.eval(ctx, expr.AST(), focus, NewScope(c.env))
	if err != nil {
		var e *types.Error
		if errors.As(err, &e) && e.Code == types.ErrRunaway {
			return nil, err
		}
		return nil, types.NewError(types.ErrEvalRuntime, -1).WithValue(types.String(src)).WithCause(err)
	}
	return v, nil
}
