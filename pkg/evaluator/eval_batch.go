package evaluator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sandrolain/sonata/pkg/types"
)

// EvalMany evaluates expr against every input concurrently, bounded by the
// Concurrency option. Results are returned in input order. The first
// failure cancels the remaining evaluations and is returned.
func (e *Evaluator) EvalMany(ctx context.Context, expr *types.Expression, inputs []types.Value) ([]types.Value, error) {
	if expr == nil || expr.AST() == nil {
		return nil, ErrInvalidExpression
	}
	results := make([]types.Value, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			v, err := e.Eval(gctx, expr, input)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
