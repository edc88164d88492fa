package evaluator

import (
	"context"
	"math"

	"github.com/sandrolain/sonata/pkg/types"
)

// evalFilter applies one predicate to input. A numeric literal selects by
// position; any other predicate is evaluated per item and either selects
// positions (numbers) or keeps the item when truthy. $index is bound to the
// item's position while the predicate runs.
func (r *run) evalFilter(ctx context.Context, pred *types.Node, input types.Value, env *Scope) (types.Value, error) {
	if ts, ok := input.(*tupleStream); ok {
		out, err := r.filterTuples(ctx, pred, ts.tuples, env)
		if err != nil {
			return nil, err
		}
		return &tupleStream{tuples: out}, nil
	}
	var items []types.Value
	if arr, ok := input.(*types.Array); ok {
		items = arr.Items
	} else {
		items = []types.Value{input}
	}
	results := types.NewSequence()

	if num, ok := pred.Value.(types.Number); ok && pred.Type == types.NodeLiteral {
		idx := normalizeIndex(float64(num), len(items))
		if idx >= 0 && idx < len(items) {
			item := items[idx]
			if arr, ok := item.(*types.Array); ok {
				return arr, nil
			}
			results.Append(item)
		}
		return results, nil
	}

	frame := NewScope(env)
	for i, item := range items {
		frame.Bind("index", types.Number(i))
		res, err := r.eval(ctx, pred, item, frame)
		if err != nil {
			return nil, err
		}
		for n := predicateHits(res, i, len(items)); n > 0; n-- {
			results.Append(item)
		}
	}
	return results, nil
}

// predicateHits reports how many times the predicate result res selects
// item i of n: numbers select by position, other values by truthiness.
func predicateHits(res types.Value, i, n int) int {
	if num, ok := res.(types.Number); ok {
		res = types.NewArray(num)
	}
	if arr, ok := res.(*types.Array); ok && types.IsArrayOfNumbers(arr) {
		hits := 0
		for _, v := range arr.Items {
			if normalizeIndex(float64(v.(types.Number)), n) == i {
				hits++
			}
		}
		return hits
	}
	if truthy(res) {
		return 1
	}
	return 0
}

// normalizeIndex floors f and counts negative indexes from the end.
func normalizeIndex(f float64, n int) int {
	idx := math.Floor(f)
	if idx < 0 {
		idx += float64(n)
	}
	if idx < 0 || idx >= float64(n) {
		return -1
	}
	return int(idx)
}
