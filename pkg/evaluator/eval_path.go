package evaluator

import (
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

// evalPath maps each step over the sequence produced by the previous one.
func (r *run) evalPath(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	var items []types.Value
	if arr, ok := input.(*types.Array); ok && node.Steps[0].Type != types.NodeVariable {
		items = arr.Items
	} else {
		items = []types.Value{input}
	}

	var result types.Value
	// from the first step that binds a variable on, the path carries
	// tuples instead of plain values
	var tuples []tuple
	inTuples := false
	last := len(node.Steps) - 1
	for i, step := range node.Steps {
		if err := ctx.Err(); err != nil {
			return nil, types.NewError(types.ErrRunaway, step.Position).WithCause(err)
		}
		var err error
		switch {
		case i == 0 && step.ConsArray:
			// a leading array constructor is evaluated once, not per item
			result, err = r.eval(ctx, step, types.NewSequence(items...), env)
		case inTuples || step.Tuple:
			if !inTuples {
				tuples = seedTuples(items)
				inTuples = true
			}
			if tuples, err = r.evalTupleStep(ctx, step, tuples, env); err != nil {
				return nil, err
			}
			continue
		default:
			result, err = r.evalStep(ctx, step, items, env, i == last)
		}
		if err != nil {
			return nil, err
		}
		arr, ok := result.(*types.Array)
		if result == nil || (ok && len(arr.Items) == 0) {
			break
		}
		if ok {
			items = arr.Items
		} else {
			items = []types.Value{result}
		}
	}

	if inTuples {
		if node.Tuple {
			// an enclosing tuple step merges the bindings
			return &tupleStream{tuples: tuples}, nil
		}
		result = contexts(tuples)
		if node.Group != nil {
			return r.groupTuples(ctx, node.Group.Pairs, node.Group.Position, tuples, env)
		}
	}

	if node.KeepSingletonArray {
		if arr, ok := result.(*types.Array); ok {
			if arr.Cons && !arr.Sequence {
				result = &types.Array{Items: []types.Value{arr}, Sequence: true}
			}
			if seq := result.(*types.Array); seq.Sequence {
				seq.KeepSingleton = true
			}
		}
	}

	if node.Group != nil {
		return r.evalGroup(ctx, node.Group.Pairs, node.Group.Position, result, env)
	}
	return result, nil
}

// evalStep evaluates one path step for every item and flattens the results
// by one level. Arrays built by a constructor step stay whole.
func (r *run) evalStep(ctx context.Context, step *types.Node, items []types.Value, env *Scope, lastStep bool) (types.Value, error) {
	if step.Type == types.NodeSort {
		result, err := r.evalSort(ctx, step, types.NewSequence(items...), env)
		if err != nil {
			return nil, err
		}
		for _, stage := range step.Stages {
			if result, err = r.evalFilter(ctx, stage, result, env); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	results := make([]types.Value, 0, len(items))
	for _, item := range items {
		res, err := r.eval(ctx, step, item, env)
		if err != nil {
			return nil, err
		}
		res = untuple(res)
		for _, stage := range step.Stages {
			if res, err = r.evalFilter(ctx, stage, res, env); err != nil {
				return nil, err
			}
		}
		if res != nil {
			results = append(results, res)
		}
	}

	if lastStep && len(results) == 1 {
		if arr, ok := results[0].(*types.Array); ok && !arr.Sequence {
			return arr, nil
		}
	}

	seq := types.NewSequence()
	for _, res := range results {
		arr, ok := res.(*types.Array)
		if !ok || arr.Cons {
			seq.Items = append(seq.Items, res)
			continue
		}
		seq.Items = append(seq.Items, arr.Items...)
	}
	return seq, nil
}

// lookupField returns the value of key in an object, mapping over arrays
// and flattening array-valued fields into the result sequence.
func lookupField(input types.Value, key string) types.Value {
	switch x := input.(type) {
	case *types.Array:
		seq := types.NewSequence()
		for _, it := range x.Items {
			res := lookupField(it, key)
			if arr, ok := res.(*types.Array); ok {
				seq.Items = append(seq.Items, arr.Items...)
			} else {
				seq.Append(res)
			}
		}
		return seq
	case *types.Object:
		v, _ := x.Get(key)
		return v
	}
	return nil
}

// wildcard returns the values of every field of an object, flattening
// array values.
func wildcard(input types.Value) types.Value {
	seq := types.NewSequence()
	if arr, ok := input.(*types.Array); ok && arr.OuterWrapper && len(arr.Items) > 0 {
		input = arr.Items[0]
	}
	add := func(v types.Value) {
		if _, ok := v.(*types.Array); ok {
			seq.Items = types.Flatten(v, seq.Items)
			return
		}
		seq.Append(v)
	}
	switch x := input.(type) {
	case *types.Object:
		x.Range(func(_ string, v types.Value) bool {
			add(v)
			return true
		})
	case *types.Array:
		for _, it := range x.Items {
			add(it)
		}
	}
	return seq
}

// descendants returns input and every value nested inside it, in
// pre-order. Arrays contribute their members rather than themselves.
func descendants(input types.Value) types.Value {
	if input == nil {
		return nil
	}
	seq := types.NewSequence()
	collectDescendants(input, seq)
	if len(seq.Items) == 1 {
		return seq.Items[0]
	}
	return seq
}

func collectDescendants(v types.Value, seq *types.Array) {
	switch x := v.(type) {
	case *types.Array:
		for _, it := range x.Items {
			collectDescendants(it, seq)
		}
	case *types.Object:
		seq.Append(x)
		x.Range(func(_ string, val types.Value) bool {
			collectDescendants(val, seq)
			return true
		})
	default:
		seq.Append(v)
	}
}
