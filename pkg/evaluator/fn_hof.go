package evaluator

import (
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

func fnMap(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	result := types.NewSequence()
	for i, it := range arr.Items {
		v, err := c.Call(ctx, args[1], hofArgs(args[1], it, i, arr)...)
		if err != nil {
			return nil, err
		}
		result.Append(v)
	}
	return result, nil
}

func fnFilter(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	result := types.NewSequence()
	for i, it := range arr.Items {
		v, err := c.Call(ctx, args[1], hofArgs(args[1], it, i, arr)...)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			result.Append(it)
		}
	}
	return result, nil
}

// fnSingle returns the only member satisfying the predicate. Without a
// predicate every member satisfies it.
func fnSingle(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	var found types.Value
	hasFound := false
	for i, it := range arr.Items {
		keep := true
		if args[1] != nil {
			v, err := c.Call(ctx, args[1], hofArgs(args[1], it, i, arr)...)
			if err != nil {
				return nil, err
			}
			keep = truthy(v)
		}
		if !keep {
			continue
		}
		if hasFound {
			return nil, types.NewError(types.ErrSingleMultiple, -1)
		}
		found, hasFound = it, true
	}
	if !hasFound {
		return nil, types.NewError(types.ErrSingleNone, -1)
	}
	return found, nil
}

// fnReduce folds the array from the left. Without an initial value the
// first member seeds the accumulator.
func fnReduce(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	fn, _ := args[1].(types.Function)
	arity := 0
	if fn != nil {
		arity = fn.Arity()
	}
	if arity < 2 {
		return nil, types.NewError(types.ErrReduceArity, -1).WithIndex(2)
	}
	acc, start := args[2], 0
	if acc == nil && len(arr.Items) > 0 {
		acc, start = arr.Items[0], 1
	}
	for i := start; i < len(arr.Items); i++ {
		callArgs := []types.Value{acc, arr.Items[i]}
		if arity >= 3 {
			callArgs = append(callArgs, types.Number(i))
		}
		if arity >= 4 {
			callArgs = append(callArgs, arr)
		}
		v, err := c.Call(ctx, fn, callArgs...)
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}

// entryArgs builds the callback arguments for an object entry: the value,
// then the key and the object when fn accepts them.
func entryArgs(fn types.Value, v types.Value, key string, obj *types.Object) []types.Value {
	n := 1
	if f, ok := fn.(types.Function); ok {
		n = f.Arity()
	}
	args := []types.Value{v}
	if n >= 2 {
		args = append(args, types.String(key))
	}
	if n >= 3 {
		args = append(args, obj)
	}
	return args
}

func fnSift(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	obj, ok := args[0].(*types.Object)
	if !ok {
		return nil, nil
	}
	result := types.NewObject(0)
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		keep, err := c.Call(ctx, args[1], entryArgs(args[1], v, k, obj)...)
		if err != nil {
			return nil, err
		}
		if truthy(keep) {
			result.Set(k, v)
		}
	}
	if result.Len() == 0 {
		return nil, nil
	}
	return result, nil
}

func fnEach(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	obj, ok := args[0].(*types.Object)
	if !ok {
		return nil, nil
	}
	result := types.NewSequence()
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		out, err := c.Call(ctx, args[1], entryArgs(args[1], v, k, obj)...)
		if err != nil {
			return nil, err
		}
		result.Append(out)
	}
	return result, nil
}
