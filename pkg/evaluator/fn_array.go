package evaluator

import (
	"cmp"
	"context"
	"math/rand"
	"slices"

	"github.com/sandrolain/sonata/pkg/types"
)

// fnZip interleaves its array arguments, stopping at the shortest.
func fnZip(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arrays := make([]*types.Array, 0, len(args))
	n := -1
	for _, a := range args {
		arr, ok := a.(*types.Array)
		if !ok {
			n = 0
			break
		}
		arrays = append(arrays, arr)
		if n < 0 || len(arr.Items) < n {
			n = len(arr.Items)
		}
	}
	result := types.NewArray()
	for i := 0; i < n; i++ {
		tuple := make([]types.Value, len(arrays))
		for j, arr := range arrays {
			tuple[j] = arr.Items[i]
		}
		result.Items = append(result.Items, types.NewArray(tuple...))
	}
	return result, nil
}

func fnAppend(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	return appendValues(args[0], args[1]), nil
}

func fnReverse(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	items := slices.Clone(arr.Items)
	slices.Reverse(items)
	return types.NewArray(items...), nil
}

func fnShuffle(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	items := slices.Clone(arr.Items)
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	return types.NewArray(items...), nil
}

// fnSort sorts stably. Without a comparator the members must be all
// numbers or all strings; a comparator returns true when its first
// argument belongs after its second.
func fnSort(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	if len(arr.Items) <= 1 {
		return arr, nil
	}
	items := slices.Clone(arr.Items)
	if args[1] == nil {
		switch {
		case types.IsArrayOfNumbers(arr):
			slices.SortStableFunc(items, func(a, b types.Value) int {
				return cmp.Compare(a.(types.Number), b.(types.Number))
			})
		case types.IsArrayOfStrings(arr):
			slices.SortStableFunc(items, func(a, b types.Value) int {
				return cmp.Compare(a.(types.String), b.(types.String))
			})
		default:
			return nil, types.NewError(types.ErrSortDefault, -1)
		}
		return types.NewArray(items...), nil
	}
	sorted, err := mergeSort(items, func(a, b types.Value) (bool, error) {
		v, err := c.Call(ctx, args[1], a, b)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	})
	if err != nil {
		return nil, err
	}
	return types.NewArray(sorted...), nil
}

// fnDistinct removes deep-equal duplicates, keeping the first occurrence.
func fnDistinct(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok || len(arr.Items) <= 1 {
		return args[0], nil
	}
	result := &types.Array{Sequence: arr.Sequence}
	for _, it := range arr.Items {
		if !slices.ContainsFunc(result.Items, func(seen types.Value) bool { return types.Equal(seen, it) }) {
			result.Items = append(result.Items, it)
		}
	}
	return result, nil
}
