package evaluator

import (
	"context"
	"math"

	"github.com/sandrolain/sonata/pkg/types"
)

// numbers returns the members of an array argument that the signature has
// already checked to be numeric.
func numbers(v types.Value) []float64 {
	arr, ok := v.(*types.Array)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr.Items))
	for _, it := range arr.Items {
		if n, ok := it.(types.Number); ok {
			out = append(out, float64(n))
		}
	}
	return out
}

func fnSum(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	total := 0.0
	for _, n := range numbers(args[0]) {
		total += n
	}
	return types.Number(total), nil
}

func fnCount(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return types.Number(0), nil
	}
	return types.Number(len(arr.Items)), nil
}

func fnMax(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	ns := numbers(args[0])
	if len(ns) == 0 {
		return nil, nil
	}
	m := math.Inf(-1)
	for _, n := range ns {
		m = math.Max(m, n)
	}
	return types.Number(m), nil
}

func fnMin(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	ns := numbers(args[0])
	if len(ns) == 0 {
		return nil, nil
	}
	m := math.Inf(1)
	for _, n := range ns {
		m = math.Min(m, n)
	}
	return types.Number(m), nil
}

func fnAverage(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	ns := numbers(args[0])
	if len(ns) == 0 {
		return nil, nil
	}
	total := 0.0
	for _, n := range ns {
		total += n
	}
	return types.Number(total / float64(len(ns))), nil
}
