// Package extarray provides array functions beyond the standard library of
// the language: positional access, slicing, chunking and grouping.
package extarray

import (
	"context"
	"fmt"

	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/types"
)

// All returns all extended array function definitions, including the
// higher-order ones.
func All() []functions.Definition {
	return []functions.Definition{
		First(),
		Last(),
		Take(),
		Skip(),
		Chunk(),
		Flatten(),
		GroupBy(),
		CountBy(),
	}
}

func items(v types.Value) ([]types.Value, bool) {
	arr, ok := v.(*types.Array)
	if !ok {
		return nil, false
	}
	return arr.Items, true
}

func count(v types.Value) int {
	n, _ := v.(types.Number)
	return max(0, int(n))
}

// First returns the definition for $first(array).
func First() functions.Definition {
	return functions.Definition{
		Name:      "first",
		Signature: "<a:x>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			arr, _ := items(args[0])
			if len(arr) == 0 {
				return nil, nil
			}
			return arr[0], nil
		},
	}
}

// Last returns the definition for $last(array).
func Last() functions.Definition {
	return functions.Definition{
		Name:      "last",
		Signature: "<a:x>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			arr, _ := items(args[0])
			if len(arr) == 0 {
				return nil, nil
			}
			return arr[len(arr)-1], nil
		},
	}
}

// Take returns the definition for $take(array, n).
func Take() functions.Definition {
	return functions.Definition{
		Name:      "take",
		Signature: "<an:a>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			arr, ok := items(args[0])
			if !ok {
				return nil, nil
			}
			n := min(count(args[1]), len(arr))
			return types.NewArray(arr[:n:n]...), nil
		},
	}
}

// Skip returns the definition for $skip(array, n).
func Skip() functions.Definition {
	return functions.Definition{
		Name:      "skip",
		Signature: "<an:a>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			arr, ok := items(args[0])
			if !ok {
				return nil, nil
			}
			n := min(count(args[1]), len(arr))
			out := make([]types.Value, len(arr)-n)
			copy(out, arr[n:])
			return types.NewArray(out...), nil
		},
	}
}

// Chunk returns the definition for $chunk(array, size).
func Chunk() functions.Definition {
	return functions.Definition{
		Name:      "chunk",
		Signature: "<an:a>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			arr, ok := items(args[0])
			if !ok {
				return nil, nil
			}
			size := count(args[1])
			if size == 0 {
				return nil, fmt.Errorf("$chunk: size must be a positive integer")
			}
			chunks := types.NewArray()
			for i := 0; i < len(arr); i += size {
				end := min(i+size, len(arr))
				chunk := make([]types.Value, end-i)
				copy(chunk, arr[i:end])
				chunks.Items = append(chunks.Items, types.NewArray(chunk...))
			}
			return chunks, nil
		},
	}
}

// Flatten returns the definition for $flatten(array [, depth]). Without a
// depth nested arrays are flattened completely.
func Flatten() functions.Definition {
	return functions.Definition{
		Name:      "flatten",
		Signature: "<an?:a>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			arr, ok := items(args[0])
			if !ok {
				return nil, nil
			}
			depth := -1
			if n, ok := args[1].(types.Number); ok {
				depth = max(0, int(n))
			}
			return types.NewArray(flatten(arr, depth)...), nil
		},
	}
}

func flatten(arr []types.Value, depth int) []types.Value {
	var out []types.Value
	for _, it := range arr {
		if inner, ok := it.(*types.Array); ok && depth != 0 {
			out = append(out, flatten(inner.Items, depth-1)...)
			continue
		}
		out = append(out, it)
	}
	return out
}

// groupKey applies fn to item and renders the result as an object key.
func groupKey(ctx context.Context, caller functions.Caller, fn, item types.Value) (string, bool, error) {
	k, err := caller.Call(ctx, fn, item)
	if err != nil || k == nil {
		return "", false, err
	}
	if s, ok := k.(types.String); ok {
		return string(s), true, nil
	}
	s, err := types.Stringify(k, false)
	return s, err == nil, err
}

// GroupBy returns the definition for $groupBy(array, fn). Items are
// grouped under the key fn returns for them; items whose key is undefined
// are dropped. Groups keep first-seen order.
func GroupBy() functions.Definition {
	return functions.Definition{
		Name:      "groupBy",
		Signature: "<af:o>",
		Advanced: func(ctx context.Context, caller functions.Caller, args ...types.Value) (types.Value, error) {
			arr, ok := items(args[0])
			if !ok {
				return nil, nil
			}
			result := types.NewObject(0)
			for _, it := range arr {
				key, ok, err := groupKey(ctx, caller, args[1], it)
				if err != nil {
					return nil, fmt.Errorf("$groupBy: %w", err)
				}
				if !ok {
					continue
				}
				group, _ := result.Get(key)
				g, _ := group.(*types.Array)
				if g == nil {
					g = types.NewArray()
					result.Set(key, g)
				}
				g.Items = append(g.Items, it)
			}
			return result, nil
		},
	}
}

// CountBy returns the definition for $countBy(array, fn): an object
// counting the items per key.
func CountBy() functions.Definition {
	return functions.Definition{
		Name:      "countBy",
		Signature: "<af:o>",
		Advanced: func(ctx context.Context, caller functions.Caller, args ...types.Value) (types.Value, error) {
			arr, ok := items(args[0])
			if !ok {
				return nil, nil
			}
			result := types.NewObject(0)
			for _, it := range arr {
				key, ok, err := groupKey(ctx, caller, args[1], it)
				if err != nil {
					return nil, fmt.Errorf("$countBy: %w", err)
				}
				if !ok {
					continue
				}
				n, _ := result.Get(key)
				c, _ := n.(types.Number)
				result.Set(key, c+1)
			}
			return result, nil
		},
	}
}
