package evaluator

import (
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

// fnKeys lists the keys of an object. For an array of objects it returns
// the distinct keys across all members, in first-seen order.
func fnKeys(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	result := types.NewSequence()
	seen := map[string]bool{}
	add := func(v types.Value) {
		obj, ok := v.(*types.Object)
		if !ok {
			return
		}
		for _, k := range obj.Keys() {
			if !seen[k] {
				seen[k] = true
				result.Items = append(result.Items, types.String(k))
			}
		}
	}
	if arr, ok := args[0].(*types.Array); ok {
		for _, it := range arr.Items {
			add(it)
		}
	} else {
		add(args[0])
	}
	return result, nil
}

func fnLookup(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	key, _ := str(args[1])
	return lookupField(args[0], key), nil
}

// fnSpread splits objects into one single-key object per entry. Other
// values are returned unchanged.
func fnSpread(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case *types.Array:
		result := types.NewSequence()
		for _, it := range x.Items {
			v, err := fnSpread(ctx, c, []types.Value{it})
			if err != nil {
				return nil, err
			}
			if arr, ok := v.(*types.Array); ok {
				result.Items = append(result.Items, arr.Items...)
			} else {
				result.Append(v)
			}
		}
		return result, nil
	case *types.Object:
		result := types.NewSequence()
		x.Range(func(k string, v types.Value) bool {
			entry := types.NewObject(1)
			entry.Set(k, v)
			result.Items = append(result.Items, entry)
			return true
		})
		return result, nil
	}
	return args[0], nil
}

// fnMerge combines an array of objects. Later keys win.
func fnMerge(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	result := types.NewObject(0)
	for _, it := range arr.Items {
		obj, ok := it.(*types.Object)
		if !ok {
			continue
		}
		obj.Range(func(k string, v types.Value) bool {
			result.Set(k, v)
			return true
		})
	}
	return result, nil
}

func fnClone(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	return types.Clone(args[0]), nil
}

func fnError(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	msg := "$error() function evaluated"
	if s, ok := str(args[0]); ok {
		msg = s
	}
	return nil, types.NewError(types.ErrUserError, -1).WithMessage(msg)
}

func fnAssert(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	if ok, _ := args[0].(types.Bool); ok {
		return nil, nil
	}
	msg := "$assert() statement failed"
	if s, ok := str(args[1]); ok {
		msg = s
	}
	return nil, types.NewError(types.ErrAssertion, -1).WithMessage(msg)
}
