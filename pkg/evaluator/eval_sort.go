package evaluator

import (
	"cmp"
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

// evalSort orders the items of input by the node's terms. Keys are
// evaluated once per item; undefined keys sort last and the sort is stable.
func (r *run) evalSort(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	var items []types.Value
	switch x := input.(type) {
	case nil:
		return nil, nil
	case *types.Array:
		items = x.Items
	default:
		items = []types.Value{x}
	}
	if len(items) <= 1 {
		return types.NewSequence(items...), nil
	}

	order, err := r.sortOrder(ctx, node, len(items), func(i int) (types.Value, *Scope) {
		return items[i], env
	})
	if err != nil {
		return nil, err
	}
	seq := &types.Array{Items: make([]types.Value, len(order)), Sequence: true}
	for i, j := range order {
		seq.Items[i] = items[j]
	}
	return seq, nil
}

// sortOrder evaluates the sort keys of n rows and returns the row positions
// in sorted order. at supplies the context and scope of each row.
func (r *run) sortOrder(ctx context.Context, node *types.Node, n int, at func(int) (types.Value, *Scope)) ([]int, error) {
	type keyed struct {
		pos  int
		keys []types.Value
	}
	rows := make([]keyed, n)
	for i := range rows {
		item, scope := at(i)
		rows[i] = keyed{pos: i, keys: make([]types.Value, len(node.Terms))}
		for t, term := range node.Terms {
			k, err := r.eval(ctx, term.Expr, item, scope)
			if err != nil {
				return nil, err
			}
			rows[i].keys[t] = k
		}
	}

	sorted, err := mergeSort(rows, func(a, b keyed) (bool, error) {
		for t, term := range node.Terms {
			c, err := compareSortKeys(a.keys[t], b.keys[t], node.Position)
			if err != nil {
				return false, err
			}
			if c == 0 {
				continue
			}
			if term.Descending {
				c = -c
			}
			return c > 0, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	order := make([]int, len(sorted))
	for i, row := range sorted {
		order[i] = row.pos
	}
	return order, nil
}

func compareSortKeys(a, b types.Value, pos int) (int, error) {
	if a == nil {
		if b == nil {
			return 0, nil
		}
		return 1, nil
	}
	if b == nil {
		return -1, nil
	}
	if !orderable(a) || !orderable(b) {
		bad := a
		if orderable(a) {
			bad = b
		}
		return 0, types.NewError(types.ErrSortNotComparable, pos).WithValue(bad)
	}
	switch x := a.(type) {
	case types.Number:
		if y, ok := b.(types.Number); ok {
			return cmp.Compare(x, y), nil
		}
	case types.String:
		if y, ok := b.(types.String); ok {
			return cmp.Compare(x, y), nil
		}
	}
	return 0, types.NewError(types.ErrSortMismatch, pos).WithValue(a).WithValue2(b)
}

// mergeSort is a stable merge sort driven by swap, which reports whether a
// must come after b. It stops at the first comparison error.
func mergeSort[T any](items []T, swap func(a, b T) (bool, error)) ([]T, error) {
	if len(items) <= 1 {
		return items, nil
	}
	mid := len(items) / 2
	left, err := mergeSort(items[:mid], swap)
	if err != nil {
		return nil, err
	}
	right, err := mergeSort(items[mid:], swap)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		after, err := swap(left[i], right[j])
		if err != nil {
			return nil, err
		}
		if after {
			out = append(out, right[j])
			j++
		} else {
			out = append(out, left[i])
			i++
		}
	}
	out = append(out, left[i:]...)
	return append(out, right[j:]...), nil
}
