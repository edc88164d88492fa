package evaluator

import (
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

type groupEntry struct {
	members []tuple
	pair    int
}

// evalGroup builds an object from pairs evaluated over every item of
// input. Items whose keys coincide are accumulated and the value
// expression then runs once per key over the accumulated items.
func (r *run) evalGroup(ctx context.Context, pairs []types.Pair, pos int, input types.Value, env *Scope) (types.Value, error) {
	var items []types.Value
	if arr, ok := input.(*types.Array); ok {
		items = arr.Items
	} else {
		items = []types.Value{input}
	}
	return r.groupTuples(ctx, pairs, pos, seedTuples(items), env)
}

// groupTuples is evalGroup over tuples. The variables bound in the members
// of a group are appended together like their context values.
func (r *run) groupTuples(ctx context.Context, pairs []types.Pair, pos int, ts []tuple, env *Scope) (types.Value, error) {
	if len(ts) == 0 {
		ts = []tuple{{}}
	}

	var keys []string
	groups := make(map[string]*groupEntry)
	for _, t := range ts {
		scope := t.scope(env)
		for pi, pair := range pairs {
			k, err := r.eval(ctx, pair.Key, t.context, scope)
			if err != nil {
				return nil, err
			}
			if k == nil {
				continue
			}
			key, ok := k.(types.String)
			if !ok {
				return nil, types.NewError(types.ErrKeyNotString, pos).WithValue(k)
			}
			if g, ok := groups[string(key)]; ok {
				if g.pair != pi {
					return nil, types.NewError(types.ErrDuplicateGroupKey, pos).WithValue(key)
				}
				g.members = append(g.members, t)
				continue
			}
			groups[string(key)] = &groupEntry{members: []tuple{t}, pair: pi}
			keys = append(keys, string(key))
		}
	}

	obj := types.NewObject(len(keys))
	for _, key := range keys {
		g := groups[key]
		acc := reduceTuples(g.members)
		v, err := r.eval(ctx, pairs[g.pair].Value, acc.context, acc.scope(env))
		if err != nil {
			return nil, err
		}
		if v != nil {
			obj.Set(key, v)
		}
	}
	return obj, nil
}

// appendValues concatenates two values into a new array. Arrays are
// spliced in; undefined on either side returns the other side.
func appendValues(a, b types.Value) types.Value {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	var items []types.Value
	if arr, ok := a.(*types.Array); ok {
		items = make([]types.Value, 0, len(arr.Items)+1)
		items = append(items, arr.Items...)
	} else {
		items = []types.Value{a}
	}
	if arr, ok := b.(*types.Array); ok {
		items = append(items, arr.Items...)
	} else {
		items = append(items, b)
	}
	return types.NewArray(items...)
}

// evalArray evaluates an array constructor. Nested constructors are kept as
// members; other array results are spliced in.
func (r *run) evalArray(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	result := &types.Array{Items: make([]types.Value, 0, len(node.Expressions)), Cons: node.ConsArray}
	for _, expr := range node.Expressions {
		v, err := r.eval(ctx, expr, input, env)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		if arr, ok := v.(*types.Array); ok && expr.Type != types.NodeArray {
			result.Items = append(result.Items, arr.Items...)
			continue
		}
		result.Items = append(result.Items, v)
	}
	return result, nil
}

// evalTransform returns the function behind |pattern|update,delete|. It
// clones its argument, then merges update into and removes the delete
// fields from every object the pattern selects in the clone.
func (r *run) evalTransform(node *types.Node, env *Scope) types.Value {
	return &Native{
		name: "transform",
		sig:  MustParseSignature("<(oa):o>"),
		fn: func(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
			obj := args[0]
			if obj == nil {
				return nil, nil
			}
			clone := env.Lookup("clone")
			if !types.IsFunction(clone) {
				return nil, types.NewError(types.ErrTransformClone, node.Position)
			}
			result, err := r.apply(ctx, clone, []types.Value{obj}, nil, env, "clone")
			if err != nil {
				return nil, err
			}
			matches, err := r.eval(ctx, node.Pattern, result, env)
			if err != nil || matches == nil {
				return result, err
			}
			var targets []types.Value
			if arr, ok := matches.(*types.Array); ok {
				targets = arr.Items
			} else {
				targets = []types.Value{matches}
			}
			for _, match := range targets {
				if err := r.transformOne(ctx, node, match, env); err != nil {
					return nil, err
				}
			}
			return result, nil
		},
	}
}

func (r *run) transformOne(ctx context.Context, node *types.Node, match types.Value, env *Scope) error {
	target, isObj := match.(*types.Object)

	update, err := r.eval(ctx, node.Update, match, env)
	if err != nil {
		return err
	}
	if update != nil {
		u, ok := update.(*types.Object)
		if !ok {
			return types.NewError(types.ErrTransformUpdate, node.Update.Position).WithValue(update)
		}
		if isObj {
			u.Range(func(k string, v types.Value) bool {
				target.Set(k, v)
				return true
			})
		}
	}

	if node.Delete == nil {
		return nil
	}
	deletions, err := r.eval(ctx, node.Delete, match, env)
	if err != nil || deletions == nil {
		return err
	}
	names, ok := deletions.(*types.Array)
	if !ok {
		names = types.NewArray(deletions)
	}
	if !types.IsArrayOfStrings(names) {
		return types.NewError(types.ErrTransformDelete, node.Delete.Position).WithValue(deletions)
	}
	if isObj {
		for _, name := range names.Items {
			target.Delete(string(name.(types.String)))
		}
	}
	return nil
}
