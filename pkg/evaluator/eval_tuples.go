package evaluator

import (
	"context"
	"maps"

	"github.com/sandrolain/sonata/pkg/types"
)

// tuple is one member of a path evaluated in tuple mode: the current
// context value plus the variables bound by @, # and % along the way.
type tuple struct {
	context types.Value
	vars    map[string]types.Value
}

// with returns a copy of t with name bound to v.
func (t tuple) with(name string, v types.Value) tuple {
	vars := make(map[string]types.Value, len(t.vars)+1)
	maps.Copy(vars, t.vars)
	vars[name] = v
	return tuple{context: t.context, vars: vars}
}

// scope returns a frame binding the tuple's variables over env.
func (t tuple) scope(env *Scope) *Scope {
	if len(t.vars) == 0 {
		return env
	}
	frame := NewScope(env)
	for k, v := range t.vars {
		frame.Bind(k, v)
	}
	return frame
}

// tupleStream is the result of a path step that is itself a path or block
// evaluated in tuple mode. It only flows between steps of an enclosing
// path and never reaches the caller.
type tupleStream struct {
	tuples []tuple
}

func (*tupleStream) Kind() types.Kind { return types.KindArray }

// contexts returns the context values of ts as a sequence.
func contexts(ts []tuple) *types.Array {
	seq := types.NewSequence()
	for _, t := range ts {
		seq.Append(t.context)
	}
	return seq
}

// untuple replaces a stray tuple stream by its context values.
func untuple(v types.Value) types.Value {
	if ts, ok := v.(*tupleStream); ok {
		return contexts(ts.tuples)
	}
	return v
}

func seedTuples(items []types.Value) []tuple {
	ts := make([]tuple, 0, len(items))
	for _, item := range items {
		ts = append(ts, tuple{context: item})
	}
	return ts
}

// evalTupleStep evaluates step once per tuple and binds the step's focus,
// index and ancestor variables in each resulting tuple.
func (r *run) evalTupleStep(ctx context.Context, step *types.Node, in []tuple, env *Scope) ([]tuple, error) {
	if step.Type == types.NodeSort {
		out, err := r.sortTuples(ctx, step, in, env)
		if err != nil {
			return nil, err
		}
		if step.Index != "" {
			for i := range out {
				out[i] = out[i].with(step.Index, types.Number(i))
			}
		}
		return r.tupleStages(ctx, step.Stages, out, env)
	}

	var out []tuple
	for _, t := range in {
		res, err := r.eval(ctx, step, t.context, t.scope(env))
		if err != nil {
			return nil, err
		}
		if res == nil {
			continue
		}
		if ts, ok := res.(*tupleStream); ok {
			for _, inner := range ts.tuples {
				merged := tuple{context: inner.context, vars: make(map[string]types.Value, len(t.vars)+len(inner.vars))}
				maps.Copy(merged.vars, t.vars)
				maps.Copy(merged.vars, inner.vars)
				out = append(out, merged)
			}
			continue
		}
		values := []types.Value{res}
		if arr, ok := res.(*types.Array); ok {
			values = arr.Items
		}
		for i, v := range values {
			nt := tuple{context: v, vars: make(map[string]types.Value, len(t.vars)+2)}
			maps.Copy(nt.vars, t.vars)
			if step.Focus != "" {
				nt.vars[step.Focus] = v
				nt.context = t.context
			}
			if step.Index != "" {
				nt.vars[step.Index] = types.Number(i)
			}
			if step.Ancestor != nil {
				nt.vars[step.Ancestor.Label] = t.context
			}
			out = append(out, nt)
		}
	}
	return r.tupleStages(ctx, step.Stages, out, env)
}

func (r *run) tupleStages(ctx context.Context, stages []*types.Node, ts []tuple, env *Scope) ([]tuple, error) {
	var err error
	for _, stage := range stages {
		if stage.Type == types.NodeIndex {
			for i := range ts {
				ts[i] = ts[i].with(stage.Index, types.Number(i))
			}
			continue
		}
		if ts, err = r.filterTuples(ctx, stage, ts, env); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

// filterTuples is evalFilter over tuples: the predicate sees the tuple's
// context and variables.
func (r *run) filterTuples(ctx context.Context, pred *types.Node, ts []tuple, env *Scope) ([]tuple, error) {
	if num, ok := pred.Value.(types.Number); ok && pred.Type == types.NodeLiteral {
		if idx := normalizeIndex(float64(num), len(ts)); idx >= 0 {
			return []tuple{ts[idx]}, nil
		}
		return nil, nil
	}
	var out []tuple
	for i, t := range ts {
		res, err := r.eval(ctx, pred, t.context, t.scope(env))
		if err != nil {
			return nil, err
		}
		for n := predicateHits(res, i, len(ts)); n > 0; n-- {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *run) sortTuples(ctx context.Context, node *types.Node, ts []tuple, env *Scope) ([]tuple, error) {
	if len(ts) <= 1 {
		return ts, nil
	}
	order, err := r.sortOrder(ctx, node, len(ts), func(i int) (types.Value, *Scope) {
		return ts[i].context, ts[i].scope(env)
	})
	if err != nil {
		return nil, err
	}
	out := make([]tuple, len(ts))
	for i, j := range order {
		out[i] = ts[j]
	}
	return out, nil
}

// reduceTuples folds a group's tuples into one context value and one set
// of variables, appending the values of every member.
func reduceTuples(ts []tuple) tuple {
	var acc tuple
	for i, t := range ts {
		acc.context = appendValues(acc.context, t.context)
		if len(t.vars) == 0 {
			continue
		}
		if acc.vars == nil {
			acc.vars = make(map[string]types.Value, len(t.vars))
		}
		for k, v := range t.vars {
			if i == 0 {
				acc.vars[k] = v
				continue
			}
			acc.vars[k] = appendValues(acc.vars[k], v)
		}
	}
	return acc
}
