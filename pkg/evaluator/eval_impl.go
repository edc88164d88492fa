package evaluator

import (
	"context"
	"time"

	"github.com/sandrolain/sonata/pkg/types"
)

// run is the state of one evaluation. It is owned by a single goroutine.
type run struct {
	ev       *Evaluator
	depth    int
	maxDepth int
	hooks    Hooks
	// now is the instant reported by $now and $millis.
	now time.Time
}

// eval evaluates node against input in env.
func (r *run) eval(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	if node == nil {
		return nil, nil
	}

	var result types.Value
	var err error

	switch node.Type {
	case types.NodePath:
		result, err = r.evalPath(ctx, node, input, env)
	case types.NodeBinary:
		result, err = r.evalBinary(ctx, node, input, env)
	case types.NodeNegate:
		result, err = r.evalNegate(ctx, node, input, env)
	case types.NodeName:
		result = lookupField(input, node.Name)
	case types.NodeLiteral:
		result = node.Value
	case types.NodeWildcard:
		result = wildcard(input)
	case types.NodeDescendant:
		result = descendants(input)
	case types.NodeCondition:
		result, err = r.evalCondition(ctx, node, input, env)
	case types.NodeBlock:
		result, err = r.evalBlock(ctx, node, input, env)
	case types.NodeBind:
		result, err = r.evalBind(ctx, node, input, env)
	case types.NodeRegex:
		result = &regexMatcher{re: node.Regex}
	case types.NodeFunction:
		result, err = r.evalFunction(ctx, node, input, env, nil)
	case types.NodePartial:
		result, err = r.evalPartial(ctx, node, input, env)
	case types.NodeVariable:
		result = evalVariable(node, input, env)
	case types.NodeParent:
		result = env.Lookup(node.Slot.Label)
	case types.NodeLambda:
		result, err = r.evalLambda(node, input, env)
	case types.NodeApply:
		result, err = r.evalApply(ctx, node, input, env)
	case types.NodeArray:
		result, err = r.evalArray(ctx, node, input, env)
	case types.NodeObject:
		result, err = r.evalGroup(ctx, node.Pairs, node.Position, input, env)
	case types.NodeRange:
		result, err = r.evalRange(ctx, node, input, env)
	case types.NodeTransform:
		result = r.evalTransform(node, env)
	case types.NodeSort:
		result, err = r.evalSort(ctx, node, input, env)
	case types.NodeError:
		err = node.Err
		if err == nil {
			err = types.NewError(types.ErrEvalSyntaxErrors, node.Position)
		}
	}
	if err != nil {
		return nil, err
	}

	for _, pred := range node.Predicates {
		if result, err = r.evalFilter(ctx, pred, result, env); err != nil {
			return nil, err
		}
	}
	if node.Type != types.NodePath && node.Group != nil {
		if result, err = r.evalGroup(ctx, node.Group.Pairs, node.Group.Position, result, env); err != nil {
			return nil, err
		}
	}

	if seq, ok := result.(*types.Array); ok && seq.Sequence {
		if node.KeepArray {
			seq.KeepSingleton = true
		}
		switch len(seq.Items) {
		case 0:
			return nil, nil
		case 1:
			if !seq.KeepSingleton {
				return seq.Items[0], nil
			}
		}
	}
	return result, nil
}

func evalVariable(node *types.Node, input types.Value, env *Scope) types.Value {
	if node.Name == "" {
		if arr, ok := input.(*types.Array); ok && arr.OuterWrapper && len(arr.Items) > 0 {
			return arr.Items[0]
		}
		return input
	}
	return env.Lookup(node.Name)
}

func (r *run) evalCondition(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	cond, err := r.eval(ctx, node.Condition, input, env)
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return r.eval(ctx, node.Then, input, env)
	}
	if node.Else != nil {
		return r.eval(ctx, node.Else, input, env)
	}
	return nil, nil
}

func (r *run) evalBlock(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	frame := NewScope(env)
	var result types.Value
	for _, expr := range node.Expressions {
		v, err := r.eval(ctx, expr, input, frame)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func (r *run) evalBind(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	v, err := r.eval(ctx, node.RHS, input, env)
	if err != nil {
		return nil, err
	}
	env.Bind(node.Name, v)
	return v, nil
}

// toBoolean applies the language's truthiness rules. It returns false for
// ok when v is undefined.
func toBoolean(v types.Value) (result bool, ok bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case *types.Array:
		switch len(x.Items) {
		case 0:
			return false, true
		case 1:
			b, _ := toBoolean(x.Items[0])
			return b, true
		}
		for _, it := range x.Items {
			if b, _ := toBoolean(it); b {
				return true, true
			}
		}
		return false, true
	case types.String:
		return len(x) > 0, true
	case types.Number:
		return x != 0, true
	case types.Bool:
		return bool(x), true
	case *types.Object:
		return x.Len() > 0, true
	}
	return false, true
}

func truthy(v types.Value) bool {
	b, _ := toBoolean(v)
	return b
}
