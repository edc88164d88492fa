package evaluator

import (
	"cmp"
	"context"
	"errors"
	"math"

	"github.com/sandrolain/sonata/pkg/types"
)

// maxRange is the largest sequence the range operator may allocate.
const maxRange = 1e7

func (r *run) evalBinary(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	lhs, err := r.eval(ctx, node.LHS, input, env)
	if err != nil {
		return nil, err
	}

	// short-circuiting operators evaluate the right side on demand
	switch node.Name {
	case "and":
		if !truthy(lhs) {
			return types.Bool(false), nil
		}
		rhs, err := r.eval(ctx, node.RHS, input, env)
		if err != nil {
			return nil, err
		}
		return types.Bool(truthy(rhs)), nil
	case "or":
		if truthy(lhs) {
			return types.Bool(true), nil
		}
		rhs, err := r.eval(ctx, node.RHS, input, env)
		if err != nil {
			return nil, err
		}
		return types.Bool(truthy(rhs)), nil
	case "??":
		if lhs != nil {
			return lhs, nil
		}
		return r.eval(ctx, node.RHS, input, env)
	case "?:":
		if truthy(lhs) {
			return lhs, nil
		}
		return r.eval(ctx, node.RHS, input, env)
	}

	rhs, err := r.eval(ctx, node.RHS, input, env)
	if err != nil {
		return nil, err
	}

	var result types.Value
	switch node.Name {
	case "+", "-", "*", "/", "%":
		result, err = arithmetic(node.Name, lhs, rhs)
	case "=":
		result = types.Bool(lhs != nil && rhs != nil && types.Equal(lhs, rhs))
	case "!=":
		result = types.Bool(lhs != nil && rhs != nil && !types.Equal(lhs, rhs))
	case "<", "<=", ">", ">=":
		result, err = compare(node.Name, lhs, rhs)
	case "&":
		result, err = concat(lhs, rhs)
	case "in":
		result = types.Bool(includes(lhs, rhs))
	default:
		err = types.NewError(types.ErrUnknownOperator, node.Position)
	}
	if err != nil {
		var e *types.Error
		if errors.As(err, &e) {
			e.Position = node.Position
			if e.Token == "" {
				e.Token = node.Name
			}
		}
		return nil, err
	}
	return result, nil
}

func arithmetic(op string, lhs, rhs types.Value) (types.Value, error) {
	l, lok := lhs.(types.Number)
	if lhs != nil && !lok {
		return nil, types.NewError(types.ErrLeftNotNumber, -1).WithValue(lhs)
	}
	r, rok := rhs.(types.Number)
	if rhs != nil && !rok {
		return nil, types.NewError(types.ErrRightNotNumber, -1).WithValue(rhs)
	}
	if !lok || !rok {
		return nil, nil
	}
	var f float64
	switch op {
	case "+":
		f = float64(l) + float64(r)
	case "-":
		f = float64(l) - float64(r)
	case "*":
		f = float64(l) * float64(r)
	case "/":
		f = float64(l) / float64(r)
	case "%":
		f = math.Mod(float64(l), float64(r))
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, types.NewError(types.ErrNumberNotFinite, -1).WithValue(types.String(formatNonFinite(f)))
	}
	return types.Number(f), nil
}

func formatNonFinite(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f > 0:
		return "Infinity"
	}
	return "-Infinity"
}

func orderable(v types.Value) bool {
	switch v.(type) {
	case nil, types.String, types.Number:
		return true
	}
	return false
}

func compare(op string, lhs, rhs types.Value) (types.Value, error) {
	if !orderable(lhs) {
		return nil, types.NewError(types.ErrNotComparable, -1).WithValue(lhs)
	}
	if !orderable(rhs) {
		return nil, types.NewError(types.ErrNotComparable, -1).WithValue(rhs)
	}
	if lhs == nil || rhs == nil {
		return nil, nil
	}
	var c int
	switch l := lhs.(type) {
	case types.Number:
		r, ok := rhs.(types.Number)
		if !ok {
			return nil, types.NewError(types.ErrCompareMismatch, -1).WithValue(lhs).WithValue2(rhs)
		}
		c = cmp.Compare(l, r)
	case types.String:
		r, ok := rhs.(types.String)
		if !ok {
			return nil, types.NewError(types.ErrCompareMismatch, -1).WithValue(lhs).WithValue2(rhs)
		}
		c = cmp.Compare(l, r)
	}
	switch op {
	case "<":
		return types.Bool(c < 0), nil
	case "<=":
		return types.Bool(c <= 0), nil
	case ">":
		return types.Bool(c > 0), nil
	}
	return types.Bool(c >= 0), nil
}

func concat(lhs, rhs types.Value) (types.Value, error) {
	l, err := stringOf(lhs, false)
	if err != nil {
		return nil, err
	}
	r, err := stringOf(rhs, false)
	if err != nil {
		return nil, err
	}
	return types.String(l + r), nil
}

// stringOf renders v the way $string does. Undefined becomes "".
func stringOf(v types.Value, pretty bool) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case types.String:
		return string(x), nil
	case types.Function:
		return "", nil
	case types.Number:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return "", types.NewError(types.ErrStringNotFinite, -1)
		}
		return types.FormatNumber(f), nil
	case *types.Array:
		if x.OuterWrapper && len(x.Items) > 0 {
			v = x.Items[0]
		}
	}
	return types.Stringify(v, pretty)
}

func includes(lhs, rhs types.Value) bool {
	if lhs == nil || rhs == nil {
		return false
	}
	arr, ok := rhs.(*types.Array)
	if !ok {
		return types.Equal(lhs, rhs)
	}
	for _, it := range arr.Items {
		if types.Equal(lhs, it) {
			return true
		}
	}
	return false
}

func (r *run) evalNegate(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	v, err := r.eval(ctx, node.LHS, input, env)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil:
		return nil, nil
	case types.Number:
		return -x, nil
	}
	return nil, types.NewError(types.ErrNegateNonNumber, node.Position).WithToken("-").WithValue(v)
}

// evalRange produces the inclusive integer sequence lhs..rhs.
func (r *run) evalRange(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	lhs, err := r.eval(ctx, node.LHS, input, env)
	if err != nil {
		return nil, err
	}
	rhs, err := r.eval(ctx, node.RHS, input, env)
	if err != nil {
		return nil, err
	}
	if lhs != nil && !types.IsInteger(lhs) {
		return nil, types.NewError(types.ErrRangeLeftInteger, node.Position).WithToken("..").WithValue(lhs)
	}
	if rhs != nil && !types.IsInteger(rhs) {
		return nil, types.NewError(types.ErrRangeRightInteger, node.Position).WithToken("..").WithValue(rhs)
	}
	if lhs == nil || rhs == nil {
		return nil, nil
	}
	from, to := float64(lhs.(types.Number)), float64(rhs.(types.Number))
	if from > to {
		return nil, nil
	}
	size := to - from + 1
	if size > maxRange {
		return nil, types.NewError(types.ErrRangeTooLarge, node.Position).WithToken("..").WithValue(types.Number(size))
	}
	seq := &types.Array{Items: make([]types.Value, 0, int(size)), Sequence: true}
	for i := from; i <= to; i++ {
		seq.Items = append(seq.Items, types.Number(i))
	}
	return seq, nil
}
