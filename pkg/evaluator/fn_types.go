package evaluator

import (
	"context"

	"github.com/sandrolain/sonata/pkg/types"
)

func fnType(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	return types.String(types.TypeName(args[0])), nil
}

func fnExists(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	return types.Bool(types.KindOf(args[0]) != types.KindUndefined), nil
}

// fnBoolean casts with the truthiness rules used by conditions and
// predicates. Functions are false.
func fnBoolean(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	b, ok := toBoolean(args[0])
	if !ok {
		return nil, nil
	}
	return types.Bool(b), nil
}

func fnNot(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	b, ok := toBoolean(args[0])
	if !ok {
		return nil, nil
	}
	return types.Bool(!b), nil
}
