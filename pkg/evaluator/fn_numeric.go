package evaluator

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sandrolain/sonata/pkg/types"
)

// parseNumber accepts JSON number syntax plus 0x, 0o and 0b integer
// literals.
func parseNumber(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 2 && trimmed[0] == '0' {
		base := 0
		switch trimmed[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseInt(trimmed[2:], base, 64)
			return float64(n), err == nil
		}
	}
	if trimmed == "" || strings.ContainsAny(trimmed, "_xXpP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func fnNumber(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	switch x := args[0].(type) {
	case nil:
		return nil, nil
	case types.Number:
		return x, nil
	case types.Bool:
		if x {
			return types.Number(1), nil
		}
		return types.Number(0), nil
	case types.String:
		if f, ok := parseNumber(string(x)); ok {
			return types.Number(f), nil
		}
	}
	return nil, types.NewError(types.ErrNumberCast, -1).WithValue(args[0])
}

// unary lifts a float function into a builtin that passes undefined
// through.
func unary(f func(float64) float64) nativeFunc {
	return func(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
		n, ok := args[0].(types.Number)
		if !ok {
			return nil, nil
		}
		return types.Number(f(float64(n))), nil
	}
}

var (
	fnFloor = unary(math.Floor)
	fnCeil  = unary(math.Ceil)
	fnAbs   = unary(math.Abs)
)

// fnRound rounds half to even at the given number of decimal places. A
// negative precision rounds to the left of the decimal point.
func fnRound(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	prec := int32(0)
	if p, ok := args[1].(types.Number); ok {
		prec = int32(p)
	}
	f, _ := decimal.NewFromFloat(float64(n)).RoundBank(prec).Float64()
	if f == 0 {
		f = 0 // no negative zero
	}
	return types.Number(f), nil
}

func fnSqrt(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	if n < 0 {
		return nil, types.NewError(types.ErrSqrtNegative, -1).WithValue(n)
	}
	return types.Number(math.Sqrt(float64(n))), nil
}

func fnPower(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	base, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	exp, _ := args[1].(types.Number)
	f := math.Pow(float64(base), float64(exp))
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, types.NewError(types.ErrPowerRange, -1).WithValue(base).WithValue2(exp)
	}
	return types.Number(f), nil
}

func fnRandom(context.Context, *Call, []types.Value) (types.Value, error) {
	return types.Number(rand.Float64()), nil
}
