package evaluator_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

func greet() functions.Definition {
	return functions.Definition{
		Name:      "greet",
		Signature: "<s-:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			return types.String("Hello, " + string(args[0].(types.String))), nil
		},
	}
}

func TestHostFunction(t *testing.T) {
	ev := evaluator.New(evaluator.WithFunction(greet()))

	got, err := evalString(t, ev, `$greet("Ada")`, nil)
	require.NoError(t, err)
	assert.Equal(t, types.String("Hello, Ada"), got)

	// context argument
	got, err = evalString(t, ev, `name.$greet()`, decode(t, `{"name":"Bob"}`))
	require.NoError(t, err)
	assert.Equal(t, types.String("Hello, Bob"), got)

	// usable as a higher-order function argument
	got, err = evalString(t, ev, `$map(["a", "b"], $greet)`, nil)
	require.NoError(t, err)
	assert.Equal(t, `["Hello, a","Hello, b"]`, jsonText(t, got))

	_, err = evalString(t, ev, `$greet(1)`, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrArgumentType, types.CodeOf(err))
}

func TestHostFunctionWithoutSignature(t *testing.T) {
	var seen []types.Value
	ev := evaluator.New(evaluator.WithFunction(functions.Definition{
		Name: "record",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			seen = append(seen, args...)
			return types.Number(len(args)), nil
		},
	}))
	got, err := evalString(t, ev, `$record(1, "two", nothing)`, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Number(3), got)
	assert.Equal(t, []types.Value{types.Number(1), types.String("two"), nil}, seen)
}

func TestHostFunctionErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("backend unavailable")
	ev := evaluator.New(evaluator.WithFunction(functions.Definition{
		Name: "fail",
		Fn: func(context.Context, ...types.Value) (types.Value, error) {
			return nil, sentinel
		},
	}))
	_, err := evalString(t, ev, `$fail()`, nil)
	assert.ErrorIs(t, err, sentinel)
}

func TestAdvancedHostFunctionCallsBack(t *testing.T) {
	twice := functions.Definition{
		Name:      "twice",
		Signature: "<fx:x>",
		Advanced: func(ctx context.Context, c functions.Caller, args ...types.Value) (types.Value, error) {
			v, err := c.Call(ctx, args[0], args[1])
			if err != nil {
				return nil, err
			}
			return c.Call(ctx, args[0], v)
		},
	}
	ev := evaluator.New(evaluator.WithFunction(twice))
	got, err := evalString(t, ev, `$twice(function($v){ $v * 3 }, 2)`, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Number(18), got)
}

func TestAsyncHostFunction(t *testing.T) {
	ev := evaluator.New(evaluator.WithAsyncFunction("fetch", "<s:o>",
		functions.Go(func(_ context.Context, args ...types.Value) (types.Value, error) {
			obj := types.NewObject(1)
			obj.Set("id", args[0])
			return obj, nil
		})))
	got, err := evalString(t, ev, `$fetch("42").id`, nil)
	require.NoError(t, err)
	assert.Equal(t, types.String("42"), got)
}

func TestAsyncHostFunctionCancelled(t *testing.T) {
	ev := evaluator.New(
		evaluator.WithTimeout(30*time.Millisecond),
		evaluator.WithAsyncFunction("slow", "", func(ctx context.Context, _ ...types.Value) <-chan functions.Result {
			// never delivers
			return make(chan functions.Result)
		}),
	)
	_, err := evalString(t, ev, `$slow()`, nil)
	require.Error(t, err)
	var e *types.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, types.ErrRunaway, e.Code)
	assert.Equal(t, "slow", e.Token)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvalidHostFunctionPanics(t *testing.T) {
	assert.Panics(t, func() {
		evaluator.New(evaluator.WithFunction(functions.Definition{Name: "nothing"}))
	})
	assert.Panics(t, func() {
		evaluator.New(evaluator.WithFunction(functions.Definition{
			Name:      "bad",
			Signature: "<q>",
			Fn:        func(context.Context, ...types.Value) (types.Value, error) { return nil, nil },
		}))
	})

	_, err := evaluator.NewFunction(functions.Definition{Fn: func(context.Context, ...types.Value) (types.Value, error) { return nil, nil }})
	assert.ErrorIs(t, err, functions.ErrNoName)
}

func TestNewFunctionAsBinding(t *testing.T) {
	fn, err := evaluator.NewFunction(greet())
	require.NoError(t, err)
	assert.Equal(t, "greet", fn.Name())
	assert.Equal(t, 1, fn.Arity())

	expr := compileExpr(t, `$hello("you")`)
	got, err := evaluator.New().EvalWithBindings(context.Background(), expr, nil, map[string]types.Value{"hello": fn})
	require.NoError(t, err)
	assert.Equal(t, types.String("Hello, you"), got)
}

func TestHooksObserveCalls(t *testing.T) {
	var mu sync.Mutex
	entered := map[string]int{}
	exited := 0
	maxDepth := 0
	ev := evaluator.New(evaluator.WithHooks(evaluator.Hooks{
		Enter: func(_ context.Context, call evaluator.CallInfo) error {
			mu.Lock()
			defer mu.Unlock()
			entered[call.Name]++
			maxDepth = max(maxDepth, call.Depth)
			return nil
		},
		Exit: func(context.Context, evaluator.CallInfo, types.Value, error) {
			mu.Lock()
			defer mu.Unlock()
			exited++
		},
	}))

	got, err := evalString(t, ev, `$sum($map([1, 2, 3], function($v){ $v * 2 }))`, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Number(12), got)

	assert.Equal(t, 1, entered["sum"])
	assert.Equal(t, 1, entered["map"])
	assert.Equal(t, 3, entered[""])
	total := 0
	for _, n := range entered {
		total += n
	}
	assert.Equal(t, total, exited)
	assert.GreaterOrEqual(t, maxDepth, 2)
}

func TestHookErrorAborts(t *testing.T) {
	stop := errors.New("quota exceeded")
	ev := evaluator.New(evaluator.WithHooks(evaluator.Hooks{
		Enter: func(_ context.Context, call evaluator.CallInfo) error {
			if call.Name == "uppercase" {
				return stop
			}
			return nil
		},
	}))
	_, err := evalString(t, ev, `$length("abc") + $length($uppercase("x"))`, nil)
	assert.ErrorIs(t, err, stop)
}

func TestHooksSeeEveryTailCall(t *testing.T) {
	entered, exited, deepest := 0, 0, 0
	ev := evaluator.New(evaluator.WithHooks(evaluator.Hooks{
		Enter: func(_ context.Context, call evaluator.CallInfo) error {
			entered++
			deepest = max(deepest, call.Depth)
			return nil
		},
		Exit: func(context.Context, evaluator.CallInfo, types.Value, error) {
			exited++
		},
	}))

	got, err := evalString(t, ev, `($f := function($n){ $n <= 0 ? "done" : $f($n - 1) }; $f(1000))`, nil)
	require.NoError(t, err)
	assert.Equal(t, types.String("done"), got)
	assert.Equal(t, 1001, entered)
	assert.Equal(t, entered, exited)
	assert.Equal(t, 1, deepest)
}

func TestHookStopsInfiniteTailLoop(t *testing.T) {
	stop := errors.New("call budget spent")
	calls := 0
	ev := evaluator.New(evaluator.WithTimeout(0), evaluator.WithHooks(evaluator.Hooks{
		Enter: func(context.Context, evaluator.CallInfo) error {
			calls++
			if calls > 100 {
				return stop
			}
			return nil
		},
	}))

	_, err := evalString(t, ev, `($f := function(){ $f() }; $f())`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 101, calls)
}

func TestNonTailRecursionOverLargeInput(t *testing.T) {
	query := `(
		$total := function($xs, $i) { $i >= $count($xs) ? 0 : $xs[$i] + $total($xs, $i + 1) };
		$total($, 0)
	)`
	ev := evaluator.New(evaluator.WithMaxDepth(200))

	small := types.NewArray()
	for i := 1; i <= 50; i++ {
		small.Items = append(small.Items, types.Number(i))
	}
	got, err := evalString(t, ev, query, small)
	require.NoError(t, err)
	assert.Equal(t, types.Number(1275), got)

	large := types.NewArray()
	for i := 0; i < 5000; i++ {
		large.Items = append(large.Items, types.Number(i))
	}
	_, err = evalString(t, ev, query, large)
	require.Error(t, err)
	assert.Equal(t, types.ErrRunaway, types.CodeOf(err), "got %v", err)
}

func TestCustomRegexEngine(t *testing.T) {
	compiled := 0
	// treats every pattern as literal text
	literal := func(pattern, flags string) (types.Regexp, error) {
		compiled++
		return parser.DefaultRegexEngine(regexp.QuoteMeta(pattern), flags)
	}

	expr, err := parser.Compile(`[$contains("abc", /a.c/), $contains("a.c", /a.c/)]`, parser.WithRegexEngine(literal))
	require.NoError(t, err)
	assert.Equal(t, 2, compiled)

	got, err := evaluator.New().Eval(context.Background(), expr, nil)
	require.NoError(t, err)
	assert.Equal(t, `[false,true]`, jsonText(t, got))

	got, err = evalString(t, evaluator.New(), `[$contains("abc", /a.c/), $contains("a.c", /a.c/)]`, nil)
	require.NoError(t, err)
	assert.Equal(t, `[true,true]`, jsonText(t, got))

	failing := func(string, string) (types.Regexp, error) { return nil, errors.New("unsupported") }
	_, err = parser.Compile(`$match("a", /a/)`, parser.WithRegexEngine(failing))
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := evaluator.NewMetrics(reg)
	ev := evaluator.New(evaluator.WithMetrics(m), evaluator.WithFunction(greet()))

	_, err := evalString(t, ev, `$greet("a") & $greet("b")`, nil)
	require.NoError(t, err)
	_, err = evalString(t, ev, `1 / 0`, nil)
	require.Error(t, err)
	_, err = evalString(t, ev, `"x" + 1`, nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("D1001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("T2001")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HostCalls.WithLabelValues("greet")))

	count, err := testutil.GatherAndCount(reg, "sonata_evaluation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	ev := evaluator.New(evaluator.WithMetrics(nil))
	_, err := evalString(t, ev, `1`, nil)
	assert.NoError(t, err)
}

func TestDebugLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ev := evaluator.New(
		evaluator.WithDebug(true),
		evaluator.WithLogger(zap.New(core)),
		evaluator.WithFunction(greet()),
	)
	_, err := evalString(t, ev, `$greet("x")`, nil)
	require.NoError(t, err)
	_, err = evalString(t, ev, `1 / 0`, nil)
	require.Error(t, err)

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "evaluation started")
	assert.Contains(t, messages, "evaluation finished")
	assert.Contains(t, messages, "host function call")
	assert.Contains(t, messages, "evaluation failed")

	failed := logs.FilterMessage("evaluation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "D1001", failed[0].ContextMap()["code"])
	assert.True(t, strings.Contains(failed[0].ContextMap()["expr"].(string), "1 / 0"))
}

func TestOptions(t *testing.T) {
	opts := evaluator.New().Options()
	assert.Equal(t, 10000, opts.MaxDepth)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Positive(t, opts.Concurrency)

	opts = evaluator.New(evaluator.WithConcurrency(-3), evaluator.WithMaxDepth(7)).Options()
	assert.Equal(t, 1, opts.Concurrency)
	assert.Equal(t, 7, opts.MaxDepth)
}
