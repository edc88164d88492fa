package evaluator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/parser"
	"github.com/sandrolain/sonata/pkg/types"
)

// scenario is one case of a testdata file. Data and Result hold JSON text.
type scenario struct {
	Name      string `yaml:"name"`
	Expr      string `yaml:"expr"`
	Data      string `yaml:"data"`
	Dataset   string `yaml:"dataset"`
	Result    string `yaml:"result"`
	Undefined bool   `yaml:"undefined"`
	Code      string `yaml:"code"`
}

type scenarioFile struct {
	Datasets map[string]string `yaml:"datasets"`
	Cases    []scenario        `yaml:"cases"`
}

func decode(t *testing.T, text string) types.Value {
	t.Helper()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	v, err := types.DecodeJSON([]byte(text))
	require.NoError(t, err, "decoding %q", text)
	return v
}

func jsonText(t *testing.T, v types.Value) string {
	t.Helper()
	s, err := types.Stringify(v, false)
	require.NoError(t, err)
	return s
}

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ev := evaluator.New()
	for _, file := range files {
		raw, err := os.ReadFile(file)
		require.NoError(t, err)
		var suite scenarioFile
		require.NoError(t, yaml.Unmarshal(raw, &suite), file)

		t.Run(strings.TrimSuffix(filepath.Base(file), ".yaml"), func(t *testing.T) {
			for _, tc := range suite.Cases {
				name := tc.Name
				if name == "" {
					name = tc.Expr
				}
				t.Run(name, func(t *testing.T) {
					t.Parallel()
					runScenario(t, ev, suite, tc)
				})
			}
		})
	}
}

func runScenario(t *testing.T, ev *evaluator.Evaluator, suite scenarioFile, tc scenario) {
	data := tc.Data
	if tc.Dataset != "" {
		ds, ok := suite.Datasets[tc.Dataset]
		require.True(t, ok, "unknown dataset %q", tc.Dataset)
		data = ds
	}
	input := decode(t, data)

	expr, err := parser.Compile(tc.Expr)
	if err == nil {
		var got types.Value
		got, err = ev.Eval(context.Background(), expr, input)
		if err == nil {
			switch {
			case tc.Code != "":
				t.Fatalf("expected error %s, got result %s", tc.Code, jsonText(t, got))
			case tc.Undefined:
				assert.Nil(t, got, "expected undefined, got %s", jsonText(t, got))
			default:
				assert.Equal(t, jsonText(t, decode(t, tc.Result)), jsonText(t, got))
			}
			return
		}
	}
	require.NotEmpty(t, tc.Code, "unexpected error: %v", err)
	assert.Equal(t, types.ErrorCode(tc.Code), types.CodeOf(err), "error: %v", err)
}

func compileExpr(t *testing.T, query string) *types.Expression {
	t.Helper()
	expr, err := parser.Compile(query)
	require.NoError(t, err, "compiling %q", query)
	return expr
}

func evalString(t *testing.T, ev *evaluator.Evaluator, query string, input types.Value) (types.Value, error) {
	t.Helper()
	return ev.Eval(context.Background(), compileExpr(t, query), input)
}

func TestMutualTailRecursion(t *testing.T) {
	ev := evaluator.New(evaluator.WithMaxDepth(100))
	query := `(
		$even := function($n) { $n = 0 ? true : $odd($n - 1) };
		$odd := function($n) { $n = 0 ? false : $even($n - 1) };
		[$even(6001), $odd(6001), $even(10000)]
	)`
	got, err := evalString(t, ev, query, nil)
	require.NoError(t, err)
	assert.Equal(t, `[false,true,true]`, jsonText(t, got))
}

func TestTailRecursiveAccumulator(t *testing.T) {
	ev := evaluator.New(evaluator.WithMaxDepth(50))
	query := `(
		$sum := function($n, $acc) { $n = 0 ? $acc : $sum($n - 1, $acc + $n) };
		$sum(20000, 0)
	)`
	got, err := evalString(t, ev, query, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Number(200010000), got)
}

func TestNonTailRecursionHitsDepthLimit(t *testing.T) {
	query := `(
		$f := function($n) { $n <= 0 ? 0 : 1 + $f($n - 1) };
		$f(200)
	)`

	got, err := evalString(t, evaluator.New(), query, nil)
	require.NoError(t, err)
	assert.Equal(t, types.Number(200), got)

	_, err = evalString(t, evaluator.New(evaluator.WithMaxDepth(50)), query, nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRunaway), "got %v", err)
}

func TestTimeoutStopsInfiniteLoop(t *testing.T) {
	ev := evaluator.New(evaluator.WithTimeout(20 * time.Millisecond))
	start := time.Now()
	_, err := evalString(t, ev, `($loop := function() { $loop() }; $loop())`, nil)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRunaway), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCallerContextCancellation(t *testing.T) {
	ev := evaluator.New(evaluator.WithTimeout(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	expr, err := parser.Compile(`$map([1, 2, 3], function($v) { $v })`)
	require.NoError(t, err)
	_, err = ev.Eval(ctx, expr, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluatingRecoveredSyntaxErrors(t *testing.T) {
	expr, err := parser.Compile(`1 +`, parser.WithRecovery())
	require.NoError(t, err)
	_, err = evaluator.New().Eval(context.Background(), expr, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrEvalSyntaxErrors, types.CodeOf(err))
}

func TestInvalidExpression(t *testing.T) {
	ev := evaluator.New()
	_, err := ev.Eval(context.Background(), nil, nil)
	assert.ErrorIs(t, err, evaluator.ErrInvalidExpression)

	_, err = ev.EvalMany(context.Background(), &types.Expression{}, []types.Value{types.Number(1)})
	assert.ErrorIs(t, err, evaluator.ErrInvalidExpression)
}

func TestEvalWithBindings(t *testing.T) {
	ev := evaluator.New()
	expr, err := parser.Compile(`$greeting & ", " & name & $suffix`)
	require.NoError(t, err)

	input := decode(t, `{"name":"Ada"}`)
	got, err := ev.EvalWithBindings(context.Background(), expr, input, map[string]types.Value{
		"greeting": types.String("Hello"),
		"suffix":   types.String("!"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.String("Hello, Ada!"), got)
}

func TestBindingsDoNotLeakBetweenEvaluations(t *testing.T) {
	ev := evaluator.New()
	expr, err := parser.Compile(`($x := $exists($x) ? $x + 1 : 1; $x)`)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		got, err := ev.Eval(context.Background(), expr, nil)
		require.NoError(t, err)
		assert.Equal(t, types.Number(1), got)
	}
}

func TestNowIsStableWithinEvaluation(t *testing.T) {
	got, err := evalString(t, evaluator.New(), `[$now() = $now(), $millis() = $millis(), $type($millis())]`, nil)
	require.NoError(t, err)
	assert.Equal(t, `[true,true,"number"]`, jsonText(t, got))

	got, err = evalString(t, evaluator.New(), `$toMillis($now())`, nil)
	require.NoError(t, err)
	ms := float64(got.(types.Number))
	assert.InDelta(t, float64(time.Now().UnixMilli()), ms, 60_000)
}

func TestNowAdvancesBetweenEvaluations(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ev := evaluator.New()
		expr := compileExpr(t, `$millis()`)

		first, err := ev.Eval(context.Background(), expr, nil)
		require.NoError(t, err)
		time.Sleep(1500 * time.Millisecond)
		second, err := ev.Eval(context.Background(), expr, nil)
		require.NoError(t, err)

		assert.Equal(t, types.Number(1500), second.(types.Number)-first.(types.Number))
	})
}

func TestRandomAndShuffle(t *testing.T) {
	ev := evaluator.New()
	for i := 0; i < 20; i++ {
		got, err := evalString(t, ev, `$random()`, nil)
		require.NoError(t, err)
		n := float64(got.(types.Number))
		assert.GreaterOrEqual(t, n, 0.0)
		assert.Less(t, n, 1.0)
	}

	got, err := evalString(t, ev, `$sort($shuffle([5, 3, 1, 4, 2]))`, nil)
	require.NoError(t, err)
	assert.Equal(t, `[1,2,3,4,5]`, jsonText(t, got))
}

func TestInputIsNotMutated(t *testing.T) {
	input := decode(t, `{"a":{"b":1,"c":2},"list":[3,1,2]}`)
	before := jsonText(t, input)
	ev := evaluator.New()
	for _, q := range []string{
		`$ ~> |a|{"b": 10}, ["c"]|`,
		`$sort(list)`,
		`$reverse(list)`,
		`$append(list, 4)`,
		`$merge([a, {"z": 1}])`,
	} {
		_, err := evalString(t, ev, q, input)
		require.NoError(t, err, q)
	}
	assert.Equal(t, before, jsonText(t, input))
}

func TestBuiltinsListed(t *testing.T) {
	names := evaluator.Builtins()
	for _, want := range []string{"sum", "map", "reduce", "eval", "toMillis", "encodeUrlComponent", "formatNumber", "formatInteger", "parseInteger", "formatDateTime"} {
		assert.Contains(t, names, want)
	}
}
