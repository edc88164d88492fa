package evaluator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/types"
)

func collect(t *testing.T, ch <-chan evaluator.StreamResult) []evaluator.StreamResult {
	t.Helper()
	var out []evaluator.StreamResult
	for res := range ch {
		out = append(out, res)
	}
	return out
}

func TestEvalStream(t *testing.T) {
	ev := evaluator.New()
	input := `{"price": 2, "qty": 3}
{"price": 5, "qty": 1}
{"price": "x", "qty": 1}
{"qty": 4}
`
	ch, err := ev.EvalStream(context.Background(), compileExpr(t, `price * qty`), strings.NewReader(input))
	require.NoError(t, err)

	results := collect(t, ch)
	require.Len(t, results, 4)
	assert.Equal(t, types.Number(6), results[0].Value)
	assert.Equal(t, types.Number(5), results[1].Value)
	assert.Equal(t, types.ErrLeftNotNumber, types.CodeOf(results[2].Err))
	assert.NoError(t, results[3].Err)
	assert.Nil(t, results[3].Value)
}

func TestEvalStreamConcatenatedDocuments(t *testing.T) {
	ev := evaluator.New()
	ch, err := ev.EvalStream(context.Background(), compileExpr(t, `$count($)`), strings.NewReader(`[1,2] [3] {"a":1}`))
	require.NoError(t, err)

	var got []string
	for res := range ch {
		require.NoError(t, res.Err)
		got = append(got, jsonText(t, res.Value))
	}
	assert.Equal(t, []string{"2", "1", "1"}, got)
}

func TestEvalStreamStopsOnMalformedInput(t *testing.T) {
	ev := evaluator.New()
	ch, err := ev.EvalStream(context.Background(), compileExpr(t, `a`), strings.NewReader("{\"a\":1}\n{\"a\":\n"))
	require.NoError(t, err)

	results := collect(t, ch)
	require.Len(t, results, 2)
	assert.Equal(t, types.Number(1), results[0].Value)
	assert.Error(t, results[1].Err)
	assert.Empty(t, types.CodeOf(results[1].Err))
}

func TestEvalStreamCancelled(t *testing.T) {
	ev := evaluator.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch, err := ev.EvalStream(ctx, compileExpr(t, `a`), strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	// the goroutine exits without blocking whether or not the error is delivered
	for res := range ch {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestEvalStreamInvalidExpression(t *testing.T) {
	_, err := evaluator.New().EvalStream(context.Background(), nil, strings.NewReader(""))
	assert.ErrorIs(t, err, evaluator.ErrInvalidExpression)
}

func TestEvalMany(t *testing.T) {
	ev := evaluator.New(evaluator.WithConcurrency(3))
	inputs := make([]types.Value, 50)
	for i := range inputs {
		obj := types.NewObject(1)
		obj.Set("n", types.Number(i))
		inputs[i] = obj
	}
	results, err := ev.EvalMany(context.Background(), compileExpr(t, `n * n`), inputs)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))
	for i, v := range results {
		assert.Equal(t, types.Number(i*i), v)
	}
}

func TestEvalManyReportsFailingInput(t *testing.T) {
	ev := evaluator.New()
	inputs := []types.Value{
		decode(t, `{"n": 1}`),
		decode(t, `{"n": "x"}`),
		decode(t, `{"n": 3}`),
	}
	_, err := ev.EvalMany(context.Background(), compileExpr(t, `n + 1`), inputs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input 1:")
	assert.Equal(t, types.ErrLeftNotNumber, types.CodeOf(err))
}

func TestEvalManyEmpty(t *testing.T) {
	results, err := evaluator.New().EvalMany(context.Background(), compileExpr(t, `1`), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
