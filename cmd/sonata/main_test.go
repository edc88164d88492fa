package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(input), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunNDJSON(t *testing.T) {
	input := `{"items":[{"price":5},{"price":7}]}
{"items":[]}
{"items":[{"price":1}]}
`
	out, _, err := runCLI(t, input, `$sum(items.price)`)
	require.NoError(t, err)
	assert.Equal(t, "12\n0\n1\n", out)
}

func TestRunSkipsUndefined(t *testing.T) {
	out, _, err := runCLI(t, `{"a":1} {"b":2} {"a":3}`, `a`)
	require.NoError(t, err)
	assert.Equal(t, "1\n3\n", out)
}

func TestRunPretty(t *testing.T) {
	out, _, err := runCLI(t, `{"name":"Ada","tags":["x"]}`, "-pretty", `{"who": name, "tags": tags}`)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"who\": \"Ada\",\n  \"tags\": [\n    \"x\"\n  ]\n}\n", out)
}

func TestRunUsage(t *testing.T) {
	_, _, err := runCLI(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	_, _, err = runCLI(t, "", "a", "b", "c")
	assert.Error(t, err)

	_, stderr, err := runCLI(t, "", "-nope", "a")
	assert.Error(t, err)
	assert.Contains(t, stderr, "-nope")
}

func TestRunCompileError(t *testing.T) {
	_, _, err := runCLI(t, `{}`, `a +`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S0207")
}

func TestRunStopsOnEvaluationError(t *testing.T) {
	input := "{\"a\":1}\n{\"a\":\"x\"}\n{\"a\":3}\n"
	out, _, err := runCLI(t, input, `a + 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document 2")
	assert.Contains(t, err.Error(), "T2001")
	assert.Equal(t, "2\n", out)
}

func TestRunKeepGoing(t *testing.T) {
	input := "{\"a\":1}\n{\"a\":\"x\"}\n{\"a\":3}\n"
	out, stderr, err := runCLI(t, input, "-k", `a + 1`)
	require.NoError(t, err)
	assert.Equal(t, "2\n4\n", out)
	assert.Contains(t, stderr, "document 2")
}

func TestRunKeepGoingStopsOnMalformedInput(t *testing.T) {
	out, _, err := runCLI(t, `{"a":1} {"a":`, "-k", `a`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document 2")
	assert.Equal(t, "1\n", out)
}

func TestRunFileArgument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(`{"qty":2,"price":3}`+"\n"+`{"qty":1,"price":10}`), 0o600))

	out, _, err := runCLI(t, "ignored", `qty * price`, path)
	require.NoError(t, err)
	assert.Equal(t, "6\n10\n", out)

	_, _, err = runCLI(t, "", `qty`, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRunExtensions(t *testing.T) {
	_, _, err := runCLI(t, `{"s":"helloWorld"}`, `$kebabCase(s)`)
	require.Error(t, err)

	out, _, err := runCLI(t, `{"s":"helloWorld"}`, "-ext", `$kebabCase(s)`)
	require.NoError(t, err)
	assert.Equal(t, "\"hello-world\"\n", out)
}

func TestRunMaxDepth(t *testing.T) {
	query := `($f := function($n){ $n = 0 ? 0 : 1 + $f($n - 1) }; $f(50))`
	out, _, err := runCLI(t, `{}`, query)
	require.NoError(t, err)
	assert.Equal(t, "50\n", out)

	_, _, err = runCLI(t, `{}`, "-max-depth", "10", query)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "U1001")
}
