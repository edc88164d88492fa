package ext_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata"
	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/ext"
	"github.com/sandrolain/sonata/pkg/ext/extarray"
	"github.com/sandrolain/sonata/pkg/ext/extcrypto"
	"github.com/sandrolain/sonata/pkg/ext/extstring"
)

type extCase struct {
	expr string
	data any
	want any
}

func run(t *testing.T, tests []extCase, opts ...evaluator.EvalOption) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := sonata.Eval(tt.expr, tt.data, opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringFunctions(t *testing.T) {
	run(t, []extCase{
		{`$startsWith("Hello World", "Hello")`, nil, true},
		{`$startsWith("Hello World", "World")`, nil, false},
		{`$endsWith("Hello World", "World")`, nil, true},
		{`$indexOf("abcabc", "bc")`, nil, float64(1)},
		{`$indexOf("abcabc", "bc", 2)`, nil, float64(4)},
		{`$indexOf("abc", "z")`, nil, float64(-1)},
		{`$indexOf("héllo", "l")`, nil, float64(2)},
		{`$titleCase("hello world")`, nil, "Hello World"},
		{`$camelCase("hello_world")`, nil, "helloWorld"},
		{`$camelCase("Some kebab-case text")`, nil, "someKebabCaseText"},
		{`$snakeCase("helloWorld")`, nil, "hello_world"},
		{`$kebabCase("helloWorld")`, nil, "hello-world"},
		{`$kebabCase("Already Spaced")`, nil, "already-spaced"},
		{`$repeat("ab", 3)`, nil, "ababab"},
		{`$repeat("ab", 0)`, nil, ""},
		{`name.$startsWith("A")`, map[string]any{"name": "Ada"}, true},
		{`$startsWith(nothing, "A")`, nil, nil},
	}, ext.WithString())
}

func TestRepeatRejectsBadCounts(t *testing.T) {
	for _, expr := range []string{`$repeat("a", -1)`, `$repeat("a", 1.5)`} {
		_, err := sonata.Eval(expr, nil, ext.WithString())
		assert.Error(t, err, expr)
	}
}

func TestArrayFunctions(t *testing.T) {
	run(t, []extCase{
		{`$first([1, 2, 3])`, nil, float64(1)},
		{`$last([1, 2, 3])`, nil, float64(3)},
		{`$first([])`, nil, nil},
		{`$take([1, 2, 3], 2)`, nil, []any{float64(1), float64(2)}},
		{`$take([1, 2], 5)`, nil, []any{float64(1), float64(2)}},
		{`$skip([1, 2, 3], 1)`, nil, []any{float64(2), float64(3)}},
		{`$skip([1, 2, 3], 10)`, nil, []any{}},
		{`$chunk([1, 2, 3, 4, 5], 2)`, nil, []any{
			[]any{float64(1), float64(2)},
			[]any{float64(3), float64(4)},
			[]any{float64(5)},
		}},
		{`$flatten([1, [2, [3, [4]]]])`, nil, []any{float64(1), float64(2), float64(3), float64(4)}},
		{`$flatten([1, [2, [3]]], 1)`, nil, []any{float64(1), float64(2), []any{float64(3)}}},
		{`$first(items).id`, map[string]any{"items": []any{map[string]any{"id": "a"}}}, "a"},
	}, ext.WithArray())
}

func TestChunkRejectsZeroSize(t *testing.T) {
	_, err := sonata.Eval(`$chunk([1, 2], 0)`, nil, ext.WithArray())
	assert.Error(t, err)
}

func TestGroupingFunctions(t *testing.T) {
	data := map[string]any{
		"people": []any{
			map[string]any{"name": "Ada", "team": "core"},
			map[string]any{"name": "Bob", "team": "web"},
			map[string]any{"name": "Cy", "team": "core"},
			map[string]any{"name": "Dee"},
		},
	}
	run(t, []extCase{
		{
			`$groupBy(people, function($p){ $p.team }).core.name`,
			data,
			[]any{"Ada", "Cy"},
		},
		{
			`$keys($groupBy(people, function($p){ $p.team }))`,
			data,
			[]any{"core", "web"},
		},
		{
			`$countBy(people, function($p){ $p.team })`,
			data,
			map[string]any{"core": float64(2), "web": float64(1)},
		},
		{
			`$countBy([1, 2, 3, 4], function($n){ $n % 2 = 0 })`,
			nil,
			map[string]any{"false": float64(2), "true": float64(2)},
		},
	}, ext.WithArray())
}

func TestGroupByCallbackError(t *testing.T) {
	_, err := sonata.Eval(`$groupBy([1], function($v){ $v + "x" })`, nil, ext.WithArray())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$groupBy")
}

func TestCryptoFunctions(t *testing.T) {
	run(t, []extCase{
		{`$hash("hello")`, nil, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{`$hash("hello", "sha256")`, nil, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{`$hash("hello", "MD5")`, nil, "5d41402abc4b2a76b9719d911017c592"},
		{`$hash("hello", "sha1")`, nil, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{`$length($hash("hello", "sha384"))`, nil, float64(96)},
		{`$length($hash("hello", "sha512"))`, nil, float64(128)},
		{`$length($hmac("hello", "key"))`, nil, float64(64)},
		{`$hmac("hello", "key") = $hmac("hello", "key")`, nil, true},
		{`$hmac("hello", "key") = $hmac("hello", "other")`, nil, false},
	}, ext.WithCrypto())
}

func TestHashRejectsUnknownAlgorithm(t *testing.T) {
	_, err := sonata.Eval(`$hash("x", "crc32")`, nil, ext.WithCrypto())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported algorithm")
}

func TestUUID(t *testing.T) {
	got, err := sonata.Eval(`[$uuid(), $uuid()]`, nil, ext.WithCrypto())
	require.NoError(t, err)
	ids := got.([]any)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		parsed, err := uuid.Parse(id.(string))
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), parsed.Version())
	}
}

func TestWithAllRegistersEverything(t *testing.T) {
	got, err := sonata.Eval(`[$startsWith("ab", "a"), $first([7]), $type($uuid())]`, nil, ext.WithAll())
	require.NoError(t, err)
	assert.Equal(t, []any{true, float64(7), "string"}, got)

	names := map[string]bool{}
	for _, def := range ext.All() {
		assert.False(t, names[def.Name], "duplicate %s", def.Name)
		names[def.Name] = true
		assert.NoError(t, def.Validate(), def.Name)
	}
	assert.Len(t, names, len(extstring.All())+len(extarray.All())+len(extcrypto.All()))
}

func TestCategoryOptionsAreIndependent(t *testing.T) {
	_, err := sonata.Eval(`$first([1])`, nil, ext.WithString())
	assert.Error(t, err)
}

func TestSingleDefinition(t *testing.T) {
	got, err := sonata.Eval(`$kebabCase("fooBar")`, nil, sonata.WithFunctions(extstring.KebabCase()))
	require.NoError(t, err)
	assert.Equal(t, "foo-bar", got)
}
