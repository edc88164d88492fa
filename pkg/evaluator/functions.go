package evaluator

import (
	"sync"
)

// builtin describes one entry of the standard library.
type builtin struct {
	name string
	sig  string
	// arity overrides the parameter count seen by higher-order functions
	// when trailing parameters are optional.
	arity int
	fn    nativeFunc
}

var builtins = []builtin{
	// Aggregation functions
	{name: "sum", sig: "<a<n>:n>", fn: fnSum},
	{name: "count", sig: "<a:n>", fn: fnCount},
	{name: "max", sig: "<a<n>:n>", fn: fnMax},
	{name: "min", sig: "<a<n>:n>", fn: fnMin},
	{name: "average", sig: "<a<n>:n>", fn: fnAverage},

	// String functions
	{name: "string", sig: "<x-b?:s>", arity: 1, fn: fnString},
	{name: "substring", sig: "<s-nn?:s>", fn: fnSubstring},
	{name: "substringBefore", sig: "<s-s:s>", fn: fnSubstringBefore},
	{name: "substringAfter", sig: "<s-s:s>", fn: fnSubstringAfter},
	{name: "lowercase", sig: "<s-:s>", fn: fnLowercase},
	{name: "uppercase", sig: "<s-:s>", fn: fnUppercase},
	{name: "length", sig: "<s-:n>", fn: fnLength},
	{name: "trim", sig: "<s-:s>", fn: fnTrim},
	{name: "pad", sig: "<s-ns?:s>", fn: fnPad},
	{name: "match", sig: "<s-f<s:o>n?:a<o>>", fn: fnMatch},
	{name: "contains", sig: "<s-(sf):b>", fn: fnContains},
	{name: "replace", sig: "<s-(sf)(sf)n?:s>", fn: fnReplace},
	{name: "split", sig: "<s-(sf)n?:a<s>>", fn: fnSplit},
	{name: "join", sig: "<a<s>s?:s>", fn: fnJoin},
	{name: "formatBase", sig: "<n-n?:s>", fn: fnFormatBase},
	{name: "formatNumber", sig: "<n-so?:s>", fn: fnFormatNumber},
	{name: "formatInteger", sig: "<n-s:s>", fn: fnFormatInteger},
	{name: "parseInteger", sig: "<s-s:n>", fn: fnParseInteger},
	{name: "base64encode", sig: "<s-:s>", fn: fnBase64Encode},
	{name: "base64decode", sig: "<s-:s>", fn: fnBase64Decode},
	{name: "encodeUrlComponent", sig: "<s-:s>", fn: fnEncodeURLComponent},
	{name: "encodeUrl", sig: "<s-:s>", fn: fnEncodeURL},
	{name: "decodeUrlComponent", sig: "<s-:s>", fn: fnDecodeURLComponent},
	{name: "decodeUrl", sig: "<s-:s>", fn: fnDecodeURL},

	// Numeric functions
	{name: "number", sig: "<(nsb)-:n>", fn: fnNumber},
	{name: "floor", sig: "<n-:n>", fn: fnFloor},
	{name: "ceil", sig: "<n-:n>", fn: fnCeil},
	{name: "round", sig: "<n-n?:n>", fn: fnRound},
	{name: "abs", sig: "<n-:n>", fn: fnAbs},
	{name: "sqrt", sig: "<n-:n>", fn: fnSqrt},
	{name: "power", sig: "<n-n:n>", fn: fnPower},
	{name: "random", sig: "<:n>", fn: fnRandom},

	// Boolean functions
	{name: "boolean", sig: "<x-:b>", fn: fnBoolean},
	{name: "not", sig: "<x-:b>", fn: fnNot},
	{name: "exists", sig: "<x:b>", fn: fnExists},

	// Higher-order functions
	{name: "map", sig: "<af>", fn: fnMap},
	{name: "filter", sig: "<af>", fn: fnFilter},
	{name: "single", sig: "<af?>", fn: fnSingle},
	{name: "reduce", sig: "<afj?:j>", fn: fnReduce},
	{name: "foldLeft", sig: "<afj?:j>", fn: fnReduce},
	{name: "sift", sig: "<o-f?:o>", fn: fnSift},
	{name: "each", sig: "<o-f:a>", fn: fnEach},

	// Object functions
	{name: "keys", sig: "<x-:a<s>>", fn: fnKeys},
	{name: "lookup", sig: "<x-s:x>", fn: fnLookup},
	{name: "spread", sig: "<x-:a<o>>", fn: fnSpread},
	{name: "merge", sig: "<a<o>:o>", fn: fnMerge},
	{name: "clone", sig: "<(oa)-:o>", fn: fnClone},
	{name: "type", sig: "<x:s>", fn: fnType},
	{name: "error", sig: "<s?:x>", fn: fnError},
	{name: "assert", sig: "<bs?:x>", fn: fnAssert},

	// Array functions
	{name: "zip", sig: "<a+>", fn: fnZip},
	{name: "append", sig: "<xx:a>", fn: fnAppend},
	{name: "reverse", sig: "<a:a>", fn: fnReverse},
	{name: "shuffle", sig: "<a:a>", fn: fnShuffle},
	{name: "sort", sig: "<af?:a>", fn: fnSort},
	{name: "distinct", sig: "<x:x>", fn: fnDistinct},

	// Date/time functions
	{name: "now", sig: "<:s>", fn: fnNow},
	{name: "millis", sig: "<:n>", fn: fnMillis},
	{name: "fromMillis", sig: "<n-s?s?:s>", fn: fnFromMillis},
	{name: "toMillis", sig: "<s-s?:n>", fn: fnToMillis},
	{name: "formatDateTime", sig: "<s-s?s?:s>", fn: fnFormatDateTime},

	// Evaluation
	{name: "eval", sig: "<sx?:x>", fn: fnEval},
}

var (
	builtinRoot     *Scope
	builtinRootOnce sync.Once
)

// builtinScope returns the shared, read-only scope holding the standard
// library.
func builtinScope() *Scope {
	builtinRootOnce.Do(func() {
		builtinRoot = NewScope(nil)
		for _, b := range builtins {
			builtinRoot.Bind(b.name, &Native{
				name:  b.name,
				sig:   MustParseSignature(b.sig),
				arity: b.arity,
				fn:    b.fn,
			})
		}
	})
	return builtinRoot
}

// Builtins lists the names of the standard library functions.
func Builtins() []string {
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.name
	}
	return names
}
