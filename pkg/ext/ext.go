// Package ext provides optional extension functions that go beyond the
// standard library of the language.
//
// The extension functions live in sub-packages grouped by category:
//   - extstring – $startsWith, $endsWith, $indexOf, $titleCase, $camelCase, …
//   - extarray  – $first, $last, $take, $skip, $chunk, $flatten, $groupBy, …
//   - extcrypto – $uuid, $hash, $hmac
//
// # Integration – all extensions at once
//
//	import "github.com/sandrolain/sonata/pkg/ext"
//
//	result, err := sonata.Eval(expr, data, ext.WithAll())
//
// # Integration – by category
//
//	result, err := sonata.Eval(expr, data,
//	    ext.WithString(),
//	    ext.WithArray(),
//	)
//
// # Integration – single function from a sub-package
//
//	import "github.com/sandrolain/sonata/pkg/ext/extstring"
//
//	result, err := sonata.Eval(expr, data,
//	    sonata.WithFunctions(extstring.StartsWith()),
//	)
package ext

import (
	"github.com/sandrolain/sonata/pkg/evaluator"
	"github.com/sandrolain/sonata/pkg/ext/extarray"
	"github.com/sandrolain/sonata/pkg/ext/extcrypto"
	"github.com/sandrolain/sonata/pkg/ext/extstring"
	"github.com/sandrolain/sonata/pkg/functions"
)

// All returns every extension function definition.
func All() []functions.Definition {
	var all []functions.Definition
	all = append(all, extstring.All()...)
	all = append(all, extarray.All()...)
	all = append(all, extcrypto.All()...)
	return all
}

func with(defs []functions.Definition) evaluator.EvalOption {
	return func(opts *evaluator.EvalOptions) {
		opts.Functions = append(opts.Functions, defs...)
	}
}

// WithAll returns an EvalOption that registers all extension functions.
func WithAll() evaluator.EvalOption {
	return with(All())
}

// WithString returns an EvalOption for the extended string functions.
func WithString() evaluator.EvalOption {
	return with(extstring.All())
}

// WithArray returns an EvalOption for the extended array functions.
func WithArray() evaluator.EvalOption {
	return with(extarray.All())
}

// WithCrypto returns an EvalOption for the identifier and hashing
// functions.
func WithCrypto() evaluator.EvalOption {
	return with(extcrypto.All())
}
