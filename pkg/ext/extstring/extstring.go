// Package extstring provides string functions beyond the standard library
// of the language. Register them via sonata.WithFunctions or the top-level
// ext.WithString() helper.
package extstring

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/types"
)

// All returns all extended string function definitions.
func All() []functions.Definition {
	return []functions.Definition{
		StartsWith(),
		EndsWith(),
		IndexOf(),
		TitleCase(),
		CamelCase(),
		SnakeCase(),
		KebabCase(),
		Repeat(),
	}
}

// StartsWith returns the definition for $startsWith(str, prefix).
func StartsWith() functions.Definition {
	return functions.Definition{
		Name:      "startsWith",
		Signature: "<s-s:b>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			prefix, _ := args[1].(types.String)
			return types.Bool(strings.HasPrefix(string(str), string(prefix))), nil
		},
	}
}

// EndsWith returns the definition for $endsWith(str, suffix).
func EndsWith() functions.Definition {
	return functions.Definition{
		Name:      "endsWith",
		Signature: "<s-s:b>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			suffix, _ := args[1].(types.String)
			return types.Bool(strings.HasSuffix(string(str), string(suffix))), nil
		},
	}
}

// IndexOf returns the definition for $indexOf(str, search [, start]).
// Positions count characters; -1 means not found.
func IndexOf() functions.Definition {
	return functions.Definition{
		Name:      "indexOf",
		Signature: "<s-sn?:n>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			search, _ := args[1].(types.String)
			runes := []rune(string(str))
			start := 0
			if n, ok := args[2].(types.Number); ok && n > 0 {
				start = int(n)
			}
			if start > len(runes) {
				return types.Number(-1), nil
			}
			rest := string(runes[start:])
			idx := strings.Index(rest, string(search))
			if idx < 0 {
				return types.Number(-1), nil
			}
			return types.Number(start + utf8.RuneCountInString(rest[:idx])), nil
		},
	}
}

// TitleCase returns the definition for $titleCase(str).
// Uppercases the first letter of each word and lowercases the rest.
func TitleCase() functions.Definition {
	return functions.Definition{
		Name:      "titleCase",
		Signature: "<s-:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			return types.String(cases.Title(language.Und).String(string(str))), nil
		},
	}
}

// wordBoundary splits camelCase, snake_case, kebab-case and spaced text.
var wordBoundary = regexp.MustCompile(`[_\-\s]+|([a-z0-9])([A-Z])`)

func splitIntoWords(str string) []string {
	expanded := wordBoundary.ReplaceAllString(str, "$1 $2")
	return strings.Fields(expanded)
}

// CamelCase returns the definition for $camelCase(str).
func CamelCase() functions.Definition {
	return functions.Definition{
		Name:      "camelCase",
		Signature: "<s-:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			words := splitIntoWords(string(str))
			if len(words) == 0 {
				return types.String(""), nil
			}
			// a Caser is stateful and must not be shared across goroutines
			lower, title := cases.Lower(language.Und), cases.Title(language.Und)
			var b strings.Builder
			b.WriteString(lower.String(words[0]))
			for _, w := range words[1:] {
				b.WriteString(title.String(w))
			}
			return types.String(b.String()), nil
		},
	}
}

func joinWords(name, sep string) functions.Definition {
	return functions.Definition{
		Name:      name,
		Signature: "<s-:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			words := splitIntoWords(string(str))
			lower := cases.Lower(language.Und)
			for i, w := range words {
				words[i] = lower.String(w)
			}
			return types.String(strings.Join(words, sep)), nil
		},
	}
}

// SnakeCase returns the definition for $snakeCase(str).
func SnakeCase() functions.Definition {
	return joinWords("snakeCase", "_")
}

// KebabCase returns the definition for $kebabCase(str).
func KebabCase() functions.Definition {
	return joinWords("kebabCase", "-")
}

// Repeat returns the definition for $repeat(str, n).
func Repeat() functions.Definition {
	return functions.Definition{
		Name:      "repeat",
		Signature: "<s-n:s>",
		Fn: func(_ context.Context, args ...types.Value) (types.Value, error) {
			str, ok := args[0].(types.String)
			if !ok {
				return nil, nil
			}
			n, _ := args[1].(types.Number)
			if n < 0 || n != types.Number(math.Trunc(float64(n))) {
				return nil, fmt.Errorf("$repeat: count must be a non-negative integer, got %v", float64(n))
			}
			return types.String(strings.Repeat(string(str), int(n))), nil
		},
	}
}
