package evaluator

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sandrolain/sonata/pkg/types"
)

// str returns a string argument, reporting false when it is undefined.
func str(v types.Value) (string, bool) {
	s, ok := v.(types.String)
	return string(s), ok
}

func fnString(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	pretty := false
	if b, ok := args[1].(types.Bool); ok {
		pretty = bool(b)
	}
	s, err := stringOf(args[0], pretty)
	if err != nil {
		return nil, err
	}
	return types.String(s), nil
}

// slice mirrors a code point slice with JavaScript index rules: indexes
// are truncated and negative ones count from the end.
func slice(runes []rune, start, end float64) string {
	n := float64(len(runes))
	clamp := func(i float64) int {
		i = math.Trunc(i)
		if i < 0 {
			i += n
		}
		return int(math.Max(0, math.Min(i, n)))
	}
	from, to := clamp(start), clamp(end)
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}

func fnSubstring(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	runes := []rune(s)
	n := float64(len(runes))
	startArg, _ := args[1].(types.Number)
	start := float64(startArg)
	if n+start < 0 {
		start = 0
	}
	length, ok := args[2].(types.Number)
	if !ok {
		return types.String(slice(runes, start, n)), nil
	}
	if length <= 0 {
		return types.String(""), nil
	}
	end := start + float64(length)
	if start < 0 {
		end = n + start + float64(length)
	}
	return types.String(slice(runes, start, end)), nil
}

func fnSubstringBefore(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	chars, _ := str(args[1])
	if i := strings.Index(s, chars); i >= 0 {
		return types.String(s[:i]), nil
	}
	return types.String(s), nil
}

func fnSubstringAfter(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	chars, _ := str(args[1])
	if i := strings.Index(s, chars); i >= 0 {
		return types.String(s[i+len(chars):]), nil
	}
	return types.String(s), nil
}

func fnLowercase(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return types.String(cases.Lower(language.Und).String(s)), nil
}

func fnUppercase(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return types.String(cases.Upper(language.Und).String(s)), nil
}

func fnLength(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	return types.Number(utf8.RuneCountInString(s)), nil
}

// fnTrim collapses runs of whitespace into single spaces and strips one
// leading and trailing space.
func fnTrim(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	out := sb.String()
	out = strings.TrimPrefix(out, " ")
	out = strings.TrimSuffix(out, " ")
	return types.String(out), nil
}

// fnPad pads to the absolute width; a negative width pads on the left.
func fnPad(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	w, _ := args[1].(types.Number)
	width := int(math.Trunc(float64(w)))
	char, _ := str(args[2])
	if char == "" {
		char = " "
	}
	left := width < 0
	if left {
		width = -width
	}
	missing := width - utf8.RuneCountInString(s)
	if missing <= 0 {
		return types.String(s), nil
	}
	padding := []rune(strings.Repeat(char, missing))[:missing]
	if left {
		return types.String(string(padding) + s), nil
	}
	return types.String(s + string(padding)), nil
}

func fnJoin(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	arr, ok := args[0].(*types.Array)
	if !ok {
		return nil, nil
	}
	sep, _ := str(args[1])
	parts := make([]string, len(arr.Items))
	for i, it := range arr.Items {
		parts[i] = string(it.(types.String))
	}
	return types.String(strings.Join(parts, sep)), nil
}
