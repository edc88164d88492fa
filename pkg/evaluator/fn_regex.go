package evaluator

import (
	"context"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sandrolain/sonata/pkg/types"
)

// regexMatcher is the function value of a regex literal. Applied to a
// string it returns the first match as {match, start, end, groups, next};
// next() yields the following match. Offsets count code points.
type regexMatcher struct {
	re types.Regexp
}

func (*regexMatcher) Kind() types.Kind { return types.KindFunction }
func (*regexMatcher) Arity() int       { return 1 }

func (m *regexMatcher) exec(s string) types.Value {
	all := m.re.FindAllStringSubmatchIndex(s, -1)
	if len(all) == 0 {
		return nil
	}
	return matchRecord(s, all, 0)
}

func matchRecord(s string, all [][]int, i int) *types.Object {
	loc := all[i]
	start := utf8.RuneCountInString(s[:loc[0]])
	obj := types.NewObject(5)
	obj.Set("match", types.String(s[loc[0]:loc[1]]))
	obj.Set("start", types.Number(start))
	obj.Set("end", types.Number(start+utf8.RuneCountInString(s[loc[0]:loc[1]])))
	groups := make([]types.Value, 0, len(loc)/2-1)
	for g := 2; g+1 < len(loc); g += 2 {
		if loc[g] < 0 {
			groups = append(groups, types.String(""))
			continue
		}
		groups = append(groups, types.String(s[loc[g]:loc[g+1]]))
	}
	obj.Set("groups", types.NewArray(groups...))
	obj.Set("next", &Native{
		name: "next",
		fn: func(context.Context, *Call, []types.Value) (types.Value, error) {
			if loc[1] >= len(s) {
				return nil, nil
			}
			// searching again from the end of an empty match finds it again
			if loc[0] == loc[1] {
				return nil, types.NewError(types.ErrZeroLengthMatch, -1)
			}
			if i+1 >= len(all) {
				return nil, nil
			}
			if nxt := all[i+1]; nxt[0] == nxt[1] {
				return nil, types.NewError(types.ErrZeroLengthMatch, -1)
			}
			return matchRecord(s, all, i+1), nil
		},
	})
	return obj
}

// match is a decoded match record.
type match struct {
	text   string
	start  int
	end    int
	groups []string
	record *types.Object
	next   types.Value
}

// matches applies a matcher function to s and follows next() until limit
// records were read or the matches run out. A negative limit reads all.
func matches(ctx context.Context, c *Call, matcher types.Value, s string, limit int, fnName string) ([]match, error) {
	var out []match
	res, err := c.Call(ctx, matcher, types.String(s))
	if err != nil {
		return nil, err
	}
	for res != nil && (limit < 0 || len(out) < limit) {
		m, err := decodeMatch(res, fnName)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
		res, err = c.Call(ctx, m.next)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeMatch(v types.Value, fnName string) (match, error) {
	bad := types.NewError(types.ErrMatcherResult, -1).WithToken(fnName)
	obj, ok := v.(*types.Object)
	if !ok {
		return match{}, bad
	}
	var m match
	m.record = obj
	text, _ := obj.Get("match")
	start, okStart := obj.Get("start")
	end, _ := obj.Get("end")
	groups, okGroups := obj.Get("groups")
	next, okNext := obj.Get("next")
	if !okStart && !okGroups && !okNext {
		return match{}, bad
	}
	if s, ok := text.(types.String); ok {
		m.text = string(s)
	}
	if n, ok := start.(types.Number); ok {
		m.start = int(n)
	}
	if n, ok := end.(types.Number); ok {
		m.end = int(n)
	} else {
		m.end = m.start + utf8.RuneCountInString(m.text)
	}
	if arr, ok := groups.(*types.Array); ok {
		for _, g := range arr.Items {
			gs, _ := g.(types.String)
			m.groups = append(m.groups, string(gs))
		}
	}
	m.next = next
	return m, nil
}

// limitArg reads an optional non-negative count argument. It reports -1
// when the argument is absent.
func limitArg(v types.Value, code types.ErrorCode) (int, error) {
	n, ok := v.(types.Number)
	if !ok {
		return -1, nil
	}
	if n < 0 {
		return 0, types.NewError(code, -1).WithValue(n)
	}
	return int(math.Ceil(float64(n))), nil
}

func fnMatch(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	limit, err := limitArg(args[2], types.ErrMatchLimit)
	if err != nil {
		return nil, err
	}
	result := types.NewSequence()
	if limit == 0 {
		return result, nil
	}
	ms, err := matches(ctx, c, args[1], s, limit, "match")
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		obj := types.NewObject(3)
		obj.Set("match", types.String(m.text))
		obj.Set("index", types.Number(m.start))
		groups := make([]types.Value, len(m.groups))
		for i, g := range m.groups {
			groups[i] = types.String(g)
		}
		obj.Set("groups", types.NewArray(groups...))
		result.Items = append(result.Items, obj)
	}
	return result, nil
}

func fnContains(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	if token, ok := args[1].(types.String); ok {
		return types.Bool(strings.Contains(s, string(token))), nil
	}
	ms, err := matches(ctx, c, args[1], s, 1, "contains")
	if err != nil {
		return nil, err
	}
	return types.Bool(len(ms) > 0), nil
}

func fnSplit(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	limit, err := limitArg(args[2], types.ErrSplitLimit)
	if err != nil {
		return nil, err
	}
	var parts []string
	switch sep := args[1].(type) {
	case types.String:
		parts = strings.Split(s, string(sep))
		if limit >= 0 && len(parts) > limit {
			parts = parts[:limit]
		}
	default:
		if limit == 0 {
			break
		}
		ms, err := matches(ctx, c, sep, s, limit, "split")
		if err != nil {
			return nil, err
		}
		runes := []rune(s)
		start := 0
		for _, m := range ms {
			parts = append(parts, runeSlice(runes, start, m.start))
			start = m.end
		}
		if limit < 0 || len(ms) < limit {
			parts = append(parts, runeSlice(runes, start, len(runes)))
		}
	}
	out := make([]types.Value, len(parts))
	for i, p := range parts {
		out[i] = types.String(p)
	}
	return types.NewArray(out...), nil
}

func runeSlice(runes []rune, from, to int) string {
	from = max(0, min(from, len(runes)))
	to = max(from, min(to, len(runes)))
	return string(runes[from:to])
}

func fnReplace(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	if p, ok := args[1].(types.String); ok && p == "" {
		return nil, types.NewError(types.ErrReplaceEmptyPattern, -1).WithValue(p)
	}
	limit, err := limitArg(args[3], types.ErrReplaceLimit)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return types.String(s), nil
	}

	if pattern, ok := args[1].(types.String); ok {
		repl, ok := args[2].(types.String)
		if !ok {
			return nil, types.NewError(types.ErrArgumentType, -1).WithIndex(3).WithValue(args[2])
		}
		n := -1
		if limit > 0 {
			n = limit
		}
		return types.String(strings.Replace(s, string(pattern), string(repl), n)), nil
	}

	ms, err := matches(ctx, c, args[1], s, limit, "replace")
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	var sb strings.Builder
	pos := 0
	for _, m := range ms {
		sb.WriteString(runeSlice(runes, pos, m.start))
		var with types.Value
		if tmpl, ok := args[2].(types.String); ok {
			with = types.String(expandTemplate(string(tmpl), m))
		} else {
			if with, err = c.Call(ctx, args[2], m.record); err != nil {
				return nil, err
			}
		}
		ws, ok := with.(types.String)
		if !ok {
			return nil, types.NewError(types.ErrReplaceResult, -1).WithValue(with)
		}
		sb.WriteString(string(ws))
		pos = m.start + utf8.RuneCountInString(m.text)
	}
	sb.WriteString(runeSlice(runes, pos, len(runes)))
	return types.String(sb.String()), nil
}

// expandTemplate substitutes $0 (the match), $N (capture group N) and $$
// (a literal dollar) in a replacement string. A multi-digit group number
// falls back to fewer digits when no such group exists.
func expandTemplate(tmpl string, m match) string {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		ch := tmpl[i]
		if ch != '$' || i+1 >= len(tmpl) {
			sb.WriteByte(ch)
			continue
		}
		next := tmpl[i+1]
		switch {
		case next == '$':
			sb.WriteByte('$')
			i++
		case next == '0':
			sb.WriteString(m.text)
			i++
		case next >= '1' && next <= '9':
			digits := 1
			if len(m.groups) > 0 {
				digits = len(strconv.Itoa(len(m.groups)))
			}
			end := min(i+1+digits, len(tmpl))
			j := i + 1
			for j < end && tmpl[j] >= '0' && tmpl[j] <= '9' {
				j++
			}
			idx, _ := strconv.Atoi(tmpl[i+1 : j])
			if digits > 1 && idx > len(m.groups) && j-(i+1) > 1 {
				j--
				idx, _ = strconv.Atoi(tmpl[i+1 : j])
			}
			if idx >= 1 && idx <= len(m.groups) {
				sb.WriteString(m.groups[idx-1])
			}
			i = j - 1
		default:
			sb.WriteByte('$')
		}
	}
	return sb.String()
}
