package evaluator

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/sandrolain/sonata/pkg/types"
)

// decimalFormat holds the symbols of a $formatNumber picture string, after
// the XPath decimal-format properties.
type decimalFormat struct {
	decimal  rune
	group    rune
	exponent rune
	minus    rune
	infinity string
	nan      string
	percent  string
	perMille string
	zero     rune
	digit    rune
	pattern  rune
}

func defaultDecimalFormat() decimalFormat {
	return decimalFormat{
		decimal:  '.',
		group:    ',',
		exponent: 'e',
		minus:    '-',
		infinity: "Infinity",
		nan:      "NaN",
		percent:  "%",
		perMille: "‰",
		zero:     '0',
		digit:    '#',
		pattern:  ';',
	}
}

// applyOptions overrides symbols from the options object of $formatNumber.
// Unknown properties are ignored.
func (df *decimalFormat) applyOptions(opts *types.Object) {
	if opts == nil {
		return
	}
	opts.Range(func(key string, v types.Value) bool {
		s, ok := v.(types.String)
		if !ok || s == "" {
			return true
		}
		r, _ := utf8.DecodeRuneInString(string(s))
		switch key {
		case "decimal-separator":
			df.decimal = r
		case "grouping-separator":
			df.group = r
		case "exponent-separator":
			df.exponent = r
		case "minus-sign":
			df.minus = r
		case "infinity":
			df.infinity = string(s)
		case "NaN":
			df.nan = string(s)
		case "percent":
			df.percent = string(s)
		case "per-mille":
			df.perMille = string(s)
		case "zero-digit":
			df.zero = r
		case "digit":
			df.digit = r
		case "pattern-separator":
			df.pattern = r
		}
		return true
	})
}

func (df *decimalFormat) isDecimalDigit(r rune) bool {
	r -= df.zero
	return r >= 0 && r <= 9
}

func (df *decimalFormat) isDigit(r rune) bool {
	return r == df.digit || df.isDecimalDigit(r)
}

func (df *decimalFormat) isActive(r rune) bool {
	return r == df.decimal || r == df.group || df.isDigit(r)
}

// localize maps ASCII digits onto the zero-digit family.
func (df *decimalFormat) localize(s string) string {
	if df.zero == '0' {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return df.zero + (r - '0')
		}
		return r
	}, s)
}

const (
	numPlain = iota
	numPercent
	numPerMille
)

// subPicture is one parsed half of a picture string.
type subPicture struct {
	kind       int
	prefix     string
	suffix     string
	intGroups  []int
	interval   int
	fracGroups []int
	minInt     int
	scale      int
	minFrac    int
	maxFrac    int
	minExp     int
}

// formatNumberPicture formats value with an XPath picture string.
func formatNumberPicture(value float64, picture string, df decimalFormat) (string, error) {
	if math.IsInf(value, 0) {
		if value > 0 {
			return df.infinity, nil
		}
		return string(df.minus) + df.infinity, nil
	}
	if math.IsNaN(value) {
		return df.nan, nil
	}

	pic, err := parseNumberPicture(picture, &df, value < 0)
	if err != nil {
		return "", err
	}
	switch pic.kind {
	case numPercent:
		value *= 100
	case numPerMille:
		value *= 1000
	}

	exponent := 0
	if pic.minExp > 0 {
		lo, hi := math.Pow10(pic.scale-1), math.Pow10(pic.scale)
		for value != 0 && math.Abs(value) < lo {
			value *= 10
			exponent--
		}
		for math.Abs(value) >= hi {
			value /= 10
			exponent++
		}
	}

	digits := decimal.NewFromFloat(math.Abs(value)).StringFixedBank(int32(pic.maxFrac))
	intStr, fracStr, _ := strings.Cut(digits, ".")

	var b strings.Builder
	b.WriteString(pic.prefix)
	b.WriteString(pic.formatInt(df.localize(intStr), &df))
	if frac := pic.formatFrac(df.localize(fracStr), &df); frac != "" {
		b.WriteRune(df.decimal)
		b.WriteString(frac)
	}
	if pic.minExp > 0 {
		b.WriteRune(df.exponent)
		if exponent < 0 {
			b.WriteRune(df.minus)
			exponent = -exponent
		}
		exp := df.localize(strconv.Itoa(exponent))
		b.WriteString(padRunes(exp, pic.minExp, df.zero))
	}
	b.WriteString(pic.suffix)
	return b.String(), nil
}

func parseNumberPicture(picture string, df *decimalFormat, negative bool) (subPicture, error) {
	parts := strings.Split(picture, string(df.pattern))
	if len(parts) > 2 {
		return subPicture{}, types.NewError(types.ErrPictureParts, -1)
	}
	pics := make([]subPicture, len(parts))
	for i, part := range parts {
		pic, err := parseSubPicture(part, df)
		if err != nil {
			return subPicture{}, err
		}
		pics[i] = pic
	}
	switch {
	case !negative:
		return pics[0], nil
	case len(pics) == 2:
		return pics[1], nil
	}
	pic := pics[0]
	pic.prefix = string(df.minus) + pic.prefix
	return pic, nil
}

func parseSubPicture(sub string, df *decimalFormat) (subPicture, error) {
	runes := []rune(sub)
	start := 0
	for start < len(runes) && !df.isActive(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !df.isActive(runes[end-1]) {
		end--
	}
	active := runes[start:end]

	mantissa, exponent := active, []rune(nil)
	hasExp := false
	if i := slices.Index(active, df.exponent); i >= 0 {
		mantissa, exponent, hasExp = active[:i], active[i+1:], true
	}
	intPart, fracPart := mantissa, []rune(nil)
	hasDecimal := false
	if i := slices.Index(mantissa, df.decimal); i >= 0 {
		intPart, fracPart, hasDecimal = mantissa[:i], mantissa[i+1:], true
	}

	percents := strings.Count(sub, df.percent)
	perMilles := strings.Count(sub, df.perMille)
	switch {
	case strings.Count(sub, string(df.decimal)) > 1:
		return subPicture{}, types.NewError(types.ErrPictureDecimal, -1)
	case percents > 1:
		return subPicture{}, types.NewError(types.ErrPicturePercent, -1)
	case perMilles > 1:
		return subPicture{}, types.NewError(types.ErrPicturePerMille, -1)
	case percents > 0 && perMilles > 0:
		return subPicture{}, types.NewError(types.ErrPicturePercentBoth, -1)
	case !slices.ContainsFunc(mantissa, df.isDigit):
		return subPicture{}, types.NewError(types.ErrPictureNoDigit, -1)
	case slices.ContainsFunc(active, func(r rune) bool { return !df.isActive(r) && r != df.exponent }):
		return subPicture{}, types.NewError(types.ErrPicturePassive, -1)
	case hasDecimal && (lastIs(intPart, df.group) || firstIs(fracPart, df.group)):
		return subPicture{}, types.NewError(types.ErrPictureGroupDecimal, -1)
	case !hasDecimal && lastIs(intPart, df.group):
		return subPicture{}, types.NewError(types.ErrPictureGroupEnd, -1)
	case strings.Contains(sub, string([]rune{df.group, df.group})):
		return subPicture{}, types.NewError(types.ErrPictureGroupAdjoin, -1)
	}
	if i := slices.IndexFunc(intPart, df.isDecimalDigit); i >= 0 && slices.Contains(intPart[i:], df.digit) {
		return subPicture{}, types.NewError(types.ErrPictureIntOptional, -1)
	}
	if i := slices.Index(fracPart, df.digit); i >= 0 && slices.ContainsFunc(fracPart[i:], df.isDecimalDigit) {
		return subPicture{}, types.NewError(types.ErrPictureFracOptional, -1)
	}
	if hasExp && (percents > 0 || perMilles > 0) {
		return subPicture{}, types.NewError(types.ErrPictureExpPercent, -1)
	}
	if hasExp && (len(exponent) == 0 || slices.ContainsFunc(exponent, func(r rune) bool { return !df.isDecimalDigit(r) })) {
		return subPicture{}, types.NewError(types.ErrPictureExponent, -1)
	}

	pic := subPicture{
		prefix:     string(runes[:start]),
		suffix:     string(runes[end:]),
		intGroups:  groupPositions(intPart, df, false),
		fracGroups: groupPositions(fracPart, df, true),
		minInt:     countFunc(intPart, df.isDecimalDigit),
		minFrac:    countFunc(fracPart, df.isDecimalDigit),
		maxFrac:    countFunc(fracPart, df.isDigit),
	}
	switch {
	case percents > 0:
		pic.kind = numPercent
	case perMilles > 0:
		pic.kind = numPerMille
	}
	pic.interval = regularInterval(pic.intGroups)
	pic.scale = pic.minInt
	if pic.minInt == 0 && pic.maxFrac == 0 {
		if hasExp {
			pic.minFrac, pic.maxFrac = 1, 1
		} else {
			pic.minInt = 1
		}
	}
	if hasExp && pic.minInt == 0 && slices.Contains(intPart, df.digit) {
		pic.minInt = 1
	}
	if pic.minInt == 0 && pic.minFrac == 0 {
		pic.minFrac = 1
	}
	if hasExp {
		pic.minExp = countFunc(exponent, df.isDecimalDigit)
	}
	return pic, nil
}

// groupPositions returns the digit counts at which grouping separators sit:
// counted from the right in the integer part, from the left in the
// fractional part.
func groupPositions(part []rune, df *decimalFormat, fromLeft bool) []int {
	var positions []int
	for i, r := range part {
		if r != df.group {
			continue
		}
		if fromLeft {
			positions = append(positions, countFunc(part[:i], df.isDigit))
		} else {
			positions = append(positions, countFunc(part[i+1:], df.isDigit))
		}
	}
	return positions
}

// regularInterval returns the grouping interval when the separators repeat
// at a fixed distance, or 0.
func regularInterval(positions []int) int {
	if len(positions) == 0 {
		return 0
	}
	g := 0
	for _, p := range positions {
		g = gcd(g, p)
	}
	for i := range positions {
		if !slices.Contains(positions, g*(i+1)) {
			return 0
		}
	}
	return g
}

func (pic *subPicture) formatInt(digits string, df *decimalFormat) string {
	digits = strings.TrimLeft(digits, string(df.zero))
	digits = padRunes(digits, pic.minInt, df.zero)
	runes := []rune(digits)
	var cuts []int
	if pic.interval > 0 {
		for p := pic.interval; p < len(runes); p += pic.interval {
			cuts = append(cuts, len(runes)-p)
		}
	} else {
		for _, p := range pic.intGroups {
			if p > 0 && p < len(runes) {
				cuts = append(cuts, len(runes)-p)
			}
		}
	}
	return insertSeparators(runes, cuts, df.group)
}

func (pic *subPicture) formatFrac(digits string, df *decimalFormat) string {
	digits = strings.TrimRight(digits, string(df.zero))
	for utf8.RuneCountInString(digits) < pic.minFrac {
		digits += string(df.zero)
	}
	runes := []rune(digits)
	var cuts []int
	for _, p := range pic.fracGroups {
		if p > 0 && p < len(runes) {
			cuts = append(cuts, p)
		}
	}
	return insertSeparators(runes, cuts, df.group)
}

// insertSeparators places sep before each rune index in cuts.
func insertSeparators(runes []rune, cuts []int, sep rune) string {
	if len(cuts) == 0 {
		return string(runes)
	}
	var b strings.Builder
	for i, r := range runes {
		if slices.Contains(cuts, i) {
			b.WriteRune(sep)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func padRunes(s string, width int, pad rune) string {
	if n := width - utf8.RuneCountInString(s); n > 0 {
		return strings.Repeat(string(pad), n) + s
	}
	return s
}

func countFunc(runes []rune, f func(rune) bool) int {
	n := 0
	for _, r := range runes {
		if f(r) {
			n++
		}
	}
	return n
}

func firstIs(runes []rune, r rune) bool {
	return len(runes) > 0 && runes[0] == r
}

func lastIs(runes []rune, r rune) bool {
	return len(runes) > 0 && runes[len(runes)-1] == r
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
