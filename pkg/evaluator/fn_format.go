package evaluator

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandrolain/sonata/pkg/types"
)

func fnFormatNumber(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	picture, _ := str(args[1])
	df := defaultDecimalFormat()
	if opts, ok := args[2].(*types.Object); ok {
		df.applyOptions(opts)
	}
	s, err := formatNumberPicture(float64(n), picture, df)
	if err != nil {
		return nil, err
	}
	return types.String(s), nil
}

func fnFormatInteger(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	picture, _ := str(args[1])
	pic, err := parseIntegerPicture(picture)
	if err != nil {
		return nil, err
	}
	return types.String(pic.format(int64(math.Floor(float64(n))))), nil
}

func fnParseInteger(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	picture, _ := str(args[1])
	pic, err := parseIntegerPicture(picture)
	if err != nil {
		return nil, err
	}
	n, ok := pic.parse(s)
	if !ok {
		return nil, nil
	}
	return types.Number(n), nil
}

// Primary formats of an integer picture.
const (
	intDecimal = iota
	intLetters
	intRoman
	intWords
)

const (
	caseLower = iota
	caseUpper
	caseTitle
)

type groupSeparator struct {
	position int
	char     rune
}

// integerPicture is a parsed $formatInteger picture such as "#,##0",
// "Ww" or "1;o".
type integerPicture struct {
	primary  int
	letter   int
	ordinal  bool
	zero     rune
	digits   int
	optional int
	groups   []groupSeparator
	interval int
}

func parseIntegerPicture(picture string) (*integerPicture, error) {
	pic := &integerPicture{}
	primary := picture
	if i := strings.LastIndexByte(picture, ';'); i >= 0 {
		primary = picture[:i]
		pic.ordinal = strings.HasPrefix(picture[i+1:], "o")
	}
	switch primary {
	case "A", "a":
		pic.primary = intLetters
		pic.letter = letterCase(primary)
	case "I", "i":
		pic.primary = intRoman
		pic.letter = letterCase(primary)
	case "W", "w", "Ww":
		pic.primary = intWords
		pic.letter = letterCase(primary)
	default:
		if err := pic.parseDecimal(primary); err != nil {
			return nil, err
		}
	}
	return pic, nil
}

func letterCase(s string) int {
	switch {
	case s == "Ww" || s == "Nn":
		return caseTitle
	case strings.ToUpper(s) == s:
		return caseUpper
	}
	return caseLower
}

// parseDecimal reads a decimal digit pattern right to left, recording the
// grouping separators by the number of digits to their right.
func (pic *integerPicture) parseDecimal(primary string) error {
	pic.primary = intDecimal
	runes := []rune(primary)
	position := 0
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		switch {
		case unicode.IsDigit(r):
			zero := r - digitValue(r)
			if pic.zero != 0 && zero != pic.zero {
				return types.NewError(types.ErrPictureDigitFamily, -1)
			}
			pic.zero = zero
			pic.digits++
			position++
		case r == '#':
			pic.optional++
			position++
		default:
			pic.groups = append(pic.groups, groupSeparator{position: position, char: r})
		}
	}
	if pic.digits == 0 {
		return types.NewError(types.ErrPictureSequence, -1).WithValue(types.String(primary))
	}
	if len(pic.groups) > 0 {
		pic.interval = pic.groups[0].position
		for i, g := range pic.groups {
			if g.char != pic.groups[0].char || g.position != pic.interval*(i+1) {
				pic.interval = 0
				break
			}
		}
	}
	return nil
}

// digitValue returns the value of a decimal digit. Unicode digit families
// are runs of ten code points, some of them adjacent.
func digitValue(r rune) rune {
	if r >= '0' && r <= '9' {
		return r - '0'
	}
	n := rune(0)
	for unicode.IsDigit(r - n - 1) {
		n++
	}
	return n % 10
}

func (pic *integerPicture) format(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}
	var s string
	switch pic.primary {
	case intLetters:
		s = applyCase(toLetters(n), pic.letter)
	case intRoman:
		s = applyCase(toRomanNumeral(n), pic.letter)
	case intWords:
		s = applyCase(numberToWords(n, pic.ordinal), pic.letter)
	default:
		s = pic.formatDecimal(n)
	}
	if negative {
		s = "-" + s
	}
	return s
}

func (pic *integerPicture) formatDecimal(n int64) string {
	digits := []rune(padRunes(strconv.FormatInt(n, 10), pic.digits, '0'))
	for i, r := range digits {
		digits[i] = pic.zero + (r - '0')
	}
	var out []rune
	switch {
	case pic.interval > 0:
		sep := pic.groups[0].char
		for i, r := range digits {
			if i > 0 && (len(digits)-i)%pic.interval == 0 {
				out = append(out, sep)
			}
			out = append(out, r)
		}
	default:
		out = digits
		for i, g := range pic.groups {
			// i separators already sit to the right
			if at := len(out) - g.position - i; at > 0 && g.position > 0 {
				out = slices.Insert(out, at, g.char)
			}
		}
	}
	s := string(out)
	if pic.ordinal {
		s += ordinalSuffix(n)
	}
	return s
}

func ordinalSuffix(n int64) string {
	if tens := n % 100; tens >= 11 && tens <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func applyCase(s string, c int) string {
	switch c {
	case caseUpper:
		return strings.ToUpper(s)
	case caseTitle:
		words := strings.Split(s, " ")
		for i, w := range words {
			if w == "and" || w == "" {
				continue
			}
			r, size := utf8.DecodeRuneInString(w)
			words[i] = string(unicode.ToUpper(r)) + w[size:]
		}
		return strings.Join(words, " ")
	}
	return s
}

// toLetters renders n in bijective base 26: 1 is "a", 27 is "aa".
func toLetters(n int64) string {
	var out []byte
	for n > 0 {
		n--
		out = append(out, byte('a'+n%26))
		n /= 26
	}
	slices.Reverse(out)
	return string(out)
}

func fromLetters(s string) (int64, bool) {
	var n int64
	for _, r := range strings.ToLower(s) {
		if r < 'a' || r > 'z' {
			return 0, false
		}
		n = n*26 + int64(r-'a'+1)
	}
	return n, s != ""
}

var romanNumerals = []struct {
	value  int64
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// toRomanNumeral writes thousands as repeated m.
func toRomanNumeral(n int64) string {
	var b strings.Builder
	for _, rn := range romanNumerals {
		for n >= rn.value {
			b.WriteString(rn.symbol)
			n -= rn.value
		}
	}
	return b.String()
}

func fromRomanNumeral(s string) (int64, bool) {
	values := map[rune]int64{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	var n, prev int64
	runes := []rune(strings.ToLower(s))
	for i := len(runes) - 1; i >= 0; i-- {
		v, ok := values[runes[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			n -= v
		} else {
			n += v
			prev = v
		}
	}
	return n, s != ""
}

var (
	smallWords = []string{
		"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
		"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
		"seventeen", "eighteen", "nineteen",
	}
	tensWords      = []string{"twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}
	magnitudeWords = []string{"thousand", "million", "billion", "trillion"}
	ordinalWords   = map[string]string{
		"one": "first", "two": "second", "three": "third", "five": "fifth",
		"eight": "eighth", "nine": "ninth", "twelve": "twelfth",
	}
)

// numberToWords spells n in British English: 1234 is "one thousand, two
// hundred and thirty-four".
func numberToWords(n int64, ordinal bool) string {
	s := spell(n, false)
	if !ordinal {
		return s
	}
	cut := strings.LastIndexAny(s, " -") + 1
	last := s[cut:]
	switch {
	case ordinalWords[last] != "":
		last = ordinalWords[last]
	case strings.HasSuffix(last, "y"):
		last = strings.TrimSuffix(last, "y") + "ieth"
	default:
		last += "th"
	}
	return s[:cut] + last
}

// spell renders n; joined reports that n follows a larger part of the same
// number.
func spell(n int64, joined bool) string {
	switch {
	case n < 20:
		return joiner(joined, " and ") + smallWords[n]
	case n < 100:
		s := joiner(joined, " and ") + tensWords[n/10-2]
		if n%10 > 0 {
			s += "-" + smallWords[n%10]
		}
		return s
	case n < 1000:
		s := joiner(joined, ", ") + smallWords[n/100] + " hundred"
		if n%100 > 0 {
			s += spell(n%100, true)
		}
		return s
	}
	mag := min((len(strconv.FormatInt(n, 10))-1)/3, len(magnitudeWords))
	factor := int64(math.Pow10(mag * 3))
	s := joiner(joined, ", ") + spell(n/factor, false) + " " + magnitudeWords[mag-1]
	if rem := n % factor; rem > 0 {
		s += spell(rem, true)
	}
	return s
}

func joiner(joined bool, sep string) string {
	if joined {
		return sep
	}
	return ""
}

var wordValues = func() map[string]int64 {
	m := map[string]int64{"hundred": 100, "hundredth": 100}
	for i, w := range smallWords {
		m[w] = int64(i)
	}
	for i, w := range tensWords {
		m[w] = int64(i+2) * 10
		m[strings.TrimSuffix(w, "y")+"ieth"] = int64(i+2) * 10
	}
	for i, w := range magnitudeWords {
		m[w] = int64(math.Pow10((i + 1) * 3))
		m[w+"th"] = m[w]
	}
	for card, ord := range ordinalWords {
		m[ord] = m[card]
	}
	for i, w := range smallWords {
		if _, ok := ordinalWords[w]; !ok {
			m[w+"th"] = int64(i)
		}
	}
	return m
}()

// wordsToNumber is the inverse of numberToWords, accepting ordinals.
func wordsToNumber(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(", ", " ", " and ", " ", "-", " ").Replace(s)
	segments := []int64{0}
	for _, w := range strings.Fields(s) {
		v, ok := wordValues[w]
		if !ok {
			return 0, false
		}
		top := segments[len(segments)-1]
		segments = segments[:len(segments)-1]
		switch {
		case v >= 100:
			segments = append(segments, top*v)
		case top >= 1000:
			segments = append(segments, top, v)
		default:
			segments = append(segments, top+v)
		}
	}
	var n int64
	for _, v := range segments {
		n += v
	}
	return n, true
}

func (pic *integerPicture) parse(s string) (int64, bool) {
	switch pic.primary {
	case intLetters:
		return fromLetters(s)
	case intRoman:
		return fromRomanNumeral(s)
	case intWords:
		return wordsToNumber(s)
	}
	if pic.ordinal {
		for _, suffix := range []string{"st", "nd", "rd", "th"} {
			if t, ok := strings.CutSuffix(s, suffix); ok {
				s = t
				break
			}
		}
	}
	var n int64
	seen := false
	for _, r := range s {
		if d := r - pic.zero; d >= 0 && d <= 9 {
			n = n*10 + int64(d)
			seen = true
			continue
		}
		if !slices.ContainsFunc(pic.groups, func(g groupSeparator) bool { return g.char == r }) {
			return 0, false
		}
	}
	return n, seen
}
