package evaluator

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sandrolain/sonata/pkg/types"
)

// isoPicture is the picture equivalent of isoMillis with a zone offset.
const isoPicture = "[Y0001]-[M01]-[D01]T[H01]:[m01]:[s01].[f001][Z01:01t]"

const components = "YMDdFWwXxHhPmsfZzCE"

var defaultPresentation = map[rune]string{
	'F': "n", 'P': "n", 'C': "n", 'E': "n",
	'm': "01", 's': "01",
	'Z': "01:01", 'z': "01:01",
}

// pictureMarker is one part of a date/time picture: either literal text or
// a [component presentation,width] marker.
type pictureMarker struct {
	literal    string
	component  rune
	pres1      string
	pres2      string
	names      int
	integer    *integerPicture
	minWidth   int
	maxWidth   int
	yearDigits int
}

func (m *pictureMarker) isLiteral() bool { return m.component == 0 }

func (m *pictureMarker) named() bool { return m.names >= 0 }

type dateTimePicture []*pictureMarker

func parseDateTimePicture(picture string) (dateTimePicture, error) {
	var (
		parts dateTimePicture
		lit   strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, &pictureMarker{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(picture); {
		switch {
		case strings.HasPrefix(picture[i:], "[["):
			lit.WriteByte('[')
			i += 2
		case strings.HasPrefix(picture[i:], "]]"):
			lit.WriteByte(']')
			i += 2
		case picture[i] == '[':
			end := strings.IndexByte(picture[i:], ']')
			if end < 0 {
				return nil, types.NewError(types.ErrPictureBracket, -1)
			}
			m, err := parseMarker(picture[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			flush()
			parts = append(parts, m)
			i += end + 1
		default:
			lit.WriteByte(picture[i])
			i++
		}
	}
	flush()
	return parts, nil
}

func parseMarker(spec string) (*pictureMarker, error) {
	spec = strings.Join(strings.Fields(spec), "")
	component, size := utf8.DecodeRuneInString(spec)
	if spec == "" || !strings.ContainsRune(components, component) {
		return nil, types.NewError(types.ErrPictureComponent, -1).WithValue(types.String(spec))
	}
	m := &pictureMarker{component: component, names: -1, minWidth: -1, maxWidth: -1}
	rest := spec[size:]
	if i := strings.LastIndexByte(rest, ','); i >= 0 {
		lo, hi, ranged := strings.Cut(rest[i+1:], "-")
		m.minWidth = widthValue(lo)
		if ranged {
			m.maxWidth = widthValue(hi)
		}
		rest = rest[:i]
	}
	if last, n := utf8.DecodeLastRuneInString(rest); len(rest) > 1 && strings.ContainsRune("atco", last) {
		m.pres2 = string(last)
		rest = rest[:len(rest)-n]
	}
	if rest == "" {
		rest = defaultPresentation[component]
		if rest == "" {
			rest = "1"
		}
	}
	m.pres1 = rest

	switch {
	case rest == "N" || rest == "n" || rest == "Nn":
		if !strings.ContainsRune("MxFPCE", component) {
			return nil, types.NewError(types.ErrPictureName, -1).WithValue(types.String(string(component)))
		}
		m.names = letterCase(rest)
		return m, nil
	case component == 'Z' || component == 'z':
		if countFunc([]rune(rest), unicode.IsDigit) > 4 {
			return nil, types.NewError(types.ErrPictureTimezone, -1)
		}
		return m, nil
	case component == 'C' || component == 'E':
		m.names = caseUpper
		return m, nil
	}

	picture := rest
	if m.pres2 == "o" {
		picture += ";o"
	}
	pic, err := parseIntegerPicture(picture)
	if err != nil {
		return nil, err
	}
	if pic.primary == intDecimal && m.minWidth > pic.digits {
		pic.digits = m.minWidth
	}
	m.integer = pic
	if component == 'Y' {
		switch {
		case m.maxWidth > 0:
			m.yearDigits = m.maxWidth
		case m.minWidth > 0 && m.maxWidth < 0 && pic.digits <= m.minWidth:
			m.yearDigits = m.minWidth
		case pic.digits+pic.optional >= 2:
			m.yearDigits = pic.digits + pic.optional
		}
	}
	return m, nil
}

// widthValue reads one bound of a width modifier; "*" and junk mean unset.
func widthValue(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// parseZone reads a ±HHMM timezone argument.
func parseZone(s string) (*time.Location, error) {
	m := zoneArg.FindStringSubmatch(s)
	if m == nil {
		return nil, types.NewError(types.ErrDateParse, -1).WithValue(types.String(s))
	}
	h, _ := strconv.Atoi(m[2])
	mm, _ := strconv.Atoi(m[3])
	offset := (h*60 + mm) * 60
	if m[1] == "-" {
		offset = -offset
	}
	return time.FixedZone("", offset), nil
}

var zoneArg = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})$`)

func (p dateTimePicture) format(t time.Time) string {
	var b strings.Builder
	for _, m := range p {
		if m.isLiteral() {
			b.WriteString(m.literal)
			continue
		}
		b.WriteString(m.format(t))
	}
	return b.String()
}

// isoWeekday numbers Monday 1 through Sunday 7.
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// weekOfMonth returns the week of the month and that month, counting the
// week holding a month's first Thursday as week 1.
func weekOfMonth(t time.Time) (int, time.Month) {
	thursday := t.AddDate(0, 0, 4-isoWeekday(t))
	return (thursday.Day()-1)/7 + 1, thursday.Month()
}

func (m *pictureMarker) format(t time.Time) string {
	switch m.component {
	case 'Z':
		return formatOffset(t, m.pres1, m.pres2 == "t")
	case 'z':
		return "GMT" + formatOffset(t, "01:01", false)
	case 'C', 'E':
		return "ISO"
	case 'P':
		if m.named() {
			ampm := "am"
			if t.Hour() >= 12 {
				ampm = "pm"
			}
			return m.truncate(applyCase(ampm, m.names))
		}
	case 'f':
		return m.formatFraction(t.Nanosecond() / int(time.Millisecond))
	}

	var n int
	switch m.component {
	case 'Y':
		n = t.Year()
		if m.yearDigits > 0 {
			n %= int(math.Pow10(m.yearDigits))
		}
	case 'M':
		n = int(t.Month())
		if m.named() {
			return m.truncate(applyCase(strings.ToLower(t.Month().String()), m.names))
		}
	case 'D':
		n = t.Day()
	case 'd':
		n = t.YearDay()
	case 'F':
		n = isoWeekday(t)
		if m.named() {
			return m.truncate(applyCase(strings.ToLower(t.Weekday().String()), m.names))
		}
	case 'W':
		_, n = t.ISOWeek()
	case 'w':
		n, _ = weekOfMonth(t)
	case 'X':
		n, _ = t.ISOWeek()
	case 'x':
		_, month := weekOfMonth(t)
		n = int(month)
		if m.named() {
			return m.truncate(applyCase(strings.ToLower(month.String()), m.names))
		}
	case 'H':
		n = t.Hour()
	case 'h':
		n = t.Hour() % 12
		if n == 0 {
			n = 12
		}
	case 'P':
		n = t.Hour() / 12
	case 'm':
		n = t.Minute()
	case 's':
		n = t.Second()
	}
	return m.integer.format(int64(n))
}

func (m *pictureMarker) truncate(s string) string {
	if m.maxWidth > 0 && utf8.RuneCountInString(s) > m.maxWidth {
		return string([]rune(s)[:m.maxWidth])
	}
	return s
}

// formatFraction writes milliseconds as the digits after a decimal point.
func (m *pictureMarker) formatFraction(ms int) string {
	digits := strings.TrimRight(fmt.Sprintf("%03d", ms), "0")
	width := 1
	if m.integer != nil {
		width = max(m.integer.digits, 1)
	}
	for len(digits) < width {
		digits += "0"
	}
	if m.maxWidth > 0 && len(digits) > m.maxWidth {
		digits = digits[:m.maxWidth]
	}
	return digits
}

// formatOffset renders the zone offset of t after a picture such as
// "01:01", "0101" or "01".
func formatOffset(t time.Time, picture string, zulu bool) string {
	_, offset := t.Zone()
	if zulu && offset == 0 {
		return "Z"
	}
	sign := "+"
	if offset < 0 {
		sign, offset = "-", -offset
	}
	hours, minutes := offset/3600, offset%3600/60
	digits := countFunc([]rune(picture), unicode.IsDigit)
	sep := strings.TrimFunc(picture, unicode.IsDigit)
	if len(sep) > 1 {
		sep = sep[:1]
	}
	switch {
	case digits <= 2:
		s := sign + padRunes(strconv.Itoa(hours), digits, '0')
		if minutes != 0 {
			if sep == "" {
				sep = ":"
			}
			s += sep + fmt.Sprintf("%02d", minutes)
		}
		return s
	default:
		return sign + padRunes(strconv.Itoa(hours), digits-2, '0') + sep + fmt.Sprintf("%02d", minutes)
	}
}

var (
	monthNames = func() []string {
		names := make([]string, 12)
		for i := range names {
			names[i] = time.Month(i + 1).String()
		}
		return names
	}()
	dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
)

// pattern returns the regular expression matching the marker's rendering.
// adjacent reports that another marker follows with no literal between.
func (m *pictureMarker) pattern(adjacent bool) string {
	switch {
	case m.component == 'Z':
		return `(Z|[+-]\d{1,2}(?::?\d{2})?)`
	case m.component == 'z':
		return `GMT([+-]\d{1,2}(?::?\d{2})?)?`
	case m.component == 'M' && m.named(), m.component == 'x' && m.named():
		return namesPattern(monthNames)
	case m.component == 'F' && m.named():
		return namesPattern(dayNames)
	case m.component == 'P' && m.named():
		return `((?i:am|pm))`
	case m.component == 'C', m.component == 'E':
		return `(\S+)`
	case m.component == 'f':
		return `(\d+)`
	}
	switch m.integer.primary {
	case intLetters:
		return `([a-zA-Z]+)`
	case intRoman:
		return `([MDCLXVImdclxvi]+)`
	case intWords:
		return `((?i:[a-z]+(?:(?:, | and |[ -])[a-z]+)*))`
	}
	digits := `(\p{Nd}+`
	if adjacent {
		digits = `(\p{Nd}{` + strconv.Itoa(max(m.integer.digits, 1)) + `}`
	}
	if groups := m.integer.groups; len(groups) > 0 {
		digits += `(?:` + regexp.QuoteMeta(string(groups[0].char)) + `\p{Nd}+)*`
	}
	if m.integer.ordinal {
		digits += `(?:st|nd|rd|th)?`
	}
	return digits + `)`
}

// namesPattern matches full names and their three letter abbreviations.
func namesPattern(names []string) string {
	alts := make([]string, 0, len(names))
	for _, n := range names {
		alts = append(alts, n, n[:3])
	}
	return `((?i:` + strings.Join(alts, "|") + `))`
}

// parse reads a timestamp rendered with the picture. The zero time and
// false report a value that does not match.
func (p dateTimePicture) parse(s string, now time.Time) (time.Time, bool, error) {
	var re strings.Builder
	re.WriteString("^")
	var markers []*pictureMarker
	for i, m := range p {
		if m.isLiteral() {
			re.WriteString(regexp.QuoteMeta(m.literal))
			continue
		}
		adjacent := i+1 < len(p) && !p[i+1].isLiteral()
		re.WriteString(m.pattern(adjacent))
		markers = append(markers, m)
	}
	re.WriteString("$")
	matcher, err := regexp.Compile(re.String())
	if err != nil {
		return time.Time{}, false, types.NewError(types.ErrDateParse, -1).WithValue(types.String(s)).WithCause(err)
	}
	match := matcher.FindStringSubmatch(s)
	if match == nil {
		return time.Time{}, false, nil
	}

	values := map[rune]int{}
	loc := time.UTC
	for i, m := range markers {
		text := match[i+1]
		switch {
		case m.component == 'Z' || m.component == 'z':
			if text == "" || text == "Z" {
				continue
			}
			if loc, err = parseZone(normalizeOffset(text)); err != nil {
				return time.Time{}, false, err
			}
		case m.component == 'C' || m.component == 'E':
		case m.component == 'f':
			ms, _ := strconv.Atoi((text + "00")[:3])
			values['f'] = ms
		case m.component == 'P' && m.named():
			values['P'] = 0
			if strings.EqualFold(text, "pm") {
				values['P'] = 1
			}
		case m.named():
			names := monthNames
			if m.component == 'F' {
				names = dayNames
			}
			for j, n := range names {
				if strings.EqualFold(text, n) || strings.EqualFold(text, n[:3]) {
					values[m.component] = j + 1
				}
			}
		default:
			n, ok := m.integer.parse(text)
			if !ok {
				return time.Time{}, false, nil
			}
			values[m.component] = int(n)
		}
	}
	t, err := assemble(values, now.In(loc), loc)
	return t, err == nil, err
}

// normalizeOffset widens "+1" or "+0130" offsets into ±HH:MM.
func normalizeOffset(s string) string {
	sign, rest := s[:1], strings.ReplaceAll(s[1:], ":", "")
	switch len(rest) {
	case 1, 2:
		rest = padRunes(rest, 2, '0') + "00"
	case 3:
		rest = "0" + rest
	}
	return sign + rest
}

// assemble builds an instant from parsed components. Components more
// significant than any given one come from now, less significant ones take
// their lowest value, and a hole between given components is an error.
func assemble(values map[rune]int, now time.Time, loc *time.Location) (time.Time, error) {
	if h, ok := values['h']; ok {
		values['H'] = h%12 + 12*values['P']
	}
	if _, ok := values['d']; ok {
		values['M'], values['D'] = 1, 1
	}
	order := []rune("YMDHmsf")
	first, last := -1, -1
	for i, c := range order {
		if _, ok := values[c]; ok {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return time.Time{}, types.NewError(types.ErrPictureMissing, -1)
	}
	for _, c := range order[first:last] {
		if _, ok := values[c]; !ok {
			return time.Time{}, types.NewError(types.ErrPictureMissing, -1)
		}
	}
	current := map[rune]int{
		'Y': now.Year(), 'M': int(now.Month()), 'D': now.Day(),
		'H': now.Hour(), 'm': now.Minute(), 's': now.Second(), 'f': now.Nanosecond() / int(time.Millisecond),
	}
	lowest := map[rune]int{'M': 1, 'D': 1}
	get := func(i int) int {
		c := order[i]
		switch {
		case i < first:
			return current[c]
		case i > last:
			return lowest[c]
		}
		return values[c]
	}
	t := time.Date(get(0), time.Month(get(1)), get(2), get(3), get(4), get(5), get(6)*int(time.Millisecond), loc)
	if d, ok := values['d']; ok {
		t = t.AddDate(0, 0, d-1)
	}
	return t, nil
}
