package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/sandrolain/sonata/pkg/types"
)

// Lexer converts an expression into tokens, one call to Next at a time.
type Lexer struct {
	input  string
	pos    int
	engine types.RegexEngine
}

// NewLexer creates a lexer over input. A nil engine selects DefaultRegexEngine.
func NewLexer(input string, engine types.RegexEngine) *Lexer {
	if engine == nil {
		engine = DefaultRegexEngine
	}
	return &Lexer{input: input, engine: engine}
}

// DefaultRegexEngine compiles regex literals with the standard RE2 engine.
func DefaultRegexEngine(pattern, flags string) (types.Regexp, error) {
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return re, nil
}

// Next returns the next token. prefix is true when the parser expects an
// operand, which is the only position where a slash opens a regex literal.
// At the end of input Next returns a TokenEOF token.
func (l *Lexer) Next(prefix bool) (Token, error) {
	if err := l.skipSpace(); err != nil {
		return Token{}, err
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Position: l.pos}, nil
	}
	start := l.pos
	c := l.input[l.pos]

	if prefix && c == '/' {
		l.pos++
		return l.scanRegex(start)
	}
	for _, sym := range symbols2 {
		if strings.HasPrefix(l.input[l.pos:], sym) {
			l.pos += 2
			return Token{Type: TokenOperator, Value: sym, Position: start}, nil
		}
	}
	if symbols1[c] {
		l.pos++
		return Token{Type: TokenOperator, Value: string(c), Position: start}, nil
	}
	switch {
	case c == '"' || c == '\'':
		l.pos++
		return l.scanString(c, start)
	case c == '`':
		l.pos++
		end := strings.IndexByte(l.input[l.pos:], '`')
		if end < 0 {
			l.pos = len(l.input)
			return Token{}, types.NewError(types.ErrNameNotClosed, start)
		}
		name := l.input[l.pos : l.pos+end]
		l.pos += end + 1
		return Token{Type: TokenName, Value: name, Position: start}, nil
	case c >= '0' && c <= '9':
		return l.scanNumber(start)
	}
	return l.scanName(start), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v'
}

func (l *Lexer) skipSpace() error {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '/' && strings.HasPrefix(l.input[l.pos:], "/*"):
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				start := l.pos
				l.pos = len(l.input)
				return types.NewError(types.ErrCommentNotClosed, start)
			}
			l.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) scanNumber(start int) (Token, error) {
	i := l.pos
	digits := func() {
		for i < len(l.input) && l.input[i] >= '0' && l.input[i] <= '9' {
			i++
		}
	}
	if l.input[i] == '0' {
		i++
	} else {
		digits()
	}
	if i+1 < len(l.input) && l.input[i] == '.' && l.input[i+1] >= '0' && l.input[i+1] <= '9' {
		i++
		digits()
	}
	if i < len(l.input) && (l.input[i] == 'e' || l.input[i] == 'E') {
		j := i + 1
		if j < len(l.input) && (l.input[j] == '+' || l.input[j] == '-') {
			j++
		}
		if j < len(l.input) && l.input[j] >= '0' && l.input[j] <= '9' {
			i = j
			digits()
		}
	}
	text := l.input[l.pos:i]
	l.pos = i
	f, err := strconv.ParseFloat(text, 64)
	if (err != nil && !isRangeErr(err)) || math.IsInf(f, 0) {
		return Token{}, types.NewError(types.ErrNumberOutOfRange, start).WithToken(text)
	}
	return Token{Type: TokenNumber, Value: text, Literal: types.Number(f), Position: start}, nil
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

var escapes = map[byte]rune{
	'"': '"', '\'': '\'', '\\': '\\', '/': '/',
	'b': '\b', 'f': '\f', 'n': '\n', 'r': '\r', 't': '\t',
}

func (l *Lexer) scanString(quote byte, start int) (Token, error) {
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == quote:
			l.pos++
			s := sb.String()
			return Token{Type: TokenString, Value: s, Literal: types.String(s), Position: start}, nil
		case c == '\\':
			l.pos++
			if l.pos >= len(l.input) {
				return Token{}, types.NewError(types.ErrStringNotClosed, start)
			}
			e := l.input[l.pos]
			if r, ok := escapes[e]; ok {
				sb.WriteRune(r)
				l.pos++
				continue
			}
			if e != 'u' {
				_, size := utf8.DecodeRuneInString(l.input[l.pos:])
				return Token{}, types.NewError(types.ErrUnsupportedEscape, l.pos).WithToken(l.input[l.pos : l.pos+size])
			}
			unit, ok := l.hex4(l.pos + 1)
			if !ok {
				return Token{}, types.NewError(types.ErrBadUnicodeEscape, l.pos)
			}
			l.pos += 5
			r := rune(unit)
			if utf16.IsSurrogate(r) {
				if strings.HasPrefix(l.input[l.pos:], "\\u") {
					if low, ok := l.hex4(l.pos + 2); ok {
						if pair := utf16.DecodeRune(r, rune(low)); pair != utf8.RuneError {
							r = pair
							l.pos += 6
						}
					}
				}
				if utf16.IsSurrogate(r) {
					r = utf8.RuneError
				}
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return Token{}, types.NewError(types.ErrStringNotClosed, start)
}

func (l *Lexer) hex4(at int) (uint64, bool) {
	if at+4 > len(l.input) {
		return 0, false
	}
	v, err := strconv.ParseUint(l.input[at:at+4], 16, 32)
	return v, err == nil
}

// scanRegex reads /pattern/flags. The opening slash has been consumed.
// Slashes inside brackets or escaped by an odd number of backslashes do not
// close the literal.
func (l *Lexer) scanRegex(start int) (Token, error) {
	depth := 0
	from := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '/' && depth == 0 && !l.escaped(l.pos) {
			pattern := l.input[from:l.pos]
			if pattern == "" {
				return Token{}, types.NewError(types.ErrEmptyRegex, start)
			}
			l.pos++
			flagStart := l.pos
			for l.pos < len(l.input) && strings.IndexByte("ims", l.input[l.pos]) >= 0 {
				l.pos++
			}
			flags := l.input[flagStart:l.pos]
			re, err := l.engine(pattern, flags)
			if err != nil {
				return Token{}, types.NewError(types.ErrInvalidRegex, start).WithToken(pattern).WithCause(err)
			}
			return Token{Type: TokenRegex, Value: "/" + pattern + "/" + flags, Regex: re, Position: start}, nil
		}
		if !l.escaped(l.pos) {
			switch c {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		l.pos++
	}
	return Token{}, types.NewError(types.ErrRegexNotClosed, start)
}

func (l *Lexer) escaped(at int) bool {
	n := 0
	for i := at - 1; i >= 0 && l.input[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func (l *Lexer) scanName(start int) Token {
	i := l.pos
	for i < len(l.input) && !isSpace(l.input[i]) && !symbols1[l.input[i]] {
		i++
	}
	text := l.input[l.pos:i]
	l.pos = i
	if strings.HasPrefix(text, "$") {
		return Token{Type: TokenVariable, Value: text[1:], Position: start}
	}
	switch text {
	case "and", "or", "in":
		return Token{Type: TokenOperator, Value: text, Position: start}
	case "true":
		return Token{Type: TokenValue, Value: text, Literal: types.Bool(true), Position: start}
	case "false":
		return Token{Type: TokenValue, Value: text, Literal: types.Bool(false), Position: start}
	case "null":
		return Token{Type: TokenValue, Value: text, Literal: types.NullValue, Position: start}
	}
	return Token{Type: TokenName, Value: text, Position: start}
}
