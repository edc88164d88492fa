package parser

import "github.com/sandrolain/sonata/pkg/types"

// TokenType represents the type of a lexical token.
type TokenType uint8

const (
	TokenEOF TokenType = iota
	TokenString
	TokenNumber
	TokenValue    // true, false, null
	TokenName     // field or `quoted field`
	TokenVariable // $name, $ and $$
	TokenRegex    // /pattern/flags
	TokenOperator // punctuation and the keyword operators and, or, in
)

func (tt TokenType) String() string {
	switch tt {
	case TokenEOF:
		return "(end)"
	case TokenString:
		return "(string)"
	case TokenNumber:
		return "(number)"
	case TokenValue:
		return "(value)"
	case TokenName:
		return "(name)"
	case TokenVariable:
		return "(variable)"
	case TokenRegex:
		return "(regex)"
	case TokenOperator:
		return "(operator)"
	}
	return "(unknown)"
}

// Token is a lexical token. Value holds the source text of operators, names
// and variables (without the $), and the decoded text of strings.
type Token struct {
	Type     TokenType
	Value    string
	Literal  types.Value // decoded number, string or true/false/null
	Regex    types.Regexp
	Position int
}

// operators lists every operator symbol. Two character symbols are matched
// before single characters.
var (
	symbols2 = []string{"..", ":=", "!=", ">=", "<=", "**", "~>", "?:", "??"}
	symbols1 = map[byte]bool{
		'.': true, '[': true, ']': true, '{': true, '}': true, '(': true, ')': true,
		',': true, '@': true, '#': true, ';': true, ':': true, '?': true, '+': true,
		'-': true, '*': true, '/': true, '%': true, '|': true, '=': true, '<': true,
		'>': true, '^': true, '&': true, '!': true, '~': true,
	}
)

// endsOperand reports whether a token can end an operand, in which case a
// following slash is a division rather than the start of a regex.
func (t Token) endsOperand() bool {
	switch t.Type {
	case TokenString, TokenNumber, TokenValue, TokenName, TokenVariable, TokenRegex:
		return true
	case TokenOperator:
		switch t.Value {
		case ")", "]", "}":
			return true
		}
	}
	return false
}
