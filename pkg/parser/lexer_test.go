package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata/pkg/types"
)

func lexAll(t *testing.T, input string) []Token {
	t.Helper()
	l := NewLexer(input, nil)
	var toks []Token
	prefix := true
	for {
		tok, err := l.Next(prefix)
		require.NoError(t, err, "lexing %q", input)
		if tok.Type == TokenEOF {
			return toks
		}
		toks = append(toks, tok)
		prefix = !tok.endsOperand()
	}
}

func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
		vals  []string
	}{
		{
			`$a.b = "x"`,
			[]TokenType{TokenVariable, TokenOperator, TokenName, TokenOperator, TokenString},
			[]string{"a", ".", "b", "=", "x"},
		},
		{
			`$ ~> $$`,
			[]TokenType{TokenVariable, TokenOperator, TokenVariable},
			[]string{"", "~>", "$"},
		},
		{
			`a and b or not_in`,
			[]TokenType{TokenName, TokenOperator, TokenName, TokenOperator, TokenName},
			[]string{"a", "and", "b", "or", "not_in"},
		},
		{
			"`first name`.x",
			[]TokenType{TokenName, TokenOperator, TokenName},
			[]string{"first name", ".", "x"},
		},
		{
			`[1..3]`,
			[]TokenType{TokenOperator, TokenNumber, TokenOperator, TokenNumber, TokenOperator},
			[]string{"[", "1", "..", "3", "]"},
		},
		{
			`4 / 2`,
			[]TokenType{TokenNumber, TokenOperator, TokenNumber},
			[]string{"4", "/", "2"},
		},
		{
			`$match(s, /ab+/i)`,
			[]TokenType{TokenVariable, TokenOperator, TokenName, TokenOperator, TokenRegex, TokenOperator},
			[]string{"match", "(", "s", ",", "/ab+/i", ")"},
		},
		{
			`true false null`,
			[]TokenType{TokenValue, TokenValue, TokenValue},
			[]string{"true", "false", "null"},
		},
		{
			`/* note */ a`,
			[]TokenType{TokenName},
			[]string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			require.Len(t, toks, len(tt.types))
			for i, tok := range toks {
				assert.Equal(t, tt.types[i], tok.Type, "token %d", i)
				assert.Equal(t, tt.vals[i], tok.Value, "token %d", i)
			}
		})
	}
}

func TestLexerLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  types.Value
	}{
		{`42`, types.Number(42)},
		{`3.25`, types.Number(3.25)},
		{`1e3`, types.Number(1000)},
		{`2.5E-1`, types.Number(0.25)},
		{`"a\"b"`, types.String(`a"b`)},
		{`'single'`, types.String("single")},
		{`"tab\there"`, types.String("tab\there")},
		{`"\u00e9"`, types.String("é")},
		{`"\ud83d\ude00"`, types.String("😀")},
		{`true`, types.Bool(true)},
		{`null`, types.NullValue},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			require.Len(t, toks, 1)
			assert.Equal(t, tt.want, toks[0].Literal)
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		code  types.ErrorCode
	}{
		{`"open`, types.ErrStringNotClosed},
		{`1e999`, types.ErrNumberOutOfRange},
		{`"\q"`, types.ErrUnsupportedEscape},
		{`"\u12"`, types.ErrBadUnicodeEscape},
		{"`open", types.ErrNameNotClosed},
		{`/* open`, types.ErrCommentNotClosed},
		{`//`, types.ErrEmptyRegex},
		{`/abc`, types.ErrRegexNotClosed},
		{`/a{2,1}/`, types.ErrInvalidRegex},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := NewLexer(tt.input, nil)
			var err error
			for {
				var tok Token
				tok, err = l.Next(true)
				if err != nil || tok.Type == TokenEOF {
					break
				}
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestLexerRegexFlags(t *testing.T) {
	toks := lexAll(t, `/hello/i`)
	require.Len(t, toks, 1)
	require.NotNil(t, toks[0].Regex)
	assert.NotEmpty(t, toks[0].Regex.FindAllStringSubmatchIndex("say HELLO", -1))
}
