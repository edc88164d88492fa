package evaluator

import (
	"regexp"
	"strings"
	"sync"

	"github.com/sandrolain/sonata/pkg/types"
)

// Signature validates and coerces call arguments against a signature such as
// "<s-n?:s>". Each parameter becomes one capture group of a regular
// expression that is matched against the type letters of the supplied
// arguments.
//
// Type letters: s string, n number, b boolean, l null, a array, o object,
// f function, j any JSON value, x anything; (..) is a choice of letters and
// a<t> / f<...> give the element type of arrays and the shape of functions.
// A trailing ? makes a parameter optional, + repeats it and - makes it take
// the evaluation context when omitted.
type Signature struct {
	Definition string
	params     []sigParam
	re         *regexp.Regexp
}

type sigParam struct {
	regex     string
	typ       string
	subtype   string
	context   bool
	contextRe *regexp.Regexp
}

var arrayTypeNames = map[string]string{
	"a": "arrays",
	"b": "booleans",
	"f": "functions",
	"n": "numbers",
	"o": "objects",
	"s": "strings",
}

var signatureCache sync.Map // string -> *Signature

// ParseSignature compiles a signature. Results are cached by text.
func ParseSignature(sig string) (*Signature, error) {
	if cached, ok := signatureCache.Load(sig); ok {
		return cached.(*Signature), nil
	}
	s, err := parseSignature(sig)
	if err != nil {
		return nil, err
	}
	signatureCache.Store(sig, s)
	return s, nil
}

// MustParseSignature is ParseSignature for built-in definitions.
func MustParseSignature(sig string) *Signature {
	s, err := ParseSignature(sig)
	if err != nil {
		panic("evaluator: bad signature " + sig + ": " + err.Error())
	}
	return s
}

func parseSignature(sig string) (*Signature, error) {
	if len(sig) < 2 || sig[0] != '<' || sig[len(sig)-1] != '>' {
		return nil, types.NewError(types.ErrSignatureSyntax, 0).WithToken(sig)
	}
	var params []sigParam
	var cur sigParam
	prev := -1
	push := func() {
		params = append(params, cur)
		prev = len(params) - 1
		cur = sigParam{}
	}

	for pos := 1; pos < len(sig)-1; pos++ {
		c := sig[pos]
		if c == ':' {
			break
		}
		switch c {
		case 's', 'n', 'b', 'l', 'o':
			cur.regex = "[" + string(c) + "m]"
			cur.typ = string(c)
			push()
		case 'a':
			cur.regex = "[asnblfom]"
			cur.typ = "a"
			push()
		case 'f':
			cur.regex = "f"
			cur.typ = "f"
			push()
		case 'j':
			cur.regex = "[asnblom]"
			cur.typ = "j"
			push()
		case 'x':
			cur.regex = "[asnblfom]"
			cur.typ = "x"
			push()
		case '-':
			if prev < 0 {
				return nil, types.NewError(types.ErrSignatureSyntax, pos).WithToken(sig)
			}
			p := &params[prev]
			p.context = true
			p.contextRe = regexp.MustCompile(p.regex)
			p.regex += "?"
		case '?', '+':
			if prev < 0 {
				return nil, types.NewError(types.ErrSignatureSyntax, pos).WithToken(sig)
			}
			params[prev].regex += string(c)
		case '(':
			end := closing(sig, pos, '(', ')')
			if end < 0 {
				return nil, types.NewError(types.ErrSignatureSyntax, pos).WithToken(sig)
			}
			choice := sig[pos+1 : end]
			if strings.Contains(choice, "<") {
				return nil, types.NewError(types.ErrSignatureChoice, pos)
			}
			cur.regex = "[" + choice + "m]"
			cur.typ = "(" + choice + ")"
			pos = end
			push()
		case '<':
			if prev < 0 || (params[prev].typ != "a" && params[prev].typ != "f") {
				return nil, types.NewError(types.ErrSignatureTypeParam, pos)
			}
			end := closing(sig, pos, '<', '>')
			if end < 0 {
				return nil, types.NewError(types.ErrSignatureSyntax, pos).WithToken(sig)
			}
			params[prev].subtype = sig[pos+1 : end]
			pos = end
		default:
			return nil, types.NewError(types.ErrSignatureSyntax, pos).WithToken(sig)
		}
	}

	var sb strings.Builder
	sb.WriteByte('^')
	for _, p := range params {
		sb.WriteString("(" + p.regex + ")")
	}
	sb.WriteByte('$')
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, types.NewError(types.ErrSignatureSyntax, 0).WithToken(sig).WithCause(err)
	}
	return &Signature{Definition: sig, params: params, re: re}, nil
}

func closing(s string, start int, open, close byte) int {
	depth := 1
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Arity is the number of declared parameters.
func (s *Signature) Arity() int {
	return len(s.params)
}

func typeLetter(v types.Value) byte {
	switch v.(type) {
	case nil:
		return 'm'
	case types.String:
		return 's'
	case types.Number:
		return 'n'
	case types.Bool:
		return 'b'
	case types.Null:
		return 'l'
	case *types.Array:
		return 'a'
	case *types.Object:
		return 'o'
	case types.Function:
		return 'f'
	}
	return 'm'
}

// Validate checks args and returns them coerced: omitted context parameters
// are filled with context, and single values passed where an array is
// expected are wrapped.
func (s *Signature) Validate(args []types.Value, context types.Value) ([]types.Value, error) {
	letters := make([]byte, len(args))
	for i, a := range args {
		letters[i] = typeLetter(a)
	}
	supplied := string(letters)
	groups := s.re.FindStringSubmatch(supplied)
	if groups == nil {
		return nil, s.mismatch(args, supplied)
	}

	if arr, ok := context.(*types.Array); ok && arr.OuterWrapper && len(arr.Items) == 1 {
		context = arr.Items[0]
	}
	out := make([]types.Value, 0, len(s.params))
	argIndex := 0
	for i, p := range s.params {
		match := groups[i+1]
		if match == "" {
			if p.context && p.contextRe != nil {
				if !p.contextRe.MatchString(string(typeLetter(context))) {
					return nil, types.NewError(types.ErrContextType, -1).WithValue(context).WithIndex(argIndex + 1)
				}
				out = append(out, context)
				continue
			}
			// an optional parameter that was not supplied
			out = append(out, nil)
			continue
		}
		for j := 0; j < len(match); j++ {
			single := match[j]
			arg := args[argIndex]
			if p.typ == "a" {
				if single == 'm' {
					arg = nil
				} else {
					if !s.arrayOK(p, single, match, arg) {
						return nil, types.NewError(types.ErrArrayItemType, -1).
							WithValue(arg).WithIndex(argIndex + 1).WithType(arrayTypeNames[p.subtype])
					}
					if single != 'a' {
						arg = types.NewArray(arg)
					}
				}
			}
			out = append(out, arg)
			argIndex++
		}
	}
	return out, nil
}

func (s *Signature) arrayOK(p sigParam, single byte, match string, arg types.Value) bool {
	if p.subtype == "" {
		return true
	}
	if single != 'a' {
		return match == p.subtype
	}
	arr := arg.(*types.Array)
	if len(arr.Items) == 0 {
		return true
	}
	want := typeLetter(arr.Items[0])
	if want != p.subtype[0] {
		return false
	}
	for _, it := range arr.Items {
		if typeLetter(it) != want {
			return false
		}
	}
	return true
}

// mismatch finds how many leading arguments conform before reporting the
// first offending one.
func (s *Signature) mismatch(args []types.Value, supplied string) error {
	partial := "^"
	good := 0
	for _, p := range s.params {
		partial += p.regex
		re, err := regexp.Compile(partial)
		if err != nil {
			break
		}
		loc := re.FindStringIndex(supplied)
		if loc == nil {
			break
		}
		good = loc[1]
	}
	e := types.NewError(types.ErrArgumentType, -1).WithIndex(good + 1)
	if good < len(args) {
		e.WithValue(args[good])
	}
	return e
}
