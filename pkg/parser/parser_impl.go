package parser

import (
	"fmt"
	"strings"

	"github.com/sandrolain/sonata/pkg/types"
)

// Parser implements Pratt's top down operator precedence algorithm over the
// token stream produced by Lexer.
type Parser struct {
	lexer   *Lexer
	current Token
	lexErr  error
	errors  []error
	opts    CompileOptions
	depth   int
	labels  int
}

// Binding powers of operators in infix position. Tokens absent from the
// table terminate an expression.
var infixPower = map[string]int{
	".":   75,
	"[":   80,
	"{":   70,
	"(":   80,
	"@":   80,
	"#":   80,
	"*":   60,
	"/":   60,
	"%":   60,
	"+":   50,
	"-":   50,
	"&":   50,
	"=":   40,
	"!=":  40,
	"<":   40,
	"<=":  40,
	">":   40,
	">=":  40,
	"in":  40,
	"^":   40,
	"~>":  40,
	"?:":  40,
	"??":  40,
	"and": 30,
	"or":  25,
	"?":   20,
	":=":  10,
}

// unaryMinusPower binds a prefix minus tighter than every binary operator
// except path navigation and postfix operators.
const unaryMinusPower = 70

// NewParser creates a parser over input.
func NewParser(input string, opts ...CompileOption) *Parser {
	options := CompileOptions{
		MaxDepth: 500,
	}
	for _, opt := range opts {
		opt(&options)
	}
	p := &Parser{
		lexer: NewLexer(input, options.RegexEngine),
		opts:  options,
	}
	p.read(true)
	return p
}

// Parse parses the whole input.
func (p *Parser) Parse() (*types.Expression, error) {
	root, err := p.expression(0)
	if p.lexErr != nil {
		return nil, p.lexErr
	}
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		err := types.NewError(types.ErrSyntax, p.current.Position).WithToken(tokenText(p.current))
		if rerr := p.recover(err); rerr != nil {
			return nil, rerr
		}
	}
	processed, err := p.process(root)
	if err != nil {
		return nil, err
	}
	if processed != nil && (processed.Type == types.NodeParent || len(processed.SeekingParent) > 0) {
		err := types.NewError(types.ErrNoParent, processed.Position).WithToken(string(processed.Type))
		if rerr := p.recover(err); rerr != nil {
			return nil, rerr
		}
	}
	expr := types.NewExpression(processed, p.lexer.input)
	for _, e := range p.errors {
		expr.AddError(e)
	}
	return expr, nil
}

func (p *Parser) read(prefix bool) {
	if p.lexErr != nil {
		return
	}
	tok, err := p.lexer.Next(prefix)
	if err != nil {
		p.lexErr = err
		p.current = Token{Type: TokenEOF, Position: p.lexer.pos}
		return
	}
	p.current = tok
}

// consume moves past the current token. A slash that follows is read as a
// regex only when the consumed token cannot end an operand.
func (p *Parser) consume() Token {
	t := p.current
	p.read(!t.endsOperand())
	return t
}

func (p *Parser) is(sym string) bool {
	return p.current.Type == TokenOperator && p.current.Value == sym
}

func tokenText(t Token) string {
	if t.Type == TokenEOF {
		return "(end)"
	}
	return t.Value
}

// recover records err in recovery mode and returns nil, otherwise it
// returns err unchanged.
func (p *Parser) recover(err error) error {
	if !p.opts.EnableRecovery || p.lexErr != nil {
		return err
	}
	p.errors = append(p.errors, err)
	return nil
}

// fail reports err at an operand position. In recovery mode the offending
// token is skipped and an error node takes the operand's place.
func (p *Parser) fail(err *types.Error) (*types.Node, error) {
	if rerr := p.recover(err); rerr != nil {
		return nil, rerr
	}
	if p.current.Type != TokenEOF {
		p.consume()
	}
	return &types.Node{Type: types.NodeError, Position: err.Position, Err: err}, nil
}

func (p *Parser) expect(sym string) error {
	t := p.current
	if t.Type == TokenOperator && t.Value == sym {
		p.consume()
		return nil
	}
	var err *types.Error
	if t.Type == TokenEOF {
		err = types.NewError(types.ErrExpectedBeforeEnd, t.Position).WithValue(types.String(sym))
	} else {
		err = types.NewError(types.ErrExpectedToken, t.Position).WithToken(tokenText(t)).WithValue(types.String(sym))
	}
	return p.recover(err)
}

func (p *Parser) lbp() int {
	if p.current.Type != TokenOperator {
		return 0
	}
	return infixPower[p.current.Value]
}

func (p *Parser) expression(rbp int) (*types.Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.opts.MaxDepth > 0 && p.depth > p.opts.MaxDepth {
		return nil, types.NewError(types.ErrSyntax, p.current.Position).
			WithMessage(fmt.Sprintf("Expression nesting exceeds %d levels", p.opts.MaxDepth))
	}

	left, err := p.nud()
	if err != nil {
		return nil, err
	}
	for rbp < p.lbp() {
		left, err = p.led(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) nud() (*types.Node, error) {
	t := p.current
	switch t.Type {
	case TokenEOF:
		return p.fail(types.NewError(types.ErrUnexpectedEnd, t.Position))
	case TokenNumber, TokenString, TokenValue:
		p.consume()
		return &types.Node{Type: types.NodeLiteral, Value: t.Literal, Position: t.Position}, nil
	case TokenName:
		p.consume()
		return &types.Node{Type: types.NodeName, Name: t.Value, Position: t.Position}, nil
	case TokenVariable:
		p.consume()
		return &types.Node{Type: types.NodeVariable, Name: t.Value, Position: t.Position}, nil
	case TokenRegex:
		p.consume()
		return &types.Node{Type: types.NodeRegex, Name: t.Value, Regex: t.Regex, Position: t.Position}, nil
	}

	switch t.Value {
	case "and", "or", "in":
		// keyword operators double as field names in operand position
		p.consume()
		return &types.Node{Type: types.NodeName, Name: t.Value, Position: t.Position}, nil
	case "-":
		p.consume()
		operand, err := p.expression(unaryMinusPower)
		if err != nil {
			return nil, err
		}
		return &types.Node{Type: types.NodeNegate, LHS: operand, Position: t.Position}, nil
	case "*":
		p.consume()
		return &types.Node{Type: types.NodeWildcard, Position: t.Position}, nil
	case "**":
		p.consume()
		return &types.Node{Type: types.NodeDescendant, Position: t.Position}, nil
	case "%":
		p.consume()
		return &types.Node{Type: types.NodeParent, Position: t.Position}, nil
	case "(":
		return p.block()
	case "[":
		return p.arrayConstructor()
	case "{":
		p.consume()
		pairs, err := p.objectPairs()
		if err != nil {
			return nil, err
		}
		return &types.Node{Type: types.NodeObject, Pairs: pairs, Position: t.Position}, nil
	case "|":
		return p.transform()
	}
	return p.fail(types.NewError(types.ErrNotUnary, t.Position).WithToken(t.Value))
}

func (p *Parser) led(left *types.Node) (*types.Node, error) {
	t := p.consume()
	switch t.Value {
	case "[":
		if p.is("]") {
			// an empty predicate keeps singleton results as arrays
			p.consume()
			step := left
			for step.Type == types.NodeBinary && step.Name == "[" {
				step = step.LHS
			}
			step.KeepArray = true
			return left, nil
		}
		rhs, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		return &types.Node{Type: types.NodeBinary, Name: "[", LHS: left, RHS: rhs, Position: t.Position}, nil
	case "{":
		pairs, err := p.objectPairs()
		if err != nil {
			return nil, err
		}
		return &types.Node{Type: types.NodeBinary, Name: "{", LHS: left, Pairs: pairs, Position: t.Position}, nil
	case "(":
		return p.call(left, t)
	case "^":
		return p.sortTerms(left, t)
	case "?":
		n := &types.Node{Type: types.NodeCondition, Condition: left, Position: t.Position}
		then, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		n.Then = then
		if p.is(":") {
			p.consume()
			if n.Else, err = p.expression(0); err != nil {
				return nil, err
			}
		}
		return n, nil
	case ":=":
		// right associative
		rhs, err := p.expression(infixPower[":="] - 1)
		if err != nil {
			return nil, err
		}
		return &types.Node{Type: types.NodeBinary, Name: ":=", LHS: left, RHS: rhs, Position: t.Position}, nil
	case "@", "#":
		rhs, err := p.expression(infixPower[t.Value])
		if err != nil {
			return nil, err
		}
		if rhs.Type != types.NodeVariable {
			return p.semanticError(types.NewError(types.ErrBindingVariable, rhs.Position).WithToken(t.Value))
		}
		return &types.Node{Type: types.NodeBinary, Name: t.Value, LHS: left, RHS: rhs, Position: t.Position}, nil
	}

	rhs, err := p.expression(infixPower[t.Value])
	if err != nil {
		return nil, err
	}
	return &types.Node{Type: types.NodeBinary, Name: t.Value, LHS: left, RHS: rhs, Position: t.Position}, nil
}

func (p *Parser) block() (*types.Node, error) {
	t := p.consume()
	n := &types.Node{Type: types.NodeBlock, Position: t.Position}
	for !p.is(")") && p.current.Type != TokenEOF {
		e, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		n.Expressions = append(n.Expressions, e)
		if !p.is(";") {
			break
		}
		p.consume()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) arrayConstructor() (*types.Node, error) {
	t := p.consume()
	n := &types.Node{Type: types.NodeArray, Position: t.Position}
	if !p.is("]") {
		for {
			item, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if p.is("..") {
				rt := p.consume()
				rhs, err := p.expression(0)
				if err != nil {
					return nil, err
				}
				item = &types.Node{Type: types.NodeRange, LHS: item, RHS: rhs, Position: rt.Position}
			}
			n.Expressions = append(n.Expressions, item)
			if !p.is(",") {
				break
			}
			p.consume()
		}
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return n, nil
}

// objectPairs parses key:value pairs up to the closing brace. The opening
// brace has been consumed.
func (p *Parser) objectPairs() ([]types.Pair, error) {
	var pairs []types.Pair
	if !p.is("}") {
		for {
			k, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			if err := p.expect(":"); err != nil {
				return nil, err
			}
			v, err := p.expression(0)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, types.Pair{Key: k, Value: v})
			if !p.is(",") {
				break
			}
			p.consume()
		}
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return pairs, nil
}

func (p *Parser) transform() (*types.Node, error) {
	t := p.consume()
	n := &types.Node{Type: types.NodeTransform, Position: t.Position}
	var err error
	if n.Pattern, err = p.expression(0); err != nil {
		return nil, err
	}
	if err := p.expect("|"); err != nil {
		return nil, err
	}
	if n.Update, err = p.expression(0); err != nil {
		return nil, err
	}
	if p.is(",") {
		p.consume()
		if n.Delete, err = p.expression(0); err != nil {
			return nil, err
		}
	}
	if err := p.expect("|"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) sortTerms(left *types.Node, t Token) (*types.Node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	n := &types.Node{Type: types.NodeBinary, Name: "^", LHS: left, Position: t.Position}
	for {
		term := types.SortTerm{}
		if p.is("<") {
			p.consume()
		} else if p.is(">") {
			term.Descending = true
			p.consume()
		}
		e, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		term.Expr = e
		n.Terms = append(n.Terms, term)
		if !p.is(",") {
			break
		}
		p.consume()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return n, nil
}

// call parses an argument list. A call on the name function (or λ) is a
// lambda definition, optionally followed by a signature and the body.
func (p *Parser) call(left *types.Node, t Token) (*types.Node, error) {
	n := &types.Node{Type: types.NodeFunction, Procedure: left, Position: t.Position}
	if !p.is(")") {
		for {
			if p.is("?") {
				q := p.consume()
				n.Type = types.NodePartial
				n.Arguments = append(n.Arguments, &types.Node{Type: types.NodePlaceholder, Position: q.Position})
			} else {
				arg, err := p.expression(0)
				if err != nil {
					return nil, err
				}
				n.Arguments = append(n.Arguments, arg)
			}
			if !p.is(",") {
				break
			}
			p.consume()
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	if left.Type != types.NodeName || (left.Name != "function" && left.Name != "λ") {
		return n, nil
	}

	lambda := &types.Node{Type: types.NodeLambda, Position: left.Position}
	for i, arg := range n.Arguments {
		if arg.Type != types.NodeVariable {
			err := types.NewError(types.ErrLambdaParam, arg.Position).WithToken(arg.Name).WithValue(types.Number(i + 1))
			if rerr := p.recover(err); rerr != nil {
				return nil, rerr
			}
			continue
		}
		lambda.Params = append(lambda.Params, arg.Name)
	}
	if p.is("<") {
		sig, err := p.signature()
		if err != nil {
			return nil, err
		}
		lambda.Signature = sig
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	body, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	lambda.Body = body
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return lambda, nil
}

// signature glues the tokens of <...> back into the signature text.
func (p *Parser) signature() (string, error) {
	var sb strings.Builder
	start := p.current.Position
	depth := 0
	for {
		t := p.current
		if t.Type == TokenEOF || (t.Type == TokenOperator && t.Value == "{") {
			return "", types.NewError(types.ErrExpectedToken, start).WithToken(tokenText(t)).WithValue(types.String(">"))
		}
		if t.Type == TokenOperator {
			switch t.Value {
			case "<":
				depth++
			case ">":
				depth--
			}
		}
		sb.WriteString(t.Value)
		p.read(false)
		if depth == 0 {
			return sb.String(), nil
		}
	}
}
