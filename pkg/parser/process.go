package parser

import (
	"strconv"

	"github.com/sandrolain/sonata/pkg/types"
)

// process rewrites the syntax tree into evaluation-ready form. It builds new
// nodes and leaves its input untouched.
func (p *Parser) process(n *types.Node) (*types.Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Type {
	case types.NodeBinary:
		switch n.Name {
		case ".":
			return p.processPath(n)
		case "[":
			return p.processPredicate(n)
		case "{":
			return p.processGroup(n)
		case "^":
			return p.processSort(n)
		case "@":
			return p.processFocus(n)
		case "#":
			return p.processIndex(n)
		case ":=":
			if n.LHS.Type != types.NodeVariable {
				return p.semanticError(types.NewError(types.ErrBindTarget, n.Position).WithToken(n.LHS.Name))
			}
			rhs, err := p.process(n.RHS)
			if err != nil {
				return nil, err
			}
			out := &types.Node{Type: types.NodeBind, Name: n.LHS.Name, RHS: rhs, Position: n.Position, KeepArray: n.KeepArray}
			pushAncestry(out, rhs)
			return out, nil
		case "~>":
			lhs, rhs, err := p.processPair(n.LHS, n.RHS)
			if err != nil {
				return nil, err
			}
			out := &types.Node{
				Type:      types.NodeApply,
				Name:      n.Name,
				LHS:       lhs,
				RHS:       rhs,
				Position:  n.Position,
				KeepArray: n.KeepArray || lhs.KeepArray || rhs.KeepArray,
			}
			pushAncestry(out, lhs, rhs)
			return out, nil
		}
		lhs, rhs, err := p.processPair(n.LHS, n.RHS)
		if err != nil {
			return nil, err
		}
		out := &types.Node{Type: types.NodeBinary, Name: n.Name, LHS: lhs, RHS: rhs, Position: n.Position, KeepArray: n.KeepArray}
		pushAncestry(out, lhs, rhs)
		return out, nil

	case types.NodeRange:
		lhs, rhs, err := p.processPair(n.LHS, n.RHS)
		if err != nil {
			return nil, err
		}
		out := &types.Node{Type: types.NodeRange, LHS: lhs, RHS: rhs, Position: n.Position}
		pushAncestry(out, lhs, rhs)
		return out, nil

	case types.NodeParent:
		slot := &types.Slot{Label: "!" + strconv.Itoa(p.labels), Level: 1}
		p.labels++
		return &types.Node{Type: types.NodeParent, Slot: slot, Position: n.Position, KeepArray: n.KeepArray}, nil

	case types.NodeNegate:
		operand, err := p.process(n.LHS)
		if err != nil {
			return nil, err
		}
		if num, ok := operand.Value.(types.Number); ok && operand.Type == types.NodeLiteral {
			return &types.Node{Type: types.NodeLiteral, Value: -num, Position: n.Position, KeepArray: n.KeepArray}, nil
		}
		out := &types.Node{Type: types.NodeNegate, LHS: operand, Position: n.Position, KeepArray: n.KeepArray}
		pushAncestry(out, operand)
		return out, nil

	case types.NodeArray:
		out := &types.Node{Type: types.NodeArray, Position: n.Position, KeepArray: n.KeepArray}
		for _, e := range n.Expressions {
			pe, err := p.process(e)
			if err != nil {
				return nil, err
			}
			pushAncestry(out, pe)
			out.Expressions = append(out.Expressions, pe)
		}
		return out, nil

	case types.NodeObject:
		pairs, err := p.processPairs(n.Pairs)
		if err != nil {
			return nil, err
		}
		out := &types.Node{Type: types.NodeObject, Pairs: pairs, Position: n.Position, KeepArray: n.KeepArray}
		for _, pair := range pairs {
			pushAncestry(out, pair.Key, pair.Value)
		}
		return out, nil

	case types.NodeFunction, types.NodePartial:
		proc, err := p.process(n.Procedure)
		if err != nil {
			return nil, err
		}
		out := &types.Node{Type: n.Type, Procedure: proc, Position: n.Position, KeepArray: n.KeepArray}
		for _, a := range n.Arguments {
			pa, err := p.process(a)
			if err != nil {
				return nil, err
			}
			pushAncestry(out, pa)
			out.Arguments = append(out.Arguments, pa)
		}
		return out, nil

	case types.NodeLambda:
		body, err := p.process(n.Body)
		if err != nil {
			return nil, err
		}
		return &types.Node{
			Type:      types.NodeLambda,
			Params:    n.Params,
			Signature: n.Signature,
			Body:      tailCall(body),
			Position:  n.Position,
			KeepArray: n.KeepArray,
		}, nil

	case types.NodeCondition:
		out := &types.Node{Type: types.NodeCondition, Position: n.Position, KeepArray: n.KeepArray}
		var err error
		if out.Condition, err = p.process(n.Condition); err != nil {
			return nil, err
		}
		if out.Then, err = p.process(n.Then); err != nil {
			return nil, err
		}
		if out.Else, err = p.process(n.Else); err != nil {
			return nil, err
		}
		pushAncestry(out, out.Condition, out.Then, out.Else)
		return out, nil

	case types.NodeTransform:
		out := &types.Node{Type: types.NodeTransform, Position: n.Position, KeepArray: n.KeepArray}
		var err error
		if out.Pattern, err = p.process(n.Pattern); err != nil {
			return nil, err
		}
		if out.Update, err = p.process(n.Update); err != nil {
			return nil, err
		}
		if out.Delete, err = p.process(n.Delete); err != nil {
			return nil, err
		}
		return out, nil

	case types.NodeBlock:
		out := &types.Node{Type: types.NodeBlock, Position: n.Position, KeepArray: n.KeepArray}
		for _, e := range n.Expressions {
			pe, err := p.process(e)
			if err != nil {
				return nil, err
			}
			pushAncestry(out, pe)
			out.Expressions = append(out.Expressions, pe)
		}
		return out, nil

	case types.NodeName:
		step := *n
		return &types.Node{
			Type:               types.NodePath,
			Steps:              []*types.Node{&step},
			Position:           n.Position,
			KeepSingletonArray: n.KeepArray,
		}, nil
	}

	// literals, variables, wildcards, regexes, placeholders and error nodes
	c := *n
	return &c, nil
}

func (p *Parser) processPair(l, r *types.Node) (*types.Node, *types.Node, error) {
	lhs, err := p.process(l)
	if err != nil {
		return nil, nil, err
	}
	rhs, err := p.process(r)
	if err != nil {
		return nil, nil, err
	}
	return lhs, rhs, nil
}

func (p *Parser) processPairs(pairs []types.Pair) ([]types.Pair, error) {
	out := make([]types.Pair, 0, len(pairs))
	for _, pair := range pairs {
		k, v, err := p.processPair(pair.Key, pair.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, types.Pair{Key: k, Value: v})
	}
	return out, nil
}

func (p *Parser) semanticError(err *types.Error) (*types.Node, error) {
	if rerr := p.recover(err); rerr != nil {
		return nil, rerr
	}
	return &types.Node{Type: types.NodeError, Position: err.Position, Err: err}, nil
}

func asPath(n *types.Node) *types.Node {
	if n.Type == types.NodePath {
		return n
	}
	return &types.Node{Type: types.NodePath, Steps: []*types.Node{n}, Position: n.Position}
}

// processPath flattens a.b.c into a single path node.
func (p *Parser) processPath(n *types.Node) (*types.Node, error) {
	lstep, err := p.process(n.LHS)
	if err != nil {
		return nil, err
	}
	path := asPath(lstep)
	if lstep.Type == types.NodeParent {
		path.SeekingParent = []*types.Slot{lstep.Slot}
	}
	rest, err := p.process(n.RHS)
	if err != nil {
		return nil, err
	}
	if rest.Type == types.NodePath {
		path.Steps = append(path.Steps, rest.Steps...)
	} else {
		if rest.Predicates != nil {
			rest.Stages = rest.Predicates
			rest.Predicates = nil
		}
		path.Steps = append(path.Steps, rest)
	}

	for i, step := range path.Steps {
		if step.Type != types.NodeLiteral {
			continue
		}
		// a quoted string in a path is a field name, other literals are errors
		s, ok := step.Value.(types.String)
		if !ok {
			return p.semanticError(types.NewError(types.ErrLiteralStep, step.Position).WithValue(step.Value))
		}
		name := *step
		name.Type = types.NodeName
		name.Name = string(s)
		name.Value = nil
		path.Steps[i] = &name
	}
	for _, step := range path.Steps {
		if step.KeepArray {
			path.KeepSingletonArray = true
		}
	}
	if first := path.Steps[0]; first.Type == types.NodeArray {
		first.ConsArray = true
	}
	if last := path.Steps[len(path.Steps)-1]; last.Type == types.NodeArray {
		last.ConsArray = true
	}
	if err := p.resolveAncestry(path); err != nil {
		return nil, err
	}
	return path, nil
}

// processPredicate attaches a filter to the last step of a path, or to the
// expression itself when it is not a path.
func (p *Parser) processPredicate(n *types.Node) (*types.Node, error) {
	result, err := p.process(n.LHS)
	if err != nil {
		return nil, err
	}
	step := result
	if result.Type == types.NodePath {
		step = result.Steps[len(result.Steps)-1]
	}
	if step.Group != nil {
		return p.semanticError(types.NewError(types.ErrPredicateAfterGroup, n.Position))
	}
	pred, err := p.process(n.RHS)
	if err != nil {
		return nil, err
	}
	if pred != nil && len(pred.SeekingParent) > 0 {
		for _, slot := range pred.SeekingParent {
			if slot.Level == 1 {
				if err := p.seekParent(step, slot); err != nil {
					return nil, err
				}
			} else {
				slot.Level--
			}
		}
		pushAncestry(step, pred)
	}
	if result.Type == types.NodePath {
		step.Stages = append(step.Stages, pred)
	} else {
		step.Predicates = append(step.Predicates, pred)
	}
	if n.KeepArray {
		result.KeepArray = true
	}
	return result, nil
}

// processGroup attaches a trailing {...} to the expression it follows, so it
// runs once over the whole result rather than per step.
func (p *Parser) processGroup(n *types.Node) (*types.Node, error) {
	result, err := p.process(n.LHS)
	if err != nil {
		return nil, err
	}
	if result.Group != nil {
		return p.semanticError(types.NewError(types.ErrDoubleGroup, n.Position))
	}
	pairs, err := p.processPairs(n.Pairs)
	if err != nil {
		return nil, err
	}
	result.Group = &types.Group{Pairs: pairs, Position: n.Position}
	return result, nil
}

func (p *Parser) processSort(n *types.Node) (*types.Node, error) {
	lhs, err := p.process(n.LHS)
	if err != nil {
		return nil, err
	}
	path := asPath(lhs)
	sort := &types.Node{Type: types.NodeSort, Position: n.Position}
	for _, t := range n.Terms {
		e, err := p.process(t.Expr)
		if err != nil {
			return nil, err
		}
		pushAncestry(sort, e)
		sort.Terms = append(sort.Terms, types.SortTerm{Descending: t.Descending, Expr: e})
	}
	path.Steps = append(path.Steps, sort)
	if err := p.resolveAncestry(path); err != nil {
		return nil, err
	}
	return path, nil
}

// processFocus handles step@$v: the step's values are bound to $v while
// the context stays on the previous step.
func (p *Parser) processFocus(n *types.Node) (*types.Node, error) {
	result, err := p.process(n.LHS)
	if err != nil {
		return nil, err
	}
	step := result
	if result.Type == types.NodePath {
		step = result.Steps[len(result.Steps)-1]
	}
	if step.Stages != nil || step.Predicates != nil {
		return p.semanticError(types.NewError(types.ErrFocusAfterFilter, n.Position))
	}
	if step.Type == types.NodeSort {
		return p.semanticError(types.NewError(types.ErrFocusAfterSort, n.Position))
	}
	if n.KeepArray {
		step.KeepArray = true
		if result.Type == types.NodePath {
			result.KeepSingletonArray = true
		}
	}
	step.Focus = n.RHS.Name
	step.Tuple = true
	return result, nil
}

// processIndex handles step#$i: $i is bound to the position of each value
// within the step's result.
func (p *Parser) processIndex(n *types.Node) (*types.Node, error) {
	result, err := p.process(n.LHS)
	if err != nil {
		return nil, err
	}
	var step *types.Node
	if result.Type == types.NodePath {
		step = result.Steps[len(result.Steps)-1]
	} else {
		step = result
		result = &types.Node{Type: types.NodePath, Steps: []*types.Node{step}, Position: step.Position}
		if step.Predicates != nil {
			step.Stages = step.Predicates
			step.Predicates = nil
		}
	}
	if step.Stages == nil {
		step.Index = n.RHS.Name
	} else {
		step.Stages = append(step.Stages, &types.Node{Type: types.NodeIndex, Index: n.RHS.Name, Position: n.Position})
	}
	step.Tuple = true
	return result, nil
}

// pushAncestry carries unresolved % references of the given children up to
// their parent node.
func pushAncestry(result *types.Node, children ...*types.Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		if len(c.SeekingParent) > 0 {
			result.SeekingParent = append(result.SeekingParent, c.SeekingParent...)
		}
		if c.Type == types.NodeParent {
			result.SeekingParent = append(result.SeekingParent, c.Slot)
		}
	}
}

// resolveAncestry walks back along the steps of path to find the step each
// % in its last step refers to. References that reach past the first step
// are left for the enclosing expression.
func (p *Parser) resolveAncestry(path *types.Node) error {
	last := path.Steps[len(path.Steps)-1]
	slots := append([]*types.Slot(nil), last.SeekingParent...)
	if last.Type == types.NodeParent {
		slots = append(slots, last.Slot)
	}
	for _, slot := range slots {
		index := len(path.Steps) - 2
		for slot.Level > 0 {
			if index < 0 {
				path.SeekingParent = append(path.SeekingParent, slot)
				break
			}
			step := path.Steps[index]
			index--
			// consecutive focus steps share one context
			for index >= 0 && step.Focus != "" && path.Steps[index].Focus != "" {
				step = path.Steps[index]
				index--
			}
			if err := p.seekParent(step, slot); err != nil {
				return err
			}
		}
	}
	return nil
}

// seekParent marks the step of node that binds slot once its level drops
// to zero.
func (p *Parser) seekParent(node *types.Node, slot *types.Slot) error {
	switch node.Type {
	case types.NodeName, types.NodeWildcard:
		slot.Level--
		if slot.Level == 0 {
			if node.Ancestor == nil {
				node.Ancestor = slot
			} else {
				// several % share the same step
				slot.Label = node.Ancestor.Label
				node.Ancestor = slot
			}
			node.Tuple = true
		}
	case types.NodeParent:
		slot.Level++
	case types.NodeBlock:
		if k := len(node.Expressions); k > 0 {
			node.Tuple = true
			return p.seekParent(node.Expressions[k-1], slot)
		}
	case types.NodePath:
		node.Tuple = true
		i := len(node.Steps) - 1
		if err := p.seekParent(node.Steps[i], slot); err != nil {
			return err
		}
		for i--; slot.Level > 0 && i >= 0; i-- {
			if err := p.seekParent(node.Steps[i], slot); err != nil {
				return err
			}
		}
	default:
		return p.recover(types.NewError(types.ErrNoParent, node.Position).WithToken(string(node.Type)))
	}
	return nil
}

// tailCall wraps a call in tail position in a thunk so the evaluator can
// run it in a loop instead of recursing.
func tailCall(n *types.Node) *types.Node {
	if n == nil || n.Predicates != nil || n.Group != nil || n.KeepArray {
		return n
	}
	switch n.Type {
	case types.NodeFunction:
		return &types.Node{Type: types.NodeLambda, Thunk: true, Body: n, Position: n.Position}
	case types.NodeCondition:
		n.Then = tailCall(n.Then)
		n.Else = tailCall(n.Else)
	case types.NodeBlock:
		if k := len(n.Expressions); k > 0 {
			n.Expressions[k-1] = tailCall(n.Expressions[k-1])
		}
	}
	return n
}
