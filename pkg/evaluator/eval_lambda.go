package evaluator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/types"
)

// Lambda is a function defined in expression text. It closes over the
// scope and input it was created in.
type Lambda struct {
	node  *types.Node
	input types.Value
	env   *Scope
	sig   *Signature
}

func (*Lambda) Kind() types.Kind { return types.KindFunction }

// Arity is the number of declared parameters.
func (l *Lambda) Arity() int { return len(l.node.Params) }

// nativeFunc is the Go implementation of a built-in or host function.
type nativeFunc func(ctx context.Context, c *Call, args []types.Value) (types.Value, error)

// Native is a function implemented in Go.
type Native struct {
	name  string
	sig   *Signature
	arity int
	fn    nativeFunc
	async functions.AsyncFunc
	host  bool
}

func (*Native) Kind() types.Kind { return types.KindFunction }

// Arity is the number of parameters passed by higher-order functions.
func (n *Native) Arity() int {
	if n.arity > 0 || n.sig == nil {
		return n.arity
	}
	return n.sig.Arity()
}

// Name returns the name the function was defined with.
func (n *Native) Name() string { return n.name }

// NewFunction turns a host function definition into a value that can be
// bound to a variable and called from expressions.
func NewFunction(def functions.Definition) (*Native, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	n := &Native{name: def.Name, host: true, arity: 1}
	if def.Signature != "" {
		sig, err := ParseSignature(def.Signature)
		if err != nil {
			return nil, err
		}
		n.sig = sig
		n.arity = 0
	}
	switch {
	case def.Fn != nil:
		fn := def.Fn
		n.fn = func(ctx context.Context, _ *Call, args []types.Value) (types.Value, error) {
			return fn(ctx, args...)
		}
	case def.Advanced != nil:
		fn := def.Advanced
		n.fn = func(ctx context.Context, c *Call, args []types.Value) (types.Value, error) {
			return fn(ctx, c, args...)
		}
	default:
		n.async = def.Async
	}
	return n, nil
}

// partialFn is a function with some arguments fixed and the others left as
// holes to be filled by a later call.
type partialFn struct {
	fn    types.Value
	args  []types.Value
	holes []bool
}

func (*partialFn) Kind() types.Kind { return types.KindFunction }

func (p *partialFn) Arity() int {
	n := 0
	for _, h := range p.holes {
		if h {
			n++
		}
	}
	return n
}

func (p *partialFn) fill(args []types.Value) []types.Value {
	out := make([]types.Value, len(p.args))
	next := 0
	for i, v := range p.args {
		if p.holes[i] {
			if next < len(args) {
				v = args[next]
			}
			next++
		}
		out[i] = v
	}
	return out
}

// composedFn applies first and feeds its result to second.
type composedFn struct {
	first  types.Value
	second types.Value
}

func (*composedFn) Kind() types.Kind { return types.KindFunction }

func (c *composedFn) Arity() int {
	if f, ok := c.first.(types.Function); ok {
		return f.Arity()
	}
	return 1
}

// Call is the calling context handed to native functions. It implements
// functions.Caller so host functions can apply function arguments.
type Call struct {
	run   *run
	input types.Value
	env   *Scope
}

// Call applies fn to args.
func (c *Call) Call(ctx context.Context, fn types.Value, args ...types.Value) (types.Value, error) {
	return c.run.apply(ctx, fn, args, nil, c.env, "")
}

// Input returns the value the function was invoked on.
func (c *Call) Input() types.Value {
	return c.input
}

var _ functions.Caller = (*Call)(nil)

func (r *run) evalLambda(node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	l := &Lambda{node: node, input: input, env: env}
	if node.Signature != "" {
		sig, err := ParseSignature(node.Signature)
		if err != nil {
			return nil, annotate(err, node.Position, "")
		}
		l.sig = sig
	}
	return l, nil
}

func procName(proc *types.Node) string {
	switch proc.Type {
	case types.NodePath:
		if len(proc.Steps) > 0 {
			return proc.Steps[0].Name
		}
	case types.NodeVariable, types.NodeName:
		return proc.Name
	}
	return ""
}

// evalFunction evaluates a call. first, when set, holds arguments already
// supplied by the ~> operator.
func (r *run) evalFunction(ctx context.Context, node *types.Node, input types.Value, env *Scope, first []types.Value) (types.Value, error) {
	proc, err := r.eval(ctx, node.Procedure, input, env)
	if err != nil {
		return nil, err
	}
	name := procName(node.Procedure)
	if proc == nil && node.Procedure.Type == types.NodePath && env.Lookup(name) != nil {
		return nil, types.NewError(types.ErrInvokeNonFunctionH, node.Position).WithToken(name)
	}

	args := make([]types.Value, 0, len(first)+len(node.Arguments))
	args = append(args, first...)
	for _, a := range node.Arguments {
		v, err := r.eval(ctx, a, input, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	result, err := r.apply(ctx, proc, args, input, env, name)
	if err != nil {
		return nil, annotate(err, node.Position, name)
	}
	return result, nil
}

func (r *run) evalPartial(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	p := &partialFn{
		args:  make([]types.Value, len(node.Arguments)),
		holes: make([]bool, len(node.Arguments)),
	}
	for i, a := range node.Arguments {
		if a.Type == types.NodePlaceholder {
			p.holes[i] = true
			continue
		}
		v, err := r.eval(ctx, a, input, env)
		if err != nil {
			return nil, err
		}
		p.args[i] = v
	}

	proc, err := r.eval(ctx, node.Procedure, input, env)
	if err != nil {
		return nil, err
	}
	name := procName(node.Procedure)
	if proc == nil && node.Procedure.Type == types.NodePath && env.Lookup(name) != nil {
		return nil, types.NewError(types.ErrPartialNonFunctionH, node.Position).WithToken(name)
	}
	if !types.IsFunction(proc) {
		return nil, types.NewError(types.ErrPartialNonFunction, node.Position).WithToken(name)
	}
	p.fn = proc
	return p, nil
}

// evalApply evaluates lhs ~> rhs. A call on the right receives lhs as its
// first argument; two functions compose; otherwise rhs is applied to lhs.
func (r *run) evalApply(ctx context.Context, node *types.Node, input types.Value, env *Scope) (types.Value, error) {
	lhs, err := r.eval(ctx, node.LHS, input, env)
	if err != nil {
		return nil, err
	}
	if node.RHS.Type == types.NodeFunction {
		return r.evalFunction(ctx, node.RHS, input, env, []types.Value{lhs})
	}

	fn, err := r.eval(ctx, node.RHS, input, env)
	if err != nil {
		return nil, err
	}
	if !types.IsFunction(fn) {
		return nil, types.NewError(types.ErrApplyNonFunction, node.Position).WithToken("~>").WithValue(fn)
	}
	if types.IsFunction(lhs) {
		return &composedFn{first: lhs, second: fn}, nil
	}
	name := procName(node.RHS)
	result, err := r.apply(ctx, fn, []types.Value{lhs}, nil, env, name)
	if err != nil {
		return nil, annotate(err, node.Position, name)
	}
	return result, nil
}

// apply invokes fn and then runs the tail calls it returns in a loop, so
// chains of tail calls do not deepen the Go stack. Each tail call replaces
// the current frame: the hooks see it exit with an undefined result and
// the callee enter at the same depth.
func (r *run) apply(ctx context.Context, fn types.Value, args []types.Value, input types.Value, env *Scope, name string) (types.Value, error) {
	if err := r.enter(ctx, name); err != nil {
		r.exit(ctx, name, nil, err)
		return nil, err
	}
	result, err := r.applyInner(ctx, fn, args, input, env)
	for err == nil {
		thunk, ok := result.(*Lambda)
		if !ok || !thunk.node.Thunk {
			break
		}
		call := thunk.node.Body
		next, nextArgs, cerr := r.tailCallee(ctx, thunk)
		if cerr != nil {
			result, err = nil, cerr
			break
		}
		r.exit(ctx, name, nil, nil)
		name = procName(call.Procedure)
		if err = r.enter(ctx, name); err != nil {
			result = nil
			break
		}
		if result, err = r.applyInner(ctx, next, nextArgs, input, env); err != nil {
			result, err = nil, annotate(err, call.Position, name)
		}
	}
	r.exit(ctx, name, result, err)
	return result, err
}

// tailCallee evaluates the procedure and arguments of a deferred tail call
// in the scope that produced it.
func (r *run) tailCallee(ctx context.Context, thunk *Lambda) (types.Value, []types.Value, error) {
	call := thunk.node.Body
	next, err := r.eval(ctx, call.Procedure, thunk.input, thunk.env)
	if err != nil {
		return nil, nil, err
	}
	args := make([]types.Value, 0, len(call.Arguments))
	for _, a := range call.Arguments {
		v, err := r.eval(ctx, a, thunk.input, thunk.env)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v)
	}
	return next, args, nil
}

func (r *run) applyInner(ctx context.Context, fn types.Value, args []types.Value, input types.Value, env *Scope) (types.Value, error) {
	switch f := fn.(type) {
	case *Lambda:
		if f.sig != nil {
			var err error
			if args, err = f.sig.Validate(args, input); err != nil {
				return nil, err
			}
		}
		frame := NewScope(f.env)
		for i, p := range f.node.Params {
			var v types.Value
			if i < len(args) {
				v = args[i]
			}
			frame.Bind(p, v)
		}
		return r.eval(ctx, f.node.Body, f.input, frame)

	case *Native:
		if f.sig != nil {
			var err error
			if args, err = f.sig.Validate(args, input); err != nil {
				return nil, annotate(err, -1, f.name)
			}
		}
		return r.callNative(ctx, f, args, input, env)

	case *partialFn:
		return r.apply(ctx, f.fn, f.fill(args), input, env, "")

	case *composedFn:
		v, err := r.apply(ctx, f.first, args, input, env, "")
		if err != nil {
			return nil, err
		}
		return r.apply(ctx, f.second, []types.Value{v}, input, env, "")

	case *regexMatcher:
		var s types.Value
		if len(args) > 0 {
			s = args[0]
		}
		str, ok := s.(types.String)
		if !ok {
			return nil, nil
		}
		return f.exec(string(str)), nil
	}
	return nil, types.NewError(types.ErrInvokeNonFunction, -1)
}

func (r *run) callNative(ctx context.Context, f *Native, args []types.Value, input types.Value, env *Scope) (types.Value, error) {
	if f.host {
		r.ev.opts.Metrics.hostCall(f.name)
		if r.ev.opts.Debug {
			r.ev.logger.Debug("host function call", zap.String("function", f.name), zap.Int("args", len(args)))
		}
	}
	if f.async != nil {
		v, err := functions.Resolve(ctx, f.async(ctx, args...))
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, types.NewError(types.ErrRunaway, -1).WithToken(f.name).WithCause(err)
		}
		return v, err
	}
	return f.fn(ctx, &Call{run: r, input: input, env: env}, args)
}

// annotate fills in the position and token of err when the code that
// detected the failure did not know them.
func annotate(err error, pos int, token string) error {
	var e *types.Error
	if errors.As(err, &e) {
		if e.Position < 0 {
			e.Position = pos
		}
		if e.Token == "" {
			e.Token = token
		}
	}
	return err
}

// hofArgs builds the arguments for a callback of a higher-order function:
// the value, then the index and the whole array when fn accepts them.
func hofArgs(fn types.Value, v types.Value, i int, arr *types.Array) []types.Value {
	n := 1
	if f, ok := fn.(types.Function); ok {
		n = f.Arity()
	}
	args := []types.Value{v}
	if n >= 2 {
		args = append(args, types.Number(i))
	}
	if n >= 3 {
		args = append(args, arr)
	}
	return args
}
