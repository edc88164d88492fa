package evaluator

import (
	"github.com/sandrolain/sonata/pkg/types"
)

// Scope is one frame of the lexical environment. Lookups walk the parent
// chain; bindings always go into the receiving frame.
//
// Frames are created for every block, every lambda invocation and every
// evaluation call. A frame captured by a lambda stays alive as long as the
// lambda does, so a frame must not be written to once evaluation that
// created it has returned.
type Scope struct {
	parent *Scope
	vars   map[string]types.Value
}

// NewScope creates an empty frame whose lookups fall back to parent.
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent}
}

// Bind sets name in this frame. Binding undefined shadows outer bindings.
func (s *Scope) Bind(name string, v types.Value) {
	if s.vars == nil {
		s.vars = make(map[string]types.Value, 4)
	}
	s.vars[name] = v
}

// Lookup returns the innermost binding of name, or undefined.
func (s *Scope) Lookup(name string) types.Value {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v
		}
	}
	return nil
}

// Has reports whether name is bound anywhere in the chain.
func (s *Scope) Has(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if _, ok := sc.vars[name]; ok {
			return true
		}
	}
	return false
}

// Parent returns the enclosing frame.
func (s *Scope) Parent() *Scope {
	return s.parent
}
