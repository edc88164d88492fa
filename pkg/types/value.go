package types

import "math"

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindFunction
)

var kindNames = [...]string{"undefined", "null", "boolean", "number", "string", "array", "object", "function"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a runtime value. A nil Value is undefined: the absence of a
// result, which is distinct from Null.
type Value interface {
	Kind() Kind
}

// KindOf returns the kind of v, treating nil as KindUndefined.
func KindOf(v Value) Kind {
	if v == nil {
		return KindUndefined
	}
	return v.Kind()
}

// Null is the JSON null.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number. NaN and infinities never escape an evaluation.
type Number float64

// String is a JSON string.
type String string

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }

// NullValue is the single null.
var NullValue Value = Null{}

// Array is both a JSON array and a sequence. A sequence is the flattened
// product of path evaluation: it collapses to its only member and never
// nests directly inside another sequence.
type Array struct {
	Items []Value
	// Sequence marks the array as a flattening sequence rather than a
	// literal JSON array.
	Sequence bool
	// KeepSingleton stops a one-member sequence from collapsing.
	KeepSingleton bool
	// OuterWrapper marks the sequence wrapped around an array input so the
	// input is stepped over as a single value.
	OuterWrapper bool
	// Cons marks an array produced by an array constructor inside a path.
	Cons bool
}

func (*Array) Kind() Kind { return KindArray }

// NewArray returns a plain JSON array holding items.
func NewArray(items ...Value) *Array {
	return &Array{Items: items}
}

// NewSequence returns a sequence holding items. Undefined members are kept
// only when explicitly passed; use Append to build sequences that drop them.
func NewSequence(items ...Value) *Array {
	if items == nil {
		items = []Value{}
	}
	return &Array{Items: items, Sequence: true}
}

// Len returns the number of members.
func (a *Array) Len() int { return len(a.Items) }

// Append adds v to the sequence, dropping undefined.
func (a *Array) Append(v Value) {
	if v != nil {
		a.Items = append(a.Items, v)
	}
}

// IsSequence reports whether v is a sequence.
func IsSequence(v Value) bool {
	a, ok := v.(*Array)
	return ok && a.Sequence
}

// AsArray returns v as an array and whether it is one.
func AsArray(v Value) (*Array, bool) {
	a, ok := v.(*Array)
	return a, ok
}

// Function is a callable value: a lambda, a built-in, a host function or a
// partially applied function.
type Function interface {
	Value
	// Arity is the number of declared parameters.
	Arity() int
}

// IsFunction reports whether v is callable.
func IsFunction(v Value) bool {
	_, ok := v.(Function)
	return ok
}

// IsInteger reports whether v is a Number with no fractional part.
func IsInteger(v Value) bool {
	n, ok := v.(Number)
	if !ok {
		return false
	}
	f := float64(n)
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}

// IsArrayOfStrings reports whether every member of a is a string.
func IsArrayOfStrings(a *Array) bool {
	for _, it := range a.Items {
		if _, ok := it.(String); !ok {
			return false
		}
	}
	return true
}

// IsArrayOfNumbers reports whether every member of a is a number.
func IsArrayOfNumbers(a *Array) bool {
	for _, it := range a.Items {
		if _, ok := it.(Number); !ok {
			return false
		}
	}
	return true
}

// TypeName returns the $type() name of v, or "" when v is undefined.
func TypeName(v Value) string {
	if k := KindOf(v); k != KindUndefined {
		return k.String()
	}
	return ""
}

// Equal performs deep structural equality. Functions are equal only to
// themselves.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Null, Bool, Number, String:
		return a == b
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !Equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.Get(k)
			if !ok || !Equal(x.vals[k], yv) {
				return false
			}
		}
		return true
	}
	return a == b
}

// Flatten appends the members of v to out, recursing into nested arrays.
func Flatten(v Value, out []Value) []Value {
	if a, ok := v.(*Array); ok {
		for _, it := range a.Items {
			out = Flatten(it, out)
		}
		return out
	}
	return append(out, v)
}

// Clone deep-copies arrays and objects. Other values are returned as is.
func Clone(v Value) Value {
	switch x := v.(type) {
	case *Array:
		items := make([]Value, len(x.Items))
		for i, it := range x.Items {
			items[i] = Clone(it)
		}
		return &Array{Items: items}
	case *Object:
		out := NewObject(x.Len())
		for _, k := range x.keys {
			out.Set(k, Clone(x.vals[k]))
		}
		return out
	}
	return v
}

// Plain strips sequence flags recursively so a result can be handed back to
// a host as an ordinary JSON value.
func Plain(v Value) Value {
	switch x := v.(type) {
	case *Array:
		items := make([]Value, 0, len(x.Items))
		for _, it := range x.Items {
			if it != nil {
				items = append(items, Plain(it))
			}
		}
		return &Array{Items: items}
	case *Object:
		out := NewObject(x.Len())
		for _, k := range x.keys {
			out.Set(k, Plain(x.vals[k]))
		}
		return out
	}
	return v
}
