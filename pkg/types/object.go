package types

// Object is a JSON object that remembers key insertion order.
type Object struct {
	keys []string
	vals map[string]Value
}

func (*Object) Kind() Kind { return KindObject }

// NewObject returns an empty object sized for n keys.
func NewObject(n int) *Object {
	return &Object{keys: make([]string, 0, n), vals: make(map[string]Value, n)}
}

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Set stores v under key. New keys are appended to the key order; existing
// keys keep their position. Setting undefined removes the key.
func (o *Object) Set(key string, v Value) {
	if v == nil {
		o.Delete(key)
		return
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (o *Object) Keys() []string { return o.keys }

// Range calls fn for each entry in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}
