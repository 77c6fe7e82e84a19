package value

// Object is an insertion-ordered string-keyed map of values
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject creates an empty object
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Set stores a field. Replacing an existing key keeps its original position.
func (o *Object) Set(key string, v Value) *Object {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
	return o
}

// Get returns the field value and whether the key exists
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.fields[key]
	return v, ok
}

// Delete removes a field
func (o *Object) Delete(key string) {
	if _, ok := o.fields[key]; !ok {
		return
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice must not be modified.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Len returns the number of fields
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for each field in insertion order until fn returns false
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.fields[k]) {
			return
		}
	}
}

// Equal compares key/value pairs independent of order
func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for _, k := range o.Keys() {
		ov, ok := other.fields[k]
		if !ok || !Equal(o.fields[k], ov) {
			return false
		}
	}
	return true
}

// Obj builds an object value from alternating key/value pairs and is handy
// in tests: value.Obj("a", value.Int(1)).
func Obj(pairs ...any) Value {
	o := NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case Value:
			o.Set(key, v)
		default:
			conv, err := FromAny(v)
			if err != nil {
				conv = String(err.Error())
			}
			o.Set(key, conv)
		}
	}
	return FromObject(o)
}
