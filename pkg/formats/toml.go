package formats

import (
	"bytes"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/ajitpratap0/formatflow/pkg/value"
)

// TOMLCodec handles single-table TOML documents. Decoded tables keep the
// order in which their keys appear in the document.
type TOMLCodec struct{}

// Extensions implements Extensioner
func (TOMLCodec) Extensions() []string { return []string{"toml"} }

// Decode implements Codec
func (TOMLCodec) Decode(data []byte) ([]value.Value, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, parseError(TOML, err)
	}
	v, err := value.FromAny(doc)
	if err != nil {
		return nil, parseError(TOML, err)
	}
	order, err := tomlKeyOrder(data)
	if err != nil {
		return nil, parseError(TOML, err)
	}
	return []value.Value{order.apply(v, "")}, nil
}

// Encode implements Codec
func (TOMLCodec) Encode(values []value.Value) ([]byte, error) {
	obj, err := singleObject(TOML, values)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(value.FromObject(obj).ToAny()); err != nil {
		return nil, encodeError(TOML, err)
	}
	return buf.Bytes(), nil
}

// tomlOrder holds the keys of every table in document order. Tables are
// addressed by their key path; array elements append their index.
type tomlOrder struct {
	keys   map[string][]string
	seen   map[string]bool
	arrays map[string]int
}

func tomlKeyOrder(data []byte) (*tomlOrder, error) {
	o := &tomlOrder{
		keys:   make(map[string][]string),
		seen:   make(map[string]bool),
		arrays: make(map[string]int),
	}

	var p unstable.Parser
	p.Reset(data)
	current := ""
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.KeyValue:
			o.keyValue(current, expr)
		case unstable.Table:
			current = o.tablePath(expr.Key(), false)
		case unstable.ArrayTable:
			current = o.tablePath(expr.Key(), true)
		}
	}
	return o, p.Error()
}

func tomlChild(parent, key string) string { return parent + "\x00" + key }

func tomlElem(path string, i int) string { return path + "\x01" + strconv.Itoa(i) }

func (o *tomlOrder) add(parent, key string) string {
	path := tomlChild(parent, key)
	if !o.seen[path] {
		o.seen[path] = true
		o.keys[parent] = append(o.keys[parent], key)
	}
	return path
}

// resolve follows an array of tables to its last element, which is where
// sub-tables and keys of a later header land
func (o *tomlOrder) resolve(path string) string {
	if n, ok := o.arrays[path]; ok {
		return tomlElem(path, n-1)
	}
	return path
}

func (o *tomlOrder) tablePath(key unstable.Iterator, array bool) string {
	path := ""
	for key.Next() {
		path = o.add(path, string(key.Node().Data))
		if array && key.IsLast() {
			o.arrays[path]++
		}
		path = o.resolve(path)
	}
	return path
}

func (o *tomlOrder) keyValue(table string, kv *unstable.Node) {
	path := table
	key := kv.Key()
	for key.Next() {
		path = o.add(path, string(key.Node().Data))
		if !key.IsLast() {
			path = o.resolve(path)
		}
	}
	o.container(path, kv.Value())
}

func (o *tomlOrder) container(path string, n *unstable.Node) {
	switch n.Kind {
	case unstable.InlineTable:
		it := n.Children()
		for it.Next() {
			o.keyValue(path, it.Node())
		}
	case unstable.Array:
		it := n.Children()
		for i := 0; it.Next(); i++ {
			o.container(tomlElem(path, i), it.Node())
		}
	}
}

// apply rebuilds v with every table's keys in document order
func (o *tomlOrder) apply(v value.Value, path string) value.Value {
	switch v.Kind() {
	case value.KindObject:
		obj, _ := v.AsObject()
		out := value.NewObject()
		for _, k := range o.keys[path] {
			if item, ok := obj.Get(k); ok {
				out.Set(k, o.apply(item, tomlChild(path, k)))
			}
		}
		obj.Range(func(k string, item value.Value) bool {
			if _, ok := out.Get(k); !ok {
				out.Set(k, o.apply(item, tomlChild(path, k)))
			}
			return true
		})
		return value.FromObject(out)
	case value.KindArray:
		items, _ := v.AsArray()
		out := make([]value.Value, len(items))
		for i, item := range items {
			out[i] = o.apply(item, tomlElem(path, i))
		}
		return value.Array(out...)
	}
	return v
}
