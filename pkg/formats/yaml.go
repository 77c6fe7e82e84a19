package formats

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// YAMLCodec decodes every document of a multi-document stream
type YAMLCodec struct{}

// Extensions implements Extensioner
func (YAMLCodec) Extensions() []string { return []string{"yaml", "yml"} }

// Decode implements Codec
func (c YAMLCodec) Decode(data []byte) ([]value.Value, error) {
	return DecodeAll(c.NewDecoder(bytes.NewReader(data)))
}

// NewDecoder implements StreamCodec
func (YAMLCodec) NewDecoder(r io.Reader) Decoder {
	return &yamlDecoder{dec: yaml.NewDecoder(r)}
}

// Encode implements Codec. Each value becomes one document.
func (YAMLCodec) Encode(values []value.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, v := range values {
		if err := enc.Encode(yamlNode(v)); err != nil {
			return nil, encodeError(YAML, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, encodeError(YAML, err)
	}
	return buf.Bytes(), nil
}

type yamlDecoder struct {
	dec *yaml.Decoder
}

func (d *yamlDecoder) Next() (value.Value, error) {
	for {
		var doc yaml.Node
		if err := d.dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return value.Value{}, io.EOF
			}
			return value.Value{}, parseError(YAML, err)
		}
		if doc.Kind == yaml.DocumentNode && len(doc.Content) == 0 {
			continue
		}
		v, err := yamlValue(&doc, nil)
		if err != nil {
			return value.Value{}, parseError(YAML, err)
		}
		return v, nil
	}
}

// yamlValue converts a node tree; anchors tracks aliases being expanded so a
// self-referencing alias is reported instead of recursing forever
func yamlValue(n *yaml.Node, anchors []*yaml.Node) (value.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.Null(), nil
		}
		return yamlValue(n.Content[0], anchors)
	case yaml.AliasNode:
		for _, a := range anchors {
			if a == n.Alias {
				return value.Value{}, errors.Newf(errors.ErrorTypeParse, "line %d: recursive alias *%s", n.Line, n.Value)
			}
		}
		return yamlValue(n.Alias, append(anchors, n.Alias))
	case yaml.SequenceNode:
		items := make([]value.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c, anchors)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.Array(items...), nil
	case yaml.MappingNode:
		obj := value.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Tag == "!!merge" {
				if err := yamlMerge(obj, v, anchors); err != nil {
					return value.Value{}, err
				}
				continue
			}
			item, err := yamlValue(v, anchors)
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(k.Value, item)
		}
		return value.FromObject(obj), nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return value.Value{}, errors.Newf(errors.ErrorTypeParse, "line %d: unsupported node kind %d", n.Line, n.Kind)
}

func yamlMerge(obj *value.Object, n *yaml.Node, anchors []*yaml.Node) error {
	merged, err := yamlValue(n, anchors)
	if err != nil {
		return err
	}
	sources := []value.Value{merged}
	if items, ok := merged.AsArray(); ok {
		sources = items
	}
	for _, src := range sources {
		m, ok := src.AsObject()
		if !ok {
			return errors.Newf(errors.ErrorTypeParse, "line %d: merge value must be a mapping", n.Line)
		}
		m.Range(func(k string, v value.Value) bool {
			if _, exists := obj.Get(k); !exists {
				obj.Set(k, v)
			}
			return true
		})
	}
	return nil
}

func yamlScalar(n *yaml.Node) (value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return value.Value{}, err
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return value.Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	}
	return value.String(n.Value), nil
}

func yamlNode(v value.Value) *yaml.Node {
	switch v.Kind() {
	case value.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case value.KindBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
	case value.KindNumber:
		if v.IsInt() {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.NumberText()}
		}
		return yamlFloat(v)
	case value.KindString:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	case value.KindArray:
		items, _ := v.AsArray()
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range items {
			n.Content = append(n.Content, yamlNode(item))
		}
		return n
	case value.KindObject:
		obj, _ := v.AsObject()
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		obj.Range(func(k string, item value.Value) bool {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				yamlNode(item))
			return true
		})
		return n
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

// yamlFloat keeps a float a plain float scalar. Integral values get a ".0"
// so they resolve as !!float without an explicit tag.
func yamlFloat(v value.Value) *yaml.Node {
	f, _ := v.AsFloat()
	switch {
	case math.IsNaN(f):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".nan"}
	case math.IsInf(f, 1):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".inf"}
	case math.IsInf(f, -1):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: "-.inf"}
	}
	text := v.NumberText()
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: text}
}
