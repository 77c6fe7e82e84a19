package formats

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"unicode"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

const (
	xmlAttrPrefix = "@"
	xmlTextKey    = "#text"
)

// XMLCodec maps elements to objects. Attributes become "@name" keys,
// repeated child elements become arrays, text-only elements become strings.
type XMLCodec struct {
	// Root names the document element on encode, "root" when empty
	Root string
	// Item names the element wrapping each value when encoding a value set
	// that is not a single object, "item" when empty
	Item string
}

// Extensions implements Extensioner
func (XMLCodec) Extensions() []string { return []string{"xml"} }

// Decode implements Codec
func (XMLCodec) Decode(data []byte) ([]value.Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  value.Value
		found bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(XML, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if found {
				return nil, errors.Newf(errors.ErrorTypeParse, "invalid xml: multiple root elements, second is <%s>", t.Name.Local)
			}
			root, err = xmlElement(dec, t)
			if err != nil {
				return nil, parseError(XML, err)
			}
			found = true
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.New(errors.ErrorTypeParse, "invalid xml: text outside the root element")
			}
		}
	}
	if !found {
		return nil, errors.New(errors.ErrorTypeParse, "invalid xml: no root element")
	}
	return []value.Value{root}, nil
}

func xmlElement(dec *xml.Decoder, start xml.StartElement) (value.Value, error) {
	obj := value.NewObject()
	for _, attr := range start.Attr {
		obj.Set(xmlAttrPrefix+attr.Name.Local, value.String(attr.Value))
	}

	var text strings.Builder
	children := make(map[string][]value.Value)
	var order []string

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return value.Value{}, errors.Newf(errors.ErrorTypeParse, "unclosed element <%s>", start.Name.Local)
			}
			return value.Value{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := xmlElement(dec, t)
			if err != nil {
				return value.Value{}, err
			}
			name := t.Name.Local
			if _, ok := children[name]; !ok {
				order = append(order, name)
			}
			children[name] = append(children[name], child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			body := strings.TrimSpace(text.String())
			if obj.Len() == 0 && len(order) == 0 {
				return value.String(body), nil
			}
			for _, name := range order {
				items := children[name]
				if len(items) == 1 {
					obj.Set(name, items[0])
				} else {
					obj.Set(name, value.Array(items...))
				}
			}
			if body != "" {
				obj.Set(xmlTextKey, value.String(body))
			}
			return value.FromObject(obj), nil
		}
	}
}

// Encode implements Codec
func (c XMLCodec) Encode(values []value.Value) ([]byte, error) {
	rootName := c.Root
	if rootName == "" {
		rootName = "root"
	}
	itemName := c.Item
	if itemName == "" {
		itemName = "item"
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	var err error
	if len(values) == 1 && values[0].Kind() == value.KindObject {
		err = xmlWrite(enc, rootName, values[0])
	} else {
		err = xmlWrite(enc, rootName, value.Obj(itemName, value.Array(values...)))
	}
	if err == nil {
		err = enc.Flush()
	}
	if err != nil {
		return nil, encodeError(XML, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func xmlWrite(enc *xml.Encoder, name string, v value.Value) error {
	if !validXMLName(name) {
		return errors.Newf(errors.ErrorTypeEncode, "%q is not a valid xml element name", name)
	}
	if items, ok := v.AsArray(); ok {
		for _, item := range items {
			if err := xmlWrite(enc, name, item); err != nil {
				return err
			}
		}
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: name}}
	obj, isObj := v.AsObject()
	var text string
	if isObj {
		obj.Range(func(k string, item value.Value) bool {
			if strings.HasPrefix(k, xmlAttrPrefix) {
				start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: strings.TrimPrefix(k, xmlAttrPrefix)}, Value: item.Scalar()})
			} else if k == xmlTextKey {
				text = item.Scalar()
			}
			return true
		})
	} else {
		text = v.Scalar()
	}

	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if isObj {
		var err error
		obj.Range(func(k string, item value.Value) bool {
			if strings.HasPrefix(k, xmlAttrPrefix) || k == xmlTextKey {
				return true
			}
			err = xmlWrite(enc, k, item)
			return err == nil
		})
		if err != nil {
			return err
		}
	}
	if text != "" {
		if err := enc.EncodeToken(xml.CharData(text)); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func validXMLName(name string) bool {
	if name == "" || strings.HasPrefix(strings.ToLower(name), "xml") {
		return false
	}
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
