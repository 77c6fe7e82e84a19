package formats

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// JSONCodec decodes one JSON document or a stream of concatenated documents
// (JSON lines). Object key order is preserved.
type JSONCodec struct {
	// Compact disables indentation on encode
	Compact bool
}

// Extensions implements Extensioner
func (JSONCodec) Extensions() []string { return []string{"json", "jsonl", "ndjson"} }

// Decode implements Codec
func (c JSONCodec) Decode(data []byte) ([]value.Value, error) {
	values, err := DecodeAll(c.NewDecoder(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	return values, nil
}

// NewDecoder implements StreamCodec
func (JSONCodec) NewDecoder(r io.Reader) Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return &jsonDecoder{dec: dec}
}

// Encode implements Codec. A single value is written as is, any other count
// is written as an array.
func (c JSONCodec) Encode(values []value.Value) ([]byte, error) {
	doc := value.Array(values...)
	if len(values) == 1 {
		doc = values[0]
	}
	out, err := marshalJSON(doc, !c.Compact)
	if err != nil {
		return nil, encodeError(JSON, err)
	}
	return append(out, '\n'), nil
}

type jsonDecoder struct {
	dec *gojson.Decoder
}

func (d *jsonDecoder) Next() (value.Value, error) {
	// The decoder only splits the stream into documents; Valid checks the
	// grammar of each one before the ordered token walk.
	var raw gojson.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return value.Value{}, io.EOF
		}
		return value.Value{}, parseError(JSON, err)
	}
	if !gojson.Valid(raw) {
		return value.Value{}, errors.Newf(errors.ErrorTypeParse, "invalid %s: malformed document %q", JSON, abbreviate(raw))
	}
	v, err := parseJSONDocument(raw)
	if err != nil {
		return value.Value{}, errors.Wrapf(err, errors.ErrorTypeParse, "invalid %s", JSON)
	}
	return v, nil
}

func abbreviate(raw []byte) string {
	const limit = 40
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}

// parseJSONDocument converts one validated document into a Value
func parseJSONDocument(raw []byte) (value.Value, error) {
	dec := gojson.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return readJSONValue(dec)
}

func readJSONValue(dec *gojson.Decoder) (value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return value.Value{}, err
	}
	return jsonTokenValue(dec, tok)
}

func jsonTokenValue(dec *gojson.Decoder, tok gojson.Token) (value.Value, error) {
	switch t := tok.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(t), nil
	case string:
		return value.String(t), nil
	case gojson.Number:
		return value.ParseNumber(t.String())
	case float64:
		return value.Float(t), nil
	case gojson.Delim:
		switch t {
		case '[':
			items := []value.Value{}
			for dec.More() {
				item, err := readJSONValue(dec)
				if err != nil {
					return value.Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return value.Value{}, err
			}
			return value.Array(items...), nil
		case '{':
			obj := value.NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return value.Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return value.Value{}, errors.Newf(errors.ErrorTypeParse, "object key must be a string, got %v", keyTok)
				}
				item, err := readJSONValue(dec)
				if err != nil {
					return value.Value{}, err
				}
				obj.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return value.Value{}, err
			}
			return value.FromObject(obj), nil
		}
	}
	return value.Value{}, errors.Newf(errors.ErrorTypeParse, "unexpected token %v", tok)
}

// marshalJSON renders v keeping object order, optionally indented by two spaces
func marshalJSON(v value.Value, pretty bool) ([]byte, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if !pretty {
		return compact, nil
	}
	var buf bytes.Buffer
	if err := gojson.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
