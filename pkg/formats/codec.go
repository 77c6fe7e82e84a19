package formats

import (
	"bytes"
	"io"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// Codec is the decode/encode capability stored in the registry.
//
// Decode returns every document found in data, in document order. Encode
// renders the whole value set as one byte payload.
type Codec interface {
	Decode(data []byte) ([]value.Value, error)
	Encode(values []value.Value) ([]byte, error)
}

// Decoder yields documents one at a time. Next returns io.EOF when the
// underlying reader is exhausted.
type Decoder interface {
	Next() (value.Value, error)
}

// StreamCodec is implemented by codecs that can decode incrementally
type StreamCodec interface {
	Codec
	NewDecoder(r io.Reader) Decoder
}

// Extensioner is implemented by codecs that claim file extensions
type Extensioner interface {
	Extensions() []string
}

// DecodeAll drains a Decoder into a slice
func DecodeAll(dec Decoder) ([]value.Value, error) {
	var out []value.Value
	for {
		v, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// NewDecoder returns an incremental decoder when c supports one. Otherwise it
// reads r fully on the first call to Next and replays the decoded documents.
func NewDecoder(c Codec, r io.Reader) Decoder {
	if sc, ok := c.(StreamCodec); ok {
		return sc.NewDecoder(r)
	}
	return &bufferedDecoder{codec: c, r: r}
}

type bufferedDecoder struct {
	codec  Codec
	r      io.Reader
	values []value.Value
	loaded bool
	err    error
}

func (d *bufferedDecoder) Next() (value.Value, error) {
	if !d.loaded {
		d.loaded = true
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(d.r); err != nil {
			d.err = errors.Wrap(err, errors.ErrorTypeIO, "read failed")
		} else {
			d.values, d.err = d.codec.Decode(buf.Bytes())
		}
	}
	if d.err != nil {
		return value.Value{}, d.err
	}
	if len(d.values) == 0 {
		return value.Value{}, io.EOF
	}
	v := d.values[0]
	d.values = d.values[1:]
	return v, nil
}

func parseError(format ID, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsType(err, errors.ErrorTypeParse) {
		return err
	}
	return errors.Wrapf(err, errors.ErrorTypeParse, "invalid %s", format)
}

func encodeError(format ID, err error) error {
	if err == nil {
		return nil
	}
	if errors.IsType(err, errors.ErrorTypeEncode) {
		return err
	}
	return errors.Wrapf(err, errors.ErrorTypeEncode, "cannot encode %s", format)
}

// singleObject returns the only value when it is an object. TOML and INI
// documents are single tables, so a value set is only encodable when it holds
// exactly one object, or one array wrapping exactly one object.
func singleObject(format ID, values []value.Value) (*value.Object, error) {
	if len(values) == 1 {
		if items, ok := values[0].AsArray(); ok && len(items) == 1 {
			values = items
		}
	}
	if len(values) != 1 {
		return nil, errors.Newf(errors.ErrorTypeEncode, "%s requires a single object, got %d values", format, len(values))
	}
	obj, ok := values[0].AsObject()
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeEncode, "%s requires an object, got %s", format, values[0].Kind())
	}
	return obj, nil
}
