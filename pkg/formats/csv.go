package formats

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// CSVCodec reads a header row followed by data rows. Every row decodes to an
// object keyed by header with string cells.
type CSVCodec struct {
	// Delimiter defaults to ','
	Delimiter rune
	// Comment lines start with this rune when non-zero
	Comment rune
}

// Extensions implements Extensioner
func (CSVCodec) Extensions() []string { return []string{"csv"} }

func (c CSVCodec) delimiter() rune {
	if c.Delimiter == 0 {
		return ','
	}
	return c.Delimiter
}

// Decode implements Codec
func (c CSVCodec) Decode(data []byte) ([]value.Value, error) {
	return DecodeAll(c.NewDecoder(bytes.NewReader(data)))
}

// NewDecoder implements StreamCodec
func (c CSVCodec) NewDecoder(r io.Reader) Decoder {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = c.delimiter()
	reader.Comment = c.Comment
	return &csvDecoder{reader: reader}
}

type csvDecoder struct {
	reader  *csv.Reader
	headers []string
}

func (d *csvDecoder) Next() (value.Value, error) {
	if d.headers == nil {
		headers, err := d.reader.Read()
		if err == io.EOF {
			return value.Value{}, io.EOF
		}
		if err != nil {
			return value.Value{}, errors.Wrap(err, errors.ErrorTypeParse, "failed to read CSV headers")
		}
		d.headers = make([]string, len(headers))
		copy(d.headers, headers)
	}

	record, err := d.reader.Read()
	if err == io.EOF {
		return value.Value{}, io.EOF
	}
	if err != nil {
		return value.Value{}, errors.Wrap(err, errors.ErrorTypeParse, "failed to read CSV row")
	}

	obj := value.NewObject()
	for i, field := range record {
		if i < len(d.headers) {
			obj.Set(d.headers[i], value.String(field))
		}
	}
	return value.FromObject(obj), nil
}

// Encode implements Codec. Top-level arrays are flattened one level so that a
// single decoded JSON array of objects becomes one row per element.
func (c CSVCodec) Encode(values []value.Value) ([]byte, error) {
	var rows []*value.Object
	for _, v := range values {
		switch v.Kind() {
		case value.KindObject:
			obj, _ := v.AsObject()
			rows = append(rows, obj)
		case value.KindArray:
			items, _ := v.AsArray()
			for _, item := range items {
				obj, ok := item.AsObject()
				if !ok {
					return nil, errors.New(errors.ErrorTypeEncode, "CSV format requires an array or object")
				}
				rows = append(rows, obj)
			}
		default:
			return nil, errors.New(errors.ErrorTypeEncode, "CSV format requires an array or object")
		}
	}

	headers := csvHeaders(rows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = c.delimiter()
	if len(headers) > 0 {
		if err := w.Write(headers); err != nil {
			return nil, encodeError(CSV, err)
		}
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			cell, ok := row.Get(h)
			if !ok {
				record[i] = ""
				continue
			}
			record[i] = cell.Scalar()
		}
		if err := w.Write(record); err != nil {
			return nil, encodeError(CSV, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, encodeError(CSV, err)
	}
	return buf.Bytes(), nil
}

// csvHeaders is the union of row keys in first-seen order
func csvHeaders(rows []*value.Object) []string {
	seen := make(map[string]bool)
	var headers []string
	for _, row := range rows {
		for _, k := range row.Keys() {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	return headers
}
