package formats

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// PlaintextCodec treats every non-empty line as one string document
type PlaintextCodec struct{}

// Extensions implements Extensioner
func (PlaintextCodec) Extensions() []string { return []string{"txt", "text", "log"} }

// Decode implements Codec
func (c PlaintextCodec) Decode(data []byte) ([]value.Value, error) {
	return DecodeAll(c.NewDecoder(bytes.NewReader(data)))
}

// NewDecoder implements StreamCodec
func (PlaintextCodec) NewDecoder(r io.Reader) Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &lineDecoder{sc: sc}
}

// Encode implements Codec. Strings are written verbatim, everything else as
// compact JSON, one value per line.
func (PlaintextCodec) Encode(values []value.Value) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range values {
		buf.WriteString(v.Scalar())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

type lineDecoder struct {
	sc *bufio.Scanner
}

func (d *lineDecoder) Next() (value.Value, error) {
	for d.sc.Scan() {
		line := strings.TrimRight(d.sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return value.String(line), nil
	}
	if err := d.sc.Err(); err != nil {
		return value.Value{}, errors.Wrap(err, errors.ErrorTypeParse, "invalid plaintext")
	}
	return value.Value{}, io.EOF
}
