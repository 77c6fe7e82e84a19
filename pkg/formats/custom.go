package formats

import (
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// DecodeFunc decodes raw bytes into documents
type DecodeFunc func(data []byte) ([]value.Value, error)

// EncodeFunc encodes a value set into bytes
type EncodeFunc func(values []value.Value) ([]byte, error)

// Custom is a caller-defined codec. Either direction may be left unset, in
// which case using it fails with an explanatory error.
type Custom struct {
	Name   string
	Exts   []string
	Decode DecodeFunc
	Encode EncodeFunc
}

// NewCustom starts a custom codec definition
func NewCustom(name string, extensions ...string) *Custom {
	return &Custom{Name: name, Exts: extensions}
}

// WithDecode sets the decode function
func (c *Custom) WithDecode(fn DecodeFunc) *Custom {
	c.Decode = fn
	return c
}

// WithEncode sets the encode function
func (c *Custom) WithEncode(fn EncodeFunc) *Custom {
	c.Encode = fn
	return c
}

// ID returns custom:<name>
func (c *Custom) ID() ID { return CustomID(c.Name) }

// Codec adapts the definition to the Codec interface
func (c *Custom) Codec() Codec { return customCodec{def: c} }

// RegisterCustom registers def under custom:<name>
func (r *Registry) RegisterCustom(def *Custom) error {
	if def == nil || def.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "custom format needs a name")
	}
	return r.Register(def.ID(), def.Codec())
}

type customCodec struct {
	def *Custom
}

func (c customCodec) Extensions() []string { return c.def.Exts }

func (c customCodec) Decode(data []byte) ([]value.Value, error) {
	if c.def.Decode == nil {
		return nil, errors.Newf(errors.ErrorTypeParse, "Custom format '%s' does not support deserialization", c.def.Name)
	}
	values, err := c.def.Decode(data)
	return values, parseError(c.def.ID(), err)
}

func (c customCodec) Encode(values []value.Value) ([]byte, error) {
	if c.def.Encode == nil {
		return nil, errors.Newf(errors.ErrorTypeEncode, "Custom format '%s' does not support serialization", c.def.Name)
	}
	out, err := c.def.Encode(values)
	return out, encodeError(c.def.ID(), err)
}
