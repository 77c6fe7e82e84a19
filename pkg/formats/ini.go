package formats

import (
	"bytes"

	"gopkg.in/ini.v1"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// INICodec maps the default section to top-level keys and every named section
// to a nested object of string values.
type INICodec struct{}

// Extensions implements Extensioner
func (INICodec) Extensions() []string { return []string{"ini", "cfg"} }

// Decode implements Codec
func (INICodec) Decode(data []byte) ([]value.Value, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, parseError(INI, err)
	}

	root := value.NewObject()
	for _, sec := range f.Sections() {
		target := root
		if sec.Name() != ini.DefaultSection {
			target = value.NewObject()
		}
		for _, key := range sec.Keys() {
			target.Set(key.Name(), value.String(key.Value()))
		}
		if sec.Name() != ini.DefaultSection {
			root.Set(sec.Name(), value.FromObject(target))
		}
	}
	return []value.Value{value.FromObject(root)}, nil
}

// Encode implements Codec. Scalars land in the default section and objects of
// scalars become sections.
func (INICodec) Encode(values []value.Value) ([]byte, error) {
	obj, err := singleObject(INI, values)
	if err != nil {
		return nil, err
	}

	f := ini.Empty()
	var encErr error
	obj.Range(func(k string, v value.Value) bool {
		switch v.Kind() {
		case value.KindObject:
			sec, err := f.NewSection(k)
			if err != nil {
				encErr = err
				return false
			}
			inner, _ := v.AsObject()
			inner.Range(func(ik string, iv value.Value) bool {
				if iv.Kind() == value.KindObject || iv.Kind() == value.KindArray {
					encErr = errors.Newf(errors.ErrorTypeEncode, "ini cannot represent nested value at %s.%s", k, ik)
					return false
				}
				if _, err := sec.NewKey(ik, iv.Scalar()); err != nil {
					encErr = err
					return false
				}
				return true
			})
			return encErr == nil
		case value.KindArray:
			encErr = errors.Newf(errors.ErrorTypeEncode, "ini cannot represent array at %s", k)
			return false
		default:
			if _, err := f.Section("").NewKey(k, v.Scalar()); err != nil {
				encErr = err
				return false
			}
			return true
		}
	})
	if encErr != nil {
		return nil, encodeError(INI, encErr)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, encodeError(INI, err)
	}
	return buf.Bytes(), nil
}
