// Package formats holds the capability table that maps a format identifier to
// its decoder and encoder, the built-in codecs and the auto-detection prober.
package formats

import (
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
)

// ID names a codec. Built-in ids are lowercase names, caller registered ids
// use the custom:<name> shape.
type ID string

const (
	JSON      ID = "json"
	YAML      ID = "yaml"
	TOML      ID = "toml"
	INI       ID = "ini"
	CSV       ID = "csv"
	XML       ID = "xml"
	Plaintext ID = "plaintext"
	Markdown  ID = "markdown"
)

// CustomPrefix marks identifiers resolved only through caller registration
const CustomPrefix = "custom:"

var aliases = map[string]ID{
	"yml":  YAML,
	"txt":  Plaintext,
	"text": Plaintext,
	"md":   Markdown,
}

// DefaultOrder is the candidate list used for auto-detection when a pipeline
// does not supply one. Strict grammars come first: YAML accepts most text as a
// plain scalar, so anything after it only wins when YAML rejects the bytes.
var DefaultOrder = []ID{JSON, XML, TOML, YAML, CSV, INI, Plaintext}

// ParseID normalizes a textual format name
func ParseID(s string) (ID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", errors.New(errors.ErrorTypeConfig, "empty format name")
	}
	if strings.HasPrefix(name, CustomPrefix) {
		if strings.TrimPrefix(name, CustomPrefix) == "" {
			return "", errors.Newf(errors.ErrorTypeConfig, "custom format %q has no name", s)
		}
		return ID(name), nil
	}
	if id, ok := aliases[name]; ok {
		return id, nil
	}
	return ID(name), nil
}

// ParseOrder parses a candidate list, keeping order and dropping duplicates
func ParseOrder(names []string) ([]ID, error) {
	seen := make(map[ID]bool, len(names))
	out := make([]ID, 0, len(names))
	for _, n := range names {
		id, err := ParseID(n)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// CustomID builds the identifier for a caller registered format
func CustomID(name string) ID {
	return ID(CustomPrefix + strings.ToLower(name))
}

// IsCustom reports whether id is in the custom namespace
func (id ID) IsCustom() bool {
	return strings.HasPrefix(string(id), CustomPrefix)
}

// CustomName returns the part after custom:, or "" for built-ins
func (id ID) CustomName() string {
	if !id.IsCustom() {
		return ""
	}
	return strings.TrimPrefix(string(id), CustomPrefix)
}

func (id ID) String() string { return string(id) }
