package formats

import (
	"bytes"
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// MarkdownCodec renders the value set as a fenced JSON block. Decoding reads
// back the first fenced json block, or failing that the first yaml block.
type MarkdownCodec struct{}

// Extensions implements Extensioner
func (MarkdownCodec) Extensions() []string { return []string{"md", "markdown"} }

// Decode implements Codec
func (MarkdownCodec) Decode(data []byte) ([]value.Value, error) {
	content := string(data)
	if block, ok := fencedBlock(content, "json"); ok {
		return JSONCodec{}.Decode([]byte(block))
	}
	if block, ok := fencedBlock(content, "yaml"); ok {
		return YAMLCodec{}.Decode([]byte(block))
	}
	return nil, errors.New(errors.ErrorTypeParse, "invalid markdown: no fenced json or yaml block")
}

// Encode implements Codec
func (MarkdownCodec) Encode(values []value.Value) ([]byte, error) {
	body, err := JSONCodec{}.Encode(values)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("```json\n")
	buf.Write(bytes.TrimRight(body, "\n"))
	buf.WriteString("\n```\n")
	return buf.Bytes(), nil
}

func fencedBlock(content, lang string) (string, bool) {
	fence := "```" + lang
	start := strings.Index(content, fence)
	if start < 0 {
		return "", false
	}
	rest := content[start+len(fence):]
	// the fence line may carry trailing spaces
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && strings.TrimSpace(rest[:nl]) == "" {
		rest = rest[nl+1:]
	} else {
		return "", false
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimRight(rest[:end], " \t\r\n"), true
}
