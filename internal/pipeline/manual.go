package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
)

// Manual runs single-output FastFail pipelines described by command-line
// style tokens.
//
// Input tokens: "-" or "stdin" read standard input, "=<content>" decodes the
// content itself, "@<path>" and any other token name a file. Output tokens:
// "-" or "stdout", "stderr", "@<path>" and any other token name a file.
type Manual struct {
	exec Executor
	reg  *formats.Registry
}

// NewManual returns a Manual backed by a sync executor
func NewManual(opts Options) *Manual {
	opts = opts.withDefaults()
	return &Manual{exec: NewSync(opts), reg: opts.Registry}
}

// OneToOne converts a single input into a single output. The decoded value
// set is written as-is, so a JSON array in stays a JSON array out.
func (m *Manual) OneToOne(ctx context.Context, in, out string) (*Report, error) {
	cfg := &Config{
		Inputs:      m.inputs([]string{in}, false),
		Outputs:     m.outputs([]string{out}),
		ErrorPolicy: FastFail,
	}
	return m.exec.Run(ctx, cfg)
}

// MultiIn decodes every input in argument order and writes one array holding
// one document per input
func (m *Manual) MultiIn(ctx context.Context, out string, ins []string) (*Report, error) {
	if len(ins) == 0 {
		return nil, errors.New(errors.ErrorTypeUsage, "--multi-in requires at least one input")
	}
	cfg := &Config{
		Inputs:      m.inputs(ins, false),
		Outputs:     m.outputs([]string{out}),
		ErrorPolicy: FastFail,
		Shape:       ShapeArrayOfInputs,
	}
	return m.exec.Run(ctx, cfg)
}

// Flags writes the array of every decoded input into each output. Input
// tokens that do not name an existing file are decoded as inline content.
func (m *Manual) Flags(ctx context.Context, ins, outs []string) (*Report, error) {
	if len(ins) == 0 || len(outs) == 0 {
		return nil, errors.New(errors.ErrorTypeUsage, "missing --input/--output")
	}
	cfg := &Config{
		Inputs:      m.inputs(ins, true),
		Outputs:     m.outputs(outs),
		ErrorPolicy: FastFail,
		Shape:       ShapeArrayOfInputs,
	}
	return m.exec.Run(ctx, cfg)
}

func (m *Manual) inputs(tokens []string, sniff bool) []InputSpec {
	ids := newIDSet()
	specs := make([]InputSpec, len(tokens))
	for i, tok := range tokens {
		spec := ParseInputToken(m.reg, tok, sniff)
		spec.ID = ids.claim(spec.ID)
		specs[i] = spec
	}
	return specs
}

func (m *Manual) outputs(tokens []string) []OutputSpec {
	ids := newIDSet()
	specs := make([]OutputSpec, len(tokens))
	for i, tok := range tokens {
		spec := ParseOutputToken(m.reg, tok)
		spec.ID = ids.claim(spec.ID)
		specs[i] = spec
	}
	return specs
}

// ParseInputToken builds the input named by tok. A file whose extension
// names a registered format declares that format; everything else is
// auto-detected. With sniff set, a token that does not name an existing file
// is inline content.
func ParseInputToken(reg *formats.Registry, tok string, sniff bool) InputSpec {
	switch {
	case tok == "-" || tok == "stdin":
		return InputSpec{ID: "stdin", Source: StdinSource()}
	case strings.HasPrefix(tok, "="):
		return InputSpec{ID: "inline", Source: InlineSource([]byte(tok[1:]))}
	case strings.HasPrefix(tok, "@"):
		return fileInput(reg, tok[1:])
	}
	if sniff {
		if info, err := os.Stat(tok); err != nil || info.IsDir() {
			return InputSpec{ID: "inline", Source: InlineSource([]byte(tok))}
		}
	}
	return fileInput(reg, tok)
}

func fileInput(reg *formats.Registry, path string) InputSpec {
	spec := InputSpec{ID: path, Source: FileSource(path)}
	_, rest := inputCompression(spec)
	if id, ok := formatHint(reg, rest); ok {
		spec.Format = id
	}
	return spec
}

// ParseOutputToken builds the output named by tok. The format follows the
// file extension and defaults to JSON.
func ParseOutputToken(reg *formats.Registry, tok string) OutputSpec {
	switch tok {
	case "-", "stdout":
		return OutputSpec{ID: "stdout", Sink: StdoutSink(), Format: formats.JSON}
	case "stderr":
		return OutputSpec{ID: "stderr", Sink: StderrSink(), Format: formats.JSON}
	}
	path := strings.TrimPrefix(tok, "@")
	spec := OutputSpec{ID: path, Sink: FileSink(path), Format: formats.JSON}
	if id, ok := formatHint(reg, stripCompression(path)); ok {
		spec.Format = id
	}
	return spec
}

func stripCompression(path string) string {
	_, rest := inputCompression(InputSpec{Source: FileSource(path)})
	return rest
}

// idSet hands out unique unit ids, suffixing repeats with #2, #3, ...
type idSet map[string]int

func newIDSet() idSet { return make(idSet) }

func (s idSet) claim(id string) string {
	s[id]++
	if n := s[id]; n > 1 {
		return fmt.Sprintf("%s#%d", id, n)
	}
	return id
}
