package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/ajitpratap0/formatflow/pkg/compression"
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
)

// SourceKind identifies where an input reads from
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceStdin
	SourceInline
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceStdin:
		return "stdin"
	case SourceInline:
		return "inline"
	default:
		return "unknown"
	}
}

// Source is the byte origin of an input
type Source struct {
	Kind SourceKind
	Path string
	Data []byte
}

// FileSource reads the file at path
func FileSource(path string) Source { return Source{Kind: SourceFile, Path: path} }

// StdinSource reads the executor's standard input
func StdinSource() Source { return Source{Kind: SourceStdin} }

// InlineSource decodes data held in memory
func InlineSource(data []byte) Source { return Source{Kind: SourceInline, Data: data} }

func (s Source) String() string {
	if s.Kind == SourceFile {
		return "file:" + s.Path
	}
	return s.Kind.String()
}

// SinkKind identifies where an output writes to
type SinkKind int

const (
	SinkFile SinkKind = iota
	SinkStdout
	SinkStderr
	SinkBuffer
)

func (k SinkKind) String() string {
	switch k {
	case SinkFile:
		return "file"
	case SinkStdout:
		return "stdout"
	case SinkStderr:
		return "stderr"
	case SinkBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// Sink is the byte destination of an output
type Sink struct {
	Kind   SinkKind
	Path   string
	Buffer *bytes.Buffer
}

// FileSink writes the file at path, creating it when missing
func FileSink(path string) Sink { return Sink{Kind: SinkFile, Path: path} }

// StdoutSink writes the executor's standard output
func StdoutSink() Sink { return Sink{Kind: SinkStdout} }

// StderrSink writes the executor's standard error
func StderrSink() Sink { return Sink{Kind: SinkStderr} }

// BufferSink writes into buf
func BufferSink(buf *bytes.Buffer) Sink { return Sink{Kind: SinkBuffer, Buffer: buf} }

func (s Sink) String() string {
	if s.Kind == SinkFile {
		return "file:" + s.Path
	}
	return s.Kind.String()
}

// key identifies the destination so writes to the same place can be ordered
func (s Sink) key() string {
	switch s.Kind {
	case SinkFile:
		if abs, err := filepath.Abs(s.Path); err == nil {
			return "file:" + abs
		}
		return "file:" + filepath.Clean(s.Path)
	case SinkBuffer:
		return fmt.Sprintf("buffer:%p", s.Buffer)
	default:
		return s.Kind.String()
	}
}

// InputSpec declares one named input. An empty Format selects auto-detection.
type InputSpec struct {
	ID          string
	Source      Source
	Format      formats.ID
	Compression compression.Algorithm
}

// OutputSpec declares one named output. An empty Format is inferred from
// the file extension, falling back to JSON.
type OutputSpec struct {
	ID          string
	Sink        Sink
	Format      formats.ID
	FileExists  FileExistsPolicy
	Compression compression.Algorithm
}

// Shape selects how decoded inputs become the value set handed to outputs
type Shape int

const (
	// ShapeConcat concatenates every document of every input
	ShapeConcat Shape = iota
	// ShapeArrayOfInputs collapses each input to one document (its only
	// value, or an array of its values) and encodes one array of those
	ShapeArrayOfInputs
)

// Config is a complete pipeline declaration
type Config struct {
	Inputs      []InputSpec
	Outputs     []OutputSpec
	ErrorPolicy ErrorPolicy
	Shape       Shape
	// FormatOrder is the auto-detection candidate order, formats.DefaultOrder
	// when empty
	FormatOrder []formats.ID
}

// Validate checks the shape of the declaration. Unknown formats are not
// reported here; they fail their unit at resolve time.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline has no inputs")
	}
	if len(c.Outputs) == 0 {
		return errors.New(errors.ErrorTypeConfig, "pipeline has no outputs")
	}

	seen := make(map[string]bool, len(c.Inputs))
	stdin := 0
	for i, in := range c.Inputs {
		if in.ID == "" {
			return errors.Newf(errors.ErrorTypeConfig, "inputs[%d]: id is required", i)
		}
		if seen[in.ID] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate input id %q", in.ID)
		}
		seen[in.ID] = true

		switch in.Source.Kind {
		case SourceFile:
			if in.Source.Path == "" {
				return errors.Newf(errors.ErrorTypeConfig, "input %q: file source requires a path", in.ID)
			}
		case SourceStdin:
			stdin++
		case SourceInline:
		default:
			return errors.Newf(errors.ErrorTypeConfig, "input %q: unsupported source kind %d", in.ID, in.Source.Kind)
		}
		if _, err := compression.ParseAlgorithm(string(in.Compression)); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "input %q", in.ID)
		}
	}
	if stdin > 1 {
		return errors.New(errors.ErrorTypeConfig, "at most one input may read stdin")
	}

	seen = make(map[string]bool, len(c.Outputs))
	for i, out := range c.Outputs {
		if out.ID == "" {
			return errors.Newf(errors.ErrorTypeConfig, "outputs[%d]: id is required", i)
		}
		if seen[out.ID] {
			return errors.Newf(errors.ErrorTypeConfig, "duplicate output id %q", out.ID)
		}
		seen[out.ID] = true

		switch out.Sink.Kind {
		case SinkFile:
			if out.Sink.Path == "" {
				return errors.Newf(errors.ErrorTypeConfig, "output %q: file sink requires a path", out.ID)
			}
		case SinkBuffer:
			if out.Sink.Buffer == nil {
				return errors.Newf(errors.ErrorTypeConfig, "output %q: buffer sink requires a buffer", out.ID)
			}
		case SinkStdout, SinkStderr:
		default:
			return errors.Newf(errors.ErrorTypeConfig, "output %q: unsupported sink kind %d", out.ID, out.Sink.Kind)
		}
		if out.FileExists != Overwrite && out.FileExists != Append {
			return errors.Newf(errors.ErrorTypeConfig, "output %q: invalid file_exists_policy", out.ID)
		}
		if _, err := compression.ParseAlgorithm(string(out.Compression)); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "output %q", out.ID)
		}
	}

	if c.ErrorPolicy != FastFail && c.ErrorPolicy != Accumulate {
		return errors.New(errors.ErrorTypeConfig, "invalid error_policy")
	}
	return nil
}

func (c *Config) order() []formats.ID {
	if len(c.FormatOrder) == 0 {
		return formats.DefaultOrder
	}
	return c.FormatOrder
}
