package config

import (
	"strings"

	"github.com/ajitpratap0/formatflow/internal/pipeline"
	"github.com/ajitpratap0/formatflow/pkg/compression"
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
)

// Document is the on-disk pipeline configuration
type Document struct {
	// Inputs are decoded in declaration order
	Inputs []InputConfig `mapstructure:"inputs" yaml:"inputs" json:"inputs"`
	// Outputs each receive the collected value set
	Outputs []OutputConfig `mapstructure:"outputs" yaml:"outputs" json:"outputs"`
	// ErrorPolicy is fast_fail (default) or accumulate
	ErrorPolicy string `mapstructure:"error_policy" yaml:"error_policy,omitempty" json:"error_policy,omitempty"`
	// FormatOrder is the auto-detection candidate order
	FormatOrder []string `mapstructure:"format_order" yaml:"format_order,omitempty" json:"format_order,omitempty"`

	// Async selects the concurrent executor
	Async bool `mapstructure:"async" yaml:"async,omitempty" json:"async,omitempty"`
	// Concurrency bounds the async executor, 0 for GOMAXPROCS
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	Log LogConfig `mapstructure:"log" yaml:"log,omitempty" json:"log,omitempty"`
}

// InputConfig declares one input
type InputConfig struct {
	ID          string `mapstructure:"id" yaml:"id" json:"id"`
	Kind        string `mapstructure:"kind" yaml:"kind" json:"kind"`
	Path        string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	Content     string `mapstructure:"content" yaml:"content,omitempty" json:"content,omitempty"`
	Format      string `mapstructure:"format" yaml:"format,omitempty" json:"format,omitempty"`
	Compression string `mapstructure:"compression" yaml:"compression,omitempty" json:"compression,omitempty"`
}

// OutputConfig declares one output
type OutputConfig struct {
	ID               string `mapstructure:"id" yaml:"id" json:"id"`
	Kind             string `mapstructure:"kind" yaml:"kind" json:"kind"`
	Path             string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	Format           string `mapstructure:"format" yaml:"format,omitempty" json:"format,omitempty"`
	FileExistsPolicy string `mapstructure:"file_exists_policy" yaml:"file_exists_policy,omitempty" json:"file_exists_policy,omitempty"`
	Compression      string `mapstructure:"compression" yaml:"compression,omitempty" json:"compression,omitempty"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level    string `mapstructure:"level" yaml:"level,omitempty" json:"level,omitempty"`
	Encoding string `mapstructure:"encoding" yaml:"encoding,omitempty" json:"encoding,omitempty"`
}

// Validate checks kinds, policies and required fields. Format names are
// left to the registry.
func (d *Document) Validate() error {
	_, err := d.ToPipeline()
	return err
}

// ToPipeline converts the document into an executable pipeline config
func (d *Document) ToPipeline() (*pipeline.Config, error) {
	policy, err := pipeline.ParseErrorPolicy(d.ErrorPolicy)
	if err != nil {
		return nil, err
	}
	order, err := formats.ParseOrder(d.FormatOrder)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "format_order")
	}
	if d.Concurrency < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "concurrency must not be negative, got %d", d.Concurrency)
	}

	cfg := &pipeline.Config{
		ErrorPolicy: policy,
		FormatOrder: order,
		Inputs:      make([]pipeline.InputSpec, 0, len(d.Inputs)),
		Outputs:     make([]pipeline.OutputSpec, 0, len(d.Outputs)),
	}

	for i, in := range d.Inputs {
		spec, err := in.toSpec()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "inputs[%d]", i)
		}
		cfg.Inputs = append(cfg.Inputs, spec)
	}
	for i, out := range d.Outputs {
		spec, err := out.toSpec()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "outputs[%d]", i)
		}
		cfg.Outputs = append(cfg.Outputs, spec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (in InputConfig) toSpec() (pipeline.InputSpec, error) {
	spec := pipeline.InputSpec{ID: in.ID, Format: formatID(in.Format)}

	switch strings.ToLower(in.Kind) {
	case "file", "":
		spec.Source = pipeline.FileSource(in.Path)
	case "stdin":
		spec.Source = pipeline.StdinSource()
	case "inline":
		spec.Source = pipeline.InlineSource([]byte(in.Content))
	default:
		return spec, errors.Newf(errors.ErrorTypeConfig, "input %q: unknown kind %q (want file, stdin or inline)", in.ID, in.Kind)
	}

	alg, err := compression.ParseAlgorithm(in.Compression)
	if err != nil {
		return spec, err
	}
	spec.Compression = alg
	return spec, nil
}

func (out OutputConfig) toSpec() (pipeline.OutputSpec, error) {
	spec := pipeline.OutputSpec{ID: out.ID, Format: formatID(out.Format)}

	switch strings.ToLower(out.Kind) {
	case "file", "":
		spec.Sink = pipeline.FileSink(out.Path)
	case "stdout":
		spec.Sink = pipeline.StdoutSink()
	case "stderr":
		spec.Sink = pipeline.StderrSink()
	default:
		return spec, errors.Newf(errors.ErrorTypeConfig, "output %q: unknown kind %q (want file, stdout or stderr)", out.ID, out.Kind)
	}

	policy, err := pipeline.ParseFileExistsPolicy(out.FileExistsPolicy)
	if err != nil {
		return spec, err
	}
	spec.FileExists = policy

	alg, err := compression.ParseAlgorithm(out.Compression)
	if err != nil {
		return spec, err
	}
	spec.Compression = alg
	return spec, nil
}

// formatID normalizes a configured format name. Empty and "auto" select
// detection; names that do not parse are kept verbatim so the run reports
// them as unknown formats against the owning id.
func formatID(name string) formats.ID {
	if strings.TrimSpace(name) == "" || strings.EqualFold(name, "auto") {
		return ""
	}
	id, err := formats.ParseID(name)
	if err != nil {
		return formats.ID(name)
	}
	return id
}
