package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formatflow/internal/pipeline"
	"github.com/ajitpratap0/formatflow/pkg/config"
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
	"github.com/ajitpratap0/formatflow/pkg/logger"
)

const (
	pipelinePrefix = "formatflow-pipeline"
	manualPrefix   = "formatflow-manual"
	recordsPrefix  = "formatflow-records"
	flagsPrefix    = "formatflow-flags"
)

func usageError(msg string) error {
	return errors.New(errors.ErrorTypeUsage, msg)
}

func (a *app) options() pipeline.Options {
	return pipeline.Options{
		Logger:  logger.Get(),
		Metrics: a.collector,
		Stdin:   a.stdin,
		Stdout:  a.stdout,
		Stderr:  a.stderr,
	}
}

func (a *app) runCommand() *cobra.Command {
	var async bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a pipeline described by a config document",
		Long: `Run a pipeline described by a YAML, JSON or TOML config document.

Example:
  formatflow run pipeline.yaml --async`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(pipelinePrefix, cmd, a.runPipeline(cmd, args, async, concurrency))
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "Use the concurrent executor")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Upper bound on concurrent unit steps for --async (0 for GOMAXPROCS)")
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, args []string, async bool, concurrency int) error {
	switch {
	case len(args) == 0:
		return usageError("missing <config> argument")
	case len(args) > 1:
		return usageError("run takes exactly one <config> argument")
	}

	doc, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if err := a.applyLogConfig(cmd, doc.Log); err != nil {
		return err
	}
	cfg, err := doc.ToPipeline()
	if err != nil {
		return err
	}

	opts := a.options()
	opts.Concurrency = doc.Concurrency
	if concurrency > 0 {
		opts.Concurrency = concurrency
	}

	executor := pipeline.NewSync(opts)
	if async || doc.Async {
		executor = pipeline.NewAsync(opts)
	}

	report, err := executor.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	logger.Info("pipeline completed",
		zap.String("config", args[0]),
		zap.String("run_id", report.RunID),
		zap.Strings("written", report.Written),
		zap.Duration("duration", report.Duration))
	return nil
}

// applyLogConfig lets the document's log section stand in for logging flags
// that were not given on the command line
func (a *app) applyLogConfig(cmd *cobra.Command, lc config.LogConfig) error {
	level, encoding := a.flags.LogLevel, a.flags.LogEncoding
	changed := false
	if lc.Level != "" && !cmd.Flag("log-level").Changed {
		level, changed = lc.Level, true
	}
	if lc.Encoding != "" && !cmd.Flag("log-encoding").Changed {
		encoding, changed = lc.Encoding, true
	}
	if !changed {
		return nil
	}
	if err := a.initLogger(level, encoding); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "log")
	}
	return nil
}

func (a *app) convertCommand() *cobra.Command {
	var multiIn bool

	cmd := &cobra.Command{
		Use:   "convert <input> <output> | convert --multi-in <output> <input>...",
		Short: "Convert files between formats",
		Long: `Convert one input into one output, or with --multi-in collect every input
into a single array written to one output.

Inputs are file paths, "-" or "stdin" for standard input, "=<content>" for
inline content and "@<path>" to force a file path. Outputs are file paths,
"-" or "stdout", "stderr" and "@<path>". Formats follow file extensions;
inputs without a known extension are auto-detected and outputs default to
json.

Examples:
  formatflow convert users.csv users.yaml
  formatflow convert --multi-in all.json a.toml b.ini -`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(manualPrefix, cmd, a.convert(cmd, args, multiIn))
		},
	}
	cmd.Flags().BoolVar(&multiIn, "multi-in", false, "Collect every input into one output")
	return cmd
}

func (a *app) convert(cmd *cobra.Command, args []string, multiIn bool) error {
	m := pipeline.NewManual(a.options())

	if multiIn {
		if len(args) == 0 {
			return usageError("--multi-in requires an output path")
		}
		_, err := m.MultiIn(cmd.Context(), args[0], args[1:])
		return err
	}

	switch len(args) {
	case 0:
		return usageError("missing arguments")
	case 1:
		return usageError("missing output argument")
	case 2:
		_, err := m.OneToOne(cmd.Context(), args[0], args[1])
		return err
	default:
		return usageError("too many arguments for one-to-one mode")
	}
}

func (a *app) recordsCommand() *cobra.Command {
	var order []string

	cmd := &cobra.Command{
		Use:   "records <mode> <input>...",
		Short: "Stream records from inputs as JSON lines",
		Long: `Stream every record of the inputs, one compact JSON value per line.

<mode> is json, csv, any other registered format, or auto to detect each
input independently.

Examples:
  formatflow records csv users.csv
  formatflow records auto events.jsonl config.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(recordsPrefix, cmd, a.records(args, order))
		},
	}
	cmd.Flags().StringSliceVar(&order, "order", nil, "Auto-detection candidate order (default json,xml,toml,yaml,csv,ini,plaintext)")
	return cmd
}

func (a *app) records(args, orderNames []string) error {
	switch len(args) {
	case 0:
		return usageError("missing <mode> argument (json|csv|auto)")
	case 1:
		return usageError("missing <input> argument")
	}

	mode := pipeline.Auto
	if !strings.EqualFold(args[0], string(pipeline.Auto)) {
		id, err := formats.ParseID(args[0])
		if err != nil {
			return usageError(fmt.Sprintf("invalid <mode> %q", args[0]))
		}
		mode = id
	}
	order, err := formats.ParseOrder(orderNames)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeUsage, "--order")
	}

	opts := a.options()
	opts.Registry = formats.Default()
	inputs := make([]pipeline.InputSpec, 0, len(args)-1)
	for _, tok := range args[1:] {
		in := pipeline.ParseInputToken(opts.Registry, tok, false)
		// <mode> governs every input
		in.Format = ""
		inputs = append(inputs, in)
	}

	stream, err := pipeline.NewRecords(opts, mode, order, inputs...)
	if err != nil {
		return err
	}
	defer stream.Close() //nolint:errcheck

	for stream.Next() {
		line, err := stream.Value().MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeEncode, "record from %s", stream.Source())
		}
		if _, err := fmt.Fprintf(a.stdout, "%s\n", line); err != nil {
			return errors.Wrap(err, errors.ErrorTypeIO, "failed to write record")
		}
	}
	return stream.Err()
}

func (a *app) flagsCommand() *cobra.Command {
	var ins, outs []string

	cmd := &cobra.Command{
		Use:   "flags -i <input>... -o <output>...",
		Short: "Convert inputs given by flags into every output",
		Long: `Decode every --input and write the array of decoded documents into every
--output. An input that is not an existing file is decoded as inline content.

Example:
  formatflow flags -i '{"a":1}' -i data.csv -o - -o out.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := pipeline.NewManual(a.options()).Flags(cmd.Context(), ins, outs)
			return fail(flagsPrefix, cmd, err)
		},
	}
	cmd.Flags().StringArrayVarP(&ins, "input", "i", nil, "Input token (repeatable)")
	cmd.Flags().StringArrayVarP(&outs, "output", "o", nil, "Output token (repeatable)")
	return cmd
}

func (a *app) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List registered formats and their file extensions",
		Run: func(cmd *cobra.Command, args []string) {
			reg := formats.Default()
			for _, id := range reg.List() {
				exts := reg.Extensions(id)
				for i, ext := range exts {
					exts[i] = "." + ext
				}
				fmt.Fprintf(a.stdout, "%-10s %s\n", id, strings.Join(exts, " "))
			}
		},
	}
}
