package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/logger"
	"github.com/ajitpratap0/formatflow/pkg/metrics"
	"github.com/ajitpratap0/formatflow/pkg/observability"
)

var version = "0.1.0"

// GlobalFlags holds the flags shared by every subcommand
type GlobalFlags struct {
	LogLevel    string
	LogEncoding string
	Metrics     bool
	Trace       bool
}

// app carries the process streams and the observability handles built from
// the global flags
type app struct {
	flags GlobalFlags

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	collector *metrics.Collector
	tracing   *observability.Provider
}

// commandError tags a failure with the prefix it is reported under and, for
// usage errors, the usage text of the failing command
type commandError struct {
	prefix string
	usage  string
	err    error
}

func (e *commandError) Error() string { return e.err.Error() }
func (e *commandError) Unwrap() error { return e.err }

func fail(prefix string, cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	ce := &commandError{prefix: prefix, err: err}
	if errors.IsType(err, errors.ErrorTypeUsage) {
		ce.usage = cmd.UsageString()
	}
	return ce
}

// message drops the type prefix from usage errors, whose text is addressed
// to the person typing the command
func message(err error) string {
	var e *errors.Error
	if errors.As(err, &e) && e.Type == errors.ErrorTypeUsage && e.Cause == nil {
		return e.Message
	}
	return err.Error()
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := root.ExecuteContext(ctx)
	a.finish()

	if err == nil {
		return 0
	}
	var ce *commandError
	if errors.As(err, &ce) {
		fmt.Fprintf(stderr, "%s error: %s\n", ce.prefix, message(ce.err))
		if ce.usage != "" {
			fmt.Fprint(stderr, ce.usage)
		}
	} else {
		fmt.Fprintf(stderr, "formatflow error: %v\n", err)
	}
	return 1
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "formatflow",
		Short: "formatflow - convert data between JSON, YAML, TOML, INI, CSV, XML and plaintext",
		Long: `formatflow reads structured data from files, standard input or inline
content, decodes it into a common value model and writes it back out in any
registered format. Pipelines can be described by a config document or by
command-line tokens.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.LogEncoding, "log-encoding", "console", "Log encoding (console or json)")
	pf.BoolVar(&a.flags.Metrics, "metrics", false, "Write Prometheus metrics to stderr after the command")
	pf.BoolVar(&a.flags.Trace, "trace", false, "Export trace spans to stderr")

	root.AddCommand(
		a.runCommand(),
		a.convertCommand(),
		a.recordsCommand(),
		a.flagsCommand(),
		a.formatsCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(a.stdout, "formatflow v%s\n", version)
				fmt.Fprintf(a.stdout, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(a.stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

// setup installs the logger, the metrics collector and the tracer provider
func (a *app) setup() error {
	if err := a.initLogger(a.flags.LogLevel, a.flags.LogEncoding); err != nil {
		return err
	}
	if a.flags.Metrics {
		a.collector = metrics.NewCollector("formatflow")
	}
	if a.flags.Trace {
		cfg := observability.DefaultTracingConfig()
		cfg.ServiceVersion = version
		cfg.Writer = a.stderr
		provider, err := observability.InitTracing(cfg)
		if err != nil {
			return fmt.Errorf("tracing setup failed: %w", err)
		}
		a.tracing = provider
	}
	return nil
}

func (a *app) initLogger(level, encoding string) error {
	cfg := logger.DefaultConfig()
	cfg.Level = level
	cfg.Encoding = encoding
	if err := logger.Init(cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUsage, "invalid logging flags")
	}
	return nil
}

// finish flushes whatever setup installed. It runs after failed commands
// too, which cobra's post-run hooks do not.
func (a *app) finish() {
	if a.collector != nil {
		if err := a.collector.WriteText(a.stderr); err != nil {
			logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
	if err := a.tracing.Shutdown(context.Background()); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync()
}
