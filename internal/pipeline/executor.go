// Package pipeline executes declarative conversion pipelines: N named inputs
// are decoded into one ordered value set, and M named outputs each encode that
// set into their own format.
//
// # Overview
//
// The package provides:
//   - Sync and async executors sharing one contract
//   - FastFail and Accumulate error policies with per-unit attribution
//   - Overwrite and Append file policies
//   - Auto-detection for inputs without a declared format
//   - A lazy record stream and one-to-one / multi-in helpers
//
// # Architecture
//
// Each input and output is a unit of work. A plan holds the units of one run
// and implements their steps (open, read and parse for inputs; encode and
// write for outputs). A scheduler drives those steps: the sync scheduler walks
// units in declaration order, the async scheduler overlaps them. Results land
// in per-unit slots that are folded in declaration order, so both schedulers
// report the same values and the same failures.
//
// # Basic Usage
//
//	exec := pipeline.NewSync(pipeline.Options{})
//	report, err := exec.Run(ctx, &pipeline.Config{
//	    Inputs: []pipeline.InputSpec{
//	        {ID: "in", Source: pipeline.FileSource("rows.csv"), Format: formats.CSV},
//	    },
//	    Outputs: []pipeline.OutputSpec{
//	        {ID: "out", Sink: pipeline.StdoutSink(), Format: formats.JSON},
//	    },
//	})
package pipeline

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/ajitpratap0/formatflow/pkg/formats"
	"github.com/ajitpratap0/formatflow/pkg/logger"
	"github.com/ajitpratap0/formatflow/pkg/metrics"
	"github.com/ajitpratap0/formatflow/pkg/observability"
	"github.com/ajitpratap0/formatflow/pkg/value"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures an executor. Zero values select the defaults.
type Options struct {
	// Registry resolves format ids, formats.Default() when nil. It is frozen
	// when the executor is built.
	Registry *formats.Registry
	Logger   *zap.Logger
	// Metrics is optional
	Metrics *metrics.Collector

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Concurrency bounds the async scheduler, GOMAXPROCS when zero
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = formats.Default()
	}
	if o.Logger == nil {
		o.Logger = logger.Get()
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	return o
}

// Executor runs pipelines to completion
type Executor interface {
	// Run executes cfg. A failed run returns the partial report together with
	// an *AggregateError; a canceled ctx returns ctx.Err() and no report.
	Run(ctx context.Context, cfg *Config) (*Report, error)
	// Name is "sync" or "async"
	Name() string
}

// Report describes a finished run
type Report struct {
	RunID string
	// Values is the collected value set in input declaration order
	Values []value.Value
	// Written lists the ids of outputs that were written, in declaration order
	Written []string
	// Formats maps each decoded input id to its declared or detected format
	Formats  map[string]formats.ID
	Duration time.Duration
}

// scheduler decides when the unit steps of a plan run. Both methods fill
// one slot per unit and must honor policy the same way.
type scheduler interface {
	name() string
	readInputs(ctx context.Context, p *plan, slots []outcome, policy ErrorPolicy)
	writeOutputs(ctx context.Context, p *plan, values []value.Value, policy ErrorPolicy) []outcome
}

type engine struct {
	opts  Options
	reg   *formats.Registry
	log   *zap.Logger
	sched scheduler
}

// NewSync returns an executor that processes units one at a time in
// declaration order
func NewSync(opts Options) Executor {
	return newEngine(opts, syncScheduler{})
}

// NewAsync returns an executor that overlaps input reads and output writes
func NewAsync(opts Options) Executor {
	opts = opts.withDefaults()
	return newEngine(opts, asyncScheduler{limit: opts.Concurrency})
}

func newEngine(opts Options, sched scheduler) *engine {
	opts = opts.withDefaults()
	opts.Registry.Freeze()
	return &engine{
		opts:  opts,
		reg:   opts.Registry,
		log:   opts.Logger.With(zap.String("component", "pipeline")),
		sched: sched,
	}
}

func (e *engine) Name() string { return e.sched.name() }

func (e *engine) Run(ctx context.Context, cfg *Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.ExecutorKey, e.sched.name())
	ctx, span := observability.NewSpan(ctx, "pipeline.run")
	span.SetAttribute("run.id", runID)
	span.SetAttribute("executor", e.sched.name())
	span.SetAttribute("inputs", len(cfg.Inputs))
	span.SetAttribute("outputs", len(cfg.Outputs))
	span.SetAttribute("error_policy", cfg.ErrorPolicy.String())

	log := logger.WithContext(ctx, e.log)
	log.Info("pipeline run started",
		zap.Int("inputs", len(cfg.Inputs)),
		zap.Int("outputs", len(cfg.Outputs)),
		zap.String("error_policy", cfg.ErrorPolicy.String()))

	p := newPlan(e, cfg, log)
	result := e.execute(ctx, p, cfg.ErrorPolicy)

	if err := ctx.Err(); err != nil {
		span.Finish(err)
		e.opts.Metrics.RunFinished(e.sched.name(), "canceled", time.Since(start))
		log.Warn("pipeline run canceled", zap.Error(err))
		return nil, err
	}

	report := &Report{
		RunID:    runID,
		Values:   result.values,
		Written:  written(p),
		Formats:  p.inputFormats(),
		Duration: time.Since(start),
	}

	err := result.err()
	span.SetAttribute("failures", len(result.failures))
	span.Finish(err)

	status := "success"
	if err != nil {
		status = "failure"
	}
	e.opts.Metrics.RunFinished(e.sched.name(), status, report.Duration)
	log.Info("pipeline run finished",
		zap.String("status", status),
		zap.Int("documents", len(report.Values)),
		zap.Int("written", len(report.Written)),
		zap.Int("failures", len(result.failures)),
		zap.Duration("duration", report.Duration))
	return report, err
}

// execute is the run state machine: resolve inputs, read them, fold the
// input slots, then encode and write every output, folding those slots too.
// Under FastFail every fold short-circuits at the first failing slot.
func (e *engine) execute(ctx context.Context, p *plan, policy ErrorPolicy) outcome {
	fold := accumulate
	if policy == FastFail {
		fold = shortCircuit
	}

	inSlots := p.resolveInputs()
	if policy == FastFail {
		if r := fold(inSlots); !r.ok() {
			return outcome{failures: r.failures}
		}
	}

	e.sched.readInputs(ctx, p, inSlots, policy)
	if p.cfg.Shape == ShapeArrayOfInputs {
		for i := range inSlots {
			if inSlots[i].ok() {
				inSlots[i].values = []value.Value{document(inSlots[i].values)}
			}
		}
	}
	inputs := fold(inSlots)
	if policy == FastFail && !inputs.ok() {
		return outcome{failures: inputs.failures}
	}
	if ctx.Err() != nil {
		return inputs
	}

	encoded := inputs.values
	if p.cfg.Shape == ShapeArrayOfInputs {
		encoded = []value.Value{value.Array(inputs.values...)}
	}
	outSlots := e.sched.writeOutputs(ctx, p, encoded, policy)
	return inputs.combine(fold(outSlots))
}

// document collapses the values of one input into a single value
func document(values []value.Value) value.Value {
	if len(values) == 1 {
		return values[0]
	}
	return value.Array(values...)
}

func written(p *plan) []string {
	var out []string
	for _, u := range p.outputs {
		if u.written {
			out = append(out, u.spec.ID)
		}
	}
	return out
}
