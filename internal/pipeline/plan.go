package pipeline

import (
	"context"
	"time"

	"github.com/ajitpratap0/formatflow/pkg/compression"
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
	"github.com/ajitpratap0/formatflow/pkg/metrics"
	"github.com/ajitpratap0/formatflow/pkg/observability"
	"github.com/ajitpratap0/formatflow/pkg/value"
	"go.uber.org/zap"
)

// plan is the state of one run. The unit steps below are the only place
// that touches sources, codecs and sinks; schedulers decide only when each
// step runs and write results into per-unit slots.
type plan struct {
	cfg     *Config
	reg     *formats.Registry
	env     *Options
	log     *zap.Logger
	metrics *metrics.Collector
	order   []formats.ID

	inputs  []*inputUnit
	outputs []*outputUnit
}

type inputUnit struct {
	spec   InputSpec
	codec  formats.Codec
	alg    compression.Algorithm
	hint   formats.ID
	format formats.ID
	tracer *observability.UnitTracer
}

type outputUnit struct {
	spec    OutputSpec
	codec   formats.Codec
	alg     compression.Algorithm
	format  formats.ID
	payload []byte
	written bool
	tracer  *observability.UnitTracer
}

func newPlan(e *engine, cfg *Config, log *zap.Logger) *plan {
	p := &plan{
		cfg:     cfg,
		reg:     e.reg,
		env:     &e.opts,
		log:     log,
		metrics: e.opts.Metrics,
		order:   cfg.order(),
		inputs:  make([]*inputUnit, len(cfg.Inputs)),
		outputs: make([]*outputUnit, len(cfg.Outputs)),
	}
	for i, in := range cfg.Inputs {
		p.inputs[i] = &inputUnit{spec: in, tracer: observability.NewUnitTracer("input", in.ID)}
	}
	for i, out := range cfg.Outputs {
		p.outputs[i] = &outputUnit{spec: out, tracer: observability.NewUnitTracer("output", out.ID)}
	}
	return p
}

// step runs fn as the phase of a unit, with a span and a duration sample
func (p *plan) step(ctx context.Context, tracer *observability.UnitTracer, phase Phase, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := tracer.TraceStep(ctx, string(phase), fn)
	p.metrics.Step(string(phase), time.Since(start))
	return err
}

func (p *plan) fail(id string, phase Phase, err error) outcome {
	p.metrics.UnitFailed(string(phase))
	p.log.Warn("unit failed",
		zap.String("unit", id),
		zap.String("phase", string(phase)),
		zap.Error(err))
	return failure(unitError(id, phase, err))
}

// resolveInputs resolves every declared input format up front. Undeclared
// formats are detected at parse time; the file extension, when it names a
// registered format, becomes the first candidate.
func (p *plan) resolveInputs() []outcome {
	slots := make([]outcome, len(p.inputs))
	for i, u := range p.inputs {
		var rest string
		u.alg, rest = inputCompression(u.spec)
		if u.spec.Format == "" {
			if hint, ok := formatHint(p.reg, rest); ok {
				u.hint = hint
			}
			continue
		}
		codec, err := p.reg.Resolve(u.spec.Format)
		if err != nil {
			slots[i] = p.fail(u.spec.ID, PhaseResolve, err)
			continue
		}
		u.codec = codec
		u.format, _ = formats.ParseID(string(u.spec.Format))
	}
	return slots
}

// readInput opens, reads and decodes input i
func (p *plan) readInput(ctx context.Context, i int) outcome {
	u := p.inputs[i]
	id := u.spec.ID
	if err := ctx.Err(); err != nil {
		return failure(unitError(id, PhaseOpen, err))
	}

	var data []byte
	var readErr error
	err := p.step(ctx, u.tracer, PhaseOpen, func(context.Context) error {
		rc, err := openSource(u.spec.Source, p.env.Stdin)
		if err != nil {
			return err
		}
		data, readErr = readSource(rc, u.alg)
		return nil
	})
	if err != nil {
		return p.fail(id, PhaseOpen, err)
	}
	if readErr != nil {
		return p.fail(id, PhaseRead, readErr)
	}

	var values []value.Value
	err = p.step(ctx, u.tracer, PhaseParse, func(context.Context) error {
		if u.codec != nil {
			var err error
			values, err = u.codec.Decode(data)
			return err
		}
		det, err := p.reg.Detect(data, detectionOrder(u.hint, p.order))
		if err != nil {
			p.metrics.Detection("", false)
			return err
		}
		p.metrics.Detection(string(det.Format), true)
		u.format = det.Format
		values = det.Values
		return nil
	})
	if err != nil {
		return p.fail(id, PhaseParse, err)
	}

	p.metrics.BytesRead(string(u.format), len(data))
	p.metrics.Documents("in", string(u.format), len(values))
	p.log.Debug("input decoded",
		zap.String("unit", id),
		zap.String("source", u.spec.Source.String()),
		zap.String("format", string(u.format)),
		zap.Int("bytes", len(data)),
		zap.Int("documents", len(values)))
	return success(values)
}

// encodeOutput resolves the codec of output i and encodes values into its
// payload, compressed when the output asks for it
func (p *plan) encodeOutput(ctx context.Context, i int, values []value.Value) outcome {
	u := p.outputs[i]
	id := u.spec.ID
	if err := ctx.Err(); err != nil {
		return failure(unitError(id, PhaseEncode, err))
	}

	format, alg := p.outputFormat(u.spec)
	u.alg = alg
	codec, err := p.reg.Resolve(format)
	if err != nil {
		return p.fail(id, PhaseResolve, err)
	}
	u.codec = codec
	u.format, _ = formats.ParseID(string(format))

	err = p.step(ctx, u.tracer, PhaseEncode, func(context.Context) error {
		payload, err := codec.Encode(values)
		if err != nil {
			return err
		}
		if alg != compression.None {
			payload, err = compression.Compress(alg, compression.Default, payload)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeEncode, "compress output")
			}
		}
		u.payload = payload
		return nil
	})
	if err != nil {
		return p.fail(id, PhaseEncode, err)
	}
	p.metrics.Documents("out", string(u.format), len(values))
	return outcome{}
}

// writeOutput hands the encoded payload of output i to its sink
func (p *plan) writeOutput(ctx context.Context, i int) outcome {
	u := p.outputs[i]
	id := u.spec.ID
	if err := ctx.Err(); err != nil {
		return failure(unitError(id, PhaseWrite, err))
	}

	var writeErr error
	err := p.step(ctx, u.tracer, PhaseOpen, func(context.Context) error {
		w, err := openSink(u.spec.Sink, u.spec.FileExists, p.env.Stdout, p.env.Stderr)
		if err != nil {
			return err
		}
		writeErr = writeSink(w, u.payload)
		return nil
	})
	if err != nil {
		return p.fail(id, PhaseOpen, err)
	}
	if writeErr != nil {
		return p.fail(id, PhaseWrite, writeErr)
	}

	u.written = true
	p.metrics.BytesWritten(string(u.format), len(u.payload))
	p.log.Debug("output written",
		zap.String("unit", id),
		zap.String("sink", u.spec.Sink.String()),
		zap.String("format", string(u.format)),
		zap.String("policy", u.spec.FileExists.String()),
		zap.Int("bytes", len(u.payload)))
	return outcome{}
}

// outputFormat picks the declared format, else the one named by the file
// extension, else JSON
func (p *plan) outputFormat(spec OutputSpec) (formats.ID, compression.Algorithm) {
	alg, _ := compression.ParseAlgorithm(string(spec.Compression))
	rest := ""
	if spec.Sink.Kind == SinkFile {
		inferred, stripped := compression.FromPath(spec.Sink.Path)
		rest = stripped
		if alg == compression.None {
			alg = inferred
		} else if inferred != alg {
			rest = spec.Sink.Path
		}
	}
	if spec.Format != "" {
		return spec.Format, alg
	}
	if hint, ok := formatHint(p.reg, rest); ok {
		return hint, alg
	}
	return formats.JSON, alg
}

// inputFormats maps each input id to the format that decoded it
func (p *plan) inputFormats() map[string]formats.ID {
	out := make(map[string]formats.ID, len(p.inputs))
	for _, u := range p.inputs {
		if u.format != "" {
			out[u.spec.ID] = u.format
		}
	}
	return out
}
