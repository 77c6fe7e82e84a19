package pipeline

import (
	"io"

	"github.com/ajitpratap0/formatflow/pkg/compression"
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
	"github.com/ajitpratap0/formatflow/pkg/value"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Auto selects per-source auto-detection in a record stream
const Auto formats.ID = "auto"

// Records is a lazy single-pass sequence of values drawn from several
// inputs: every record of input k precedes every record of input k+1, and
// each input yields its documents in document order.
//
//	recs, err := pipeline.NewRecords(pipeline.Options{}, pipeline.Auto, nil, inputs...)
//	defer recs.Close()
//	for recs.Next() {
//	    fmt.Println(recs.Value())
//	}
//	if err := recs.Err(); err != nil { ... }
type Records struct {
	opts   Options
	log    *zap.Logger
	inputs []InputSpec
	codec  formats.Codec
	fixed  formats.ID
	order  []formats.ID

	next   int
	rc     io.ReadCloser
	dec    formats.Decoder
	id     string
	format formats.ID

	val  value.Value
	err  error
	done bool
}

// NewRecords builds a stream over inputs. format is a registered id, which
// decodes every input incrementally where the codec allows it, or Auto,
// which reads each input fully and detects its format against order
// (formats.DefaultOrder when empty). An input's own Format, when set,
// overrides format.
func NewRecords(opts Options, format formats.ID, order []formats.ID, inputs ...InputSpec) (*Records, error) {
	opts = opts.withDefaults()
	opts.Registry.Freeze()

	r := &Records{
		opts:   opts,
		log:    opts.Logger.With(zap.String("component", "records")),
		inputs: inputs,
		order:  order,
	}
	if len(r.order) == 0 {
		r.order = formats.DefaultOrder
	}
	if format != Auto && format != "" {
		codec, err := opts.Registry.Resolve(format)
		if err != nil {
			return nil, err
		}
		r.codec = codec
		r.fixed, _ = formats.ParseID(string(format))
	}
	return r, nil
}

// Next advances to the next record. It returns false at the end of the last
// input or on the first error; either way every held source is released.
func (r *Records) Next() bool {
	if r.done {
		return false
	}
	for {
		if r.dec == nil {
			if r.next >= len(r.inputs) {
				r.finish(nil)
				return false
			}
			in := r.inputs[r.next]
			r.next++
			if ue := r.open(in); ue != nil {
				r.finish(ue)
				return false
			}
		}

		v, err := r.dec.Next()
		if errors.Is(err, io.EOF) {
			if cerr := r.closeCurrent(); cerr != nil {
				r.finish(unitError(r.id, PhaseRead, cerr))
				return false
			}
			continue
		}
		if err != nil {
			phase := PhaseParse
			if errors.IsType(err, errors.ErrorTypeIO) {
				phase = PhaseRead
			}
			r.finish(unitError(r.id, phase, err))
			return false
		}

		r.val = v
		r.opts.Metrics.StreamRecord(string(r.format))
		return true
	}
}

// Value returns the current record
func (r *Records) Value() value.Value { return r.val }

// Err returns the error that ended the stream, if any
func (r *Records) Err() error { return r.err }

// Source returns the id of the input the current record came from
func (r *Records) Source() string { return r.id }

// Format returns the format decoding the current input
func (r *Records) Format() formats.ID { return r.format }

// Close releases the current source. The stream yields nothing afterwards.
func (r *Records) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	return r.closeCurrent()
}

func (r *Records) open(in InputSpec) *UnitError {
	r.id = in.ID
	alg, rest := inputCompression(in)

	rc, err := openSource(in.Source, r.opts.Stdin)
	if err != nil {
		return unitError(in.ID, PhaseOpen, err)
	}

	codec, format := r.codec, r.fixed
	if in.Format != "" {
		codec, err = r.opts.Registry.Resolve(in.Format)
		if err != nil {
			_ = rc.Close()
			return unitError(in.ID, PhaseResolve, err)
		}
		format, _ = formats.ParseID(string(in.Format))
	}

	if codec == nil {
		data, err := readSource(rc, alg)
		if err != nil {
			return unitError(in.ID, PhaseRead, err)
		}
		hint, _ := formatHint(r.opts.Registry, rest)
		det, err := r.opts.Registry.Detect(data, detectionOrder(hint, r.order))
		if err != nil {
			r.opts.Metrics.Detection("", false)
			return unitError(in.ID, PhaseParse, err)
		}
		r.opts.Metrics.Detection(string(det.Format), true)
		r.format = det.Format
		r.dec = &sliceDecoder{values: det.Values}
		r.log.Debug("stream source detected",
			zap.String("unit", in.ID),
			zap.String("format", string(det.Format)),
			zap.Int("documents", len(det.Values)))
		return nil
	}

	zr, err := compression.NewReader(alg, rc)
	if err != nil {
		_ = rc.Close()
		return unitError(in.ID, PhaseRead, errors.Wrap(err, errors.ErrorTypeIO, "open decompressor"))
	}
	r.rc = &stackedReadCloser{Reader: zr, closers: []io.Closer{zr, rc}}
	r.dec = formats.NewDecoder(codec, r.rc)
	r.format = format
	r.log.Debug("stream source opened",
		zap.String("unit", in.ID),
		zap.String("source", in.Source.String()),
		zap.String("format", string(format)))
	return nil
}

func (r *Records) closeCurrent() error {
	r.dec = nil
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}

func (r *Records) finish(err *UnitError) {
	cerr := r.closeCurrent()
	r.done = true
	if err != nil {
		r.err = err
		r.log.Warn("record stream failed", zap.Error(err))
		return
	}
	if cerr != nil {
		r.err = unitError(r.id, PhaseRead, cerr)
	}
}

type sliceDecoder struct {
	values []value.Value
}

func (d *sliceDecoder) Next() (value.Value, error) {
	if len(d.values) == 0 {
		return value.Value{}, io.EOF
	}
	v := d.values[0]
	d.values = d.values[1:]
	return v, nil
}

// stackedReadCloser closes a decompressor and then its underlying source
type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
