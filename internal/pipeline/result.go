package pipeline

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// UnitError is the failure of one input or output, tagged with the phase it
// failed in
type UnitError struct {
	ID    string
	Phase Phase
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Phase, e.ID, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

func unitError(id string, phase Phase, err error) *UnitError {
	return &UnitError{ID: id, Phase: phase, Err: err}
}

// AggregateError is the failure of a run. Under FastFail it holds exactly one
// error; under Accumulate it holds one per failing unit in unit order.
type AggregateError struct {
	Errors []*UnitError
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "I/O encountered %d error(s):", len(e.Errors))
	for i, ue := range e.Errors {
		fmt.Fprintf(&b, "\n  #%d: %s", i+1, ue.Error())
	}
	return b.String()
}

// Unwrap exposes each unit error to errors.Is and errors.As
func (e *AggregateError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ue := range e.Errors {
		out[i] = ue
	}
	return out
}

// First returns the first unit error
func (e *AggregateError) First() *UnitError {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// ForID returns the error reported for id, or nil
func (e *AggregateError) ForID(id string) *UnitError {
	for _, ue := range e.Errors {
		if ue.ID == id {
			return ue
		}
	}
	return nil
}

// IsUnknownFormat reports whether err carries an unresolvable format
func IsUnknownFormat(err error) bool {
	return errors.IsType(err, errors.ErrorTypeUnknownFormat)
}

// outcome is the result of one unit: decoded values or failures. The zero
// value is an empty success and combine is associative, so a run result is a
// fold over the unit slots in declaration order.
type outcome struct {
	values   []value.Value
	failures []*UnitError
}

func success(values []value.Value) outcome {
	return outcome{values: values}
}

func failure(ue *UnitError) outcome {
	return outcome{failures: []*UnitError{ue}}
}

func (o outcome) ok() bool { return len(o.failures) == 0 }

func (o outcome) combine(other outcome) outcome {
	return outcome{
		values:   append(append([]value.Value(nil), o.values...), other.values...),
		failures: append(append([]*UnitError(nil), o.failures...), other.failures...),
	}
}

// accumulate folds every slot
func accumulate(slots []outcome) outcome {
	var out outcome
	for _, s := range slots {
		out = out.combine(s)
	}
	return out
}

// shortCircuit folds slots up to and including the first failure
func shortCircuit(slots []outcome) outcome {
	var out outcome
	for _, s := range slots {
		out = out.combine(s)
		if !s.ok() {
			return out
		}
	}
	return out
}

func (o outcome) err() error {
	if o.ok() {
		return nil
	}
	return &AggregateError{Errors: o.failures}
}
