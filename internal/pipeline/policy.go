package pipeline

import (
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
)

// ErrorPolicy controls how a run reacts to a failing unit
type ErrorPolicy int

const (
	// FastFail aborts the run on the first failure
	FastFail ErrorPolicy = iota
	// Accumulate attempts every unit and reports all failures together
	Accumulate
)

func (p ErrorPolicy) String() string {
	switch p {
	case FastFail:
		return "fast_fail"
	case Accumulate:
		return "accumulate"
	default:
		return "unknown"
	}
}

// ParseErrorPolicy accepts fast_fail (also fastfail, fast-fail) and
// accumulate. The empty string is FastFail.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fast_fail", "fastfail", "fast-fail":
		return FastFail, nil
	case "accumulate":
		return Accumulate, nil
	}
	return FastFail, errors.Newf(errors.ErrorTypeConfig, "invalid error_policy %q (want fast_fail or accumulate)", s)
}

// FileExistsPolicy controls how an output treats an existing destination
type FileExistsPolicy int

const (
	// Overwrite truncates the destination before writing
	Overwrite FileExistsPolicy = iota
	// Append writes after the existing content without reading it
	Append
)

func (p FileExistsPolicy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

// ParseFileExistsPolicy accepts overwrite and append. The empty string is
// Overwrite.
func ParseFileExistsPolicy(s string) (FileExistsPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return Overwrite, nil
	case "append":
		return Append, nil
	}
	return Overwrite, errors.Newf(errors.ErrorTypeConfig, "invalid file_exists_policy %q (want overwrite or append)", s)
}

// Phase names the step of a unit that failed
type Phase string

const (
	PhaseResolve Phase = "Resolve"
	PhaseOpen    Phase = "Open"
	PhaseRead    Phase = "Read"
	PhaseParse   Phase = "Parse"
	PhaseEncode  Phase = "Encode"
	PhaseWrite   Phase = "Write"
)
