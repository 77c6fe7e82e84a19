package formats

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/value"
	"go.uber.org/zap"
)

// Detection is the outcome of a successful probe
type Detection struct {
	Format ID
	Values []value.Value
	// Rejected lists the candidates tried before Format, in order
	Rejected []Attempt
}

// Attempt records why a candidate was rejected
type Attempt struct {
	Format ID
	Err    error
}

// NoFormatMatchedError reports that every candidate failed to decode
type NoFormatMatchedError struct {
	Attempts []Attempt
}

func (e *NoFormatMatchedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no format matched: no candidate formats"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Format, a.Err)
	}
	return "no format matched (" + strings.Join(parts, "; ") + ")"
}

// Unwrap exposes a structured error so errors.IsType works on the result
func (e *NoFormatMatchedError) Unwrap() error {
	return errors.New(errors.ErrorTypeNoFormatMatched, "auto-detection exhausted candidates")
}

// Detect decodes data with each candidate of order in turn and returns the
// first full parse success. Candidates that do not resolve count as failures.
func (r *Registry) Detect(data []byte, order []ID) (*Detection, error) {
	log := r.logger.With(zap.Int("bytes", len(data)))
	var attempts []Attempt
	for _, id := range order {
		codec, err := r.Resolve(id)
		if err == nil {
			var values []value.Value
			values, err = codec.Decode(data)
			if err == nil {
				log.Debug("format detected",
					zap.String("format", string(id)),
					zap.Int("candidates_rejected", len(attempts)),
					zap.Int("documents", len(values)))
				return &Detection{Format: id, Values: values, Rejected: attempts}, nil
			}
		}
		log.Debug("format candidate rejected", zap.String("format", string(id)), zap.Error(err))
		attempts = append(attempts, Attempt{Format: id, Err: err})
	}
	return nil, &NoFormatMatchedError{Attempts: attempts}
}

// Detect probes data against the given order using reg
func Detect(reg *Registry, data []byte, order []ID) (*Detection, error) {
	return reg.Detect(data, order)
}
