package pipeline

import (
	"context"

	"github.com/ajitpratap0/formatflow/pkg/value"
)

// syncScheduler runs every step on the calling goroutine in declaration order
type syncScheduler struct{}

func (syncScheduler) name() string { return "sync" }

func (syncScheduler) readInputs(ctx context.Context, p *plan, slots []outcome, policy ErrorPolicy) {
	for i := range p.inputs {
		if !slots[i].ok() {
			continue
		}
		slots[i] = p.readInput(ctx, i)
		if !slots[i].ok() && policy == FastFail {
			return
		}
	}
}

func (syncScheduler) writeOutputs(ctx context.Context, p *plan, values []value.Value, policy ErrorPolicy) []outcome {
	slots := make([]outcome, len(p.outputs))
	for i := range p.outputs {
		slots[i] = p.encodeOutput(ctx, i, values)
		if slots[i].ok() {
			slots[i] = p.writeOutput(ctx, i)
		}
		if !slots[i].ok() && policy == FastFail {
			break
		}
	}
	return slots
}
