package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/ajitpratap0/formatflow/pkg/value"
	"golang.org/x/sync/errgroup"
)

// asyncScheduler overlaps unit steps on a bounded errgroup. Unit steps never
// return errors to the group: each one records its outcome in its own slot,
// so one failing unit never cancels another and the folded result matches
// the sync scheduler.
type asyncScheduler struct {
	limit int
}

func (asyncScheduler) name() string { return "async" }

func (s asyncScheduler) group() *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(s.limit)
	return g
}

func (s asyncScheduler) readInputs(ctx context.Context, p *plan, slots []outcome, policy ErrorPolicy) {
	// firstFailed is the lowest input index that failed so far. Under
	// FastFail a queued read behind it is skipped, since the fold reports
	// that failure alone.
	var firstFailed atomic.Int64
	firstFailed.Store(int64(len(p.inputs)))

	g := s.group()
	for i := range p.inputs {
		if !slots[i].ok() {
			continue
		}
		i := i
		g.Go(func() error {
			if policy == FastFail && firstFailed.Load() < int64(i) {
				return nil
			}
			slots[i] = p.readInput(ctx, i)
			if !slots[i].ok() {
				lowerFailure(&firstFailed, int64(i))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func lowerFailure(first *atomic.Int64, i int64) {
	for {
		cur := first.Load()
		if i >= cur || first.CompareAndSwap(cur, i) {
			return
		}
	}
}

func (s asyncScheduler) writeOutputs(ctx context.Context, p *plan, values []value.Value, policy ErrorPolicy) []outcome {
	slots := make([]outcome, len(p.outputs))

	g := s.group()
	for i := range p.outputs {
		i := i
		g.Go(func() error {
			slots[i] = p.encodeOutput(ctx, i, values)
			return nil
		})
	}
	_ = g.Wait()

	if policy == FastFail {
		// the first failing output stops every later write, as in sync
		for i := range p.outputs {
			if slots[i].ok() {
				slots[i] = p.writeOutput(ctx, i)
			}
			if !slots[i].ok() {
				return slots[:i+1]
			}
		}
		return slots
	}

	// Outputs sharing a destination write in declaration order; distinct
	// destinations write concurrently.
	g = s.group()
	for _, members := range sinkGroups(p.outputs) {
		members := members
		g.Go(func() error {
			for _, i := range members {
				if slots[i].ok() {
					slots[i] = p.writeOutput(ctx, i)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// sinkGroups partitions output indexes by destination, keeping declaration
// order inside each group
func sinkGroups(outputs []*outputUnit) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for i, u := range outputs {
		key := u.spec.Sink.key()
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
