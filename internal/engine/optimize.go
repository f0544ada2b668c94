package engine

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/me/slotwise/pkg/model"
)

const (
	initialTemperature = 100.0
	coolingRate        = 0.95
	maxShift           = 2 * time.Hour
)

// optimize anneals the schedule for up to iterations steps and returns the
// best schedule seen together with the number of iterations performed. It
// stops early when ctx is cancelled or the time budget is spent; the result
// is never worse than the input.
func (r *run) optimize(ctx context.Context, initial *model.Schedule, iterations int) (*model.Schedule, int) {
	current, best := initial, initial
	temperature := initialTemperature
	performed := 0

	for performed < iterations {
		if ctx.Err() != nil || r.budgetExceeded() {
			r.logger.Debug("optimizer stopped early", "iterations", performed, "of", iterations)
			break
		}
		performed++

		trial := current.Clone()
		if r.perturb(trial) {
			r.annotate(trial)
			trial.OptimizationScore = ScoreSchedule(trial)
			delta := trial.OptimizationScore - current.OptimizationScore
			if delta >= 0 || r.rng.Float64() < math.Exp(delta/temperature) {
				current = trial
				if current.OptimizationScore > best.OptimizationScore {
					best = current
				}
			}
		}
		temperature *= coolingRate
	}

	r.logger.Debug("optimization complete",
		"iterations", performed,
		"initial_score", initial.OptimizationScore,
		"best_score", best.OptimizationScore)
	return best, performed
}

// perturb applies one random move in place and reports whether it produced
// a feasible neighbour.
func (r *run) perturb(s *model.Schedule) bool {
	if len(s.Slots) == 0 {
		return false
	}
	switch r.rng.IntN(3) {
	case 0:
		return r.swapMove(s)
	case 1:
		return r.shiftMove(s)
	default:
		return r.reassignMove(s)
	}
}

// swapMove exchanges the start times of two slots.
func (r *run) swapMove(s *model.Schedule) bool {
	n := len(s.Slots)
	if n < 2 {
		return false
	}
	i := r.rng.IntN(n)
	j := r.rng.IntN(n - 1)
	if j >= i {
		j++
	}
	a, b := s.Slots[i], s.Slots[j]
	ta, tb := r.taskFor(a.TaskID), r.taskFor(b.TaskID)
	if ta == nil || tb == nil {
		return false
	}

	aStart, aEnd := b.Start, b.Start.Add(ta.DurationTime())
	bStart, bEnd := a.Start, a.Start.Add(tb.DurationTime())
	if !r.placeable(ta, aStart, aEnd) || !r.placeable(tb, bStart, bEnd) {
		return false
	}

	rest := without(s.Slots, i, j)
	if !r.feasible(&slotContext{task: ta, start: aStart, end: aEnd, resources: a.ResourceIDs, others: rest}) {
		return false
	}
	movedA := a
	movedA.Start, movedA.End = aStart, aEnd
	if !r.feasible(&slotContext{task: tb, start: bStart, end: bEnd, resources: b.ResourceIDs, others: append(rest, movedA)}) {
		return false
	}

	s.Slots[i].Start, s.Slots[i].End = aStart, aEnd
	s.Slots[j].Start, s.Slots[j].End = bStart, bEnd
	return true
}

// shiftMove moves one slot by a grid-aligned offset of at most two hours.
func (r *run) shiftMove(s *model.Schedule) bool {
	i := r.rng.IntN(len(s.Slots))
	slot := s.Slots[i]
	t := r.taskFor(slot.TaskID)
	if t == nil {
		return false
	}

	steps := max(int(maxShift/r.granularity), 1)
	k := r.rng.IntN(2*steps+1) - steps
	if k == 0 {
		return false
	}
	start := slot.Start.Add(time.Duration(k) * r.granularity)
	end := start.Add(t.DurationTime())
	if !r.placeable(t, start, end) {
		return false
	}
	sc := &slotContext{task: t, start: start, end: end, resources: slot.ResourceIDs, others: without(s.Slots, i)}
	if !r.feasible(sc) {
		return false
	}

	s.Slots[i].Start, s.Slots[i].End = start, end
	return true
}

// reassignMove swaps one non-required resource of a slot for an unused one
// from the task's eligible pool.
func (r *run) reassignMove(s *model.Schedule) bool {
	i := r.rng.IntN(len(s.Slots))
	slot := s.Slots[i]
	ti, ok := r.taskIdx[slot.TaskID]
	if !ok {
		return false
	}
	t := &r.tasks[ti]

	var replaceable []string
	for _, id := range slot.ResourceIDs {
		if !t.Requires(id) {
			replaceable = append(replaceable, id)
		}
	}
	var unused []string
	for _, id := range r.eligiblePool(ti) {
		if !slices.Contains(slot.ResourceIDs, id) {
			unused = append(unused, id)
		}
	}
	if len(replaceable) == 0 || len(unused) == 0 {
		return false
	}

	old := replaceable[r.rng.IntN(len(replaceable))]
	repl := unused[r.rng.IntN(len(unused))]
	resources := make([]string, len(slot.ResourceIDs))
	for k, id := range slot.ResourceIDs {
		if id == old {
			id = repl
		}
		resources[k] = id
	}

	sc := &slotContext{task: t, start: slot.Start, end: slot.End, resources: resources, others: without(s.Slots, i)}
	if !r.feasible(sc) {
		return false
	}
	s.Slots[i].ResourceIDs = resources
	return true
}

// placeable reports whether [start, end) lies inside the range and the
// task's own bounds.
func (r *run) placeable(t *model.Task, start, end time.Time) bool {
	if start.Before(r.tr.Start) || end.After(r.tr.End) {
		return false
	}
	return withinTaskBounds(t, r.tr, start, end)
}

func (r *run) taskFor(id string) *model.Task {
	ti, ok := r.taskIdx[id]
	if !ok {
		return nil
	}
	return &r.tasks[ti]
}
