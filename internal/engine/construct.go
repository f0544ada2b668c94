package engine

import (
	"context"
	"math"
	"time"

	"github.com/me/slotwise/pkg/model"
	"golang.org/x/sync/errgroup"
)

const (
	maxCandidateScore  = 2.0
	resourceBonusMax   = 0.25
	earlinessBonusMax  = 0.25
	softBonusMax       = 0.5
	candidatesPerChunk = 64
)

// evaluation is the outcome of checking and scoring one candidate with one
// resource set.
type evaluation struct {
	feasible     bool
	score        float64
	resources    []string
	satisfaction float64
	violations   []model.Violation
}

// construct places tasks in rank order, each on its best feasible candidate.
// Tasks without a feasible candidate are reported as unscheduled.
func (r *run) construct(ctx context.Context) (*model.Schedule, error) {
	s := &model.Schedule{
		StartDate:        r.tr.Start,
		EndDate:          r.tr.End,
		Slots:            []model.ScheduledSlot{},
		UnscheduledTasks: []string{},
		Constraints:      r.constraints.ids(),
		ResourceCapacity: r.index.Capacities(),
	}

	for _, rt := range r.ranked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ti := r.taskIdx[rt.Task.ID]
		slot, ok := r.place(ti, s.Slots)
		if !ok {
			r.logger.Debug("task unscheduled", "task_id", rt.Task.ID, "rank_score", rt.Score)
			s.UnscheduledTasks = append(s.UnscheduledTasks, rt.Task.ID)
			continue
		}
		r.logger.Debug("task placed",
			"task_id", slot.TaskID,
			"start", slot.Start,
			"resources", slot.ResourceIDs,
			"score", slot.OptimizationScore)
		s.Slots = append(s.Slots, slot)
	}

	r.annotate(s)
	s.OptimizationScore = ScoreSchedule(s)
	return s, nil
}

// place finds the best feasible slot for task ti given the committed slots.
// Candidates are scored concurrently; the merge picks the highest score and,
// on ties, the lowest index, which is the earliest candidate in time.
func (r *run) place(ti int, placed []model.ScheduledSlot) (model.ScheduledSlot, bool) {
	t := &r.tasks[ti]
	cands := generateCandidates(t, r.tr, r.granularity, r.loc)
	choices := r.resourceChoices(ti)
	n := len(cands) * len(choices)
	if n == 0 {
		return model.ScheduledSlot{}, false
	}

	evalAt := func(i int) evaluation {
		c := cands[i/len(choices)]
		return r.evaluate(t, c.start, c.end, choices[i%len(choices)], placed)
	}

	results := make([]evaluation, n)
	if r.workers <= 1 || n <= candidatesPerChunk {
		for i := range results {
			results[i] = evalAt(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(r.workers)
		for lo := 0; lo < n; lo += candidatesPerChunk {
			hi := min(lo+candidatesPerChunk, n)
			g.Go(func() error {
				for i := lo; i < hi; i++ {
					results[i] = evalAt(i)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	best := -1
	for i := range results {
		if results[i].feasible && (best < 0 || results[i].score > results[best].score) {
			best = i
		}
	}
	if best < 0 {
		return model.ScheduledSlot{}, false
	}
	c := cands[best/len(choices)]
	return newSlot(t, c.start, c.end, results[best]), true
}

// evaluate checks one proposal and scores it when feasible.
func (r *run) evaluate(t *model.Task, start, end time.Time, resources []string, placed []model.ScheduledSlot) evaluation {
	sc := &slotContext{task: t, start: start, end: end, resources: resources, others: placed}
	if !r.feasible(sc) {
		return evaluation{}
	}
	return r.score(sc)
}

// score computes the soft heuristic of a placement:
//
//	1.0 + preferred window weight + resource bonus + earliness bonus + soft bonus
//
// capped at 2.0.
func (r *run) score(sc *slotContext) evaluation {
	pref, _ := preferredWeight(sc.task, sc.start, sc.end)
	sat, violations := r.constraints.softEval(sc)
	total := 1.0 + pref +
		r.resourceBonus(sc) +
		r.earlinessBonus(sc.start) +
		softBonusMax*sat
	return evaluation{
		feasible:     true,
		score:        math.Min(total, maxCandidateScore),
		resources:    sc.resources,
		satisfaction: sat,
		violations:   violations,
	}
}

// resourceBonus favours the least loaded non-required resource.
func (r *run) resourceBonus(sc *slotContext) float64 {
	var totalLoad int
	for i := range sc.others {
		totalLoad += sc.others[i].ActualDuration
	}
	best := 0.0
	for _, id := range sc.resources {
		if sc.task.Requires(id) {
			continue
		}
		share := 0.0
		if totalLoad > 0 {
			load := 0
			for i := range sc.others {
				if sc.others[i].UsesResource(id) {
					load += sc.others[i].ActualDuration
				}
			}
			share = float64(load) / float64(totalLoad)
		}
		best = math.Max(best, resourceBonusMax*(1-share))
	}
	return best
}

// earlinessBonus favours slots near the start of the range.
func (r *run) earlinessBonus(start time.Time) float64 {
	span := r.tr.End.Sub(r.tr.Start)
	if span <= 0 {
		return 0
	}
	frac := float64(start.Sub(r.tr.Start)) / float64(span)
	return earlinessBonusMax * (1 - math.Min(math.Max(frac, 0), 1))
}

func newSlot(t *model.Task, start, end time.Time, ev evaluation) model.ScheduledSlot {
	violations := ev.violations
	if violations == nil {
		violations = []model.Violation{}
	}
	return model.ScheduledSlot{
		TaskID:               t.ID,
		ResourceIDs:          append([]string{}, ev.resources...),
		Start:                start,
		End:                  end,
		ActualDuration:       int(end.Sub(start) / time.Minute),
		Confidence:           ev.satisfaction,
		ConstraintViolations: violations,
		OptimizationScore:    ev.score / maxCandidateScore,
	}
}

// annotate recomputes soft violations, confidence and per-slot scores of
// every slot against the complete schedule.
func (r *run) annotate(s *model.Schedule) {
	for i := range s.Slots {
		slot := &s.Slots[i]
		ti, ok := r.taskIdx[slot.TaskID]
		if !ok {
			continue
		}
		sc := &slotContext{
			task:      &r.tasks[ti],
			start:     slot.Start,
			end:       slot.End,
			resources: slot.ResourceIDs,
			others:    without(s.Slots, i),
		}
		ev := r.score(sc)
		*slot = newSlot(sc.task, slot.Start, slot.End, ev)
	}
}

// without returns the slots other than the ones at the given indexes.
func without(slots []model.ScheduledSlot, skip ...int) []model.ScheduledSlot {
	out := make([]model.ScheduledSlot, 0, len(slots))
	for i := range slots {
		skipped := false
		for _, k := range skip {
			if i == k {
				skipped = true
				break
			}
		}
		if !skipped {
			out = append(out, slots[i])
		}
	}
	return out
}
