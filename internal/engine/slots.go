package engine

import (
	"sort"
	"time"

	"github.com/me/slotwise/pkg/model"
)

const (
	queryGranularity = 15 * time.Minute
	defaultSlotCount = 10
	queryTaskID      = "slot-query"
)

// FindAvailableSlots lists free windows of the given duration (minutes) in
// which every resource is available and every hard constraint holds. Windows
// are ranked by the soft heuristic, best first and earliest on ties; at most
// count are returned (10 when count is not positive). Nothing is committed.
func (e *Engine) FindAvailableSlots(resources []model.Resource, duration int, constraints []model.Constraint, tr model.TimeRange, count int) ([]model.AvailableSlot, error) {
	if !tr.End.After(tr.Start) {
		return nil, newError(ErrInvalidTimeRange, "end %s is not after start %s",
			tr.End.Format(time.RFC3339), tr.Start.Format(time.RFC3339))
	}
	if duration <= 0 {
		return nil, newError(ErrInvalidTask, "non-positive duration %d", duration)
	}
	if count <= 0 {
		count = defaultSlotCount
	}

	loc := tr.Start.Location()
	index, err := BuildAvailabilityIndex(resources, loc)
	if err != nil {
		return nil, err
	}
	task := model.Task{
		ID:                queryTaskID,
		Duration:          duration,
		Priority:          5,
		RequiredResources: index.IDs(),
	}
	graph, err := BuildDependencyGraph([]model.Task{task})
	if err != nil {
		return nil, err
	}
	cs, err := compileConstraints(constraints, model.DefaultSoftConstraintWeights(), graph, tr, loc)
	if err != nil {
		return nil, err
	}
	r := &run{
		logger:      e.logger,
		clock:       e.clock,
		tr:          tr,
		loc:         loc,
		granularity: queryGranularity,
		tasks:       []model.Task{task},
		taskIdx:     map[string]int{task.ID: 0},
		graph:       graph,
		index:       index,
		constraints: cs,
	}

	var out []model.AvailableSlot
	for _, c := range generateCandidates(&r.tasks[0], tr, queryGranularity, loc) {
		ev := r.evaluate(&r.tasks[0], c.start, c.end, task.RequiredResources, nil)
		if !ev.feasible {
			continue
		}
		out = append(out, model.AvailableSlot{
			Start:    c.start,
			End:      c.end,
			Duration: duration,
			Score:    ev.score / maxCandidateScore,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Start.Before(out[j].Start)
	})
	if len(out) > count {
		out = out[:count]
	}
	e.logger.Debug("available slots found", "resources", len(resources), "duration", duration, "returned", len(out))
	return out, nil
}
