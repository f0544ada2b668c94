package engine

import (
	"math"
	"sort"
	"time"

	"github.com/me/slotwise/pkg/model"
)

// RankedTask is a task with its composite priority score.
type RankedTask struct {
	Task       *model.Task
	Score      float64
	Depth      int
	Complexity float64
}

// RankTasks orders tasks by descending composite score:
//
//	priority + deadlineBonus + 2*dependencyDepth + constraintComplexity
//
// Ties keep input order. The result is the construction sequence.
func RankTasks(tasks []model.Task, g *DependencyGraph, tr model.TimeRange, now time.Time) []RankedTask {
	depths := g.Depths()

	ranked := make([]RankedTask, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		depth := depths[t.ID]
		complexity := constraintComplexity(t, tr)
		ranked[i] = RankedTask{
			Task:       t,
			Depth:      depth,
			Complexity: complexity,
			Score:      float64(t.Priority) + deadlineBonus(t.Deadline, now) + 2*float64(depth) + complexity,
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	return ranked
}

// deadlineBonus rewards deadlines that are close to now.
func deadlineBonus(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0
	}
	until := deadline.Sub(now)
	switch {
	case until < 24*time.Hour:
		return 10
	case until < 3*24*time.Hour:
		return 5
	case until < 7*24*time.Hour:
		return 2
	default:
		return 0
	}
}

// constraintComplexity is 2 per required resource, 1 per preferred window
// and up to 5 for the width of the task's placement window in half hours.
func constraintComplexity(t *model.Task, tr model.TimeRange) float64 {
	lo, hi := flexWindow(t, tr)
	flex := 0.0
	if hi.After(lo) {
		flex = math.Min(5, hi.Sub(lo).Minutes()/30)
	}
	return 2*float64(len(t.RequiredResources)) + float64(len(t.PreferredWindows)) + flex
}

// flexWindow narrows the request range by the task's own bounds.
func flexWindow(t *model.Task, tr model.TimeRange) (time.Time, time.Time) {
	lo, hi := tr.Start, tr.End
	if t.EarliestStart != nil && t.EarliestStart.After(lo) {
		lo = *t.EarliestStart
	}
	if t.LatestEnd != nil && t.LatestEnd.Before(hi) {
		hi = *t.LatestEnd
	}
	if t.Deadline != nil && t.Deadline.Before(hi) {
		hi = *t.Deadline
	}
	return lo, hi
}
