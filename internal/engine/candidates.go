package engine

import (
	"time"

	"github.com/me/slotwise/pkg/model"
)

// candidate is a generated window for one task before feasibility checks.
type candidate struct {
	start, end time.Time
	// prefWeight is the largest weight among preferred windows containing
	// the candidate, 0 when the task declares none.
	prefWeight float64
}

// generateCandidates walks the time range on the granularity grid of each
// local day and returns [t, t+duration) windows that respect the task's own
// earliest start, latest end, deadline and preferred windows.
func generateCandidates(t *model.Task, tr model.TimeRange, granularity time.Duration, loc *time.Location) []candidate {
	if granularity <= 0 {
		granularity = model.DefaultSlotGranularityMinutes * time.Minute
	}
	dur := t.DurationTime()
	lo, hi := flexWindow(t, tr)
	if dur <= 0 || lo.Add(dur).After(hi) {
		return nil
	}

	var out []candidate
	for start := alignUp(tr.Start, granularity, loc); ; start = start.Add(granularity) {
		end := start.Add(dur)
		if end.After(hi) {
			break
		}
		if start.Before(lo) {
			continue
		}
		weight, ok := preferredWeight(t, start, end)
		if !ok {
			continue
		}
		out = append(out, candidate{start: start, end: end, prefWeight: weight})
	}
	return out
}

// preferredWeight returns the best weight among the task's preferred windows
// that contain [start, end). Tasks without preferred windows accept any span.
func preferredWeight(t *model.Task, start, end time.Time) (float64, bool) {
	if len(t.PreferredWindows) == 0 {
		return 0, true
	}
	best, found := 0.0, false
	for _, w := range t.PreferredWindows {
		if w.Contains(start, end) {
			if !found || w.Weight > best {
				best = w.Weight
			}
			found = true
		}
	}
	return best, found
}

// withinTaskBounds reports whether [start, end) satisfies every filter the
// candidate generator applies.
func withinTaskBounds(t *model.Task, tr model.TimeRange, start, end time.Time) bool {
	lo, hi := flexWindow(t, tr)
	if start.Before(lo) || end.After(hi) {
		return false
	}
	_, ok := preferredWeight(t, start, end)
	return ok
}

// alignUp rounds t up to the next multiple of step counted from t's local
// midnight.
func alignUp(t time.Time, step time.Duration, loc *time.Location) time.Time {
	l := t.In(loc)
	midnight := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
	offset := t.Sub(midnight)
	if rem := offset % step; rem != 0 {
		return t.Add(step - rem)
	}
	return t
}
