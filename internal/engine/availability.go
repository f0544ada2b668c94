package engine

import (
	"sort"
	"time"

	"github.com/me/slotwise/pkg/model"
)

const minutesPerDay = 24 * 60

// dayWindow is an availability window in minutes after local midnight.
type dayWindow struct {
	start, end int
}

// defaultWeek is Monday to Friday, 09:00 to 17:00.
func defaultWeek() [7][]dayWindow {
	var week [7][]dayWindow
	for d := time.Monday; d <= time.Friday; d++ {
		week[d] = []dayWindow{{start: 9 * 60, end: 17 * 60}}
	}
	return week
}

type resourceAvailability struct {
	capacity  int
	week      [7][]dayWindow
	blackouts []model.Interval // sorted by start, non-overlapping
}

// AvailabilityIndex answers "is this resource free for [start, end)" from
// weekly windows and blackout intervals.
type AvailabilityIndex struct {
	loc       *time.Location
	ids       []string
	resources map[string]*resourceAvailability
}

// BuildAvailabilityIndex indexes resources in loc. Resources without weekly
// windows get the default Monday to Friday 09:00-17:00 week.
func BuildAvailabilityIndex(resources []model.Resource, loc *time.Location) (*AvailabilityIndex, error) {
	if loc == nil {
		loc = time.UTC
	}
	ix := &AvailabilityIndex{
		loc:       loc,
		ids:       make([]string, 0, len(resources)),
		resources: make(map[string]*resourceAvailability, len(resources)),
	}

	for i := range resources {
		r := &resources[i]
		if r.ID == "" {
			return nil, newError(ErrInvalidResourceAvailability, "resource at index %d has no id", i)
		}
		if _, dup := ix.resources[r.ID]; dup {
			return nil, newError(ErrInvalidResourceAvailability, "duplicate resource %s", r.ID)
		}

		ra := &resourceAvailability{capacity: r.EffectiveCapacity()}
		if len(r.Availability) == 0 {
			ra.week = defaultWeek()
		} else {
			for _, w := range r.Availability {
				if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
					return nil, newError(ErrInvalidResourceAvailability,
						"resource %s: day of week %d out of range", r.ID, w.DayOfWeek)
				}
				start, err := model.ParseClock(w.Start)
				if err != nil {
					return nil, newError(ErrInvalidResourceAvailability, "resource %s: %v", r.ID, err)
				}
				end, err := model.ParseClock(w.End)
				if err != nil {
					return nil, newError(ErrInvalidResourceAvailability, "resource %s: %v", r.ID, err)
				}
				if end <= start {
					return nil, newError(ErrInvalidResourceAvailability,
						"resource %s: window %s-%s ends before it starts", r.ID, w.Start, w.End)
				}
				ra.week[w.DayOfWeek] = append(ra.week[w.DayOfWeek], dayWindow{start: start, end: end})
			}
		}

		ra.blackouts = append([]model.Interval(nil), r.Unavailable...)
		sort.SliceStable(ra.blackouts, func(a, b int) bool {
			return ra.blackouts[a].Start.Before(ra.blackouts[b].Start)
		})
		for j, b := range ra.blackouts {
			if !b.End.After(b.Start) {
				return nil, newError(ErrInvalidResourceAvailability,
					"resource %s: unavailable interval %s ends before it starts", r.ID, b.Start.Format(time.RFC3339))
			}
			if j > 0 && ra.blackouts[j-1].Overlaps(b) {
				return nil, newError(ErrInvalidResourceAvailability,
					"resource %s: unavailable intervals starting %s and %s overlap", r.ID,
					ra.blackouts[j-1].Start.Format(time.RFC3339), b.Start.Format(time.RFC3339))
			}
		}

		ix.ids = append(ix.ids, r.ID)
		ix.resources[r.ID] = ra
	}
	return ix, nil
}

// IDs returns the indexed resource IDs in input order.
func (ix *AvailabilityIndex) IDs() []string {
	return ix.ids
}

// Has reports whether the resource is known.
func (ix *AvailabilityIndex) Has(id string) bool {
	_, ok := ix.resources[id]
	return ok
}

// Capacity returns the concurrent capacity of a resource (1 if unknown).
func (ix *AvailabilityIndex) Capacity(id string) int {
	if ra, ok := ix.resources[id]; ok {
		return ra.capacity
	}
	return 1
}

// Capacities returns the capacity of every indexed resource.
func (ix *AvailabilityIndex) Capacities() map[string]int {
	out := make(map[string]int, len(ix.resources))
	for id, ra := range ix.resources {
		out[id] = ra.capacity
	}
	return out
}

// Available reports whether [start, end) fits inside one weekly window of the
// resource and touches no blackout. Unknown resources are never available.
func (ix *AvailabilityIndex) Available(id string, start, end time.Time) bool {
	ra, ok := ix.resources[id]
	if !ok {
		return false
	}

	day, startMin, endMin := localSpan(start, end, ix.loc)
	if endMin > minutesPerDay {
		return false
	}
	fits := false
	for _, w := range ra.week[day] {
		if w.start <= startMin && endMin <= w.end {
			fits = true
			break
		}
	}
	if !fits {
		return false
	}

	// First blackout that ends after start; blackouts are disjoint so their
	// ends are sorted too.
	i := sort.Search(len(ra.blackouts), func(i int) bool {
		return ra.blackouts[i].End.After(start)
	})
	return i == len(ra.blackouts) || !ra.blackouts[i].Start.Before(end)
}

// localSpan returns the weekday of start and the start and end offsets in
// minutes from start's local midnight. A span crossing midnight yields an
// end offset above minutesPerDay.
func localSpan(start, end time.Time, loc *time.Location) (time.Weekday, int, int) {
	s := start.In(loc)
	midnight := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	startMin := int(s.Sub(midnight) / time.Minute)
	endMin := int(end.Sub(midnight) / time.Minute)
	return s.Weekday(), startMin, endMin
}

// dayKey identifies the local calendar day of t.
func dayKey(t time.Time, loc *time.Location) int {
	l := t.In(loc)
	return l.Year()*1000 + l.YearDay()
}
