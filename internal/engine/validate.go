package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/me/slotwise/pkg/model"
)

// ValidateSchedule re-checks a finished schedule. It reports overlapping
// bookings beyond a resource's recorded capacity (1 when unrecorded), slots
// whose end is not after their start or whose duration disagrees with their
// span, and tasks placed twice. The schedule is not modified and repeated
// calls return the same report.
func ValidateSchedule(s *model.Schedule) model.ValidationReport {
	report := model.ValidationReport{Violations: []model.Violation{}}
	if s == nil {
		report.IsValid = true
		return report
	}

	seen := make(map[string]bool, len(s.Slots))
	for i := range s.Slots {
		slot := &s.Slots[i]
		if seen[slot.TaskID] {
			report.Violations = append(report.Violations, model.Violation{
				Type:        "duplicate",
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("task %s is scheduled more than once", slot.TaskID),
			})
		}
		seen[slot.TaskID] = true

		if !slot.End.After(slot.Start) {
			report.Violations = append(report.Violations, model.Violation{
				Type:        "invalid_slot",
				Severity:    model.SeverityHigh,
				Description: fmt.Sprintf("task %s ends at or before its start", slot.TaskID),
			})
			continue
		}
		if span := int(slot.End.Sub(slot.Start) / time.Minute); span != slot.ActualDuration {
			report.Violations = append(report.Violations, model.Violation{
				Type:     "invalid_slot",
				Severity: model.SeverityMedium,
				Description: fmt.Sprintf("task %s records %d minutes but spans %d",
					slot.TaskID, slot.ActualDuration, span),
			})
		}
	}

	report.Violations = append(report.Violations, overlapViolations(s)...)
	report.IsValid = len(report.Violations) == 0
	report.Score = ScoreSchedule(s)
	return report
}

// overlapViolations sweeps each resource's bookings in start order and
// reports every pair that pushes concurrent use past capacity.
func overlapViolations(s *model.Schedule) []model.Violation {
	byResource := make(map[string][]int)
	for i := range s.Slots {
		if !s.Slots[i].End.After(s.Slots[i].Start) {
			continue
		}
		for _, id := range s.Slots[i].ResourceIDs {
			byResource[id] = append(byResource[id], i)
		}
	}
	ids := make([]string, 0, len(byResource))
	for id := range byResource {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []model.Violation
	for _, id := range ids {
		idx := byResource[id]
		sort.SliceStable(idx, func(a, b int) bool {
			sa, sb := &s.Slots[idx[a]], &s.Slots[idx[b]]
			if !sa.Start.Equal(sb.Start) {
				return sa.Start.Before(sb.Start)
			}
			return sa.TaskID < sb.TaskID
		})

		capacity := s.Capacity(id)
		var active []int
		for _, k := range idx {
			cur := &s.Slots[k]
			kept := active[:0]
			for _, a := range active {
				if s.Slots[a].End.After(cur.Start) {
					kept = append(kept, a)
				}
			}
			active = kept
			if len(active) >= capacity {
				for _, a := range active {
					out = append(out, model.Violation{
						Type:     "overlap",
						Severity: model.SeverityHigh,
						Description: fmt.Sprintf("tasks %s and %s overlap on resource %s",
							s.Slots[a].TaskID, cur.TaskID, id),
					})
				}
			}
			active = append(active, k)
		}
	}
	return out
}
