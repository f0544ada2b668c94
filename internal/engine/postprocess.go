package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/me/slotwise/pkg/model"
)

const violationBuffer = "buffer"

// annotateBuffers notes, on each slot, when it starts less than buffer after
// the previous slot on a shared resource ends. Slots are never moved and
// earlier buffer notes are replaced.
func annotateBuffers(s *model.Schedule, buffer time.Duration) {
	for i := range s.Slots {
		kept := s.Slots[i].ConstraintViolations[:0]
		for _, v := range s.Slots[i].ConstraintViolations {
			if v.Type != violationBuffer {
				kept = append(kept, v)
			}
		}
		s.Slots[i].ConstraintViolations = kept
	}
	if buffer <= 0 {
		return
	}

	byResource := make(map[string][]int)
	for i := range s.Slots {
		for _, id := range s.Slots[i].ResourceIDs {
			byResource[id] = append(byResource[id], i)
		}
	}
	ids := make([]string, 0, len(byResource))
	for id := range byResource {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		idx := byResource[id]
		sort.SliceStable(idx, func(a, b int) bool {
			return s.Slots[idx[a]].Start.Before(s.Slots[idx[b]].Start)
		})
		for k := 1; k < len(idx); k++ {
			prev, next := &s.Slots[idx[k-1]], &s.Slots[idx[k]]
			gap := next.Start.Sub(prev.End)
			if gap < 0 || gap >= buffer {
				continue
			}
			next.ConstraintViolations = append(next.ConstraintViolations, model.Violation{
				Type:     violationBuffer,
				Severity: model.SeverityLow,
				Description: fmt.Sprintf("task %s starts %d minutes after %s ends on %s (buffer %d)",
					next.TaskID, int(gap/time.Minute), prev.TaskID, id, int(buffer/time.Minute)),
			})
		}
	}
}
