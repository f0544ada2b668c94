package engine

import (
	"math"
	"sort"
	"time"

	"github.com/me/slotwise/pkg/model"
)

// Score weights.
const (
	weightCompletion   = 0.4
	weightSatisfaction = 0.3
	weightBalance      = 0.2
	weightCompactness  = 0.1
)

// ScoreSchedule computes the normalized quality of a schedule:
//
//	0.4×completion + 0.3×satisfaction + 0.2×balance + 0.1×compactness
//
// Every term lies in [0,1], so the score does too.
func ScoreSchedule(s *model.Schedule) float64 {
	if s == nil {
		return 0
	}
	score := weightCompletion*completionRate(s) +
		weightSatisfaction*constraintSatisfaction(s) +
		weightBalance*resourceBalance(s) +
		weightCompactness*compactness(s)
	return math.Min(math.Max(score, 0), 1)
}

// completionRate is scheduled / (scheduled + unscheduled), 1 for no tasks.
func completionRate(s *model.Schedule) float64 {
	total := len(s.Slots) + len(s.UnscheduledTasks)
	if total == 0 {
		return 1
	}
	return float64(len(s.Slots)) / float64(total)
}

// constraintSatisfaction is the share of slots without constraint
// violations. Violations not tied to a constraint record, such as buffer
// notes, are ignored.
func constraintSatisfaction(s *model.Schedule) float64 {
	if len(s.Slots) == 0 {
		return 1
	}
	violating := 0
	for i := range s.Slots {
		for _, v := range s.Slots[i].ConstraintViolations {
			if v.ConstraintID != "" {
				violating++
				break
			}
		}
	}
	return float64(len(s.Slots)-violating) / float64(len(s.Slots))
}

// resourceBalance is 1 − min(1, coefficient of variation) of booked minutes
// per resource. Known resources with no bookings count as zero load.
func resourceBalance(s *model.Schedule) float64 {
	load := make(map[string]float64, len(s.ResourceCapacity))
	for id := range s.ResourceCapacity {
		load[id] = 0
	}
	for i := range s.Slots {
		for _, id := range s.Slots[i].ResourceIDs {
			load[id] += float64(s.Slots[i].ActualDuration)
		}
	}
	if len(load) < 2 {
		return 1
	}

	var sum float64
	for _, v := range load {
		sum += v
	}
	mean := sum / float64(len(load))
	if mean == 0 {
		return 1
	}
	var variance float64
	for _, v := range load {
		variance += (v - mean) * (v - mean)
	}
	cv := math.Sqrt(variance/float64(len(load))) / mean
	return 1 - math.Min(1, cv)
}

// compactness is 1/(1+h) where h is the average gap in hours between
// consecutive slots of the same resource on the same day.
func compactness(s *model.Schedule) float64 {
	loc := s.StartDate.Location()
	byResource := make(map[string][]*model.ScheduledSlot)
	for i := range s.Slots {
		for _, id := range s.Slots[i].ResourceIDs {
			byResource[id] = append(byResource[id], &s.Slots[i])
		}
	}

	var gaps time.Duration
	n := 0
	for _, slots := range byResource {
		sort.Slice(slots, func(a, b int) bool { return slots[a].Start.Before(slots[b].Start) })
		for k := 1; k < len(slots); k++ {
			prev, next := slots[k-1], slots[k]
			if dayKey(prev.Start, loc) != dayKey(next.Start, loc) {
				continue
			}
			if gap := next.Start.Sub(prev.End); gap > 0 {
				gaps += gap
			}
			n++
		}
	}
	if n == 0 {
		return 1
	}
	avgHours := gaps.Hours() / float64(n)
	return 1 / (1 + avgHours)
}
