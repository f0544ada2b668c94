package engine

import (
	"time"

	"github.com/me/slotwise/pkg/model"
)

// ScheduleMetrics derives summary statistics from a finished schedule.
func ScheduleMetrics(s *model.Schedule) model.ScheduleMetrics {
	if s == nil {
		return model.ScheduleMetrics{}
	}
	m := model.ScheduleMetrics{
		ScheduledTasks:    len(s.Slots),
		UnscheduledTasks:  len(s.UnscheduledTasks),
		OptimizationScore: s.OptimizationScore,
		ComputationTimeMs: s.Metadata.ComputationTimeMs,
		Algorithm:         s.Metadata.Algorithm,
	}
	m.TotalTasks = m.ScheduledTasks + m.UnscheduledTasks
	m.CompletionRate = completionRate(s)
	for i := range s.Slots {
		m.TotalDuration += s.Slots[i].ActualDuration
	}
	if rangeMinutes := s.EndDate.Sub(s.StartDate) / time.Minute; rangeMinutes > 0 {
		m.Utilization = float64(m.TotalDuration) / float64(rangeMinutes)
	}
	return m
}
