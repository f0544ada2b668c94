package model

import (
	"maps"
	"slices"
	"time"
)

// Violation describes a constraint that a slot or schedule breaks.
type Violation struct {
	Type         string `json:"type" yaml:"type"`
	Severity     string `json:"severity" yaml:"severity"` // low, medium, high
	Description  string `json:"description" yaml:"description"`
	ConstraintID string `json:"constraint_id,omitempty" yaml:"constraint_id,omitempty"`
}

// Severity levels used in Violation.Severity.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ScheduledSlot is the committed placement of one task.
type ScheduledSlot struct {
	TaskID               string      `json:"task_id" yaml:"task_id"`
	ResourceIDs          []string    `json:"resource_ids" yaml:"resource_ids"`
	Start                time.Time   `json:"start" yaml:"start"`
	End                  time.Time   `json:"end" yaml:"end"`
	ActualDuration       int         `json:"actual_duration" yaml:"actual_duration"` // minutes
	Confidence           float64     `json:"confidence" yaml:"confidence"`
	ConstraintViolations []Violation `json:"constraint_violations" yaml:"constraint_violations"`
	OptimizationScore    float64     `json:"optimization_score" yaml:"optimization_score"`
}

// UsesResource reports whether the slot books resourceID.
func (s *ScheduledSlot) UsesResource(resourceID string) bool {
	for _, id := range s.ResourceIDs {
		if id == resourceID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the slot.
func (s ScheduledSlot) Clone() ScheduledSlot {
	s.ResourceIDs = slices.Clone(s.ResourceIDs)
	s.ConstraintViolations = slices.Clone(s.ConstraintViolations)
	return s
}

// ScheduleConstraints lists the IDs of the constraints a schedule was built with.
type ScheduleConstraints struct {
	Hard []string `json:"hard" yaml:"hard"`
	Soft []string `json:"soft" yaml:"soft"`
}

// ScheduleMetadata records how a schedule was produced.
type ScheduleMetadata struct {
	GeneratedAt         time.Time `json:"generated_at" yaml:"generated_at"`
	Algorithm           Algorithm `json:"algorithm" yaml:"algorithm"`
	ComputationTimeMs   int64     `json:"computation_time_ms" yaml:"computation_time_ms"`
	IterationsPerformed int       `json:"iterations_performed" yaml:"iterations_performed"`
	Seed                uint64    `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Schedule is the result of one scheduling run.
type Schedule struct {
	ID                string              `json:"id" yaml:"id"`
	StartDate         time.Time           `json:"start_date" yaml:"start_date"`
	EndDate           time.Time           `json:"end_date" yaml:"end_date"`
	Slots             []ScheduledSlot     `json:"slots" yaml:"slots"`
	UnscheduledTasks  []string            `json:"unscheduled_tasks" yaml:"unscheduled_tasks"`
	OptimizationScore float64             `json:"optimization_score" yaml:"optimization_score"`
	Constraints       ScheduleConstraints `json:"constraints" yaml:"constraints"`

	// ResourceCapacity holds the concurrent capacity of every resource the
	// schedule was built against, so the schedule can be validated on its own.
	ResourceCapacity map[string]int `json:"resource_capacity,omitempty" yaml:"resource_capacity,omitempty"`

	Metadata ScheduleMetadata `json:"metadata" yaml:"metadata"`
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.Slots = make([]ScheduledSlot, len(s.Slots))
	for i, slot := range s.Slots {
		c.Slots[i] = slot.Clone()
	}
	c.UnscheduledTasks = slices.Clone(s.UnscheduledTasks)
	c.Constraints.Hard = slices.Clone(s.Constraints.Hard)
	c.Constraints.Soft = slices.Clone(s.Constraints.Soft)
	c.ResourceCapacity = maps.Clone(s.ResourceCapacity)
	return &c
}

// Capacity returns the recorded capacity of a resource, defaulting to 1.
func (s *Schedule) Capacity(resourceID string) int {
	if c, ok := s.ResourceCapacity[resourceID]; ok && c > 0 {
		return c
	}
	return 1
}

// SlotFor returns the slot of a task, or nil if the task is unscheduled.
func (s *Schedule) SlotFor(taskID string) *ScheduledSlot {
	for i := range s.Slots {
		if s.Slots[i].TaskID == taskID {
			return &s.Slots[i]
		}
	}
	return nil
}

// ValidationReport is the result of re-checking a finished schedule.
type ValidationReport struct {
	IsValid    bool        `json:"is_valid"`
	Violations []Violation `json:"violations"`
	Score      float64     `json:"score"`
}

// ScheduleMetrics summarises a finished schedule.
type ScheduleMetrics struct {
	TotalTasks        int       `json:"total_tasks"`
	ScheduledTasks    int       `json:"scheduled_tasks"`
	UnscheduledTasks  int       `json:"unscheduled_tasks"`
	CompletionRate    float64   `json:"completion_rate"`
	TotalDuration     int       `json:"total_duration"` // minutes
	Utilization       float64   `json:"utilization"`
	OptimizationScore float64   `json:"optimization_score"`
	ComputationTimeMs int64     `json:"computation_time_ms"`
	Algorithm         Algorithm `json:"algorithm"`
}

// AvailableSlot is a free window returned by slot queries.
type AvailableSlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration"` // minutes
	Score    float64   `json:"score"`
}
