package model

import (
	"time"
)

// DependencyKind describes how a task relates to the task it names.
type DependencyKind string

const (
	// DependencyAfter means the owning task must start after the named task ends.
	DependencyAfter DependencyKind = "after"
	// DependencyBefore means the named task must start after the owning task ends.
	DependencyBefore DependencyKind = "before"
	// DependencySimultaneous is accepted but imposes no ordering.
	DependencySimultaneous DependencyKind = "simultaneous"
)

// Dependency links a task to another task in the same request.
type Dependency struct {
	TaskID string         `json:"task_id" yaml:"task_id"`
	Kind   DependencyKind `json:"kind" yaml:"kind"`
}

// PreferredWindow is a time span the task would like to be placed in.
// Weight is in [0,1] and adds to the candidate score when the slot fits.
type PreferredWindow struct {
	Start  time.Time `json:"start" yaml:"start"`
	End    time.Time `json:"end" yaml:"end"`
	Weight float64   `json:"weight" yaml:"weight"`
}

// Contains reports whether [start, end) lies fully inside the window.
func (w PreferredWindow) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// Task is a unit of work to be placed on the calendar.
// Tasks are supplied by the caller and never mutated by the engine.
type Task struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Duration int    `json:"duration" yaml:"duration"` // minutes, > 0
	Priority int    `json:"priority" yaml:"priority"` // 1-10

	Deadline      *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	EarliestStart *time.Time `json:"earliest_start,omitempty" yaml:"earliest_start,omitempty"`
	LatestEnd     *time.Time `json:"latest_end,omitempty" yaml:"latest_end,omitempty"`

	PreferredWindows  []PreferredWindow `json:"preferred_windows,omitempty" yaml:"preferred_windows,omitempty"`
	RequiredResources []string          `json:"required_resources,omitempty" yaml:"required_resources,omitempty"`
	OptionalResources []string          `json:"optional_resources,omitempty" yaml:"optional_resources,omitempty"`
	Dependencies      []Dependency      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// DurationTime returns the task duration as a time.Duration.
func (t *Task) DurationTime() time.Duration {
	return time.Duration(t.Duration) * time.Minute
}

// Requires reports whether resourceID is one of the task's required resources.
func (t *Task) Requires(resourceID string) bool {
	for _, id := range t.RequiredResources {
		if id == resourceID {
			return true
		}
	}
	return false
}
