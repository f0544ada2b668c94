package model

import "time"

// Algorithm selects how much optimisation a run performs.
type Algorithm string

const (
	AlgorithmGreedy   Algorithm = "greedy"
	AlgorithmOptimal  Algorithm = "optimal"
	AlgorithmBalanced Algorithm = "balanced"
	AlgorithmFast     Algorithm = "fast"
)

// IsValid reports whether a is a known algorithm.
func (a Algorithm) IsValid() bool {
	switch a {
	case AlgorithmGreedy, AlgorithmOptimal, AlgorithmBalanced, AlgorithmFast:
		return true
	}
	return false
}

// TimeRange is the half-open span a schedule covers.
type TimeRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Minutes returns the range length in whole minutes.
func (r TimeRange) Minutes() int {
	return int(r.End.Sub(r.Start) / time.Minute)
}

// Contains reports whether [start, end) lies inside the range.
func (r TimeRange) Contains(start, end time.Time) bool {
	return !start.Before(r.Start) && !end.After(r.End)
}

// SoftConstraintWeights scales soft constraints by category.
type SoftConstraintWeights struct {
	TimePreferences      float64 `json:"time_preferences" yaml:"time_preferences"`
	ResourceOptimization float64 `json:"resource_optimization" yaml:"resource_optimization"`
	PersonalPreferences  float64 `json:"personal_preferences" yaml:"personal_preferences"`
	BusinessOptimization float64 `json:"business_optimization" yaml:"business_optimization"`
}

// DefaultSoftConstraintWeights returns weights that sum to 1.0.
func DefaultSoftConstraintWeights() SoftConstraintWeights {
	return SoftConstraintWeights{
		TimePreferences:      0.30,
		ResourceOptimization: 0.25,
		PersonalPreferences:  0.25,
		BusinessOptimization: 0.20,
	}
}

// For returns the weight of a category. Categories without a dedicated
// weight share the mean of the four.
func (w SoftConstraintWeights) For(c Category) float64 {
	switch c {
	case CategoryTimePreferences:
		return w.TimePreferences
	case CategoryResourceOptimization:
		return w.ResourceOptimization
	case CategoryPersonalPreferences:
		return w.PersonalPreferences
	case CategoryBusinessOptimization:
		return w.BusinessOptimization
	default:
		return (w.TimePreferences + w.ResourceOptimization + w.PersonalPreferences + w.BusinessOptimization) / 4
	}
}

func (w SoftConstraintWeights) isZero() bool {
	return w == SoftConstraintWeights{}
}

// Options tunes a scheduling run. Zero values are replaced by defaults.
type Options struct {
	Algorithm                Algorithm             `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	MaxComputationTimeMs     int64                 `json:"max_computation_time_ms,omitempty" yaml:"max_computation_time_ms,omitempty"`
	OptimizationIterations   int                   `json:"optimization_iterations,omitempty" yaml:"optimization_iterations,omitempty"`
	SlotGranularityMinutes   int                   `json:"slot_granularity_minutes,omitempty" yaml:"slot_granularity_minutes,omitempty"`
	SoftConstraintWeights    SoftConstraintWeights `json:"soft_constraint_weights,omitempty" yaml:"soft_constraint_weights,omitempty"`
	BufferTimeMinutesDefault int                   `json:"buffer_time_minutes_default,omitempty" yaml:"buffer_time_minutes_default,omitempty"`
}

// Option defaults.
const (
	DefaultMaxComputationTimeMs     = 30000
	DefaultOptimizationIterations   = 100
	DefaultSlotGranularityMinutes   = 15
	DefaultBufferTimeMinutesDefault = 15
)

// WithDefaults returns a copy of o with every unset field defaulted.
func (o Options) WithDefaults() Options {
	if o.Algorithm == "" {
		o.Algorithm = AlgorithmGreedy
	}
	if o.MaxComputationTimeMs <= 0 {
		o.MaxComputationTimeMs = DefaultMaxComputationTimeMs
	}
	if o.OptimizationIterations <= 0 {
		o.OptimizationIterations = DefaultOptimizationIterations
	}
	if o.SlotGranularityMinutes <= 0 {
		o.SlotGranularityMinutes = DefaultSlotGranularityMinutes
	}
	if o.SoftConstraintWeights.isZero() {
		o.SoftConstraintWeights = DefaultSoftConstraintWeights()
	}
	if o.BufferTimeMinutesDefault <= 0 {
		o.BufferTimeMinutesDefault = DefaultBufferTimeMinutesDefault
	}
	return o
}

// ScheduleRequest is the complete input of one scheduling run.
type ScheduleRequest struct {
	Tasks       []Task       `json:"tasks" yaml:"tasks"`
	Resources   []Resource   `json:"resources" yaml:"resources"`
	Constraints []Constraint `json:"constraints" yaml:"constraints"`
	TimeRange   TimeRange    `json:"time_range" yaml:"time_range"`
	Options     Options      `json:"options" yaml:"options"`
}
