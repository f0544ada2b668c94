package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConstraintKind separates constraints that must hold from those that only
// influence the quality score.
type ConstraintKind string

const (
	ConstraintHard ConstraintKind = "hard"
	ConstraintSoft ConstraintKind = "soft"
)

// Category selects the parameter set and the check a constraint performs.
type Category string

const (
	CategoryTemporal             Category = "temporal"
	CategoryCapacity             Category = "capacity"
	CategoryDependency           Category = "dependency"
	CategoryBusinessRules        Category = "business_rules"
	CategoryTimePreferences      Category = "time_preferences"
	CategoryResourceOptimization Category = "resource_optimization"
	CategoryPersonalPreferences  Category = "personal_preferences"
	CategoryBusinessOptimization Category = "business_optimization"
)

// Categories lists every supported category.
var Categories = []Category{
	CategoryTemporal,
	CategoryCapacity,
	CategoryDependency,
	CategoryBusinessRules,
	CategoryTimePreferences,
	CategoryResourceOptimization,
	CategoryPersonalPreferences,
	CategoryBusinessOptimization,
}

// Constraint is a hard or soft rule applied to every candidate slot.
// Params always holds the parameter struct matching Category.
type Constraint struct {
	ID       string           `json:"id" yaml:"id"`
	Kind     ConstraintKind   `json:"kind" yaml:"kind"`
	Category Category         `json:"category" yaml:"category"`
	Weight   float64          `json:"weight" yaml:"weight"`
	Params   ConstraintParams `json:"params,omitempty" yaml:"params,omitempty"`
}

// IsHard reports whether the constraint must never be violated.
func (c *Constraint) IsHard() bool {
	return c.Kind == ConstraintHard
}

// ConstraintParams is the per-category parameter set. The set of
// implementations is closed; NewParams returns the one for a category.
type ConstraintParams interface {
	Category() Category
	params()
}

// TemporalParams bounds when any slot may be placed.
type TemporalParams struct {
	NotBefore    *time.Time `json:"not_before,omitempty" yaml:"not_before,omitempty"`
	NotAfter     *time.Time `json:"not_after,omitempty" yaml:"not_after,omitempty"`
	ExcludedDays []int      `json:"excluded_days,omitempty" yaml:"excluded_days,omitempty"`
}

// CapacityParams tightens the usage limits of one resource.
type CapacityParams struct {
	ResourceID      string `json:"resource_id" yaml:"resource_id"`
	MaxConcurrent   int    `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	MaxDailyMinutes int    `json:"max_daily_minutes,omitempty" yaml:"max_daily_minutes,omitempty"`
}

// DependencyParams enforces ordering between dependent tasks.
type DependencyParams struct {
	MinLagMinutes int `json:"min_lag_minutes,omitempty" yaml:"min_lag_minutes,omitempty"`
}

// BusinessRulesParams encodes organisational rules. Expression is an
// optional JavaScript predicate over `slot` and `task`.
type BusinessRulesParams struct {
	WorkStart      string `json:"work_start,omitempty" yaml:"work_start,omitempty"`
	WorkEnd        string `json:"work_end,omitempty" yaml:"work_end,omitempty"`
	WorkingDays    []int  `json:"working_days,omitempty" yaml:"working_days,omitempty"`
	MaxTasksPerDay int    `json:"max_tasks_per_day,omitempty" yaml:"max_tasks_per_day,omitempty"`
	Expression     string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// TimePreferenceParams describes preferred hours and days.
type TimePreferenceParams struct {
	PreferredStart string `json:"preferred_start,omitempty" yaml:"preferred_start,omitempty"`
	PreferredEnd   string `json:"preferred_end,omitempty" yaml:"preferred_end,omitempty"`
	PreferredDays  []int  `json:"preferred_days,omitempty" yaml:"preferred_days,omitempty"`
}

// ResourceOptimizationParams caps the daily load of each resource as a
// fraction of an eight hour day.
type ResourceOptimizationParams struct {
	MaxDailyUtilization float64 `json:"max_daily_utilization,omitempty" yaml:"max_daily_utilization,omitempty"`
}

// PersonalPreferenceParams lists days and hours to stay away from.
type PersonalPreferenceParams struct {
	AvoidDays     []int  `json:"avoid_days,omitempty" yaml:"avoid_days,omitempty"`
	NoEarlierThan string `json:"no_earlier_than,omitempty" yaml:"no_earlier_than,omitempty"`
	NoLaterThan   string `json:"no_later_than,omitempty" yaml:"no_later_than,omitempty"`
}

// BusinessOptimizationParams pulls high-priority work to the front of the range.
type BusinessOptimizationParams struct {
	PreferEarly           bool `json:"prefer_early,omitempty" yaml:"prefer_early,omitempty"`
	HighPriorityThreshold int  `json:"high_priority_threshold,omitempty" yaml:"high_priority_threshold,omitempty"`
}

func (*TemporalParams) Category() Category             { return CategoryTemporal }
func (*CapacityParams) Category() Category             { return CategoryCapacity }
func (*DependencyParams) Category() Category           { return CategoryDependency }
func (*BusinessRulesParams) Category() Category        { return CategoryBusinessRules }
func (*TimePreferenceParams) Category() Category       { return CategoryTimePreferences }
func (*ResourceOptimizationParams) Category() Category { return CategoryResourceOptimization }
func (*PersonalPreferenceParams) Category() Category   { return CategoryPersonalPreferences }
func (*BusinessOptimizationParams) Category() Category { return CategoryBusinessOptimization }

func (*TemporalParams) params()             {}
func (*CapacityParams) params()             {}
func (*DependencyParams) params()           {}
func (*BusinessRulesParams) params()        {}
func (*TimePreferenceParams) params()       {}
func (*ResourceOptimizationParams) params() {}
func (*PersonalPreferenceParams) params()   {}
func (*BusinessOptimizationParams) params() {}

// NewParams returns an empty parameter struct for the category.
func NewParams(c Category) (ConstraintParams, error) {
	switch c {
	case CategoryTemporal:
		return &TemporalParams{}, nil
	case CategoryCapacity:
		return &CapacityParams{}, nil
	case CategoryDependency:
		return &DependencyParams{}, nil
	case CategoryBusinessRules:
		return &BusinessRulesParams{}, nil
	case CategoryTimePreferences:
		return &TimePreferenceParams{}, nil
	case CategoryResourceOptimization:
		return &ResourceOptimizationParams{}, nil
	case CategoryPersonalPreferences:
		return &PersonalPreferenceParams{}, nil
	case CategoryBusinessOptimization:
		return &BusinessOptimizationParams{}, nil
	default:
		return nil, fmt.Errorf("unknown constraint category %q", c)
	}
}

// UnmarshalJSON decodes params into the struct selected by category.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Kind     ConstraintKind  `json:"kind"`
		Category Category        `json:"category"`
		Weight   float64         `json:"weight"`
		Params   json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p, err := NewParams(raw.Category)
	if err != nil {
		return fmt.Errorf("constraint %s: %w", raw.ID, err)
	}
	if len(raw.Params) > 0 && string(raw.Params) != "null" {
		if err := json.Unmarshal(raw.Params, p); err != nil {
			return fmt.Errorf("constraint %s params: %w", raw.ID, err)
		}
	}
	*c = Constraint{ID: raw.ID, Kind: raw.Kind, Category: raw.Category, Weight: raw.Weight, Params: p}
	return nil
}

// UnmarshalYAML decodes params into the struct selected by category.
func (c *Constraint) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ID       string         `yaml:"id"`
		Kind     ConstraintKind `yaml:"kind"`
		Category Category       `yaml:"category"`
		Weight   float64        `yaml:"weight"`
		Params   yaml.Node      `yaml:"params"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p, err := NewParams(raw.Category)
	if err != nil {
		return fmt.Errorf("constraint %s: %w", raw.ID, err)
	}
	if raw.Params.Kind != 0 {
		if err := raw.Params.Decode(p); err != nil {
			return fmt.Errorf("constraint %s params: %w", raw.ID, err)
		}
	}
	*c = Constraint{ID: raw.ID, Kind: raw.Kind, Category: raw.Category, Weight: raw.Weight, Params: p}
	return nil
}

// ParseClock converts "HH:MM" into minutes after midnight. "24:00" is allowed
// as an end-of-day marker.
func ParseClock(s string) (int, error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(ms) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, errH := strconv.Atoi(hs)
	m, errM := strconv.Atoi(ms)
	if errH != nil || errM != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}
