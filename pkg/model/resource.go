package model

import "time"

// WeeklyWindow is a recurring availability window on one weekday.
// DayOfWeek follows time.Weekday (0 = Sunday). Start and End are "HH:MM".
type WeeklyWindow struct {
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"`
	Start     string `json:"start" yaml:"start"`
	End       string `json:"end" yaml:"end"`
}

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Overlaps reports whether the two half-open intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

// Minutes returns the interval length in whole minutes.
func (i Interval) Minutes() int {
	return int(i.End.Sub(i.Start) / time.Minute)
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Resource is a person, room or machine that slots are booked against.
type Resource struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
	Capacity     int            `json:"capacity" yaml:"capacity"`
	Availability []WeeklyWindow `json:"availability,omitempty" yaml:"availability,omitempty"`
	Unavailable  []Interval     `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// EffectiveCapacity returns the capacity, treating values below 1 as 1.
func (r *Resource) EffectiveCapacity() int {
	if r.Capacity < 1 {
		return 1
	}
	return r.Capacity
}
