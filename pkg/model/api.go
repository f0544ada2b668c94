package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit     int
	Offset    int
	Algorithm string // Optional algorithm filter for schedules
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// ScheduleSummary is the list view of a stored schedule.
type ScheduleSummary struct {
	ID                string    `json:"id"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	Algorithm         Algorithm `json:"algorithm"`
	OptimizationScore float64   `json:"optimization_score"`
	Scheduled         int       `json:"scheduled"`
	Unscheduled       int       `json:"unscheduled"`
	CreatedAt         time.Time `json:"created_at"`
}

// ScheduleRun is the API request body for computing a schedule from stored
// tasks, resources and constraints.
type ScheduleRun struct {
	TimeRange     TimeRange `json:"time_range"`
	Options       Options   `json:"options"`
	TaskIDs       []string  `json:"task_ids,omitempty"`
	ConstraintIDs []string  `json:"constraint_ids,omitempty"`
}

// SlotQuery is the API request body for free-slot lookups.
type SlotQuery struct {
	ResourceIDs   []string  `json:"resource_ids"`
	Duration      int       `json:"duration"`
	ConstraintIDs []string  `json:"constraint_ids,omitempty"`
	TimeRange     TimeRange `json:"time_range"`
	Count         int       `json:"count"`
}

// ScheduleRecord is a persisted schedule together with the request it was
// computed from, so it can be optimized again later.
type ScheduleRecord struct {
	Schedule  *Schedule       `json:"schedule"`
	Request   ScheduleRequest `json:"request"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Summary returns the list view of the record.
func (r *ScheduleRecord) Summary() *ScheduleSummary {
	s := r.Schedule
	return &ScheduleSummary{
		ID:                s.ID,
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		Algorithm:         s.Metadata.Algorithm,
		OptimizationScore: s.OptimizationScore,
		Scheduled:         len(s.Slots),
		Unscheduled:       len(s.UnscheduledTasks),
		CreatedAt:         r.CreatedAt,
	}
}
