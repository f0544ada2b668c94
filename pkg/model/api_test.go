package model

import (
	"testing"
	"time"
)

func TestListOptions_Clamp(t *testing.T) {
	tests := []struct {
		name      string
		input     ListOptions
		wantLimit int
		wantOffset int
	}{
		{"defaults", ListOptions{Limit: 0, Offset: 0}, 20, 0},
		{"negative limit", ListOptions{Limit: -5, Offset: 0}, 20, 0},
		{"over max", ListOptions{Limit: 200, Offset: 0}, 100, 0},
		{"negative offset", ListOptions{Limit: 10, Offset: -3}, 10, 0},
		{"valid", ListOptions{Limit: 50, Offset: 10}, 50, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.Clamp()
			if tt.input.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.input.Limit, tt.wantLimit)
			}
			if tt.input.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", tt.input.Offset, tt.wantOffset)
			}
		})
	}
}

func TestDefaultListOptions(t *testing.T) {
	opts := DefaultListOptions()
	if opts.Limit != 20 {
		t.Errorf("Limit = %d, want 20", opts.Limit)
	}
	if opts.Offset != 0 {
		t.Errorf("Offset = %d, want 0", opts.Offset)
	}
}

func TestScheduleRecordSummary(t *testing.T) {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	created := start.Add(2 * time.Hour)
	rec := &ScheduleRecord{
		Schedule: &Schedule{
			ID:                "sch_1",
			StartDate:         start,
			EndDate:           start.Add(24 * time.Hour),
			Slots:             []ScheduledSlot{{TaskID: "a"}, {TaskID: "b"}},
			UnscheduledTasks:  []string{"c"},
			OptimizationScore: 0.75,
			Metadata:          ScheduleMetadata{Algorithm: AlgorithmBalanced},
		},
		CreatedAt: created,
	}
	got := rec.Summary()
	want := &ScheduleSummary{
		ID:                "sch_1",
		StartDate:         start,
		EndDate:           start.Add(24 * time.Hour),
		Algorithm:         AlgorithmBalanced,
		OptimizationScore: 0.75,
		Scheduled:         2,
		Unscheduled:       1,
		CreatedAt:         created,
	}
	if *got != *want {
		t.Errorf("Summary() = %+v\nwant %+v", got, want)
	}
}
