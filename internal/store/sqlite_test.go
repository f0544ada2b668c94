package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/me/slotwise/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func sampleTask(id string, priority int, deps ...string) *model.Task {
	deadline := monday.Add(48 * time.Hour)
	task := &model.Task{
		ID:                id,
		Title:             "task " + id,
		Duration:          60,
		Priority:          priority,
		Deadline:          &deadline,
		RequiredResources: []string{"ann"},
	}
	for _, d := range deps {
		task.Dependencies = append(task.Dependencies, model.Dependency{TaskID: d, Kind: model.DependencyAfter})
	}
	return task
}

func sampleRecord(id string, algorithm model.Algorithm, created time.Time) *model.ScheduleRecord {
	return &model.ScheduleRecord{
		Schedule: &model.Schedule{
			ID:        id,
			StartDate: monday,
			EndDate:   monday.Add(24 * time.Hour),
			Slots: []model.ScheduledSlot{{
				TaskID:               "a",
				ResourceIDs:          []string{"ann"},
				Start:                monday.Add(9 * time.Hour),
				End:                  monday.Add(10 * time.Hour),
				ActualDuration:       60,
				Confidence:           1,
				ConstraintViolations: []model.Violation{},
				OptimizationScore:    0.6,
			}},
			UnscheduledTasks:  []string{"b"},
			OptimizationScore: 0.8,
			ResourceCapacity:  map[string]int{"ann": 1},
			Metadata:          model.ScheduleMetadata{Algorithm: algorithm, GeneratedAt: monday},
		},
		Request: model.ScheduleRequest{
			Tasks:     []model.Task{*sampleTask("a", 5), *sampleTask("b", 3)},
			TimeRange: model.TimeRange{Start: monday, End: monday.Add(24 * time.Hour)},
			Options:   model.Options{Algorithm: algorithm},
		},
		CreatedAt: created,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestTaskCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	task := sampleTask("a", 7)
	if err := st.PutTask(ctx, task); err != nil {
		t.Fatalf("PutTask: %v", err)
	}

	got, err := st.GetTask(ctx, "a")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil {
		t.Fatal("GetTask returned nil")
	}
	if got.Title != task.Title || got.Priority != 7 || got.Duration != 60 {
		t.Errorf("task = %+v", got)
	}
	if got.Deadline == nil || !got.Deadline.Equal(*task.Deadline) {
		t.Errorf("Deadline = %v, want %v", got.Deadline, task.Deadline)
	}

	task.Title = "renamed"
	if err := st.PutTask(ctx, task); err != nil {
		t.Fatalf("PutTask update: %v", err)
	}
	got, _ = st.GetTask(ctx, "a")
	if got.Title != "renamed" {
		t.Errorf("Title = %q after upsert", got.Title)
	}

	if err := st.DeleteTask(ctx, "a"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	got, err = st.GetTask(ctx, "a")
	if err != nil {
		t.Fatalf("GetTask after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
	if err := st.DeleteTask(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetTask(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent task")
	}
}

func TestListTasksPagination(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := st.PutTask(ctx, sampleTask(fmt.Sprintf("t%d", i), i)); err != nil {
			t.Fatalf("PutTask: %v", err)
		}
	}

	tasks, total, err := st.ListTasks(ctx, model.ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(tasks) != 2 {
		t.Fatalf("len = %d, want 2", len(tasks))
	}
	if tasks[0].ID != "t5" || tasks[1].ID != "t4" {
		t.Errorf("page = %s,%s, want highest priority first", tasks[0].ID, tasks[1].ID)
	}

	tasks, _, err = st.ListTasks(ctx, model.ListOptions{Limit: 10, Offset: 4})
	if err != nil {
		t.Fatalf("ListTasks offset: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Errorf("last page = %v", tasks)
	}
}

func TestResourcesAndConstraints(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	res := &model.Resource{
		ID:           "room",
		Name:         "Room",
		Capacity:     2,
		Availability: []model.WeeklyWindow{{DayOfWeek: 1, Start: "08:00", End: "12:00"}},
	}
	if err := st.PutResource(ctx, res); err != nil {
		t.Fatalf("PutResource: %v", err)
	}
	c := &model.Constraint{
		ID:       "mornings",
		Kind:     model.ConstraintSoft,
		Category: model.CategoryTimePreferences,
		Weight:   0.5,
		Params:   &model.TimePreferenceParams{PreferredStart: "09:00", PreferredEnd: "12:00"},
	}
	if err := st.PutConstraint(ctx, c); err != nil {
		t.Fatalf("PutConstraint: %v", err)
	}

	resources, err := st.ListResources(ctx)
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 1 || resources[0].Capacity != 2 || len(resources[0].Availability) != 1 {
		t.Errorf("resources = %+v", resources)
	}

	constraints, err := st.ListConstraints(ctx)
	if err != nil {
		t.Fatalf("ListConstraints: %v", err)
	}
	if len(constraints) != 1 {
		t.Fatalf("len = %d, want 1", len(constraints))
	}
	p, ok := constraints[0].Params.(*model.TimePreferenceParams)
	if !ok {
		t.Fatalf("Params = %T, want *TimePreferenceParams", constraints[0].Params)
	}
	if p.PreferredStart != "09:00" {
		t.Errorf("PreferredStart = %q", p.PreferredStart)
	}
}

func TestLoadInputsDependencyClosure(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for _, task := range []*model.Task{
		sampleTask("a", 5),
		sampleTask("b", 5, "a"),
		sampleTask("c", 5, "b"),
		sampleTask("unrelated", 5),
	} {
		if err := st.PutTask(ctx, task); err != nil {
			t.Fatalf("PutTask: %v", err)
		}
	}
	if err := st.PutResource(ctx, &model.Resource{ID: "ann", Capacity: 1}); err != nil {
		t.Fatalf("PutResource: %v", err)
	}

	in, err := st.LoadInputs(ctx, []string{"c"})
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}
	got := map[string]bool{}
	for _, task := range in.Tasks {
		got[task.ID] = true
	}
	if len(got) != 3 || !got["a"] || !got["b"] || !got["c"] {
		t.Errorf("tasks = %v, want a, b and c", got)
	}
	if len(in.Resources) != 1 {
		t.Errorf("resources = %d, want 1", len(in.Resources))
	}

	all, err := st.LoadInputs(ctx, nil)
	if err != nil {
		t.Fatalf("LoadInputs all: %v", err)
	}
	if len(all.Tasks) != 4 {
		t.Errorf("all tasks = %d, want 4", len(all.Tasks))
	}

	if _, err := st.LoadInputs(ctx, []string{"missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task err = %v, want ErrNotFound", err)
	}
}

func TestScheduleCRUD(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec := sampleRecord("sch_1", model.AlgorithmGreedy, monday)
	if err := st.CreateSchedule(ctx, rec); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	got, err := st.GetSchedule(ctx, "sch_1")
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got == nil {
		t.Fatal("GetSchedule returned nil")
	}
	if got.Schedule.OptimizationScore != 0.8 || len(got.Schedule.Slots) != 1 {
		t.Errorf("schedule = %+v", got.Schedule)
	}
	if got.Schedule.Slots[0].ConstraintViolations == nil {
		t.Error("empty violations decoded as nil")
	}
	if len(got.Request.Tasks) != 2 || got.Request.Options.Algorithm != model.AlgorithmGreedy {
		t.Errorf("request = %+v", got.Request)
	}
	if !got.CreatedAt.Equal(monday) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, monday)
	}

	rec.Schedule.OptimizationScore = 0.9
	rec.Schedule.Metadata.Algorithm = model.AlgorithmOptimal
	if err := st.UpdateSchedule(ctx, rec); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	got, _ = st.GetSchedule(ctx, "sch_1")
	if got.Schedule.OptimizationScore != 0.9 || got.Schedule.Metadata.Algorithm != model.AlgorithmOptimal {
		t.Errorf("after update = %+v", got.Schedule)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestGetScheduleNotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetSchedule(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent schedule")
	}
}

func TestUpdateScheduleNotFound(t *testing.T) {
	st := testStore(t)
	err := st.UpdateSchedule(context.Background(), sampleRecord("sch_missing", model.AlgorithmGreedy, monday))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListSchedules(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	algorithms := []model.Algorithm{model.AlgorithmGreedy, model.AlgorithmOptimal, model.AlgorithmGreedy}
	for i, alg := range algorithms {
		rec := sampleRecord(fmt.Sprintf("sch_%d", i), alg, monday.Add(time.Duration(i)*time.Hour))
		if err := st.CreateSchedule(ctx, rec); err != nil {
			t.Fatalf("CreateSchedule: %v", err)
		}
	}

	list, total, err := st.ListSchedules(ctx, model.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if total != 3 || len(list) != 3 {
		t.Fatalf("total = %d, len = %d, want 3", total, len(list))
	}
	if list[0].ID != "sch_2" {
		t.Errorf("first = %s, want newest sch_2", list[0].ID)
	}
	if list[0].Scheduled != 1 || list[0].Unscheduled != 1 {
		t.Errorf("summary counts = %d/%d", list[0].Scheduled, list[0].Unscheduled)
	}

	list, total, err = st.ListSchedules(ctx, model.ListOptions{Limit: 10, Algorithm: string(model.AlgorithmGreedy)})
	if err != nil {
		t.Fatalf("ListSchedules filtered: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Errorf("greedy total = %d, len = %d, want 2", total, len(list))
	}
	for _, s := range list {
		if s.Algorithm != model.AlgorithmGreedy {
			t.Errorf("schedule %s algorithm = %s", s.ID, s.Algorithm)
		}
	}
}
