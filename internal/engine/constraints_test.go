package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/me/slotwise/pkg/model"
)

func hard(id string, p model.ConstraintParams) model.Constraint {
	return model.Constraint{ID: id, Kind: model.ConstraintHard, Category: p.Category(), Weight: 1, Params: p}
}

func soft(id string, weight float64, p model.ConstraintParams) model.Constraint {
	return model.Constraint{ID: id, Kind: model.ConstraintSoft, Category: p.Category(), Weight: weight, Params: p}
}

func compileOne(t *testing.T, c model.Constraint, tasks []model.Task) (*constraintSet, *compiledConstraint) {
	t.Helper()
	g, err := BuildDependencyGraph(tasks)
	if err != nil {
		t.Fatalf("BuildDependencyGraph: %v", err)
	}
	tr := model.TimeRange{Start: at(0, 0, 0), End: at(7, 0, 0)}
	cs, err := compileConstraints([]model.Constraint{c}, model.DefaultSoftConstraintWeights(), g, tr, time.UTC)
	if err != nil {
		t.Fatalf("compileConstraints: %v", err)
	}
	all := append(cs.hard, cs.soft...)
	return cs, all[0]
}

func TestCompileConstraintsErrors(t *testing.T) {
	tests := []struct {
		name string
		c    model.Constraint
	}{
		{"hard weight below one", model.Constraint{ID: "a", Kind: model.ConstraintHard, Category: model.CategoryTemporal, Weight: 0.9}},
		{"soft weight above one", soft("b", 1.5, &model.TimePreferenceParams{})},
		{"negative soft weight", soft("c", -0.1, &model.TimePreferenceParams{})},
		{"unknown kind", model.Constraint{ID: "d", Kind: "maybe", Category: model.CategoryTemporal, Weight: 1}},
		{"params mismatch", model.Constraint{ID: "e", Kind: model.ConstraintHard, Category: model.CategoryCapacity, Weight: 1, Params: &model.TemporalParams{}}},
		{"unknown category", model.Constraint{ID: "f", Kind: model.ConstraintHard, Category: "astrology", Weight: 1}},
		{"capacity without resource", hard("g", &model.CapacityParams{MaxConcurrent: 1})},
		{"bad clock", hard("h", &model.BusinessRulesParams{WorkStart: "nine"})},
		{"inverted hours", hard("i", &model.BusinessRulesParams{WorkStart: "17:00", WorkEnd: "09:00"})},
		{"bad day", hard("j", &model.TemporalParams{ExcludedDays: []int{9}})},
		{"bad expression", hard("k", &model.BusinessRulesParams{Expression: "slot.day >"})},
		{"negative lag", hard("l", &model.DependencyParams{MinLagMinutes: -5})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileConstraints([]model.Constraint{tt.c}, model.DefaultSoftConstraintWeights(), &DependencyGraph{}, model.TimeRange{}, time.UTC)
			if !errors.Is(err, ErrInvalidConstraint) {
				t.Errorf("err = %v, want ErrInvalidConstraint", err)
			}
		})
	}

	dup := []model.Constraint{hard("x", &model.TemporalParams{}), hard("x", &model.TemporalParams{})}
	if _, err := compileConstraints(dup, model.DefaultSoftConstraintWeights(), &DependencyGraph{}, model.TimeRange{}, time.UTC); !errors.Is(err, ErrInvalidConstraint) {
		t.Errorf("duplicate ids: err = %v, want ErrInvalidConstraint", err)
	}
}

func TestCompileConstraintsDefaultsParams(t *testing.T) {
	c := model.Constraint{ID: "t", Kind: model.ConstraintSoft, Category: model.CategoryTimePreferences, Weight: 0.5}
	cs, err := compileConstraints([]model.Constraint{c}, model.DefaultSoftConstraintWeights(), &DependencyGraph{}, model.TimeRange{}, time.UTC)
	if err != nil {
		t.Fatalf("compileConstraints: %v", err)
	}
	if len(cs.soft) != 1 || cs.soft[0].Params == nil {
		t.Fatalf("soft = %+v, want one constraint with default params", cs.soft)
	}
	ids := cs.ids()
	if len(ids.Hard) != 0 || len(ids.Soft) != 1 || ids.Soft[0] != "t" {
		t.Errorf("ids = %+v", ids)
	}
}

func TestConstraintCheck(t *testing.T) {
	task := model.Task{ID: "task", Duration: 60, Priority: 8}
	booked := []model.ScheduledSlot{
		{TaskID: "other", ResourceIDs: []string{"r"}, Start: at(0, 9, 0), End: at(0, 11, 0), ActualDuration: 120},
	}
	slot := func(start, end time.Time, resources ...string) *slotContext {
		return &slotContext{task: &task, start: start, end: end, resources: resources, others: booked}
	}

	tests := []struct {
		name string
		c    model.Constraint
		sc   *slotContext
		want bool
	}{
		{"temporal inside", hard("t1", &model.TemporalParams{NotBefore: ptr(at(0, 8, 0)), NotAfter: ptr(at(0, 18, 0))}), slot(at(0, 9, 0), at(0, 10, 0)), true},
		{"temporal too early", hard("t2", &model.TemporalParams{NotBefore: ptr(at(0, 10, 0))}), slot(at(0, 9, 0), at(0, 10, 0)), false},
		{"temporal too late", hard("t3", &model.TemporalParams{NotAfter: ptr(at(0, 9, 30))}), slot(at(0, 9, 0), at(0, 10, 0)), false},
		{"temporal excluded day", hard("t4", &model.TemporalParams{ExcludedDays: []int{1}}), slot(at(0, 9, 0), at(0, 10, 0)), false},

		{"capacity other resource", hard("c1", &model.CapacityParams{ResourceID: "r", MaxConcurrent: 1}), slot(at(0, 9, 0), at(0, 10, 0), "q"), true},
		{"capacity concurrent", hard("c2", &model.CapacityParams{ResourceID: "r", MaxConcurrent: 1}), slot(at(0, 10, 0), at(0, 11, 0), "r"), false},
		{"capacity concurrent allowed", hard("c3", &model.CapacityParams{ResourceID: "r", MaxConcurrent: 2}), slot(at(0, 10, 0), at(0, 11, 0), "r"), true},
		{"capacity daily minutes", hard("c4", &model.CapacityParams{ResourceID: "r", MaxDailyMinutes: 150}), slot(at(0, 13, 0), at(0, 14, 0), "r"), false},
		{"capacity daily other day", hard("c5", &model.CapacityParams{ResourceID: "r", MaxDailyMinutes: 150}), slot(at(1, 13, 0), at(1, 14, 0), "r"), true},

		{"rules hours", hard("b1", &model.BusinessRulesParams{WorkStart: "09:00", WorkEnd: "17:00"}), slot(at(0, 16, 0), at(0, 17, 0)), true},
		{"rules too early", hard("b2", &model.BusinessRulesParams{WorkStart: "09:00"}), slot(at(0, 8, 0), at(0, 9, 0)), false},
		{"rules working days", hard("b3", &model.BusinessRulesParams{WorkingDays: []int{2, 3}}), slot(at(0, 9, 0), at(0, 10, 0)), false},
		{"rules tasks per day", hard("b4", &model.BusinessRulesParams{MaxTasksPerDay: 1}), slot(at(0, 13, 0), at(0, 14, 0)), false},
		{"rules expression true", hard("b5", &model.BusinessRulesParams{Expression: "slot.startMinute >= 600 && task.priority > 5"}), slot(at(0, 10, 0), at(0, 11, 0)), true},
		{"rules expression false", hard("b6", &model.BusinessRulesParams{Expression: "slot.day === 5"}), slot(at(0, 10, 0), at(0, 11, 0)), false},
		{"rules expression resources", hard("b7", &model.BusinessRulesParams{Expression: "slot.resources.length === 1 && slot.duration === 60"}), slot(at(0, 12, 0), at(0, 13, 0), "q"), true},
		{"rules expression runtime error", hard("b8", &model.BusinessRulesParams{Expression: "slot.missing.field"}), slot(at(0, 12, 0), at(0, 13, 0)), false},

		{"preference hours", soft("p1", 0.5, &model.TimePreferenceParams{PreferredStart: "08:00", PreferredEnd: "12:00"}), slot(at(0, 11, 0), at(0, 12, 0)), true},
		{"preference after hours", soft("p2", 0.5, &model.TimePreferenceParams{PreferredEnd: "12:00"}), slot(at(0, 11, 30), at(0, 12, 30)), false},
		{"preference days", soft("p3", 0.5, &model.TimePreferenceParams{PreferredDays: []int{1}}), slot(at(1, 9, 0), at(1, 10, 0)), false},

		{"utilization ok", soft("u1", 0.5, &model.ResourceOptimizationParams{MaxDailyUtilization: 0.5}), slot(at(0, 13, 0), at(0, 14, 0), "r"), true},
		{"utilization exceeded", soft("u2", 0.5, &model.ResourceOptimizationParams{MaxDailyUtilization: 0.25}), slot(at(0, 13, 0), at(0, 14, 0), "r"), false},

		{"personal avoid day", soft("m1", 0.5, &model.PersonalPreferenceParams{AvoidDays: []int{1}}), slot(at(0, 9, 0), at(0, 10, 0)), false},
		{"personal no later", soft("m2", 0.5, &model.PersonalPreferenceParams{NoLaterThan: "16:00"}), slot(at(0, 15, 0), at(0, 16, 0)), true},
		{"personal no earlier", soft("m3", 0.5, &model.PersonalPreferenceParams{NoEarlierThan: "10:00"}), slot(at(0, 9, 0), at(0, 10, 0)), false},

		{"business early first half", soft("o1", 0.5, &model.BusinessOptimizationParams{PreferEarly: true}), slot(at(1, 9, 0), at(1, 10, 0)), true},
		{"business early second half", soft("o2", 0.5, &model.BusinessOptimizationParams{PreferEarly: true}), slot(at(5, 9, 0), at(5, 10, 0)), false},
		{"business low priority ignored", soft("o3", 0.5, &model.BusinessOptimizationParams{PreferEarly: true, HighPriorityThreshold: 9}), slot(at(5, 9, 0), at(5, 10, 0)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, cc := compileOne(t, tt.c, []model.Task{task})
			ok, why := cs.check(cc, tt.sc)
			if ok != tt.want {
				t.Errorf("check = %v (%s), want %v", ok, why, tt.want)
			}
			if !ok && why == "" {
				t.Errorf("failed check gave no reason")
			}
		})
	}
}

func TestDependencyCheckBothDirections(t *testing.T) {
	tasks := []model.Task{
		{ID: "first", Duration: 60},
		{ID: "second", Duration: 60, Dependencies: dep("first", model.DependencyAfter)},
	}
	cs, cc := compileOne(t, hard("d", &model.DependencyParams{MinLagMinutes: 30}), tasks)

	firstPlaced := []model.ScheduledSlot{{TaskID: "first", Start: at(0, 9, 0), End: at(0, 10, 0)}}
	tests := []struct {
		name  string
		task  *model.Task
		start time.Time
		other []model.ScheduledSlot
		want  bool
	}{
		{"successor respects lag", &tasks[1], at(0, 10, 30), firstPlaced, true},
		{"successor inside lag", &tasks[1], at(0, 10, 15), firstPlaced, false},
		{"successor before predecessor", &tasks[1], at(0, 8, 0), firstPlaced, false},
		{"predecessor before successor", &tasks[0], at(0, 9, 0), []model.ScheduledSlot{{TaskID: "second", Start: at(0, 10, 30), End: at(0, 11, 30)}}, true},
		{"predecessor too close", &tasks[0], at(0, 9, 45), []model.ScheduledSlot{{TaskID: "second", Start: at(0, 11, 0), End: at(0, 12, 0)}}, false},
		{"nothing placed", &tasks[1], at(0, 8, 0), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &slotContext{task: tt.task, start: tt.start, end: tt.start.Add(time.Hour), others: tt.other}
			if ok, why := cs.check(cc, sc); ok != tt.want {
				t.Errorf("check = %v (%s), want %v", ok, why, tt.want)
			}
		})
	}
}

func TestSoftEval(t *testing.T) {
	task := model.Task{ID: "task", Duration: 60}
	g, _ := BuildDependencyGraph([]model.Task{task})
	cs, err := compileConstraints([]model.Constraint{
		soft("morning", 0.8, &model.TimePreferenceParams{PreferredEnd: "12:00"}),
		soft("no-mondays", 0.2, &model.PersonalPreferenceParams{AvoidDays: []int{1}}),
	}, model.DefaultSoftConstraintWeights(), g, model.TimeRange{Start: at(0, 0, 0), End: at(7, 0, 0)}, time.UTC)
	if err != nil {
		t.Fatalf("compileConstraints: %v", err)
	}

	sat, violations := cs.softEval(&slotContext{task: &task, start: at(1, 9, 0), end: at(1, 10, 0)})
	if sat != 1 || len(violations) != 0 {
		t.Errorf("tuesday morning: sat = %v, violations = %+v", sat, violations)
	}

	sat, violations = cs.softEval(&slotContext{task: &task, start: at(0, 14, 0), end: at(0, 15, 0)})
	if sat != 0 || len(violations) != 2 {
		t.Fatalf("monday afternoon: sat = %v, violations = %+v", sat, violations)
	}
	if violations[0].Severity != model.SeverityHigh || violations[1].Severity != model.SeverityLow {
		t.Errorf("severities = %s, %s; want high, low", violations[0].Severity, violations[1].Severity)
	}
	if violations[0].ConstraintID != "morning" {
		t.Errorf("constraint id = %q, want morning", violations[0].ConstraintID)
	}

	// 0.8*0.30 satisfied of 0.8*0.30 + 0.2*0.25 total.
	sat, _ = cs.softEval(&slotContext{task: &task, start: at(0, 9, 0), end: at(0, 10, 0)})
	want := 0.24 / (0.24 + 0.05)
	if diff := sat - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("sat = %v, want %v", sat, want)
	}
}

func TestRuleExpressionConcurrentUse(t *testing.T) {
	re, err := compileRule("busy", "slot.duration > 30")
	if err != nil {
		t.Fatalf("compileRule: %v", err)
	}
	done := make(chan bool)
	for i := 0; i < 8; i++ {
		go func(d int) {
			ok, err := re.Eval(context.Background(), map[string]any{"duration": d}, map[string]any{})
			done <- err == nil && ok == (d > 30)
		}(i * 10)
	}
	for i := 0; i < 8; i++ {
		if !<-done {
			t.Errorf("concurrent evaluation returned a wrong result")
		}
	}
}

func TestRuleExpressionNonBoolean(t *testing.T) {
	re, err := compileRule("num", "task.priority")
	if err != nil {
		t.Fatalf("compileRule: %v", err)
	}
	ok, err := re.Eval(context.Background(), map[string]any{}, map[string]any{"priority": 5})
	if err != nil || ok {
		t.Errorf("Eval = %v, %v; want false, nil", ok, err)
	}
}

func TestRuleExpressionGlobalsDoNotLeak(t *testing.T) {
	re, err := compileRule("counter", "(globalThis.n = (globalThis.n || 0) + 1) <= 1")
	if err != nil {
		t.Fatalf("compileRule: %v", err)
	}
	for i := 0; i < 3; i++ {
		ok, err := re.Eval(context.Background(), map[string]any{}, map[string]any{})
		if err != nil || !ok {
			t.Errorf("evaluation %d = %v, %v; want true, nil", i, ok, err)
		}
	}
}

func TestRuleExpressionInterrupted(t *testing.T) {
	re, err := compileRule("spin", "(function(){ for(;;){} })()")
	if err != nil {
		t.Fatalf("compileRule: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	begin := time.Now()
	ok, err := re.Eval(ctx, map[string]any{}, map[string]any{})
	if err == nil || ok {
		t.Errorf("Eval = %v, %v; want false with an error", ok, err)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Errorf("cancelled evaluation took %s", elapsed)
	}

	begin = time.Now()
	ok, err = re.Eval(context.Background(), map[string]any{}, map[string]any{})
	if err == nil || ok {
		t.Errorf("Eval = %v, %v; want false with an error", ok, err)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Errorf("evaluation ran %s past its timeout", elapsed)
	}
}

func TestScheduleSpinningRuleLeavesTaskUnscheduled(t *testing.T) {
	rule := hard("spin", &model.BusinessRulesParams{Expression: "(function(){ for(;;){} })()"})
	req := model.ScheduleRequest{
		Tasks:       []model.Task{{ID: "a", Duration: 60, Priority: 5}},
		Resources:   []model.Resource{{ID: "r"}},
		Constraints: []model.Constraint{rule},
		TimeRange:   model.TimeRange{Start: at(0, 9, 0), End: at(0, 10, 0)},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s, err := testEngine().Schedule(ctx, req)
	if err == nil {
		if len(s.Slots) != 0 {
			t.Errorf("slots = %d, want 0", len(s.Slots))
		}
		return
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want nil or deadline exceeded", err)
	}
}
