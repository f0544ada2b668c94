package engine

import (
	"math"
	"testing"

	"github.com/me/slotwise/pkg/model"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func slotOn(task, resource string, day, fromHour, toHour int) model.ScheduledSlot {
	return model.ScheduledSlot{
		TaskID:         task,
		ResourceIDs:    []string{resource},
		Start:          at(day, fromHour, 0),
		End:            at(day, toHour, 0),
		ActualDuration: (toHour - fromHour) * 60,
	}
}

func TestScoreScheduleTerms(t *testing.T) {
	s := &model.Schedule{
		StartDate: at(0, 0, 0),
		EndDate:   at(1, 0, 0),
		Slots: []model.ScheduledSlot{
			slotOn("a", "x", 0, 9, 10),
			slotOn("b", "x", 0, 12, 13),
			slotOn("c", "y", 0, 9, 10),
		},
		UnscheduledTasks: []string{"d"},
		ResourceCapacity: map[string]int{"x": 1, "y": 1},
	}
	s.Slots[2].ConstraintViolations = []model.Violation{{Type: "time_preferences", ConstraintID: "p"}}
	s.Slots[1].ConstraintViolations = []model.Violation{{Type: "buffer"}}

	if got := completionRate(s); !near(got, 0.75) {
		t.Errorf("completion = %v, want 0.75", got)
	}
	if got := constraintSatisfaction(s); !near(got, 2.0/3) {
		t.Errorf("satisfaction = %v, want 2/3 (buffer notes ignored)", got)
	}
	// loads 120 and 60: mean 90, stddev 30, cv 1/3.
	if got := resourceBalance(s); !near(got, 2.0/3) {
		t.Errorf("balance = %v, want 2/3", got)
	}
	// one same-day gap of 2h on x.
	if got := compactness(s); !near(got, 1.0/3) {
		t.Errorf("compactness = %v, want 1/3", got)
	}
	want := 0.4*0.75 + 0.3*2/3 + 0.2*2/3 + 0.1/3
	if got := ScoreSchedule(s); !near(got, want) {
		t.Errorf("ScoreSchedule = %v, want %v", got, want)
	}
}

func TestScoreScheduleEmpty(t *testing.T) {
	if got := ScoreSchedule(&model.Schedule{}); got != 1 {
		t.Errorf("empty schedule score = %v, want 1", got)
	}
	if got := ScoreSchedule(nil); got != 0 {
		t.Errorf("nil schedule score = %v, want 0", got)
	}
	allUnscheduled := &model.Schedule{UnscheduledTasks: []string{"a", "b"}}
	if got := ScoreSchedule(allUnscheduled); !near(got, 0.6) {
		t.Errorf("nothing placed score = %v, want 0.6", got)
	}
}

func TestScoreBalanceRewardsSpread(t *testing.T) {
	caps := map[string]int{"x": 1, "y": 1}
	lopsided := &model.Schedule{
		Slots:            []model.ScheduledSlot{slotOn("a", "x", 0, 9, 10), slotOn("b", "x", 0, 10, 11)},
		ResourceCapacity: caps,
	}
	spread := &model.Schedule{
		Slots:            []model.ScheduledSlot{slotOn("a", "x", 0, 9, 10), slotOn("b", "y", 0, 9, 10)},
		ResourceCapacity: caps,
	}
	if resourceBalance(spread) <= resourceBalance(lopsided) {
		t.Errorf("spread balance %v not above lopsided %v", resourceBalance(spread), resourceBalance(lopsided))
	}
	if got := resourceBalance(spread); got != 1 {
		t.Errorf("even load balance = %v, want 1", got)
	}
}

func TestCompactnessIgnoresGapsAcrossDays(t *testing.T) {
	s := &model.Schedule{
		StartDate: at(0, 0, 0),
		Slots:     []model.ScheduledSlot{slotOn("a", "x", 0, 9, 10), slotOn("b", "x", 1, 16, 17)},
	}
	if got := compactness(s); got != 1 {
		t.Errorf("compactness = %v, want 1", got)
	}
}
